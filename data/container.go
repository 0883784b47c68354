// Package data holds the in-memory reference datasets behind atomic values
// so that matching requests never wait on a reload.
package data

import (
	"maps"
	"sync/atomic"
	"time"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds all the data with atomic pointers for zero-downtime updates
type DataContainer struct {
	trials          atomic.Value // []entities.TrialRecord
	geneDisease     atomic.Pointer[entities.GeneDiseaseTable]
	orphanDrugs     atomic.Pointer[entities.OrphanDrugTable]
	reactor         atomic.Pointer[entities.Table]
	files           atomic.Value // map[string]entities.FileStatus
	report          atomic.Pointer[interfaces.DataQualityReport]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.trials.Store(make([]entities.TrialRecord, 0))
	dc.files.Store(make(map[string]entities.FileStatus))
	dc.report.Store(&interfaces.DataQualityReport{})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetTrials returns the backend clinical trial database
func (dc *DataContainer) GetTrials() []entities.TrialRecord {
	if trials, ok := dc.trials.Load().([]entities.TrialRecord); ok {
		return trials
	}
	logging.Warn("Trial list is empty or invalid")
	return []entities.TrialRecord{}
}

// GetGeneDisease returns the gene-disease table, nil until one has loaded
func (dc *DataContainer) GetGeneDisease() *entities.GeneDiseaseTable {
	return dc.geneDisease.Load()
}

// GetOrphanDrugs returns the orphan drug table, nil until one has loaded
func (dc *DataContainer) GetOrphanDrugs() *entities.OrphanDrugTable {
	return dc.orphanDrugs.Load()
}

// GetReactor returns the REACTOR baseline, nil until one has loaded
func (dc *DataContainer) GetReactor() *entities.Table {
	return dc.reactor.Load()
}

// GetFileStatus returns a copy of the per-dataset load status
func (dc *DataContainer) GetFileStatus() map[string]entities.FileStatus {
	if files, ok := dc.files.Load().(map[string]entities.FileStatus); ok {
		return maps.Clone(files)
	}
	return make(map[string]entities.FileStatus)
}

// GetDataQualityReport returns the report of the last update
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	return dc.report.Load()
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if lastUpdated, ok := dc.lastUpdated.Load().(time.Time); ok {
		return lastUpdated
	}
	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if startTime, ok := dc.serverStartTime.Load().(time.Time); ok {
		return startTime
	}
	return time.Time{}
}

// UpdateData swaps in every dataset present in ref. A dataset that failed to
// load is nil in ref and the previous snapshot stays in place, with the load
// error recorded on its file status.
func (dc *DataContainer) UpdateData(ref *entities.ReferenceData, report *interfaces.DataQualityReport) {
	if ref == nil {
		return
	}

	if ref.Trials != nil {
		dc.trials.Store(ref.Trials)
	}
	if ref.GeneDisease != nil {
		dc.geneDisease.Store(ref.GeneDisease)
	}
	if ref.OrphanDrugs != nil {
		dc.orphanDrugs.Store(ref.OrphanDrugs)
	}
	if ref.Reactor != nil {
		dc.reactor.Store(ref.Reactor)
	}

	previous := dc.GetFileStatus()
	files := make(map[string]entities.FileStatus, len(ref.Files))
	for name, status := range ref.Files {
		if !status.Loaded {
			if prev, ok := previous[name]; ok && prev.Loaded {
				// keep serving the previous version, but surface the error
				prev.Error = status.Error
				status = prev
			}
		}
		files[name] = status
	}
	dc.files.Store(files)

	if report != nil {
		dc.report.Store(report)
	}
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
