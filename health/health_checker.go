// Package health reports whether the reference data behind the matching
// endpoints is loaded and fresh.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	now       func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		now:       time.Now,
	}
}

// HealthCheck returns HTTP-specific health data.
//
// unhealthy: no reference dataset is loaded, or the data is older than 48h.
// degraded: data older than 24h, a long-running update, or some datasets
// missing. Missing datasets still answer 200 since the endpoints that do not
// need them keep working.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	files := h.dataStore.GetFileStatus()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	datasets := make(map[string]any, len(entities.DatasetNames))
	loaded := 0
	for _, name := range entities.DatasetNames {
		fs, ok := files[name]
		entry := map[string]any{
			"loaded":  ok && fs.Loaded,
			"records": fs.Records,
		}
		if fs.Error != "" {
			entry["error"] = fs.Error
		}
		if ok && fs.Loaded {
			loaded++
		}
		datasets[name] = entry
	}

	switch {
	case loaded == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case loaded < len(entities.DatasetNames):
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":     lastUpdate.Format(time.RFC3339),
		"data_age_hours":  math.Round(dataAge.Hours()*10) / 10,
		"is_updating":     isUpdating,
		"datasets":        datasets,
		"datasets_loaded": loaded,
		"trials":          len(h.dataStore.GetTrials()),
		"associations":    h.dataStore.GetGeneDisease().Len(),
		"orphan_drugs":    h.dataStore.GetOrphanDrugs().Len(),
		"reactor_rows":    h.dataStore.GetReactor().Len(),
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled full refresh time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return nextRefresh(h.now())
}

func nextRefresh(now time.Time) time.Time {
	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}
	if now.Before(sixPM) {
		return sixPM
	}
	return sixAM.AddDate(0, 0, 1)
}
