package entities

import "time"

// Names of the backend reference datasets.
const (
	DatasetTrials      = "clinical_trials"
	DatasetGeneDisease = "gene_disease"
	DatasetOrphanDrugs = "orphan_drugs"
	DatasetReactor     = "reactor"
)

// DatasetNames lists the reference datasets in load/report order.
var DatasetNames = []string{DatasetTrials, DatasetGeneDisease, DatasetOrphanDrugs, DatasetReactor}

// FileIdentity identifies one version of a file on disk.
type FileIdentity struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Equal reports whether both identities describe the same file version.
func (f FileIdentity) Equal(other FileIdentity) bool {
	return f.Path == other.Path && f.Size == other.Size && f.ModTime.Equal(other.ModTime)
}

// FileStatus is the load outcome of one reference dataset.
type FileStatus struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Loaded   bool         `json:"loaded"`
	Records  int          `json:"records"`
	Encoding string       `json:"encoding,omitempty"`
	Error    string       `json:"error,omitempty"`
	Identity FileIdentity `json:"identity"`
	LoadedAt time.Time    `json:"loadedAt"`
}

// ReferenceData is one consistent snapshot of the backend datasets.
// A dataset that failed to load is left nil and its FileStatus carries the error.
type ReferenceData struct {
	Trials      []TrialRecord
	GeneDisease *GeneDiseaseTable
	OrphanDrugs *OrphanDrugTable
	Reactor     *Table
	Files       map[string]FileStatus
}
