// Package interfaces defines the contracts between the reference data cache,
// the loaders that fill it and the HTTP surface that reads it.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// DataQualityReport summarizes anomalies found in the reference datasets.
type DataQualityReport struct {
	DuplicateTrialIDs         []string `json:"duplicateTrialIDs"`
	TrialsWithoutCondition    int      `json:"trialsWithoutCondition"`
	DuplicateAssociations     int      `json:"duplicateAssociations"`
	AssociationsWithoutName   int      `json:"associationsWithoutName"`
	NonStandardSymbols        []string `json:"nonStandardSymbols"`
	DrugsWithoutDesignation   int      `json:"drugsWithoutDesignation"`
	DesignatedDrugs           int      `json:"designatedDrugs"`
	ReactorRowsWithoutPatient int      `json:"reactorRowsWithoutPatient"`
	ReactorHeaderArtifactRows int      `json:"reactorHeaderArtifactRows"`
}

// DataStore holds the current snapshot of the reference datasets.
// Reads never block; UpdateData swaps datasets atomically.
type DataStore interface {
	GetTrials() []entities.TrialRecord
	GetGeneDisease() *entities.GeneDiseaseTable
	GetOrphanDrugs() *entities.OrphanDrugTable
	GetReactor() *entities.Table
	GetFileStatus() map[string]entities.FileStatus
	GetDataQualityReport() *DataQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// UpdateData installs the datasets that loaded; a nil dataset keeps the previous one.
	UpdateData(ref *entities.ReferenceData, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// ReferenceLoader reads the reference datasets from their source files.
type ReferenceLoader interface {
	Load(ctx context.Context) (*entities.ReferenceData, error)
	Identities() map[string]entities.FileIdentity
	RefreshOrphanDrugs(ctx context.Context) error
}

// Matcher runs the matching pipelines.
type Matcher interface {
	MatchTrials(patients []entities.PatientRecord, trials []entities.TrialRecord, categories []string, progress matcher.ProgressFunc) (*matcher.TrialResult, error)
	MatchDrugs(patients []entities.PatientRecord, geneDisease *entities.GeneDiseaseTable, drugs *entities.OrphanDrugTable, progress matcher.ProgressFunc) (*matcher.DrugResult, error)
	Diff(baseline, updated *entities.Table, progress matcher.ProgressFunc) (*matcher.DiffResult, error)
	Categories() *matcher.ExclusionCategories
}

// Scheduler keeps the reference data fresh.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports service health.
type HealthChecker interface {
	// HealthCheck returns the status, details and the HTTP status to answer with.
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled full refresh.
	CalculateNextUpdate() time.Time
}

// DataValidator checks user input and reference data.
type DataValidator interface {
	// ValidateInput rejects free text carrying injection patterns.
	ValidateInput(input string) error

	// ValidateGeneSymbol checks a symbol against HGNC naming rules.
	ValidateGeneSymbol(symbol string) error

	// ValidatePatients returns the patients whose gene symbol looks non-standard.
	ValidatePatients(patients []entities.PatientRecord) []string

	// ReportDataQuality inspects a loaded snapshot.
	ReportDataQuality(ref *entities.ReferenceData) *DataQualityReport
}

// HTTPHandler serves the matching API.
type HTTPHandler interface {
	MatchTrials(w http.ResponseWriter, r *http.Request)
	MatchDrugs(w http.ResponseWriter, r *http.Request)
	Compare(w http.ResponseWriter, r *http.Request)
	CompareReactor(w http.ResponseWriter, r *http.Request)
	ExclusionCategories(w http.ResponseWriter, r *http.Request)
	DatabaseStatus(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
