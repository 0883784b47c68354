package matcher

// TrialSummary describes one trial matching run.
type TrialSummary struct {
	Patients          int      `json:"patients"`
	Trials            int      `json:"trials"`
	EligibleTrials    int      `json:"eligibleTrials"`
	Categories        []string `json:"categories"`
	IgnoredCategories []string `json:"ignoredCategories,omitempty"`
	HeaderRowsDropped int      `json:"headerRowsDropped"`
	SkippedRows       int      `json:"skippedRows"`
	DuplicateRows     int      `json:"duplicateRows"`
	TotalMatches      int      `json:"totalMatches"`
	UniquePatients    int      `json:"uniquePatients"`
	UniqueTrials      int      `json:"uniqueTrials"`
	SuccessRate       *float64 `json:"successRate,omitempty"` // matches per 100 patients
}

// DrugSummary describes one drug matching run.
type DrugSummary struct {
	Patients          int      `json:"patients"`
	Associations      int      `json:"associations"`
	OrphanDrugs       int      `json:"orphanDrugs"`
	JoinedPairs       int      `json:"joinedPairs"`
	HeaderRowsDropped int      `json:"headerRowsDropped"`
	SkippedRows       int      `json:"skippedRows"`
	DuplicateRows     int      `json:"duplicateRows"`
	TotalMatches      int      `json:"totalMatches"`
	UniquePatients    int      `json:"uniquePatients"`
	UniqueDrugs       int      `json:"uniqueDrugs"`
	Companies         int      `json:"companies"`
	Diseases          int      `json:"diseases"`
	DesignatedMatches int      `json:"designatedMatches"`
	SuccessRate       *float64 `json:"successRate,omitempty"`
}

// DiffSummary describes one dataset diff.
type DiffSummary struct {
	BaselineRecords   int      `json:"baselineRecords"`
	UpdatedRecords    int      `json:"updatedRecords"`
	HeaderRowsDropped int      `json:"headerRowsDropped"`
	NewRecords        int      `json:"newRecords"`
	UniqueNewPatients int      `json:"uniqueNewPatients"`
	GrowthRate        *float64 `json:"growthRate,omitempty"`    // new per 100 baseline records
	DiscoveryRate     *float64 `json:"discoveryRate,omitempty"` // new per 100 updated records
}
