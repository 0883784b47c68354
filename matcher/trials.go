package matcher

import (
	"regexp"
	"strings"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// TrialResult is the output of MatchTrials.
type TrialResult struct {
	Table   *entities.ResultTable `json:"table"`
	Summary TrialSummary          `json:"summary"`
}

// TrialResultColumns is the column order of trial match results.
func TrialResultColumns() []string {
	return mergeColumns(entities.PatientColumns, TrialPrefix, entities.TrialColumns)
}

func mentions(re *regexp.Regexp, texts ...string) bool {
	for _, text := range texts {
		if text != "" && re.MatchString(text) {
			return true
		}
	}
	return false
}

// MatchTrials pairs every patient with every trial whose title or summary
// mentions the patient's gene as a whole word, after removing trials whose
// condition falls in one of the selected exclusion categories. Unknown
// category names are ignored and reported in the summary.
func (e *Engine) MatchTrials(patients []entities.PatientRecord, trials []entities.TrialRecord, categories []string, progress ProgressFunc) (*TrialResult, error) {
	if len(patients) == 0 {
		return nil, entities.NewMalformedInputError("patient", "table is empty", entities.PatientColumns, nil)
	}
	if len(trials) == 0 {
		return nil, entities.NewMalformedInputError("trial", "table is empty", entities.TrialColumns, nil)
	}

	known, ignored := e.categories.ResolveCategories(categories)

	// The exclusion mask does not depend on the patient, so it is built once
	conditions := make([]string, len(trials))
	for j, trial := range trials {
		conditions[j] = trial.ConditionGenePhenotype
	}
	eligible := e.categories.BuildMask(conditions, known)

	summary := TrialSummary{
		Patients:          len(patients),
		Trials:            len(trials),
		Categories:        known,
		IgnoredCategories: ignored,
	}
	for _, ok := range eligible {
		if ok {
			summary.EligibleTrials++
		}
	}

	builder := newResultBuilder(TrialResultColumns())
	patientIDs := make(map[string]struct{})
	trialIDs := make(map[string]struct{})

	for i, patient := range patients {
		if patient.IsHeaderArtifact() {
			summary.HeaderRowsDropped++
			progress.report(i+1, len(patients))
			continue
		}

		re, err := e.text.Pattern(strings.ToUpper(patient.Gene), GeneMatch)
		if err != nil {
			summary.SkippedRows++
			skipRow("trials", i, patient.PatientID, err)
			progress.report(i+1, len(patients))
			continue
		}

		values := patient.Values()
		for j, trial := range trials {
			// exclusion AND gene match, in that order
			if !eligible[j] || !mentions(re, trial.StudyTitle, trial.BriefSummary) {
				continue
			}
			if builder.add(values, trial.Values()) {
				patientIDs[patient.PatientID] = struct{}{}
				trialIDs[trial.ClinicalTrialID] = struct{}{}
			}
		}
		progress.report(i+1, len(patients))
	}

	summary.DuplicateRows = builder.duplicates
	summary.TotalMatches = builder.table.Len()
	summary.UniquePatients = len(patientIDs)
	summary.UniqueTrials = len(trialIDs)
	summary.SuccessRate = percent(summary.TotalMatches, summary.Patients-summary.HeaderRowsDropped)

	return &TrialResult{Table: builder.table, Summary: summary}, nil
}
