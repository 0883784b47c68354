package matcher

import (
	"slices"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// DiffResult is the output of Diff.
type DiffResult struct {
	Table   *entities.Table `json:"table"`
	Summary DiffSummary     `json:"summary"`
}

func validateComparison(name string, table *entities.Table) (int, error) {
	required := []string{entities.PatientIDColumn}
	if table == nil {
		return -1, entities.NewMalformedInputError(name, "table is missing", required, nil)
	}
	idx := table.ColumnIndex(entities.PatientIDColumn)
	if idx < 0 {
		return -1, entities.NewMalformedInputError(name, "missing required column "+entities.PatientIDColumn, required, table.Columns)
	}
	return idx, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// Diff returns the rows of updated whose PatientID does not occur in
// baseline, in updated order. Header rows read as data are ignored on both
// sides. Either table may have no rows.
func (e *Engine) Diff(baseline, updated *entities.Table, progress ProgressFunc) (*DiffResult, error) {
	baseIdx, err := validateComparison("baseline", baseline)
	if err != nil {
		return nil, err
	}
	updIdx, err := validateComparison("updated", updated)
	if err != nil {
		return nil, err
	}

	total := baseline.Len() + updated.Len()
	var summary DiffSummary

	known := make(map[string]struct{}, baseline.Len())
	for i, row := range baseline.Rows {
		id := cell(row, baseIdx)
		if id == entities.HeaderArtifactID {
			summary.HeaderRowsDropped++
		} else {
			summary.BaselineRecords++
			known[id] = struct{}{}
		}
		progress.report(i+1, total)
	}

	out := entities.NewTable(updated.Columns)
	newIDs := make(map[string]struct{})
	for i, row := range updated.Rows {
		id := cell(row, updIdx)
		if id == entities.HeaderArtifactID {
			summary.HeaderRowsDropped++
		} else {
			summary.UpdatedRecords++
			if _, seen := known[id]; !seen {
				out.Rows = append(out.Rows, slices.Clone(row))
				newIDs[id] = struct{}{}
			}
		}
		progress.report(baseline.Len()+i+1, total)
	}

	summary.NewRecords = out.Len()
	summary.UniqueNewPatients = len(newIDs)
	summary.GrowthRate = percent(summary.NewRecords, summary.BaselineRecords)
	summary.DiscoveryRate = percent(summary.NewRecords, summary.UpdatedRecords)

	return &DiffResult{Table: out, Summary: summary}, nil
}
