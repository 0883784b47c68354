package matcher

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// Export file name stems per result kind.
const (
	ExportTrialMatches   = "clinical_trial_matches"
	ExportDrugMatches    = "rare_disease_matches"
	ExportComparison     = "comparison_results"
	ExportReactorCompare = "reactor_comparison_results"
)

// ExportFilename returns the dated download name, e.g. clinical_trial_matches_2024-07-16.csv.
func ExportFilename(stem string, day time.Time) string {
	return fmt.Sprintf("%s_%s.csv", stem, day.Format(time.DateOnly))
}

// WriteCSV writes the table as comma-separated UTF-8 with a header row.
func WriteCSV(w io.Writer, table *entities.Table) error {
	if table == nil {
		return fmt.Errorf("no table to export")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
