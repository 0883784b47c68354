package recordsparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// MakeComparisonTable parses a comma-separated file with a header row that
// must contain PatientID. A header without data rows is a valid, empty table.
func MakeComparisonTable(text string) (*entities.Table, ParseStats, error) {
	var stats ParseStats

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, entities.NewMalformedInputError("comparison", "file is empty",
			[]string{entities.PatientIDColumn}, nil)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read comparison header: %w", err)
	}
	stats.TotalLines++

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if missing := missingColumns(header, []string{entities.PatientIDColumn}); len(missing) > 0 {
		return nil, stats, entities.NewMalformedInputError("comparison",
			"missing required columns: "+strings.Join(missing, ", "),
			[]string{entities.PatientIDColumn}, header)
	}

	table := entities.NewTable(header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read comparison row %d: %w", stats.TotalLines, err)
		}
		stats.TotalLines++

		if isBlankRecord(record) {
			stats.EmptyLines++
			continue
		}

		record, ok := trimTrailingEmpty(record, len(header))
		if !ok {
			return nil, stats, entities.NewMalformedInputError("comparison",
				fmt.Sprintf("data row %d has %d fields but the header has %d", stats.TotalLines-1, len(record), len(header)),
				header, record)
		}
		table.Rows = append(table.Rows, pad(record, len(header), &stats))
	}

	stats.Records = len(table.Rows)
	stats.log("Comparison file")
	return table, stats, nil
}

func isBlankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
