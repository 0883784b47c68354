package recordsparser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// ParseStats counts what happened to the lines of one input file.
type ParseStats struct {
	TotalLines int `json:"totalLines"`
	EmptyLines int `json:"emptyLines"`
	PaddedRows int `json:"paddedRows"`
	HeaderRows int `json:"headerRows"` // header rows found among headerless data
	Records    int `json:"records"`
}

func (s ParseStats) log(name string) {
	if s.EmptyLines > 0 || s.PaddedRows > 0 || s.HeaderRows > 0 {
		logging.Info(name+" skip statistics",
			"empty_lines", s.EmptyLines,
			"padded_rows", s.PaddedRows,
			"header_rows", s.HeaderRows,
			"total_lines", s.TotalLines,
			"records_parsed", s.Records)
	}
	logging.Debug(name+" conversion completed", "records_count", s.Records)
}

// splitTSV splits text into tab-separated rows, dropping blank lines.
func splitTSV(text string, stats *ParseStats) [][]string {
	lines := strings.Split(text, "\n")
	// A trailing newline leaves one empty element that is not a real line
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		stats.TotalLines++
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) == "" {
			stats.EmptyLines++
			continue
		}

		fields := strings.Split(line, "\t")
		for i := range fields {
			fields[i] = unquoteField(fields[i])
		}
		rows = append(rows, fields)
	}
	return rows
}

// unquoteField strips one level of double quotes the way spreadsheet
// exports write them.
func unquoteField(field string) string {
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		return strings.ReplaceAll(field[1:len(field)-1], `""`, `"`)
	}
	return field
}

// trimTrailingEmpty drops empty cells past width; it reports false when a
// non-empty cell would have to be dropped.
func trimTrailingEmpty(fields []string, width int) ([]string, bool) {
	if len(fields) <= width {
		return fields, true
	}
	for _, extra := range fields[width:] {
		if strings.TrimSpace(extra) != "" {
			return fields, false
		}
	}
	return fields[:width], true
}

func pad(fields []string, width int, stats *ParseStats) []string {
	if len(fields) >= width {
		return fields
	}
	stats.PaddedRows++
	padded := make([]string, width)
	copy(padded, fields)
	return padded
}

// makeHeaderless parses a headerless TSV whose column count is fixed.
// The column count is the widest row, as a spreadsheet reader would infer it.
func makeHeaderless(table, text string, columns []string) ([][]string, ParseStats, error) {
	var stats ParseStats
	rows := splitTSV(text, &stats)

	if len(rows) == 0 {
		return nil, stats, entities.NewMalformedInputError(table, "file is empty", columns, nil)
	}

	width := 0
	for i := range rows {
		if trimmed, ok := trimTrailingEmpty(rows[i], len(columns)); ok {
			rows[i] = trimmed
		}
		width = max(width, len(rows[i]))
	}

	if width != len(columns) {
		return nil, stats, entities.NewMalformedInputError(table,
			fmt.Sprintf("file should have %d columns, found %d", len(columns), width),
			columns, rows[0])
	}

	for i := range rows {
		rows[i] = pad(rows[i], width, &stats)
	}
	return rows, stats, nil
}

// makeHeadered parses a TSV whose first non-blank line is the header.
func makeHeadered(table, text string, required []string) (*entities.Table, ParseStats, error) {
	var stats ParseStats
	rows := splitTSV(text, &stats)

	if len(rows) == 0 {
		return nil, stats, entities.NewMalformedInputError(table, "file is empty", required, nil)
	}

	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = strings.TrimSpace(c)
	}

	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, stats, entities.NewMalformedInputError(table,
			"missing required columns: "+strings.Join(missing, ", "), required, header)
	}

	result := entities.NewTable(header)
	for lineNo, fields := range rows[1:] {
		fields, ok := trimTrailingEmpty(fields, len(header))
		if !ok {
			return nil, stats, entities.NewMalformedInputError(table,
				fmt.Sprintf("data row %d has %d fields but the header has %d", lineNo+1, len(fields), len(header)),
				header, fields)
		}
		result.Rows = append(result.Rows, pad(fields, len(header), &stats))
	}

	if len(result.Rows) == 0 {
		return nil, stats, entities.NewMalformedInputError(table, "file has a header but no data rows", required, header)
	}

	stats.Records = len(result.Rows)
	return result, stats, nil
}

func missingColumns(header, required []string) []string {
	var missing []string
	for _, col := range required {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// MakePatients parses a headerless patient file: PatientID, Gene, Phenotype.
// Header rows read as data are kept; the matching pipelines drop them.
func MakePatients(text string) ([]entities.PatientRecord, ParseStats, error) {
	rows, stats, err := makeHeaderless("patient", text, entities.PatientColumns)
	if err != nil {
		return nil, stats, err
	}

	patients := make([]entities.PatientRecord, 0, len(rows))
	for _, fields := range rows {
		patients = append(patients, entities.PatientRecord{
			PatientID: fields[0],
			Gene:      fields[1],
			Phenotype: fields[2],
		})
	}

	stats.Records = len(patients)
	stats.log("Patient file")
	return patients, stats, nil
}

// MakeTrials parses a headerless clinical trial file. A leading row equal to
// the column names is dropped.
func MakeTrials(text string) ([]entities.TrialRecord, ParseStats, error) {
	rows, stats, err := makeHeaderless("trial", text, entities.TrialColumns)
	if err != nil {
		return nil, stats, err
	}

	if slices.Equal(rows[0], entities.TrialColumns) {
		rows = rows[1:]
		stats.HeaderRows++
	}
	if len(rows) == 0 {
		return nil, stats, entities.NewMalformedInputError("trial", "file has no trial rows", entities.TrialColumns, nil)
	}

	trials := make([]entities.TrialRecord, 0, len(rows))
	for _, fields := range rows {
		trials = append(trials, entities.TrialRecord{
			ClinicalTrialID:        fields[0],
			StudyTitle:             fields[1],
			StudyURL:               fields[2],
			StudyStatus:            fields[3],
			BriefSummary:           fields[4],
			ConditionGenePhenotype: fields[5],
		})
	}

	stats.Records = len(trials)
	stats.log("Trial file")
	return trials, stats, nil
}

// MakeGeneDisease parses the headered gene-disease reference file.
func MakeGeneDisease(text string) (*entities.GeneDiseaseTable, ParseStats, error) {
	table, stats, err := makeHeadered("gene-disease", text, []string{entities.SymbolColumn, entities.NameColumn})
	if err != nil {
		return nil, stats, err
	}

	symbolIdx := table.ColumnIndex(entities.SymbolColumn)
	nameIdx := table.ColumnIndex(entities.NameColumn)

	result := &entities.GeneDiseaseTable{
		Columns:      table.Columns,
		Associations: make([]entities.GeneDiseaseAssociation, 0, len(table.Rows)),
	}
	for _, fields := range table.Rows {
		result.Associations = append(result.Associations, entities.GeneDiseaseAssociation{
			Symbol: fields[symbolIdx],
			Name:   fields[nameIdx],
			Fields: fields,
		})
	}

	stats.log("Gene-disease file")
	return result, stats, nil
}

// MakeOrphanDrugs parses the headered orphan drug designation file.
func MakeOrphanDrugs(text string) (*entities.OrphanDrugTable, ParseStats, error) {
	table, stats, err := makeHeadered("orphan-drug", text, []string{entities.OrphanDesignationColumn})
	if err != nil {
		return nil, stats, err
	}

	get := func(fields []string, column string) string {
		if idx := table.ColumnIndex(column); idx >= 0 {
			return fields[idx]
		}
		return ""
	}

	result := &entities.OrphanDrugTable{
		Columns: table.Columns,
		Drugs:   make([]entities.OrphanDrugRecord, 0, len(table.Rows)),
	}
	for _, fields := range table.Rows {
		result.Drugs = append(result.Drugs, entities.OrphanDrugRecord{
			GenericName:             get(fields, entities.GenericNameColumn),
			TradeName:               get(fields, entities.TradeNameColumn),
			SponsorCompany:          get(fields, entities.SponsorCompanyColumn),
			DateDesignated:          get(fields, entities.DateDesignatedColumn),
			OrphanDesignationStatus: get(fields, entities.OrphanDesignationStatusColumn),
			OrphanDesignation:       get(fields, entities.OrphanDesignationColumn),
			Fields:                  fields,
		})
	}

	stats.log("Orphan drug file")
	return result, stats, nil
}
