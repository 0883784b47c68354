package recordsparser

import (
	"fmt"
	"strings"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// Separators tried in order for free-text patient entry. The double space
// catches column-aligned text pasted from reports.
var textSeparators = []string{"\t", ",", ";", "|", "  "}

// patientColumnAliases maps header variants onto the canonical patient columns.
var patientColumnAliases = map[string][]string{
	"PatientID": {"patientid", "patient_id", "id", "sample_id", "sample"},
	"Gene":      {"gene", "gene_symbol", "symbol", "gene_name", "variant_id"},
	"Phenotype": {"phenotype", "condition", "disease", "description", "clinical_notes"},
}

func splitNonEmpty(line, sep string) []string {
	var parts []string
	for _, p := range strings.Split(line, sep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// ParsePatientText parses pasted patient lines of the form
// "PatientID<sep>Gene[<sep>Phenotype]". Lines with fewer than two values are
// ignored. Only the third value is kept as the phenotype; later values are
// dropped.
func ParsePatientText(text string) ([]entities.PatientRecord, error) {
	var patients []entities.PatientRecord

	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var parts []string
		for _, sep := range textSeparators {
			if p := splitNonEmpty(line, sep); len(p) >= 2 {
				parts = p
				break
			}
		}
		if parts == nil {
			parts = strings.Fields(line)
		}
		if len(parts) < 2 {
			continue
		}

		record := entities.PatientRecord{
			PatientID: parts[0],
			Gene:      parts[1],
		}
		if record.PatientID == "" {
			record.PatientID = fmt.Sprintf("Patient_%d", i+1)
		}
		if len(parts) > 2 {
			record.Phenotype = parts[2]
		}
		patients = append(patients, record)
	}

	if len(patients) == 0 {
		return nil, entities.NewMalformedInputError("patient", "could not parse any patient line",
			entities.PatientColumns, nil)
	}
	return patients, nil
}

// resolvePatientColumn finds the header position for a canonical column,
// exact name first, then aliases case-insensitively.
func resolvePatientColumn(header []string, canonical string) int {
	for i, h := range header {
		if h == canonical {
			return i
		}
	}
	for _, alias := range patientColumnAliases[canonical] {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}

// StandardizePatientTable maps a headered patient table with arbitrary
// column names onto patient records. Values are trimmed and fully empty
// rows are dropped.
func StandardizePatientTable(table *entities.Table) ([]entities.PatientRecord, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, entities.NewMalformedInputError("patient", "table has no columns", entities.PatientColumns, nil)
	}

	idx := make(map[string]int, len(entities.PatientColumns))
	for _, col := range entities.PatientColumns {
		idx[col] = resolvePatientColumn(table.Columns, col)
	}
	if idx["PatientID"] < 0 || idx["Gene"] < 0 {
		return nil, entities.NewMalformedInputError("patient", "no PatientID or Gene column could be identified",
			[]string{"PatientID", "Gene"}, table.Columns)
	}

	cell := func(row []string, col string) string {
		i := idx[col]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	patients := make([]entities.PatientRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		record := entities.PatientRecord{
			PatientID: cell(row, "PatientID"),
			Gene:      cell(row, "Gene"),
			Phenotype: cell(row, "Phenotype"),
		}
		if record.PatientID == "" && record.Gene == "" && record.Phenotype == "" {
			continue
		}
		patients = append(patients, record)
	}
	return patients, nil
}

// MakePatientsHeadered parses a tab-separated patient file that carries its
// own header row, whatever its column names.
func MakePatientsHeadered(text string) ([]entities.PatientRecord, ParseStats, error) {
	table, stats, err := makeHeadered("patient", text, nil)
	if err != nil {
		return nil, stats, err
	}

	patients, err := StandardizePatientTable(table)
	if err != nil {
		return nil, stats, err
	}

	stats.Records = len(patients)
	stats.log("Headered patient file")
	return patients, stats, nil
}
