package matcher

import (
	"slices"
	"strings"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// DrugResult is the output of MatchDrugs.
type DrugResult struct {
	Table   *entities.ResultTable `json:"table"`
	Summary DrugSummary           `json:"summary"`
}

// DrugResultColumns is the column order of drug match results: patient,
// then association, then drug columns.
func DrugResultColumns(geneDisease *entities.GeneDiseaseTable, drugs *entities.OrphanDrugTable) []string {
	columns := mergeColumns(entities.PatientColumns, AssociationPrefix, geneDisease.Columns)
	return mergeColumns(columns, DrugPrefix, drugs.Columns)
}

func validateDrugInputs(patients []entities.PatientRecord, geneDisease *entities.GeneDiseaseTable, drugs *entities.OrphanDrugTable) error {
	if len(patients) == 0 {
		return entities.NewMalformedInputError("patient", "table is empty", entities.PatientColumns, nil)
	}

	required := entities.GeneDiseaseColumns
	if geneDisease == nil {
		return entities.NewMalformedInputError("gene-disease", "table is missing", required, nil)
	}
	for _, c := range required {
		if !slices.Contains(geneDisease.Columns, c) {
			return entities.NewMalformedInputError("gene-disease", "missing required column "+c, required, geneDisease.Columns)
		}
	}
	if geneDisease.Len() == 0 {
		return entities.NewMalformedInputError("gene-disease", "table is empty", required, geneDisease.Columns)
	}

	required = []string{entities.OrphanDesignationColumn}
	if drugs == nil {
		return entities.NewMalformedInputError("orphan-drug", "table is missing", required, nil)
	}
	if !slices.Contains(drugs.Columns, entities.OrphanDesignationColumn) {
		return entities.NewMalformedInputError("orphan-drug", "missing required column "+entities.OrphanDesignationColumn, required, drugs.Columns)
	}
	if drugs.Len() == 0 {
		return entities.NewMalformedInputError("orphan-drug", "table is empty", required, drugs.Columns)
	}
	return nil
}

// MatchDrugs joins patients to gene-disease associations on Gene == Symbol,
// then searches each associated disease name as a whole word,
// case-insensitively, in the orphan drug designations. Every matching drug
// yields one row: patient, association and drug cells.
func (e *Engine) MatchDrugs(patients []entities.PatientRecord, geneDisease *entities.GeneDiseaseTable, drugs *entities.OrphanDrugTable, progress ProgressFunc) (*DrugResult, error) {
	if err := validateDrugInputs(patients, geneDisease, drugs); err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]int, geneDisease.Len())
	for i, a := range geneDisease.Associations {
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], i)
	}

	summary := DrugSummary{
		Patients:     len(patients),
		Associations: geneDisease.Len(),
		OrphanDrugs:  drugs.Len(),
	}

	builder := newResultBuilder(DrugResultColumns(geneDisease, drugs))
	patientIDs := make(map[string]struct{})
	genericNames := make(map[string]struct{})
	companies := make(map[string]struct{})
	diseases := make(map[string]struct{})

	for i, patient := range patients {
		if patient.IsHeaderArtifact() {
			summary.HeaderRowsDropped++
			progress.report(i+1, len(patients))
			continue
		}
		if patient.Gene == "" {
			summary.SkippedRows++
			skipRow("drugs", i, patient.PatientID, ErrEmptyToken)
			progress.report(i+1, len(patients))
			continue
		}

		// patient is a copy, the caller's record is left untouched
		patient.Phenotype = strings.TrimSpace(patient.Phenotype)
		values := patient.Values()

		for _, ai := range bySymbol[patient.Gene] {
			summary.JoinedPairs++
			association := geneDisease.Associations[ai]

			re, err := e.text.Pattern(association.Name, DiseaseMatch)
			if err != nil {
				summary.SkippedRows++
				skipRow("drugs", i, patient.PatientID, err)
				continue
			}

			for di, drug := range drugs.Drugs {
				if drug.OrphanDesignation == "" || !re.MatchString(drug.OrphanDesignation) {
					continue
				}
				if !builder.add(values, geneDisease.Row(ai), drugs.Row(di)) {
					continue
				}
				patientIDs[patient.PatientID] = struct{}{}
				diseases[association.Name] = struct{}{}
				if drug.GenericName != "" {
					genericNames[drug.GenericName] = struct{}{}
				}
				if drug.SponsorCompany != "" {
					companies[drug.SponsorCompany] = struct{}{}
				}
				if drug.OrphanDesignationStatus == entities.DesignatedStatus {
					summary.DesignatedMatches++
				}
			}
		}
		progress.report(i+1, len(patients))
	}

	summary.DuplicateRows = builder.duplicates
	summary.TotalMatches = builder.table.Len()
	summary.UniquePatients = len(patientIDs)
	summary.UniqueDrugs = len(genericNames)
	summary.Companies = len(companies)
	summary.Diseases = len(diseases)
	summary.SuccessRate = percent(summary.TotalMatches, summary.Patients-summary.HeaderRowsDropped)

	return &DrugResult{Table: builder.table, Summary: summary}, nil
}
