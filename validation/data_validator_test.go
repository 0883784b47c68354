package validation

import (
	"strings"
	"testing"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

func TestValidateInput(t *testing.T) {
	v := NewDataValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"category name", "Cancer/Oncology", false},
		{"category with space", "Infectious Disease", false},
		{"accents", "Maladie rénale", false},
		{"empty", "   ", true},
		{"too long", strings.Repeat("ab", 51), true},
		{"script", "<script>alert(1)</script>", true},
		{"sql", "x' or 1=1", true},
		{"path traversal", "../etc/passwd", true},
		{"invalid characters", "Cancer;Oncology", true},
		{"repetition", "aaaaaaaaaaaa", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInput(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGeneSymbol(t *testing.T) {
	v := NewDataValidator()

	valid := []string{"BRCA1", "TP53", "AR", "HLA-DRB1", "C1orf112", "brca2", "A"}
	for _, s := range valid {
		if err := v.ValidateGeneSymbol(s); err != nil {
			t.Errorf("ValidateGeneSymbol(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{"", " BRCA1", "1ABC", "BRCA(1", "BRCA_1", strings.Repeat("A", 21)}
	for _, s := range invalid {
		if err := v.ValidateGeneSymbol(s); err == nil {
			t.Errorf("ValidateGeneSymbol(%q) = nil, want error", s)
		}
	}
}

func TestValidatePatients(t *testing.T) {
	v := NewDataValidator()
	patients := []entities.PatientRecord{
		{PatientID: "PatientID", Gene: "Gene"},
		{PatientID: "P1", Gene: "BRCA1"},
		{PatientID: "P2", Gene: "not a gene"},
		{PatientID: "P3", Gene: ""},
	}

	got := v.ValidatePatients(patients)
	if strings.Join(got, ",") != "P2,P3" {
		t.Errorf("ValidatePatients = %v, want [P2 P3]", got)
	}
}

func TestReportDataQuality(t *testing.T) {
	v := NewDataValidator()

	ref := &entities.ReferenceData{
		Trials: []entities.TrialRecord{
			{ClinicalTrialID: "NCT02", ConditionGenePhenotype: "Fabry"},
			{ClinicalTrialID: "NCT01"},
			{ClinicalTrialID: "NCT02", ConditionGenePhenotype: "Fabry"},
		},
		GeneDisease: entities.NewGeneDiseaseTable(
			entities.GeneDiseaseAssociation{Symbol: "GLA", Name: "Fabry Disease"},
			entities.GeneDiseaseAssociation{Symbol: "GLA", Name: "Fabry Disease"},
			entities.GeneDiseaseAssociation{Symbol: "bad symbol", Name: ""},
		),
		OrphanDrugs: entities.NewOrphanDrugTable(
			entities.OrphanDrugRecord{GenericName: "a", OrphanDesignation: "x", OrphanDesignationStatus: "Designated"},
			entities.OrphanDrugRecord{GenericName: "b"},
		),
		Reactor: &entities.Table{
			Columns: []string{"PatientID"},
			Rows:    [][]string{{"PatientID"}, {""}, {"P1"}},
		},
	}

	report := v.ReportDataQuality(ref)

	if strings.Join(report.DuplicateTrialIDs, ",") != "NCT02" {
		t.Errorf("DuplicateTrialIDs = %v", report.DuplicateTrialIDs)
	}
	if report.TrialsWithoutCondition != 1 {
		t.Errorf("TrialsWithoutCondition = %d, want 1", report.TrialsWithoutCondition)
	}
	if report.DuplicateAssociations != 1 {
		t.Errorf("DuplicateAssociations = %d, want 1", report.DuplicateAssociations)
	}
	if report.AssociationsWithoutName != 1 {
		t.Errorf("AssociationsWithoutName = %d, want 1", report.AssociationsWithoutName)
	}
	if strings.Join(report.NonStandardSymbols, ",") != "bad symbol" {
		t.Errorf("NonStandardSymbols = %v", report.NonStandardSymbols)
	}
	if report.DrugsWithoutDesignation != 1 || report.DesignatedDrugs != 1 {
		t.Errorf("drug counts = %d/%d, want 1/1", report.DrugsWithoutDesignation, report.DesignatedDrugs)
	}
	if report.ReactorHeaderArtifactRows != 1 || report.ReactorRowsWithoutPatient != 1 {
		t.Errorf("reactor counts = %d/%d, want 1/1", report.ReactorHeaderArtifactRows, report.ReactorRowsWithoutPatient)
	}

	LogReport(report)
}

func TestReportDataQualityNil(t *testing.T) {
	report := NewDataValidator().ReportDataQuality(nil)
	if report == nil || len(report.DuplicateTrialIDs) != 0 {
		t.Errorf("expected an empty report, got %+v", report)
	}
}
