package entities

// TrialColumns is the fixed column order of a headerless clinical trial file.
var TrialColumns = []string{
	"ClinicalTrialID",
	"StudyTitle",
	"StudyURL",
	"StudyStatus",
	"BriefSummary",
	"ConditionGenePhenotype",
}

type TrialRecord struct {
	ClinicalTrialID        string `json:"clinicalTrialID"`
	StudyTitle             string `json:"studyTitle"`
	StudyURL               string `json:"studyURL"`
	StudyStatus            string `json:"studyStatus"`
	BriefSummary           string `json:"briefSummary"`
	ConditionGenePhenotype string `json:"conditionGenePhenotype"` // exclusion filter target
}

// Values returns the record cells in TrialColumns order.
func (t TrialRecord) Values() []string {
	return []string{
		t.ClinicalTrialID,
		t.StudyTitle,
		t.StudyURL,
		t.StudyStatus,
		t.BriefSummary,
		t.ConditionGenePhenotype,
	}
}
