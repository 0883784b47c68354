package entities

// HeaderArtifactID is the PatientID value left behind when a headered file
// is read as headerless and its header row ends up as data.
const HeaderArtifactID = "PatientID"

// PatientColumns is the fixed column order of a headerless patient file.
var PatientColumns = []string{"PatientID", "Gene", "Phenotype"}

type PatientRecord struct {
	PatientID string `json:"patientID"`
	Gene      string `json:"gene"`
	Phenotype string `json:"phenotype"`
}

// IsHeaderArtifact reports whether the record is a header row read as data.
func (p PatientRecord) IsHeaderArtifact() bool {
	return p.PatientID == HeaderArtifactID
}

// Values returns the record cells in PatientColumns order.
func (p PatientRecord) Values() []string {
	return []string{p.PatientID, p.Gene, p.Phenotype}
}
