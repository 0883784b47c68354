package entities

// Column names of the orphan drug designation file. Only OrphanDesignation
// is required; the others are used for reporting when present.
const (
	OrphanDesignationColumn       = "OrphanDesignation"
	GenericNameColumn             = "GenericName"
	TradeNameColumn               = "TradeName"
	SponsorCompanyColumn          = "SponsorCompany"
	DateDesignatedColumn          = "DateDesignated"
	OrphanDesignationStatusColumn = "OrphanDesignationStatus"
)

// OrphanDrugColumns is the header used when a table is built from bare records.
var OrphanDrugColumns = []string{
	GenericNameColumn,
	TradeNameColumn,
	SponsorCompanyColumn,
	DateDesignatedColumn,
	OrphanDesignationStatusColumn,
	OrphanDesignationColumn,
}

// DesignatedStatus is the OrphanDesignationStatus value of an active designation.
const DesignatedStatus = "Designated"

type OrphanDrugRecord struct {
	GenericName             string   `json:"genericName"`
	TradeName               string   `json:"tradeName"`
	SponsorCompany          string   `json:"sponsorCompany"`
	DateDesignated          string   `json:"dateDesignated"`
	OrphanDesignationStatus string   `json:"orphanDesignationStatus"`
	OrphanDesignation       string   `json:"orphanDesignation"`
	Fields                  []string `json:"-"`
}

type OrphanDrugTable struct {
	Columns []string           `json:"columns"`
	Drugs   []OrphanDrugRecord `json:"drugs"`
}

// Len returns the number of drug records, zero for a nil table.
func (t *OrphanDrugTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Drugs)
}

func (d OrphanDrugRecord) value(column string) (string, bool) {
	switch column {
	case GenericNameColumn:
		return d.GenericName, true
	case TradeNameColumn:
		return d.TradeName, true
	case SponsorCompanyColumn:
		return d.SponsorCompany, true
	case DateDesignatedColumn:
		return d.DateDesignated, true
	case OrphanDesignationStatusColumn:
		return d.OrphanDesignationStatus, true
	case OrphanDesignationColumn:
		return d.OrphanDesignation, true
	}
	return "", false
}

// NewOrphanDrugTable builds a table with OrphanDrugColumns from bare records.
func NewOrphanDrugTable(drugs ...OrphanDrugRecord) *OrphanDrugTable {
	t := &OrphanDrugTable{
		Columns: append([]string(nil), OrphanDrugColumns...),
		Drugs:   make([]OrphanDrugRecord, 0, len(drugs)),
	}
	for _, d := range drugs {
		d.Fields = nil
		t.Drugs = append(t.Drugs, d)
	}
	for i := range t.Drugs {
		t.Drugs[i].Fields = t.Row(i)
	}
	return t
}

// Row returns the cells of drug i aligned with Columns.
func (t *OrphanDrugTable) Row(i int) []string {
	d := t.Drugs[i]
	if len(d.Fields) == len(t.Columns) {
		return d.Fields
	}
	row := make([]string, len(t.Columns))
	copy(row, d.Fields)
	for j, c := range t.Columns {
		if v, ok := d.value(c); ok {
			row[j] = v
		}
	}
	return row
}
