package entities

// Required columns of the gene-disease reference file.
const (
	SymbolColumn = "Symbol"
	NameColumn   = "Name"
)

// GeneDiseaseAssociation links a gene symbol to a disease name.
// Fields holds the full source row, aligned with the owning table's Columns,
// so that columns beyond Symbol and Name survive into match results.
type GeneDiseaseAssociation struct {
	Symbol string   `json:"symbol"`
	Name   string   `json:"name"`
	Fields []string `json:"-"`
}

// GeneDiseaseColumns is the minimal gene-disease header.
var GeneDiseaseColumns = []string{SymbolColumn, NameColumn}

type GeneDiseaseTable struct {
	Columns      []string                 `json:"columns"`
	Associations []GeneDiseaseAssociation `json:"associations"`
}

// Len returns the number of associations, zero for a nil table.
func (t *GeneDiseaseTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Associations)
}

// NewGeneDiseaseTable builds a two-column table from bare associations.
func NewGeneDiseaseTable(associations ...GeneDiseaseAssociation) *GeneDiseaseTable {
	t := &GeneDiseaseTable{
		Columns:      append([]string(nil), GeneDiseaseColumns...),
		Associations: make([]GeneDiseaseAssociation, 0, len(associations)),
	}
	for _, a := range associations {
		a.Fields = []string{a.Symbol, a.Name}
		t.Associations = append(t.Associations, a)
	}
	return t
}

// Row returns the cells of association i aligned with Columns.
func (t *GeneDiseaseTable) Row(i int) []string {
	a := t.Associations[i]
	if len(a.Fields) == len(t.Columns) {
		return a.Fields
	}
	row := make([]string, len(t.Columns))
	copy(row, a.Fields)
	for j, c := range t.Columns {
		switch c {
		case SymbolColumn:
			row[j] = a.Symbol
		case NameColumn:
			row[j] = a.Name
		}
	}
	return row
}
