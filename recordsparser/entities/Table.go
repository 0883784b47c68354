package entities

// PatientIDColumn is the identity column of comparison and result tables.
const PatientIDColumn = "PatientID"

// Table is a header-carrying, row-oriented table. Every row has
// len(Columns) cells; missing cells are empty strings.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ResultTable is the denormalized output of a matching pipeline.
type ResultTable = Table

// NewTable returns an empty table with a copy of the given columns.
func NewTable(columns []string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0),
	}
}

// Len returns the number of rows, zero for a nil table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column, nil if it does not exist.
func (t *Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values
}

// Value returns the cell at row i of the named column.
func (t *Table) Value(i int, name string) (string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 || i < 0 || i >= len(t.Rows) || idx >= len(t.Rows[i]) {
		return "", false
	}
	return t.Rows[i][idx], true
}
