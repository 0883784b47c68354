package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dimi-lab/trader/recordsparser/entities"
)

// Prefixes applied to a reference column whose name is already taken.
const (
	TrialPrefix       = "Trial_"
	AssociationPrefix = "Association_"
	DrugPrefix        = "Drug_"
)

// mergeColumns appends extra to columns. A name already present is prefixed,
// then suffixed _2, _3... until it is unique.
func mergeColumns(columns []string, prefix string, extra []string) []string {
	taken := make(map[string]bool, len(columns)+len(extra))
	merged := make([]string, 0, len(columns)+len(extra))
	for _, c := range columns {
		taken[c] = true
		merged = append(merged, c)
	}

	for _, c := range extra {
		name := c
		if taken[name] {
			name = prefix + c
			for n := 2; taken[name]; n++ {
				name = fmt.Sprintf("%s%s_%d", prefix, c, n)
			}
		}
		taken[name] = true
		merged = append(merged, name)
	}
	return merged
}

// resultBuilder collects result rows, dropping exact duplicates.
type resultBuilder struct {
	table      *entities.ResultTable
	seen       map[string]struct{}
	duplicates int
}

func newResultBuilder(columns []string) *resultBuilder {
	return &resultBuilder{
		table: entities.NewTable(columns),
		seen:  make(map[string]struct{}),
	}
}

// add appends the concatenation of parts unless an equal row exists.
func (b *resultBuilder) add(parts ...[]string) bool {
	width := 0
	for _, p := range parts {
		width += len(p)
	}
	row := make([]string, 0, width)
	for _, p := range parts {
		row = append(row, p...)
	}

	key := rowKey(row)
	if _, dup := b.seen[key]; dup {
		b.duplicates++
		return false
	}
	b.seen[key] = struct{}{}
	b.table.Rows = append(b.table.Rows, row)
	return true
}

// rowKey encodes cells with their lengths so that no separator can collide.
func rowKey(row []string) string {
	var sb strings.Builder
	for _, cell := range row {
		sb.WriteString(strconv.Itoa(len(cell)))
		sb.WriteByte(':')
		sb.WriteString(cell)
	}
	return sb.String()
}

func countDistinct(table *entities.Table, column string) int {
	values := table.Column(column)
	if values == nil {
		return 0
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return len(set)
}

func countEqual(table *entities.Table, column, value string) int {
	n := 0
	for _, v := range table.Column(column) {
		if v == value {
			n++
		}
	}
	return n
}

// percent returns part/whole*100, or nil when whole is zero.
func percent(part, whole int) *float64 {
	if whole == 0 {
		return nil
	}
	p := float64(part) / float64(whole) * 100
	return &p
}
