// Package table holds the in-memory representation of a parsed invoice export
// and the numeric helpers shared by the header filter and the classifiers.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is an ordered sequence of rows under a row of column labels.
// Cells are trimmed strings; an empty string is a missing value.
type Table struct {
	Headers    []string
	Rows       [][]string
	SourceFile string
}

// New builds a Table from a label row and raw data rows.
// Labels are cleaned (blank labels become Column_N, duplicates get a .N
// suffix), every row is padded or truncated to the label width and fully
// blank rows are dropped.
func New(headers []string, rows [][]string) *Table {
	cleaned := CleanHeaders(headers)
	width := len(cleaned)

	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}
		normalized := make([]string, width)
		for i := 0; i < width && i < len(row); i++ {
			normalized[i] = strings.TrimSpace(row[i])
		}
		data = append(data, normalized)
	}

	return &Table{Headers: cleaned, Rows: data}
}

// FromRecords treats the first non-blank record as the label row.
func FromRecords(records [][]string) *Table {
	for i, rec := range records {
		if isRowEmpty(rec) {
			continue
		}
		return New(rec, records[i+1:])
	}
	return &Table{}
}

// CleanHeaders trims labels, names blank ones Column_N and makes duplicates unique.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		}
		if _, ok := seen[header]; !ok {
			seen[header] = 0
		}
		cleaned[i] = header
	}

	return cleaned
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Index returns the position of the column labelled label, or -1.
func (t *Table) Index(label string) int {
	for i, h := range t.Headers {
		if h == label {
			return i
		}
	}
	return -1
}

// Column returns every cell of the column at index i, missing values included.
func (t *Table) Column(i int) []string {
	col := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			col[r] = row[i]
		}
	}
	return col
}

// Sample returns the first n non-missing values of the column at index i.
func (t *Table) Sample(i, n int) []string {
	out := make([]string, 0, n)
	for _, row := range t.Rows {
		if len(out) == n {
			break
		}
		if i < len(row) && row[i] != "" {
			out = append(out, row[i])
		}
	}
	return out
}

// Without returns a copy of the table minus the rows at the given indexes.
func (t *Table) Without(drop []int) *Table {
	skip := make(map[int]struct{}, len(drop))
	for _, i := range drop {
		skip[i] = struct{}{}
	}

	rows := make([][]string, 0, len(t.Rows)-len(skip))
	for i, row := range t.Rows {
		if _, ok := skip[i]; ok {
			continue
		}
		rows = append(rows, row)
	}

	return &Table{Headers: t.Headers, Rows: rows, SourceFile: t.SourceFile}
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// NUMERIC HELPERS
// =============================================================================

// ParseNumber parses s as a float, treating commas as decimal separators.
// NaN and infinities are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether s parses as a number (comma as decimal separator tolerated).
func IsNumeric(s string) bool {
	_, ok := ParseNumber(s)
	return ok
}

// NumericRatio returns the share of the column's cells, missing ones included,
// that parse as numbers.
func (t *Table) NumericRatio(i int) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	n := 0
	for _, v := range t.Column(i) {
		if IsNumeric(v) {
			n++
		}
	}
	return float64(n) / float64(len(t.Rows))
}

// IsNumericColumn reports whether at least half of the column parses as numbers.
func (t *Table) IsNumericColumn(i int) bool {
	return t.NumericRatio(i) >= 0.5
}

// IsNumericTyped reports whether every non-missing cell of the column is a
// plain number, the way a typed reader would infer a numeric column.
// Commas are not accepted here, and an all-missing column counts as numeric.
func (t *Table) IsNumericTyped(i int) bool {
	for _, v := range t.Column(i) {
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
