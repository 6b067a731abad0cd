// Package headerfilter removes stray label rows that some exports repeat
// between data rows (page breaks, concatenated reports).
package headerfilter

import (
	"regexp"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

var keywordPattern = regexp.MustCompile(`(?i)(name|company|currency|price|amount|total|invoice|date|sum|vendor)`)

const (
	keywordThreshold    = 0.3
	nonNumericThreshold = 0.7
)

// IsHeaderRow reports whether row looks like a label row rather than data.
//
// Only non-empty cells count. A row is a label row when more than 30% of its
// cells contain a label keyword or more than 70% of them are non-numeric.
// A row without non-empty cells is never a label row.
func IsHeaderRow(row []string) bool {
	var total, keywords, nonNumeric int
	for _, cell := range row {
		if cell == "" {
			continue
		}
		total++
		if keywordPattern.MatchString(cell) {
			keywords++
		}
		if !table.IsNumeric(cell) {
			nonNumeric++
		}
	}
	if total == 0 {
		return false
	}

	n := float64(total)
	return float64(keywords)/n > keywordThreshold || float64(nonNumeric)/n > nonNumericThreshold
}

// Filter returns a copy of t without its label rows, and the indexes of the
// rows that were removed. Rows are judged independently of each other.
func Filter(t *table.Table) (*table.Table, []int) {
	var removed []int
	for i, row := range t.Rows {
		if IsHeaderRow(row) {
			removed = append(removed, i)
		}
	}
	return t.Without(removed), removed
}
