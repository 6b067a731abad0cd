// =============================================================================
// Invoice Combiner - CSV Parser Module
// =============================================================================
//
// This module turns decoded delimited text into a table.Table. Exports from
// billing back-ends are frequently malformed (stray quotes, trailing columns,
// rows wider than the header), so parsing happens in two attempts:
//
//   1. STRICT: quotes must be well formed and no row may be wider than the
//      label row.
//   2. LENIENT: the delimiter is re-sniffed over the whole text, quotes are
//      parsed lazily and cells beyond the label row are dropped.
//
// Only when both attempts fail is the file reported as unparseable.
//
// =============================================================================

package csvparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/invoice-combiner/internal/sniffer"
	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

// ErrParse wraps every failure returned by Parse.
var ErrParse = errors.New("could not parse delimited text")

// Mode selects how forgiving the reader is.
type Mode int

const (
	Strict Mode = iota
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads text split by delimiter into a table, falling back to a lenient
// pass when the strict pass fails.
//
// PARAMETERS:
//   - text: The decoded file content.
//   - delimiter: The sniffed field separator.
//
// RETURNS:
//   - The parsed table (possibly with zero data rows).
//   - The mode that succeeded.
//   - An error wrapping ErrParse if both passes fail.
func Parse(text string, delimiter rune) (*table.Table, Mode, error) {
	tbl, strictErr := parseWith(text, delimiter, Strict)
	if strictErr == nil {
		return tbl, Strict, nil
	}

	lenientDelim := delimiter
	if d, err := sniffer.Sniff(text); err == nil {
		lenientDelim = d
	}

	tbl, lenientErr := parseWith(text, lenientDelim, Lenient)
	if lenientErr == nil {
		return tbl, Lenient, nil
	}

	return nil, Strict, fmt.Errorf("%w: strict: %v; lenient: %v", ErrParse, strictErr, lenientErr)
}

func parseWith(text string, delimiter rune, mode Mode) (*table.Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	configureReader(reader, delimiter, mode)

	records, err := readAll(reader)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &table.Table{}, nil
	}

	width := len(records[0])
	if mode == Strict {
		for i, rec := range records[1:] {
			if len(rec) > width {
				return nil, fmt.Errorf("record %d has %d fields, label row has %d", i+2, len(rec), width)
			}
		}
	}

	return table.New(records[0], records[1:]), nil
}

// configureReader configures the CSV reader for the given delimiter and mode.
func configureReader(reader *csv.Reader, delimiter rune, mode Mode) {
	reader.Comma = delimiter

	// Row width is checked by the caller.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = mode == Lenient
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
}

// readAll reads every record, skipping records that are completely blank so
// the first non-blank record becomes the label row.
func readAll(reader *csv.Reader) ([][]string, error) {
	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if isRowEmpty(rec) && len(records) == 0 {
			continue
		}
		records = append(records, rec)
	}
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
