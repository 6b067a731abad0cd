// =============================================================================
// Invoice Combiner - XLSX Reader
// =============================================================================
//
// This module reads Office Open XML workbooks (.xlsx) exported by billing
// portals. Only the first sheet is read; its first non-blank row is taken as
// the label row and every following row as data.
//
// Cells are read as their formatted string values, so numbers come back the
// way the spreadsheet displays them. Downstream classifiers work on strings.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Parse reads the first sheet of an XLSX workbook.
//
// PARAMETERS:
//   - data: The raw workbook bytes.
//
// RETURNS:
//   - The sheet as a table (possibly with zero data rows).
//   - An error if the workbook cannot be opened or read.
func Parse(data []byte) (*table.Table, error) {
	// Open the workbook from memory.
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	// Get the first sheet name.
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoSheets
	}

	// Get all rows from the sheet.
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %q: %w", sheetName, err)
	}

	return table.FromRecords(rows), nil
}
