// =============================================================================
// Invoice Combiner - XLS Reader
// =============================================================================
//
// This module reads legacy BIFF8 workbooks (.xls). The underlying reader only
// opens files by path, so the upload is spooled to a temporary file first.
// As with XLSX, only the first sheet is read.
//
// =============================================================================

package xlsparser

import (
	"errors"
	"fmt"
	"os"

	"github.com/shakinm/xlsReader/xls"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Parse reads the first sheet of an XLS workbook. A panic inside the reader
// on a malformed workbook is returned as an error.
func Parse(data []byte) (tbl *table.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			tbl, err = nil, fmt.Errorf("malformed workbook: %v", r)
		}
	}()

	tmpFile, err := os.CreateTemp("", "combiner-*.xls")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to spool workbook: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to spool workbook: %w", err)
	}

	book, err := xls.OpenFile(tmpFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, ErrNoSheets
	}

	var records [][]string
	for _, row := range sheet.GetRows() {
		cols := row.GetCols()
		record := make([]string, len(cols))
		for i, col := range cols {
			record[i] = col.GetString()
		}
		records = append(records, record)
	}

	return table.FromRecords(records), nil
}
