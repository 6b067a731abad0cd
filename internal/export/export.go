// =============================================================================
// Invoice Combiner - Export Module
// =============================================================================
//
// This module writes the combined table. Every format starts with the schema's
// column names and then holds one row per record, in file-then-row order.
//
// FORMATS:
//   - csv:  comma separated, header row, a missing price is an empty cell
//   - xlsx: one sheet named "Invoices", prices as numbers
//   - xml:  see internal/xmlwriter
//
// =============================================================================

package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
	"github.com/ginjaninja78/invoice-combiner/internal/xmlwriter"
)

// SheetName is the worksheet the XLSX export writes to.
const SheetName = "Invoices"

// Write renders records in the given format to w.
func Write(w io.Writer, format string, s *schema.Schema, records []types.Record) error {
	switch format {
	case config.FormatCSV:
		return WriteCSV(w, s, records)
	case config.FormatXLSX:
		return WriteXLSX(w, s, records)
	case config.FormatXML:
		return WriteXML(w, s, records)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile writes records to path, creating its directory if needed.
func WriteFile(path, format string, s *schema.Schema, records []types.Record) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	return Write(file, format, s, records)
}

// WriteCSV writes a header row and one line per record.
func WriteCSV(w io.Writer, s *schema.Schema, records []types.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(s.Columns()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, rec := range records {
		if err := writer.Write(rec.Values()); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteRows writes persisted rows as CSV, prefixed with their id, source
// file and processing time.
func WriteRows(w io.Writer, s *schema.Schema, rows []types.InvoiceRow) error {
	writer := csv.NewWriter(w)

	header := append([]string{"id"}, s.Columns()...)
	header = append(header, "file_name", "processed_date")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		line := append([]string{fmt.Sprint(row.ID)}, row.Record.Values()...)
		line = append(line, row.FileName, row.ProcessedDate.Format(time.RFC3339))
		if err := writer.Write(line); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes a workbook with a bold header row and numeric prices.
func WriteXLSX(w io.Writer, s *schema.Schema, records []types.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := s.Columns()
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		row := []any{rec.Primary, rec.Secondary, rec.Currency, nil}
		if rec.Price.Valid {
			row[3] = rec.Price.Decimal.InexactFloat64()
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "D", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteXML writes the document produced by xmlwriter.Generate.
func WriteXML(w io.Writer, s *schema.Schema, records []types.Record) error {
	data, err := xmlwriter.Generate(records, s)
	if err != nil {
		return fmt.Errorf("failed to generate XML: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}
