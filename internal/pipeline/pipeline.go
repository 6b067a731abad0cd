// =============================================================================
// Invoice Combiner - File Pipeline
// =============================================================================
//
// This module contains the per-file processing logic. It takes the raw bytes
// of one uploaded export through a fixed sequence of states and translates
// every low-level failure into a typed *Error scoped to that file.
//
// STATE MACHINE:
//   Received       -> Parsed          sniff, decode and parse (CSV) or read
//                                     the first sheet (XLSX, XLS)
//                                     DecodeFailure, ParseFailure, EmptyFile
//   Parsed         -> HeaderFiltered  drop stray label rows
//                                     EmptyFile if nothing is left
//   HeaderFiltered -> Classified      assign columns to roles (never fails)
//   Classified     -> Standardized    check the number of undetected roles,
//                                     build the four-field records
//                                     SchemaDetectionFailure
//   Standardized   -> Done            collect record warnings
//
// The pipeline itself performs no I/O besides logging; persistence is the
// batch runner's job.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/invoice-combiner/internal/classify"
	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/csvparser"
	"github.com/ginjaninja78/invoice-combiner/internal/headerfilter"
	"github.com/ginjaninja78/invoice-combiner/internal/logging"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/sniffer"
	"github.com/ginjaninja78/invoice-combiner/internal/standardize"
	"github.com/ginjaninja78/invoice-combiner/internal/table"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
	"github.com/ginjaninja78/invoice-combiner/internal/validation"
	"github.com/ginjaninja78/invoice-combiner/internal/xlsparser"
	"github.com/ginjaninja78/invoice-combiner/internal/xlsxparser"
)

// Supported input extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// SupportedExtensions lists the input extensions the pipeline reads.
var SupportedExtensions = []string{ExtCSV, ExtXLSX, ExtXLS}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// FileResult is everything the pipeline learned about one file. On failure
// it holds whatever was produced before the failing step.
type FileResult struct {
	// File is the name the file was uploaded with.
	File string

	// State is the last state reached; Failed when processing stopped.
	State State

	// Dialect is the sniffed encoding and delimiter. Zero for workbooks.
	Dialect sniffer.Dialect

	// ParseMode tells whether the strict or lenient CSV pass succeeded.
	ParseMode csvparser.Mode

	// Table is the parsed table after header filtering.
	Table *table.Table

	// RemovedRows are the data-row indexes dropped as stray headers.
	RemovedRows []int

	// Detection is the classifier outcome.
	Detection classify.Result

	// Records are the standardized rows, in source order.
	Records []types.Record

	// Validation holds the non-fatal record findings.
	Validation *validation.ValidationResult
}

// Roles returns the detected role map.
func (r *FileResult) Roles() types.RoleMap { return r.Detection.Roles }

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline processes files for one schema. It is safe to reuse across files
// but processes one file at a time.
type Pipeline struct {
	schema       *schema.Schema
	standardizer *standardize.Standardizer
}

// New creates a Pipeline for s. rules are the configured transformation
// rules and may be empty.
func New(s *schema.Schema, rules []config.TransformationRule) (*Pipeline, error) {
	st, err := standardize.New(s, rules)
	if err != nil {
		return nil, fmt.Errorf("invalid transformation rules: %w", err)
	}
	return &Pipeline{schema: s, standardizer: st}, nil
}

// Schema returns the schema the pipeline produces.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// ProcessFile runs the full state machine over one file.
//
// PARAMETERS:
//   - ctx: Carries the batch id for logging.
//   - name: The file name; its extension selects the reader.
//   - data: The raw file content.
//
// RETURNS:
//   - The FileResult, also on failure.
//   - nil, or an *Error describing why the file was rejected.
func (p *Pipeline) ProcessFile(ctx context.Context, name string, data []byte) (*FileResult, error) {
	return p.run(ctx, name, data, Done)
}

// Analyze stops after classification. It neither checks the number of
// undetected roles nor standardizes.
func (p *Pipeline) Analyze(ctx context.Context, name string, data []byte) (*FileResult, error) {
	return p.run(ctx, name, data, Classified)
}

func (p *Pipeline) run(ctx context.Context, name string, data []byte, until State) (*FileResult, error) {
	log := logging.WithFields(ctx, "file", name)
	res := &FileResult{File: name, State: Received}

	advance := func(s State) {
		res.State = s
		log.Debug("state changed", "state", s.String())
	}
	fail := func(kind Kind, err error) (*FileResult, error) {
		failed := newError(kind, name, res.State, err)
		res.State = Failed
		log.Debug("state changed", "state", Failed.String(), "kind", kind.String(), "error", err)
		return res, failed
	}

	// =========================================================================
	// STEP 1: PARSE
	// =========================================================================

	tbl, kind, err := p.readTable(res, name, data)
	if err != nil {
		return fail(kind, err)
	}
	tbl.SourceFile = name
	if tbl.Empty() {
		return fail(EmptyFile, errors.New("file contains no data rows"))
	}
	advance(Parsed)

	// =========================================================================
	// STEP 2: REMOVE STRAY HEADER ROWS
	// =========================================================================

	filtered, removed := headerfilter.Filter(tbl)
	res.Table, res.RemovedRows = filtered, removed
	if len(removed) > 0 {
		log.Debug("removed header rows", "count", len(removed), "rows", removed)
	}
	if filtered.Empty() {
		return fail(EmptyFile, fmt.Errorf("no data rows left after removing %d header row(s)", len(removed)))
	}
	advance(HeaderFiltered)

	// =========================================================================
	// STEP 3: CLASSIFY COLUMNS
	// =========================================================================

	res.Detection = classify.Detect(filtered, p.schema.Specs())
	for _, d := range res.Detection.Detections {
		log.Debug("role detection", "role", string(d.Role), "column", d.Column, "tier", d.Tier.String(), "score", d.Score)
	}
	advance(Classified)
	if until == Classified {
		return res, nil
	}

	// =========================================================================
	// STEP 4: STANDARDIZE
	// =========================================================================

	if err := validation.CheckDetection(p.schema, res.Detection.Undetected); err != nil {
		return fail(SchemaDetectionFailure, err)
	}
	res.Records = p.standardizer.Standardize(filtered, res.Detection.Roles)
	advance(Standardized)

	// =========================================================================
	// STEP 5: VALIDATE RECORDS
	// =========================================================================

	res.Validation = validation.ValidateRecords(p.schema, res.Records)
	if res.Validation.WarningCount > 0 {
		log.Debug("record warnings", "count", res.Validation.WarningCount, "rules", res.Validation.CountByRule())
	}
	advance(Done)

	return res, nil
}

// readTable turns raw bytes into a table according to the file extension.
func (p *Pipeline) readTable(res *FileResult, name string, data []byte) (*table.Table, Kind, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ExtCSV:
		dialect, err := sniffer.Detect(data)
		if err != nil {
			return nil, DecodeFailure, fmt.Errorf("%w (tried %v)", err, sniffer.Encodings)
		}
		res.Dialect = dialect

		text, err := sniffer.Decode(data, dialect.Encoding)
		if err != nil {
			return nil, DecodeFailure, err
		}

		tbl, mode, err := csvparser.Parse(text, dialect.Delimiter)
		if err != nil {
			return nil, ParseFailure, err
		}
		res.ParseMode = mode
		return tbl, 0, nil

	case ExtXLSX:
		tbl, err := xlsxparser.Parse(data)
		if err != nil {
			return nil, ParseFailure, err
		}
		return tbl, 0, nil

	case ExtXLS:
		tbl, err := xlsparser.Parse(data)
		if err != nil {
			return nil, ParseFailure, err
		}
		return tbl, 0, nil

	default:
		return nil, ParseFailure, fmt.Errorf("unsupported file type %q (supported: %s)", ext, strings.Join(SupportedExtensions, ", "))
	}
}

// IsSupported reports whether name has an extension the pipeline reads.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
