package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/invoice-combiner/internal/logging"
	"github.com/ginjaninja78/invoice-combiner/internal/metrics"
	"github.com/ginjaninja78/invoice-combiner/internal/store"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// Input is one uploaded file. When Load is set the content is read by the
// batch just before the file is processed and Data is ignored.
type Input struct {
	Name string
	Data []byte
	Load func() ([]byte, error)
}

// FileInput returns an Input that reads path when its turn comes.
func FileInput(path string) Input {
	return Input{
		Name: filepath.Base(path),
		Load: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// FileOutcome is the terminal result of one file in a batch.
type FileOutcome struct {
	File   string
	Result *FileResult

	// Inserted and Skipped count the store's answers for this file's rows.
	Inserted int
	Skipped  int

	// Err is nil on success, otherwise an *Error.
	Err error

	Duration time.Duration
}

// Succeeded reports whether the file contributed rows to the batch.
func (o *FileOutcome) Succeeded() bool { return o.Err == nil }

// Warnings returns the number of record warnings for the file.
func (o *FileOutcome) Warnings() int {
	if o.Result == nil || o.Result.Validation == nil {
		return 0
	}
	return o.Result.Validation.WarningCount
}

// BatchResult collects every file outcome and the combined records.
type BatchResult struct {
	// ID tags the batch's log lines.
	ID string

	// Outcomes are in input order.
	Outcomes []*FileOutcome

	// Records is the combined table: successful files' records in
	// file-then-row order.
	Records []types.Record

	Inserted int
	Skipped  int
}

// Failed returns the outcomes of files that failed.
func (r *BatchResult) Failed() []*FileOutcome {
	var out []*FileOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Errors returns the error of every failed file, in input order.
func (r *BatchResult) Errors() []error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errs
}

// ProgressFunc is called after each file completes.
type ProgressFunc func(done, total int, outcome *FileOutcome)

// Batch runs the pipeline over several files, strictly one after the other,
// and persists the records of each successful file.
type Batch struct {
	pipeline *Pipeline
	store    store.Store
	metrics  *metrics.Metrics
	progress ProgressFunc
	now      func() time.Time
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithMetrics records file and row counts in m.
func WithMetrics(m *metrics.Metrics) BatchOption {
	return func(b *Batch) { b.metrics = m }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *Batch) { b.progress = fn }
}

// WithClock overrides the time stamped on persisted rows.
func WithClock(now func() time.Time) BatchOption {
	return func(b *Batch) { b.now = now }
}

// NewBatch creates a batch runner writing to st.
func NewBatch(p *Pipeline, st store.Store, opts ...BatchOption) *Batch {
	b := &Batch{pipeline: p, store: st, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes inputs in order. A failing file never stops the batch.
func (b *Batch) Run(ctx context.Context, inputs []Input) *BatchResult {
	result := &BatchResult{ID: uuid.NewString()}
	ctx = logging.WithBatchID(ctx, result.ID)
	log := logging.FromContext(ctx)

	log.Info("batch started", "files", len(inputs), "schema", b.pipeline.Schema().Name)

	for i, in := range inputs {
		outcome := b.runFile(ctx, in)
		result.Outcomes = append(result.Outcomes, outcome)
		result.Inserted += outcome.Inserted
		result.Skipped += outcome.Skipped
		if outcome.Succeeded() {
			result.Records = append(result.Records, outcome.Result.Records...)
		}

		if b.progress != nil {
			b.progress(i+1, len(inputs), outcome)
		}
	}

	log.Info("batch finished",
		"files", len(inputs),
		"failed", len(result.Failed()),
		"rows", len(result.Records),
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)
	return result
}

func (b *Batch) runFile(ctx context.Context, in Input) *FileOutcome {
	start := time.Now()
	log := logging.WithFields(ctx, "file", in.Name)

	var res *FileResult
	data, err := in.content()
	if err == nil {
		res, err = b.pipeline.ProcessFile(ctx, in.Name, data)
	} else {
		err = newError(ReadFailure, in.Name, Received, err)
	}
	outcome := &FileOutcome{File: in.Name, Result: res}
	if res != nil {
		b.metrics.ObserveUndetected(res.Detection.Undetected)
	}
	if err == nil {
		err = b.persist(ctx, res, outcome)
	}
	outcome.Err = err
	outcome.Duration = time.Since(start)

	if err != nil {
		b.metrics.ObserveFile(metrics.OutcomeFailed, outcome.Duration)
		log.Warn("file failed", "kind", KindOf(err).String(), "error", err)
		return outcome
	}

	b.metrics.ObserveFile(metrics.OutcomeSuccess, outcome.Duration)
	b.metrics.AddRows(metrics.RowsInserted, outcome.Inserted)
	b.metrics.AddRows(metrics.RowsSkipped, outcome.Skipped)
	log.Info("file processed",
		"rows", len(res.Records),
		"inserted", outcome.Inserted,
		"skipped", outcome.Skipped,
		"warnings", outcome.Warnings(),
		"duration", outcome.Duration,
	)
	return outcome
}

func (in Input) content() ([]byte, error) {
	if in.Load == nil {
		return in.Data, nil
	}
	return in.Load()
}

// persist inserts every record of res. A duplicate key is a skip; any other
// store error fails the file.
func (b *Batch) persist(ctx context.Context, res *FileResult, outcome *FileOutcome) error {
	processed := b.now()
	schemaName := b.pipeline.Schema().Name

	for _, rec := range res.Records {
		inserted, err := b.store.InsertIfNew(ctx, types.InvoiceRow{
			Schema:        schemaName,
			Record:        rec,
			FileName:      res.File,
			ProcessedDate: processed,
		})
		if err != nil {
			logging.WithFields(ctx, "file", res.File).Error("store insert failed",
				"inserted_before_failure", outcome.Inserted, "error", err)
			res.State = Failed
			return newError(PersistenceError, res.File, Done, err)
		}
		if inserted {
			outcome.Inserted++
		} else {
			outcome.Skipped++
		}
	}
	return nil
}
