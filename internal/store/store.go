// =============================================================================
// Invoice Combiner - Invoice Store
// =============================================================================
//
// The store persists standardized rows and enforces at-most-once ingestion on
// the schema key (session_id for the evse schema). Inserting a row whose key
// is already present is not an error: InsertIfNew reports inserted=false and
// the caller counts the row as skipped.
//
// IMPLEMENTATIONS:
//   - Memory:   process-local, used when no database_url is configured and
//               for --dry-run.
//   - Postgres: pgx connection pool, uniqueness enforced by the database.
//
// Uniqueness applies to the stored key value, "Unknown" included: when the
// key column was not detected, only the first such row is stored and a re-run
// of the same file adds nothing. The combined output still carries every row.
//
// The handle is opened once by the command, passed to the batch runner, and
// closed at exit.
//
// =============================================================================

package store

import (
	"context"
	"errors"
	"time"

	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// ErrNoKey is returned by QueryByKey for schemas without a unique key.
var ErrNoKey = errors.New("schema has no unique key")

// Store persists invoice rows of one schema.
type Store interface {
	// Initialize creates the backing table if needed. It is idempotent.
	Initialize(ctx context.Context) error

	// InsertIfNew stores row unless its key is already present.
	InsertIfNew(ctx context.Context, row types.InvoiceRow) (bool, error)

	QueryAll(ctx context.Context) ([]types.InvoiceRow, error)

	// QueryByDateRange returns rows processed between start and end,
	// both inclusive.
	QueryByDateRange(ctx context.Context, start, end time.Time) ([]types.InvoiceRow, error)

	// QueryByKey returns the rows whose key (session_id) equals key.
	QueryByKey(ctx context.Context, key string) ([]types.InvoiceRow, error)

	// QueryByIdentifier returns the rows whose first field (evse_id or
	// company_full_name) equals id.
	QueryByIdentifier(ctx context.Context, id string) ([]types.InvoiceRow, error)

	Close() error
}

// Open returns a Postgres store when databaseURL is set and a Memory store
// otherwise. The store is not initialized.
func Open(ctx context.Context, databaseURL string, s *schema.Schema) (Store, error) {
	if databaseURL == "" {
		return NewMemory(s), nil
	}
	return OpenPostgres(ctx, databaseURL, s)
}

// enforcesKey reports whether key takes part in duplicate detection.
func enforcesKey(s *schema.Schema, key string) bool {
	return s.HasKey() && key != ""
}
