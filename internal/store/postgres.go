package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// PgxPool is the subset of *pgxpool.Pool the store uses. Tests substitute
// pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// Postgres stores rows in one table per schema. Uniqueness of the key column
// is enforced by a UNIQUE constraint on the stored value.
type Postgres struct {
	pool   PgxPool
	schema *schema.Schema

	createSQL string
	insertSQL string
	selectSQL string
}

// NewPostgres wraps an open pool.
func NewPostgres(pool PgxPool, s *schema.Schema) *Postgres {
	return &Postgres{
		pool:      pool,
		schema:    s,
		createSQL: createTableSQL(s),
		insertSQL: insertSQL(s),
		selectSQL: selectSQL(s),
	}
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string, s *schema.Schema) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgres(pool, s), nil
}

func (p *Postgres) Initialize(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, p.createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.schema.Table, err)
	}
	return nil
}

func (p *Postgres) InsertIfNew(ctx context.Context, row types.InvoiceRow) (bool, error) {
	rec := row.Record
	tag, err := p.pool.Exec(ctx, p.insertSQL,
		rec.Primary, rec.Secondary, rec.Currency, rec.Price,
		row.FileName, row.ProcessedDate,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert into %s: %w", p.schema.Table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) QueryAll(ctx context.Context) ([]types.InvoiceRow, error) {
	return p.query(ctx, p.selectSQL+" ORDER BY id")
}

func (p *Postgres) QueryByDateRange(ctx context.Context, start, end time.Time) ([]types.InvoiceRow, error) {
	return p.query(ctx, p.selectSQL+" WHERE processed_date BETWEEN $1 AND $2 ORDER BY id", start, end)
}

func (p *Postgres) QueryByKey(ctx context.Context, key string) ([]types.InvoiceRow, error) {
	col, ok := keyColumn(p.schema)
	if !ok {
		return nil, ErrNoKey
	}
	return p.query(ctx, p.selectSQL+fmt.Sprintf(" WHERE %s = $1 ORDER BY id", col), key)
}

func (p *Postgres) QueryByIdentifier(ctx context.Context, id string) ([]types.InvoiceRow, error) {
	col := p.schema.Fields[0].Name
	return p.query(ctx, p.selectSQL+fmt.Sprintf(" WHERE %s = $1 ORDER BY id", col), id)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) query(ctx context.Context, sql string, args ...any) ([]types.InvoiceRow, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", p.schema.Table, err)
	}
	defer rows.Close()

	var out []types.InvoiceRow
	for rows.Next() {
		r := types.InvoiceRow{Schema: p.schema.Name}
		if err := rows.Scan(
			&r.ID, &r.Record.Primary, &r.Record.Secondary, &r.Record.Currency,
			&r.Record.Price, &r.FileName, &r.ProcessedDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", p.schema.Table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", p.schema.Table, err)
	}
	return out, nil
}

// =============================================================================
// SQL
// =============================================================================

func keyColumn(s *schema.Schema) (string, bool) {
	if !s.HasKey() {
		return "", false
	}
	for _, f := range s.Fields {
		if f.Role == s.KeyRole {
			return f.Name, true
		}
	}
	return "", false
}

func createTableSQL(s *schema.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", s.Table)
	b.WriteString("    id BIGSERIAL PRIMARY KEY,\n")
	for _, f := range s.Fields {
		colType := "TEXT NOT NULL"
		switch {
		case f.Kind == schema.KindPrice:
			colType = "NUMERIC"
		case s.HasKey() && f.Role == s.KeyRole:
			colType = "TEXT NOT NULL UNIQUE"
		}
		fmt.Fprintf(&b, "    %s %s,\n", f.Name, colType)
	}
	b.WriteString("    file_name TEXT NOT NULL,\n")
	b.WriteString("    processed_date TIMESTAMPTZ NOT NULL\n")
	b.WriteString(")")
	return b.String()
}

func insertSQL(s *schema.Schema) string {
	cols := append(s.Columns(), "file_name", "processed_date")
	values := make([]string, len(cols))
	for i := range cols {
		values[i] = fmt.Sprintf("$%d", i+1)
	}

	conflict := ""
	if key, ok := keyColumn(s); ok {
		conflict = fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", key)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		s.Table, strings.Join(cols, ", "), strings.Join(values, ", "), conflict)
}

func selectSQL(s *schema.Schema) string {
	cols := append([]string{"id"}, s.Columns()...)
	cols = append(cols, "file_name", "processed_date")
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.Table)
}
