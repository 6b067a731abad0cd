package store

import (
	"context"
	"sync"
	"time"

	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// Memory is an in-process Store. Its contents are lost when the process
// exits.
type Memory struct {
	schema *schema.Schema

	mu     sync.RWMutex
	rows   []types.InvoiceRow
	keys   map[string]struct{}
	nextID int64
}

// NewMemory creates an empty memory store for s.
func NewMemory(s *schema.Schema) *Memory {
	return &Memory{
		schema: s,
		keys:   make(map[string]struct{}),
		nextID: 1,
	}
}

func (m *Memory) Initialize(context.Context) error { return nil }

func (m *Memory) InsertIfNew(_ context.Context, row types.InvoiceRow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.schema.Key(row.Record)
	if enforcesKey(m.schema, key) {
		if _, seen := m.keys[key]; seen {
			return false, nil
		}
		m.keys[key] = struct{}{}
	}

	row.ID = m.nextID
	row.Schema = m.schema.Name
	m.nextID++
	m.rows = append(m.rows, row)
	return true, nil
}

func (m *Memory) QueryAll(context.Context) ([]types.InvoiceRow, error) {
	return m.filter(func(types.InvoiceRow) bool { return true }), nil
}

func (m *Memory) QueryByDateRange(_ context.Context, start, end time.Time) ([]types.InvoiceRow, error) {
	return m.filter(func(r types.InvoiceRow) bool {
		return !r.ProcessedDate.Before(start) && !r.ProcessedDate.After(end)
	}), nil
}

func (m *Memory) QueryByKey(_ context.Context, key string) ([]types.InvoiceRow, error) {
	if !m.schema.HasKey() {
		return nil, ErrNoKey
	}
	return m.filter(func(r types.InvoiceRow) bool {
		return m.schema.Key(r.Record) == key
	}), nil
}

func (m *Memory) QueryByIdentifier(_ context.Context, id string) ([]types.InvoiceRow, error) {
	return m.filter(func(r types.InvoiceRow) bool {
		return r.Record.Primary == id
	}), nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored rows.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

func (m *Memory) filter(keep func(types.InvoiceRow) bool) []types.InvoiceRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.InvoiceRow
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
