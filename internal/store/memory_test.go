package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

func invoiceRow(evse, session, file string, at time.Time) types.InvoiceRow {
	return types.InvoiceRow{
		Record: types.Record{
			Primary:   evse,
			Secondary: session,
			Currency:  "EUR",
			Price:     decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		},
		FileName:      file,
		ProcessedDate: at,
	}
}

func TestMemoryInsertIfNewSkipsDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(schema.Evse())
	require.NoError(t, m.Initialize(ctx))
	now := time.Now()

	inserted, err := m.InsertIfNew(ctx, invoiceRow("StationA-01", "sess-1", "a.csv", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = m.InsertIfNew(ctx, invoiceRow("StationB-02", "sess-1", "b.csv", now))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = m.InsertIfNew(ctx, invoiceRow("StationB-02", "sess-2", "b.csv", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	rows, err := m.QueryAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(2), rows[1].ID)
	assert.Equal(t, "evse", rows[0].Schema)
	assert.Equal(t, "a.csv", rows[0].FileName)
}

func TestMemoryUnknownKeyIsUniqueLikeAnyOther(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(schema.Evse())

	for i, want := range []bool{true, false, false} {
		inserted, err := m.InsertIfNew(ctx, invoiceRow("StationA-01", types.Unknown, "a.csv", time.Now()))
		require.NoError(t, err)
		assert.Equal(t, want, inserted, "insert %d", i)
	}
	assert.Equal(t, 1, m.Len())

	rows, err := m.QueryByKey(ctx, types.Unknown)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryKeylessSchemaAcceptsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(schema.Company())
	row := types.InvoiceRow{Record: types.Record{Primary: "Acme Corporation", Secondary: "AC", Currency: "USD"}}

	for i := 0; i < 2; i++ {
		inserted, err := m.InsertIfNew(ctx, row)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	_, err := m.QueryByKey(ctx, "AC")
	assert.ErrorIs(t, err, ErrNoKey)

	rows, err := m.QueryByIdentifier(ctx, "Acme Corporation")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryQueries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(schema.Evse())
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }

	for i, d := range []int{1, 2, 3} {
		_, err := m.InsertIfNew(ctx, invoiceRow("Station", []string{"s1", "s2", "s3"}[i], "a.csv", day(d)))
		require.NoError(t, err)
	}

	rows, err := m.QueryByDateRange(ctx, day(2), day(3))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s2", rows[0].Record.Secondary)
	assert.Equal(t, "s3", rows[1].Record.Secondary)

	rows, err = m.QueryByKey(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, day(1), rows[0].ProcessedDate)

	rows, err = m.QueryByIdentifier(ctx, "Station")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = m.QueryByIdentifier(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpenWithoutURLIsMemory(t *testing.T) {
	s, err := Open(context.Background(), "", schema.Evse())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, s.Close())
}
