package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/csvparser"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/sniffer"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
	"github.com/ginjaninja78/invoice-combiner/internal/validation"
)

const sessionsCSV = "EVSE ID,Session ID,Currency,Net Price,Energy kWh,Duration Min\n" +
	"DE*ABC*E0001,sess-abc-123-xyz,EUR,12.50,22.4,95\n" +
	"DE*ABC*E0002,sess-abc-124-xyz,EUR,8.10,14.0,60\n"

func newPipeline(t *testing.T, s *schema.Schema) *Pipeline {
	t.Helper()
	p, err := New(s, nil)
	require.NoError(t, err)
	return p
}

func requireKind(t *testing.T, err error, kind Kind, sentinel error) *Error {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, kind, pe.Kind)
	return pe
}

func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestProcessFileSessions(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	res, err := p.ProcessFile(context.Background(), "sessions.csv", []byte(sessionsCSV))
	require.NoError(t, err)

	assert.Equal(t, Done, res.State)
	assert.Equal(t, sniffer.UTF8, res.Dialect.Encoding)
	assert.Equal(t, ',', res.Dialect.Delimiter)
	assert.Equal(t, csvparser.Strict, res.ParseMode)
	assert.Empty(t, res.RemovedRows)
	assert.Empty(t, res.Detection.Undetected)

	require.Len(t, res.Records, 2)
	rec := res.Records[0]
	assert.Equal(t, "DE*ABC*E0001", rec.Primary)
	assert.Equal(t, "sess-abc-123-xyz", rec.Secondary)
	assert.Equal(t, "EUR", rec.Currency)
	assert.True(t, rec.Price.Decimal.Equal(decimal.RequireFromString("12.5")))
	assert.Zero(t, res.Validation.WarningCount)
}

func TestProcessFileMissingIdentifier(t *testing.T) {
	p := newPipeline(t, schema.Evse())
	data := []byte("Company,Currency,Price\n\"Acme Corporation, Inc\",USD,99\n")

	res, err := p.ProcessFile(context.Background(), "acme.csv", data)
	require.NoError(t, err)

	assert.Equal(t, []types.Role{types.RoleIdentifier}, res.Detection.Undetected)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, types.Unknown, rec.Primary)
	assert.Equal(t, "Acme Corporation, Inc", rec.Secondary)
	assert.Equal(t, "USD", rec.Currency)
	assert.True(t, rec.Price.Valid)
	assert.True(t, rec.Price.Decimal.Equal(decimal.NewFromInt(99)))
}

func TestProcessFileCompanyWorkbook(t *testing.T) {
	p := newPipeline(t, schema.Company())
	data := xlsxBytes(t, [][]any{
		{"Company", "Currency", "Price"},
		{"Acme Corporation, Inc", "USD", 99},
		{"International Business Machines Corp", "USD", 1250.75},
	})

	res, err := p.ProcessFile(context.Background(), "suppliers.XLSX", data)
	require.NoError(t, err)

	assert.Equal(t, sniffer.Dialect{}, res.Dialect)
	assert.Equal(t, []types.Role{types.RoleCompanyShortName}, res.Detection.Undetected)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Acme", res.Records[0].Secondary)
	assert.Equal(t, "IBM", res.Records[1].Secondary)
	assert.True(t, res.Records[1].Price.Decimal.Equal(decimal.RequireFromString("1250.75")))
}

func TestProcessFileLatin1Semicolons(t *testing.T) {
	p := newPipeline(t, schema.Evse())
	// "Gebühr" in Latin-1: 0xFC is not valid UTF-8.
	data := []byte("EVSE ID;Session ID;W\xe4hrung;Geb\xfchr Price;kWh;Min\n" +
		"AT*XYZ*E1;sess-aaa-111-bbb;EUR;3,20;10,5;20\n" +
		"AT*XYZ*E2;sess-aaa-112-bbb;EUR;4,80;12,5;30\n")

	res, err := p.ProcessFile(context.Background(), "export.csv", data)
	require.NoError(t, err)

	assert.Equal(t, sniffer.Latin1, res.Dialect.Encoding)
	assert.Equal(t, ';', res.Dialect.Delimiter)
	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].Price.Decimal.Equal(decimal.RequireFromString("3.2")))
}

func TestProcessFileRemovesEmbeddedHeaders(t *testing.T) {
	p := newPipeline(t, schema.Evse())
	data := []byte(sessionsCSV + "EVSE ID,Session ID,Currency,Net Price,Energy kWh,Duration Min\n" +
		"DE*ABC*E0003,sess-abc-125-xyz,EUR,9.90,11.0,45\n")

	res, err := p.ProcessFile(context.Background(), "concatenated.csv", data)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, res.RemovedRows)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "sess-abc-125-xyz", res.Records[2].Secondary)
}

func TestProcessFileEveryRowLooksLikeHeader(t *testing.T) {
	p := newPipeline(t, schema.Evse())
	data := []byte("Name,Total\nInvoice,Amount\nVendor,Date\n")

	res, err := p.ProcessFile(context.Background(), "labels.csv", data)
	pe := requireKind(t, err, EmptyFile, ErrEmptyFile)

	assert.Equal(t, Parsed, pe.State)
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, []int{0, 1}, res.RemovedRows)
	assert.Equal(t, "Error processing labels.csv: no data rows left after removing 2 header row(s)", err.Error())
}

func TestProcessFileNoDataRows(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	for name, data := range map[string][]byte{
		"empty.csv":       nil,
		"header-only.csv": []byte("EVSE,Session,Currency,Price\n"),
		"blank.csv":       []byte("\n\n\n"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.ProcessFile(context.Background(), name, data)
			pe := requireKind(t, err, EmptyFile, ErrEmptyFile)
			assert.Equal(t, Received, pe.State)
		})
	}
}

func TestProcessFileDecodeFailure(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	_, err := p.ProcessFile(context.Background(), "broken.csv", []byte("a,b\n\x81,c\n"))
	requireKind(t, err, DecodeFailure, ErrDecodeFailure)
	assert.ErrorIs(t, err, sniffer.ErrDecode)
	assert.Contains(t, err.Error(), "Error processing broken.csv:")
}

func TestProcessFileSchemaDetectionFailure(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	res, err := p.ProcessFile(context.Background(), "numbers.csv", []byte("a,b,c,d\n1,2,3,4\n5,6,7,8\n"))
	pe := requireKind(t, err, SchemaDetectionFailure, ErrSchemaDetectionFailure)

	assert.ErrorIs(t, err, validation.ErrTooManyUndetected)
	assert.Equal(t, Classified, pe.State)
	assert.Len(t, res.Detection.Undetected, 3)
	assert.Empty(t, res.Records)
}

func TestProcessFileThresholdIsConfigurable(t *testing.T) {
	s := schema.Evse()
	s.MaxMissing = 3
	p := newPipeline(t, s)

	res, err := p.ProcessFile(context.Background(), "numbers.csv", []byte("a,b,c,d\n1,2,3,4\n5,6,7,8\n"))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestProcessFileParseFailure(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	tests := map[string][]byte{
		"invoice.pdf":  []byte("%PDF-1.4"),
		"corrupt.xlsx": []byte("not a zip archive"),
		"corrupt.xls":  []byte("not a compound document"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.ProcessFile(context.Background(), name, data)
			requireKind(t, err, ParseFailure, ErrParseFailure)
		})
	}
}

func TestAnalyzeStopsAfterClassification(t *testing.T) {
	p := newPipeline(t, schema.Evse())

	res, err := p.Analyze(context.Background(), "numbers.csv", []byte("a,b,c,d\n1,2,3,4\n5,6,7,8\n"))
	require.NoError(t, err)
	assert.Equal(t, Classified, res.State)
	assert.Len(t, res.Detection.Undetected, 3)
	assert.Nil(t, res.Records)
}

func TestNewRejectsInvalidRules(t *testing.T) {
	_, err := New(schema.Evse(), nil)
	require.NoError(t, err)

	_, err = New(schema.Evse(), []config.TransformationRule{
		{Field: "price", Actions: []config.TransformationAction{{Type: "trim"}}},
	})
	assert.ErrorContains(t, err, "invalid transformation rules")
}

func TestErrorKinds(t *testing.T) {
	err := newError(PersistenceError, "a.csv", Done, errors.New("disk full"))

	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrEmptyFile)
	assert.Equal(t, PersistenceError, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "PersistenceError", PersistenceError.String())
	assert.Equal(t, "Error processing a.csv: disk full", err.Error())
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a.csv"))
	assert.True(t, IsSupported("B.XLSX"))
	assert.True(t, IsSupported("c.xls"))
	assert.False(t, IsSupported("d.txt"))
	assert.False(t, IsSupported("noext"))
}
