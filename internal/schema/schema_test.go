package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

func TestLookup(t *testing.T) {
	s, err := Lookup("evse")
	require.NoError(t, err)
	assert.Equal(t, []string{"evse_id", "session_id", "currency", "price"}, s.Columns())
	assert.True(t, s.HasKey())
	assert.Equal(t, "invoices", s.Table)

	s, err = Lookup("company")
	require.NoError(t, err)
	assert.Equal(t, []string{"company_full_name", "company_short_name", "currency", "price"}, s.Columns())
	assert.False(t, s.HasKey())

	_, err = Lookup("payroll")
	assert.ErrorContains(t, err, "unknown schema")
}

func TestLookupReturnsCopies(t *testing.T) {
	a, _ := Lookup("evse")
	a.MaxMissing = 0

	b, _ := Lookup("evse")
	assert.Equal(t, DefaultMaxMissing, b.MaxMissing)
}

func TestSpecs(t *testing.T) {
	specs := Company().Specs()
	require.Len(t, specs, 4)

	assert.Equal(t, types.RoleCompanyFullName, specs[0].Classifier.Role)
	assert.Empty(t, specs[0].DependsOn)
	assert.Equal(t, types.RoleCompanyFullName, specs[1].DependsOn)

	for i, spec := range Evse().Specs() {
		assert.Equal(t, Evse().Fields[i].Role, spec.Classifier.Role)
		assert.Empty(t, spec.DependsOn)
	}
}

func TestKey(t *testing.T) {
	r := types.Record{Primary: "E1", Secondary: "sess-1", Currency: "EUR"}

	assert.Equal(t, "sess-1", Evse().Key(r))
	assert.Equal(t, "", Company().Key(r))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"company", "evse"}, Names())
}
