// =============================================================================
// Invoice Combiner - Standardizer
// =============================================================================
//
// This module maps a source table onto the four canonical fields of a schema
// once the classifiers have decided which column plays which role.
//
// RULES PER FIELD:
//   - Role resolved: copy the column's value. Prices are parsed with a comma
//     accepted as decimal separator; anything unparseable becomes missing.
//   - Role unresolved, text field: the literal "Unknown".
//   - Role unresolved, price: missing (never zero).
//   - Short company name unresolved: derived per row from the full name
//     when that column is resolved, otherwise "Unknown".
//
// =============================================================================

package standardize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/table"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// Standardizer builds canonical records for one schema.
type Standardizer struct {
	schema      *schema.Schema
	transformer *Transformer
}

// New creates a Standardizer. rules may be empty.
func New(s *schema.Schema, rules []config.TransformationRule) (*Standardizer, error) {
	var textFields []string
	for _, f := range s.Fields {
		if f.Kind == schema.KindText {
			textFields = append(textFields, f.Name)
		}
	}

	transformer, err := NewTransformer(rules, textFields)
	if err != nil {
		return nil, err
	}
	return &Standardizer{schema: s, transformer: transformer}, nil
}

// Standardize maps t onto the schema without transformation rules.
func Standardize(t *table.Table, s *schema.Schema, roles types.RoleMap) []types.Record {
	st := &Standardizer{schema: s}
	return st.Standardize(t, roles)
}

// fieldSource is where one output field takes its value from.
type fieldSource struct {
	field  schema.Field
	col    int
	source int
}

// Standardize returns one record per row of t, in row order.
func (st *Standardizer) Standardize(t *table.Table, roles types.RoleMap) []types.Record {
	sources := make([]fieldSource, len(st.schema.Fields))
	for i, f := range st.schema.Fields {
		sources[i] = fieldSource{field: f, col: columnFor(t, roles, f.Role), source: -1}
		if f.Fallback == schema.FallbackDeriveShortName {
			sources[i].source = columnFor(t, roles, f.Source)
		}
	}

	records := make([]types.Record, 0, t.Len())
	for _, row := range t.Rows {
		var text []string
		var price decimal.NullDecimal

		for _, src := range sources {
			if src.field.Kind == schema.KindPrice {
				if src.col >= 0 {
					price = ParsePrice(row[src.col])
				}
				continue
			}
			text = append(text, st.textValue(src, row))
		}

		records = append(records, newRecord(text, price))
	}
	return records
}

func (st *Standardizer) textValue(src fieldSource, row []string) string {
	switch {
	case src.col >= 0:
		return st.transformer.Apply(src.field.Name, row[src.col])
	case src.source >= 0:
		return st.transformer.Apply(src.field.Name, ShortName(row[src.source]))
	default:
		return types.Unknown
	}
}

func newRecord(text []string, price decimal.NullDecimal) types.Record {
	for len(text) < 3 {
		text = append(text, types.Unknown)
	}
	return types.Record{Primary: text[0], Secondary: text[1], Currency: text[2], Price: price}
}

func columnFor(t *table.Table, roles types.RoleMap, role types.Role) int {
	label, ok := roles.Lookup(role)
	if !ok {
		return -1
	}
	return t.Index(label)
}

// ParsePrice parses a price cell. A comma is accepted as decimal separator;
// blank or unparseable input yields an invalid (missing) value.
func ParsePrice(s string) decimal.NullDecimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
