// =============================================================================
// Invoice Combiner - Output Schemas
// =============================================================================
//
// A schema is the canonical, ordered set of four output fields produced for
// every source row, together with the classifier that detects each field and
// the fallback used when detection fails.
//
// Two schemas are built in:
//
//   | Schema  | Field 1            | Field 2             | Field 3  | Field 4 |
//   |---------|--------------------|---------------------|----------|---------|
//   | evse    | evse_id            | session_id          | currency | price   |
//   | company | company_full_name  | company_short_name  | currency | price   |
//
// The evse schema is keyed on session_id: the store skips rows whose session
// id it has already seen. The company schema has no natural key and the store
// accepts every row.
//
// =============================================================================

package schema

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/invoice-combiner/internal/classify"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// DefaultMaxMissing is the number of undetected roles tolerated per file.
const DefaultMaxMissing = 2

// Kind is the value type of an output field.
type Kind int

const (
	KindText Kind = iota
	KindPrice
)

// Fallback says how an unresolved field is filled.
type Fallback int

const (
	// FallbackUnknown writes types.Unknown (text) or a missing price.
	FallbackUnknown Fallback = iota

	// FallbackDeriveShortName derives the value from the full company name.
	FallbackDeriveShortName
)

// Field is one output column.
type Field struct {
	Name     string
	Role     types.Role
	Kind     Kind
	Fallback Fallback

	// Source is the role a derived fallback reads from.
	Source types.Role
}

// Schema is an output layout plus its detection settings.
type Schema struct {
	Name   string
	Fields [4]Field

	// MaxMissing is the number of undetected roles tolerated before a file
	// fails detection.
	MaxMissing int

	// KeyRole is the role whose value must be unique in the store. Empty
	// means no uniqueness is enforced.
	KeyRole types.Role

	// Table is the store table holding rows of this schema.
	Table string
}

// Evse is the charging-session schema.
func Evse() *Schema {
	return &Schema{
		Name: "evse",
		Fields: [4]Field{
			{Name: "evse_id", Role: types.RoleIdentifier},
			{Name: "session_id", Role: types.RoleTransactionID},
			{Name: "currency", Role: types.RoleCurrency},
			{Name: "price", Role: types.RolePrice, Kind: KindPrice},
		},
		MaxMissing: DefaultMaxMissing,
		KeyRole:    types.RoleTransactionID,
		Table:      "invoices",
	}
}

// Company is the supplier-name schema.
func Company() *Schema {
	return &Schema{
		Name: "company",
		Fields: [4]Field{
			{Name: "company_full_name", Role: types.RoleCompanyFullName},
			{
				Name:     "company_short_name",
				Role:     types.RoleCompanyShortName,
				Fallback: FallbackDeriveShortName,
				Source:   types.RoleCompanyFullName,
			},
			{Name: "currency", Role: types.RoleCurrency},
			{Name: "price", Role: types.RolePrice, Kind: KindPrice},
		},
		MaxMissing: DefaultMaxMissing,
		Table:      "company_invoices",
	}
}

var registry = map[string]func() *Schema{
	"evse":    Evse,
	"company": Company,
}

// Lookup returns a fresh copy of the named schema.
func Lookup(name string) (*Schema, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (available: %v)", name, Names())
	}
	return build(), nil
}

// Names lists the built-in schema names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns returns the output column names in order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Roles returns the roles in field order.
func (s *Schema) Roles() []types.Role {
	roles := make([]types.Role, len(s.Fields))
	for i, f := range s.Fields {
		roles[i] = f.Role
	}
	return roles
}

// Specs builds the classifier list handed to classify.Detect. A field with a
// derived fallback depends on its source role, so its content tier only runs
// once the source is resolved.
func (s *Schema) Specs() []classify.Spec {
	specs := make([]classify.Spec, len(s.Fields))
	for i, f := range s.Fields {
		specs[i] = classify.Spec{Classifier: classify.ForRole(f.Role)}
		if f.Fallback == FallbackDeriveShortName {
			specs[i].DependsOn = f.Source
		}
	}
	return specs
}

// Key returns the uniqueness key of a record, or "" when the schema has none.
func (s *Schema) Key(r types.Record) string {
	if s.KeyRole == "" {
		return ""
	}
	for i, f := range s.Fields {
		if f.Role == s.KeyRole {
			return r.Values()[i]
		}
	}
	return ""
}

// HasKey reports whether the schema enforces uniqueness.
func (s *Schema) HasKey() bool { return s.KeyRole != "" }
