// =============================================================================
// Invoice Combiner - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - classify
//   - standardize
//   - pipeline
//   - store
//   - export / xmlwriter
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unknown is the sentinel written into text fields whose role was not detected.
const Unknown = "Unknown"

// =============================================================================
// ROLES
// =============================================================================

// Role is a semantic column category the classifiers try to detect.
type Role string

const (
	RoleIdentifier       Role = "identifier"
	RoleTransactionID    Role = "transaction_id"
	RoleCurrency         Role = "currency"
	RolePrice            Role = "price"
	RoleCompanyFullName  Role = "company_full_name"
	RoleCompanyShortName Role = "company_short_name"
)

// RoleMap maps a role to the label of the column that plays it.
// A role that was not detected has no entry.
type RoleMap map[Role]string

// Lookup returns the column label detected for role.
func (m RoleMap) Lookup(role Role) (string, bool) {
	label, ok := m[role]
	return label, ok && label != ""
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record is one standardized output row. It always has exactly four fields,
// in schema order: Primary, Secondary, Currency, Price.
//
// For the evse schema Primary is the EVSE id and Secondary the session id.
// For the company schema they are the full and short company names.
type Record struct {
	Primary   string
	Secondary string
	Currency  string

	// Price is invalid when the source value was missing or unparseable.
	Price decimal.NullDecimal
}

// Values returns the record's fields as strings in schema order.
// A missing price is rendered as an empty string.
func (r Record) Values() []string {
	price := ""
	if r.Price.Valid {
		price = r.Price.Decimal.String()
	}
	return []string{r.Primary, r.Secondary, r.Currency, price}
}

// InvoiceRow is a Record as persisted by the store.
type InvoiceRow struct {
	ID            int64
	Schema        string
	Record        Record
	FileName      string
	ProcessedDate time.Time
}
