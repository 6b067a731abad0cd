// =============================================================================
// Invoice Combiner - Field Classifiers
// =============================================================================
//
// This module decides which source column plays which role (identifier,
// transaction id, currency, price, company names) in a table whose labels are
// unknown or inconsistent.
//
// TWO TIERS PER ROLE:
//   1. NAME TIER: the column labels are tested against a priority-ordered
//      list of patterns. Pattern priority outranks column order: the first
//      pattern that matches any label wins, and within a pattern the left-most
//      label wins.
//   2. CONTENT TIER: only if the name tier found nothing. Every candidate
//      column is scored on a sample of its values and the best column is kept
//      if its score clears the role threshold.
//
// DETECTION ORDER:
//   Detect runs the name tier for every role first, then the content tier for
//   the roles still unresolved, both in schema order. A column claimed by one
//   role is never offered to another, so a strongly labelled column cannot be
//   stolen by a content heuristic of an earlier role.
//
// =============================================================================

package classify

import (
	"regexp"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// Tier records how a role was resolved.
type Tier int

const (
	TierNone Tier = iota
	TierName
	TierContent
)

func (t Tier) String() string {
	switch t {
	case TierName:
		return "name"
	case TierContent:
		return "content"
	default:
		return "none"
	}
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier detects the column for a single role.
type Classifier struct {
	Role types.Role

	// Patterns are tried in order against column labels.
	Patterns []*regexp.Regexp

	// Reject excludes labels from the name tier even when a pattern matches.
	Reject *regexp.Regexp

	// NameCheck, if set, must also accept a column matched by name.
	NameCheck func(t *table.Table, col int) bool

	// Scorer drives the content tier. A nil Scorer disables it.
	Scorer Scorer

	// Threshold is the minimum content score. The score must be strictly
	// greater unless Inclusive is set.
	Threshold float64
	Inclusive bool
}

// Accept reports whether a content score clears the threshold.
func (c *Classifier) Accept(score float64) bool {
	if c.Inclusive {
		return score >= c.Threshold
	}
	return score > c.Threshold
}

// MatchName runs the name tier over the candidate columns.
func (c *Classifier) MatchName(t *table.Table, candidates []int) (int, bool) {
	for _, pattern := range c.Patterns {
		for _, col := range candidates {
			label := t.Headers[col]
			if !pattern.MatchString(label) {
				continue
			}
			if c.Reject != nil && c.Reject.MatchString(label) {
				continue
			}
			if c.NameCheck != nil && !c.NameCheck(t, col) {
				continue
			}
			return col, true
		}
	}
	return -1, false
}

// BestByContent runs the content tier over the candidate columns. Ties go to
// the left-most column. The best score is returned even when it is rejected.
func (c *Classifier) BestByContent(t *table.Table, candidates []int) (int, float64, bool) {
	if c.Scorer == nil {
		return -1, 0, false
	}

	best, bestScore, found := -1, 0.0, false
	for _, col := range candidates {
		score, ok := c.Scorer.Score(t, col)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = col, score, true
		}
	}

	if !found {
		return -1, 0, false
	}
	return best, bestScore, c.Accept(bestScore)
}

// =============================================================================
// BUILT-IN CLASSIFIERS
// =============================================================================

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Identifier detects the charge point (EVSE) identifier.
func Identifier() *Classifier {
	return &Classifier{
		Role: types.RoleIdentifier,
		Patterns: patterns(
			`evse[\s_-]*id`,
			`evse`,
			`charge[\s_-]*point[\s_-]*id`,
			`charging[\s_-]*station[\s_-]*id`,
			`station[\s_-]*id`,
			`charger[\s_-]*id`,
			`cp[\s_-]*id`,
		),
		Scorer:    IdentifierScorer{},
		Threshold: 2,
	}
}

// TransactionID detects the charging session / transaction identifier.
func TransactionID() *Classifier {
	return &Classifier{
		Role: types.RoleTransactionID,
		Patterns: patterns(
			`session[\s_-]*id`,
			`transaction[\s_-]*id`,
			`charge[\s_-]*session[\s_-]*id`,
			`charging[\s_-]*session`,
			`session[\s_-]*number`,
		),
		Scorer:    TransactionIDScorer{},
		Threshold: 3,
	}
}

// Currency detects the currency column.
func Currency() *Classifier {
	return &Classifier{
		Role:      types.RoleCurrency,
		Patterns:  patterns(`currency`, `curr`, `ccy`),
		Scorer:    CurrencyScorer{},
		Threshold: 2,
		Inclusive: true,
	}
}

// Price detects the price column. A column matched by name must also be
// mostly numeric.
func Price() *Classifier {
	return &Classifier{
		Role:      types.RolePrice,
		Patterns:  patterns(`price`, `amount`, `total`, `sum`, `cost`, `fee`, `value`),
		NameCheck: (*table.Table).IsNumericColumn,
		Scorer:    PriceScorer{},
		Threshold: 2,
		Inclusive: true,
	}
}

// CompanyFullName detects the full legal company name.
func CompanyFullName() *Classifier {
	return &Classifier{
		Role: types.RoleCompanyFullName,
		Patterns: patterns(
			`company[\s_-]*full[\s_-]*name`,
			`full[\s_-]*name`,
			`company[\s_-]*name`,
			`company`,
			`vendor`,
			`supplier`,
			`customer`,
			`client`,
			`name`,
		),
		Reject:    regexp.MustCompile(`(?i)(short|abbr|code|alias|ticker)`),
		Scorer:    CompanyFullNameScorer{},
		Threshold: 3,
	}
}

// CompanyShortName detects an abbreviated company name.
func CompanyShortName() *Classifier {
	return &Classifier{
		Role: types.RoleCompanyShortName,
		Patterns: patterns(
			`short[\s_-]*name`,
			`abbr`,
			`alias`,
			`ticker`,
			`company[\s_-]*code`,
		),
		Scorer:    CompanyShortNameScorer{},
		Threshold: 3,
	}
}

// ForRole returns a fresh built-in classifier for role, or nil.
func ForRole(role types.Role) *Classifier {
	switch role {
	case types.RoleIdentifier:
		return Identifier()
	case types.RoleTransactionID:
		return TransactionID()
	case types.RoleCurrency:
		return Currency()
	case types.RolePrice:
		return Price()
	case types.RoleCompanyFullName:
		return CompanyFullName()
	case types.RoleCompanyShortName:
		return CompanyShortName()
	default:
		return nil
	}
}

// =============================================================================
// DETECTION
// =============================================================================

// Spec is one role slot of a schema as seen by Detect.
type Spec struct {
	Classifier *Classifier

	// DependsOn, when set, skips the content tier for this role unless that
	// role was resolved. The standardizer derives the value instead.
	DependsOn types.Role
}

// Detection describes how one role was resolved.
type Detection struct {
	Role   types.Role
	Column string
	Tier   Tier
	Score  float64
}

// Result is the outcome of Detect.
type Result struct {
	Roles      types.RoleMap
	Detections []Detection
	Undetected []types.Role
}

// Detect assigns columns of t to the roles in specs. Each column is assigned
// to at most one role. Undetected roles are listed in schema order.
func Detect(t *table.Table, specs []Spec) Result {
	roles := make(types.RoleMap, len(specs))
	detections := make([]Detection, len(specs))
	claimed := make(map[int]bool, len(t.Headers))

	available := func() []int {
		cols := make([]int, 0, len(t.Headers))
		for i := range t.Headers {
			if !claimed[i] {
				cols = append(cols, i)
			}
		}
		return cols
	}

	// Name tier for every role first.
	for i, spec := range specs {
		detections[i] = Detection{Role: spec.Classifier.Role}
		if col, ok := spec.Classifier.MatchName(t, available()); ok {
			claimed[col] = true
			roles[spec.Classifier.Role] = t.Headers[col]
			detections[i].Column = t.Headers[col]
			detections[i].Tier = TierName
		}
	}

	// Content tier for the rest.
	for i, spec := range specs {
		if detections[i].Tier != TierNone {
			continue
		}
		if spec.DependsOn != "" {
			if _, ok := roles.Lookup(spec.DependsOn); !ok {
				continue
			}
		}

		col, score, ok := spec.Classifier.BestByContent(t, available())
		detections[i].Score = score
		if !ok {
			continue
		}
		claimed[col] = true
		roles[spec.Classifier.Role] = t.Headers[col]
		detections[i].Column = t.Headers[col]
		detections[i].Tier = TierContent
	}

	var undetected []types.Role
	for _, d := range detections {
		if d.Tier == TierNone {
			undetected = append(undetected, d.Role)
		}
	}

	return Result{Roles: roles, Detections: detections, Undetected: undetected}
}
