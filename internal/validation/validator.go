// =============================================================================
// Invoice Combiner - Validation
// =============================================================================
//
// This module holds the two checks that run after classification:
//
//   1. Detection check (fatal): a file fails when more roles went undetected
//      than the schema tolerates. The default tolerance is 2 of 4, so a file
//      needs at least two recognizable columns to be worth combining.
//
//   2. Record check (non-fatal): standardized records are inspected for
//      values that will surprise whoever reads the combined output. Findings
//      are collected as warnings and reported with the file outcome; they
//      never remove a row.
//
// WARNING RULES:
//   - price_missing:          price unresolved, blank or unparseable
//   - key_unknown:            key field (session_id) is "Unknown"; such rows
//                             are never deduplicated
//   - currency_unrecognized:  currency is neither an ISO code nor a symbol
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/invoice-combiner/internal/classify"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

// ErrTooManyUndetected is wrapped by CheckDetection failures.
var ErrTooManyUndetected = errors.New("too many undetected columns")

// Severity levels.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Rule names.
const (
	RulePriceMissing         = "price_missing"
	RuleKeyUnknown           = "key_unknown"
	RuleCurrencyUnrecognized = "currency_unrecognized"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single finding.
type ValidationError struct {
	// Severity is "warning" for every record finding.
	Severity string

	// Field is the output column the finding is about.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the rule that was violated.
	Rule string

	// Message is a human-readable description.
	Message string

	// RowNumber is the 1-based position of the record in the file's output.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.RowNumber,
		e.Field,
		e.Message,
		e.Value,
	)
}

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains every finding, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RecordsValidated is the number of records inspected.
	RecordsValidated int
}

func (r *ValidationResult) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
	} else {
		r.WarningCount++
	}
}

// CountByRule returns the number of findings per rule.
func (r *ValidationResult) CountByRule() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Errors {
		counts[e.Rule]++
	}
	return counts
}

// =============================================================================
// DETECTION CHECK
// =============================================================================

// CheckDetection fails when more than s.MaxMissing roles are undetected.
//
// PARAMETERS:
//   - s: The schema the file is processed with.
//   - undetected: The roles classification could not resolve.
//
// RETURNS:
//   - nil if the file may proceed.
//   - An error wrapping ErrTooManyUndetected that lists the missing roles.
func CheckDetection(s *schema.Schema, undetected []types.Role) error {
	if len(undetected) <= s.MaxMissing {
		return nil
	}

	names := make([]string, len(undetected))
	for i, r := range undetected {
		names[i] = string(r)
	}
	return fmt.Errorf("%w: %d of %d roles not found (%s), at most %d allowed",
		ErrTooManyUndetected, len(undetected), len(s.Fields), strings.Join(names, ", "), s.MaxMissing)
}

// =============================================================================
// RECORD CHECK
// =============================================================================

// ValidateRecords inspects standardized records and returns warnings.
func ValidateRecords(s *schema.Schema, records []types.Record) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	cols := s.Columns()

	for i, rec := range records {
		row := i + 1
		result.RecordsValidated++

		if !rec.Price.Valid {
			result.add(&ValidationError{
				Severity:  SeverityWarning,
				Field:     cols[3],
				Rule:      RulePriceMissing,
				Message:   "price is missing or not a number",
				RowNumber: row,
			})
		}

		if s.HasKey() && s.Key(rec) == types.Unknown {
			result.add(&ValidationError{
				Severity:  SeverityWarning,
				Field:     keyField(s),
				Value:     types.Unknown,
				Rule:      RuleKeyUnknown,
				Message:   "key is unknown, duplicates cannot be detected",
				RowNumber: row,
			})
		}

		if !recognizedCurrency(rec.Currency) {
			result.add(&ValidationError{
				Severity:  SeverityWarning,
				Field:     cols[2],
				Value:     rec.Currency,
				Rule:      RuleCurrencyUnrecognized,
				Message:   "currency is not a known code or symbol",
				RowNumber: row,
			})
		}
	}

	return result
}

func keyField(s *schema.Schema) string {
	for _, f := range s.Fields {
		if f.Role == s.KeyRole {
			return f.Name
		}
	}
	return ""
}

// recognizedCurrency accepts the sentinel, ISO codes and symbols.
func recognizedCurrency(v string) bool {
	v = strings.TrimSpace(v)
	if v == types.Unknown {
		return true
	}
	return classify.IsCurrencyCode(v) || classify.HasCurrencySymbol(v)
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation findings for display or logging.
//
// PARAMETERS:
//   - errors: The findings to format.
//   - limit: The maximum number of findings listed; 0 lists all.
//
// RETURNS:
//   - A formatted string containing the findings.
func FormatErrors(errors []*ValidationError, limit int) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n", len(errors)))

	for i, err := range errors {
		if limit > 0 && i == limit {
			builder.WriteString(fmt.Sprintf("   ... and %d more\n", len(errors)-limit))
			break
		}
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
