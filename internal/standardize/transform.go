// =============================================================================
// Invoice Combiner - Transformation Engine
// =============================================================================
//
// Optional post-processing of standardized text fields, configured per output
// field in config.yaml:
//
//   transformation_rules:
//     - field: currency
//       actions:
//         - type: trim
//         - type: uppercase
//         - type: lookup
//           lookup_table: {"€": "EUR", "$": "USD"}
//
// Rules only touch values read from (or derived from) the source file. The
// "Unknown" sentinel and the price field are never transformed.
//
// =============================================================================

package standardize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies configured actions to field values.
type Transformer struct {
	rules map[string][]compiledAction
}

type compiledAction struct {
	config.TransformationAction
	re *regexp.Regexp
}

// NewTransformer validates rules against the text fields they may target.
//
// PARAMETERS:
//   - rules: The transformation rules from the main configuration.
//   - fields: The names of the fields rules may target.
//
// RETURNS:
//   - A Transformer ready to apply the rules.
//   - An error for an unknown field, unknown action type or invalid pattern.
func NewTransformer(rules []config.TransformationRule, fields []string) (*Transformer, error) {
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}

	t := &Transformer{rules: make(map[string][]compiledAction, len(rules))}
	for _, rule := range rules {
		if !allowed[rule.Field] {
			return nil, fmt.Errorf("transformation rule for unknown or non-text field %q", rule.Field)
		}
		for _, action := range rule.Actions {
			ca, err := compile(action)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", rule.Field, err)
			}
			t.rules[rule.Field] = append(t.rules[rule.Field], ca)
		}
	}
	return t, nil
}

func compile(action config.TransformationAction) (compiledAction, error) {
	ca := compiledAction{TransformationAction: action}
	switch action.Type {
	case "regex_replace":
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return ca, fmt.Errorf("invalid regex pattern: %w", err)
		}
		ca.re = re
	case "pad_zeros_to_length":
		if n, err := strconv.Atoi(action.Value); err != nil || n <= 0 {
			return ca, fmt.Errorf("pad_zeros_to_length needs a positive length, got %q", action.Value)
		}
	case "prepend_string", "append_string", "trim", "uppercase", "lowercase",
		"replace", "normalize_whitespace", "lookup", "lookup_with_default", "if_empty_use_default":
	default:
		return ca, fmt.Errorf("unknown transformation type: %s", action.Type)
	}
	return ca, nil
}

// Apply runs every action configured for field, in order.
func (t *Transformer) Apply(field, value string) string {
	if t == nil {
		return value
	}
	for _, action := range t.rules[field] {
		value = action.apply(value)
	}
	return value
}

// apply applies a single transformation action. Actions are validated by
// compile, so it cannot fail.
func (a compiledAction) apply(value string) string {
	switch a.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		// EXAMPLE: "DE*ABC*E1" with value "EVSE:" becomes "EVSE:DE*ABC*E1"
		return a.Value + value

	case "append_string":
		return value + a.Value

	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "replace":
		// EXAMPLE: "DE-ABC-E1" with find "-" and value "*" becomes "DE*ABC*E1"
		if a.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, a.Find, a.Value)

	case "regex_replace":
		return a.re.ReplaceAllString(value, a.Value)

	case "normalize_whitespace":
		return strings.Join(strings.Fields(value), " ")

	case "pad_zeros_to_length":
		n, _ := strconv.Atoi(a.Value)
		return PadLeft(value, n, '0')

	// =========================================================================
	// LOOKUPS AND DEFAULTS
	// =========================================================================

	case "lookup":
		// EXAMPLE: "€" with lookup_table {"€": "EUR"} becomes "EUR"
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement
		}
		return value

	case "lookup_with_default":
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement
		}
		return a.Value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value
		}
		return value
	}

	return value
}

// PadLeft pads a string with a character on the left to reach the target length.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
