package classify

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

// =============================================================================
// SCORERS
// =============================================================================
//
// Each scorer looks at one column in isolation and returns a score, or
// ok=false when the column is not a candidate for the role at all.

// Scorer computes the content score of a column for one role.
type Scorer interface {
	Score(t *table.Table, col int) (score float64, ok bool)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(t *table.Table, col int) (float64, bool)

// Score calls f.
func (f ScorerFunc) Score(t *table.Table, col int) (float64, bool) { return f(t, col) }

const (
	defaultSampleSize  = 10
	currencySampleSize = 20
)

// CurrencyCodes are the ISO codes recognised in currency columns.
var CurrencyCodes = []string{"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY", "INR"}

// CurrencySymbols are the symbols recognised in currency columns.
var CurrencySymbols = []string{"$", "€", "£", "¥", "₹", "₽", "₩"}

// CorporateSuffixes are the legal-form keywords, matched case-insensitively
// as whole words.
var CorporateSuffixes = []string{"Inc", "LLC", "Ltd", "GmbH", "Corp", "Company", "Co", "Corporation", "Limited", "Group"}

var (
	identifierShape = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)
	sessionChars    = regexp.MustCompile(`[a-z0-9\-]+`)
	sessionShape    = regexp.MustCompile(`^[a-z0-9\-]+$`)
	hasHyphen       = func(s string) bool { return strings.Contains(s, "-") }
)

// IsWordRune reports whether r belongs to a word: a letter or digit in any
// script, or an underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isCorporateSuffix(word string) bool {
	return slices.ContainsFunc(CorporateSuffixes, func(suffix string) bool {
		return strings.EqualFold(word, suffix)
	})
}

// HasCorporateSuffix reports whether s contains a legal-form keyword as a
// whole word. "Déco" does not contain "co".
func HasCorporateSuffix(s string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool { return !IsWordRune(r) })
	return slices.ContainsFunc(words, isCorporateSuffix)
}

// StripCorporateSuffixes removes every legal-form keyword that stands as a
// whole word and keeps the separators around it.
func StripCorporateSuffixes(s string) string {
	var b strings.Builder
	start := -1
	endWord := func(end int) {
		if w := s[start:end]; !isCorporateSuffix(w) {
			b.WriteString(w)
		}
		start = -1
	}
	for i, r := range s {
		if IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			endWord(i)
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		endWord(len(s))
	}
	return b.String()
}

// IsCurrencyCode reports whether s is one of CurrencyCodes, ignoring case.
func IsCurrencyCode(s string) bool {
	return slices.Contains(CurrencyCodes, strings.ToUpper(strings.TrimSpace(s)))
}

// HasCurrencySymbol reports whether s contains one of CurrencySymbols.
func HasCurrencySymbol(s string) bool {
	for _, sym := range CurrencySymbols {
		if strings.Contains(s, sym) {
			return true
		}
	}
	return false
}

// IdentifierScorer scores charge point identifiers: short, uniform,
// alphanumeric tokens with separators.
type IdentifierScorer struct{ SampleSize int }

func (s IdentifierScorer) Score(t *table.Table, col int) (float64, bool) {
	sample := t.Sample(col, sampleSize(s.SampleSize, defaultSampleSize))
	if allNumeric(sample) {
		return 0, false
	}

	lens := lengths(sample)
	avg := mean(lens)

	score := 3*indicator(matchRatio(sample, identifierShape) > 0.5) +
		2*indicator(avg >= 4 && avg <= 20) +
		2*indicator(sampleStd(lens) < 2)
	return score, true
}

// TransactionIDScorer scores session identifiers: long lower-case tokens,
// usually hyphenated.
type TransactionIDScorer struct{ SampleSize int }

func (s TransactionIDScorer) Score(t *table.Table, col int) (float64, bool) {
	sample := t.Sample(col, sampleSize(s.SampleSize, defaultSampleSize))

	shortNumeric := true
	for _, v := range sample {
		if !table.IsNumeric(v) || length(v) >= 6 {
			shortNumeric = false
			break
		}
	}
	if shortNumeric {
		return 0, false
	}

	lowerShape := func(v string) bool { return sessionShape.MatchString(strings.ToLower(v)) }

	score := 2*indicator(matchRatio(sample, sessionChars) > 0.8) +
		3*indicator(ratio(sample, hasHyphen) > 0.5) +
		3*indicator(mean(lengths(sample)) > 10) +
		2*indicator(ratio(sample, lowerShape) > 0.7)
	return score, true
}

// CurrencyScorer counts currency codes and symbols in text columns.
type CurrencyScorer struct{ SampleSize int }

func (s CurrencyScorer) Score(t *table.Table, col int) (float64, bool) {
	if t.IsNumericTyped(col) {
		return 0, false
	}
	sample := t.Sample(col, sampleSize(s.SampleSize, currencySampleSize))

	var codes, symbols float64
	for _, v := range sample {
		codes += indicator(IsCurrencyCode(v))
		symbols += indicator(HasCurrencySymbol(v))
	}
	avg := mean(lengths(sample))

	return 2*codes + 2*symbols + 2*indicator(avg >= 1 && avg <= 4), true
}

// PriceScorer scores numeric columns by positivity, fractional parts and a
// plausible magnitude. It reads the whole column, not a sample.
type PriceScorer struct{}

func (PriceScorer) Score(t *table.Table, col int) (float64, bool) {
	if !t.IsNumericColumn(col) {
		return 0, false
	}

	var values []float64
	for _, v := range t.Column(col) {
		if f, ok := table.ParseNumber(v); ok {
			values = append(values, f)
		}
	}
	missing := t.Len() - len(values)
	if float64(missing) > 0.7*float64(t.Len()) || len(values) == 0 {
		return 0, false
	}

	var positive, fractional float64
	for _, v := range values {
		positive += indicator(v > 0)
		fractional += indicator(math.Mod(v, 1) != 0)
	}
	n := float64(len(values))
	m := mean(values)

	return 2*positive/n + 2*fractional/n + indicator(m >= 0.1 && m <= 1_000_000), true
}

// CompanyFullNameScorer scores long, multi-word names that often carry a
// legal-form suffix.
type CompanyFullNameScorer struct{ SampleSize int }

func (s CompanyFullNameScorer) Score(t *table.Table, col int) (float64, bool) {
	sample := t.Sample(col, sampleSize(s.SampleSize, defaultSampleSize))
	if allNumeric(sample) {
		return 0, false
	}

	lens := lengths(sample)

	score := 2*indicator(mean(lens) > 10) +
		2*indicator(mean(wordCounts(sample)) >= 2) +
		3*indicator(ratio(sample, HasCorporateSuffix) > 0.3) +
		1*indicator(uppercaseRatio(sample) < 0.5) +
		1*indicator(sampleStd(lens) > 2)
	return score, true
}

// CompanyShortNameScorer scores short single-token names such as tickers and
// abbreviations, penalising currency codes and legal-form suffixes.
type CompanyShortNameScorer struct{ SampleSize int }

func (s CompanyShortNameScorer) Score(t *table.Table, col int) (float64, bool) {
	sample := t.Sample(col, sampleSize(s.SampleSize, defaultSampleSize))
	if allNumeric(sample) {
		return 0, false
	}

	lens := lengths(sample)
	avg := mean(lens)
	currencyLike := func(v string) bool { return IsCurrencyCode(v) || HasCurrencySymbol(v) }

	score := 2*indicator(avg >= 2 && avg <= 10) +
		2*indicator(mean(wordCounts(sample)) <= 1.5) +
		2*indicator(uppercaseRatio(sample) > 0.6) +
		1*indicator(sampleStd(lens) < 3) -
		3*indicator(ratio(sample, currencyLike) > 0.5) -
		2*indicator(ratio(sample, HasCorporateSuffix) > 0.3)
	return score, true
}

func sampleSize(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
