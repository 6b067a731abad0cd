package classify

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ginjaninja78/invoice-combiner/internal/table"
)

// length counts characters, not bytes.
func length(s string) float64 {
	return float64(utf8.RuneCountInString(s))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the sample standard deviation (n-1 denominator). It is NaN for
// fewer than two values, so every comparison against it is false.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func lengths(sample []string) []float64 {
	out := make([]float64, len(sample))
	for i, s := range sample {
		out[i] = length(s)
	}
	return out
}

func wordCounts(sample []string) []float64 {
	out := make([]float64, len(sample))
	for i, s := range sample {
		out[i] = float64(len(strings.Fields(s)))
	}
	return out
}

// ratio returns the share of sample values satisfying pred.
func ratio(sample []string, pred func(string) bool) float64 {
	if len(sample) == 0 {
		return 0
	}
	n := 0
	for _, s := range sample {
		if pred(s) {
			n++
		}
	}
	return float64(n) / float64(len(sample))
}

func matchRatio(sample []string, re *regexp.Regexp) float64 {
	return ratio(sample, re.MatchString)
}

func allNumeric(sample []string) bool {
	for _, s := range sample {
		if !table.IsNumeric(s) {
			return false
		}
	}
	return true
}

// uppercaseRatio returns the share of letters across the sample that are upper case.
func uppercaseRatio(sample []string) float64 {
	var letters, upper int
	for _, s := range sample {
		for _, r := range s {
			if !unicode.IsLetter(r) {
				continue
			}
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func indicator(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}
