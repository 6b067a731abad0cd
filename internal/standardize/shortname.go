package standardize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ginjaninja78/invoice-combiner/internal/classify"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

const shortNameMaxLen = 10

var trailingClause = regexp.MustCompile(`,\s*[\p{L}\p{N}_]+$`)

// ShortName derives an abbreviated company name from a full one.
//
//	"International Business Machines Corp" -> "IBM"
//	"Acme Corporation, Inc"                -> "Acme"
//	"Volkswagenwerk"                       -> "Volkswagen"
//
// Legal-form suffixes and a trailing ", X" clause are removed first. A name
// of two or more words becomes its upper-case initials; otherwise the name is
// kept if it has at most 10 characters and truncated to 10 if not. A blank
// name yields types.Unknown.
func ShortName(full string) string {
	trimmed := strings.TrimSpace(full)
	if trimmed == "" {
		return types.Unknown
	}

	cleaned := cleanName(trimmed)
	if cleaned == "" {
		// The name was nothing but suffixes.
		cleaned = trimmed
	}

	if words := strings.Fields(cleaned); len(words) > 1 {
		if acr := acronym(words); utf8.RuneCountInString(acr) >= 2 {
			return acr
		}
	}

	if utf8.RuneCountInString(cleaned) <= shortNameMaxLen {
		return cleaned
	}
	return string([]rune(cleaned)[:shortNameMaxLen])
}

// cleanName strips suffixes until nothing changes, so its result is stable
// under another pass.
func cleanName(s string) string {
	for {
		next := trailingClause.ReplaceAllString(s, "")
		next = classify.StripCorporateSuffixes(next)
		next = strings.Join(strings.Fields(next), " ")
		next = strings.TrimRightFunc(next, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSpace(r)
		})
		if next == s {
			return s
		}
		s = next
	}
}

func acronym(words []string) string {
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}
	return b.String()
}
