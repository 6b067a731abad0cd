// =============================================================================
// Invoice Combiner - Encoding/Delimiter Sniffer
// =============================================================================
//
// Invoice exports arrive from many billing systems with no declared encoding
// and no declared delimiter. This module guesses both from the raw bytes.
//
// DETECTION:
//   1. Strip a UTF-8 byte order mark
//   2. Try the encodings in order: UTF-8, Latin-1, ISO-8859-1, Windows-1252
//   3. For the first encoding that decodes AND whose first 4096 characters
//      yield a consistent delimiter, return that pair
//   4. Otherwise fall back to the first decoding encoding (or UTF-8) and ','
//
// A single-byte encoding only "decodes" when the result contains neither the
// replacement character nor C1 control characters. Without that rule Latin-1
// would accept every byte sequence and DecodeFailure could never happen.
//
// =============================================================================

package sniffer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding names one of the supported character encodings.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	Latin1      Encoding = "latin1"
	ISO88591    Encoding = "iso-8859-1"
	Windows1252 Encoding = "cp1252"
)

// Encodings is the order in which encodings are tried.
var Encodings = []Encoding{UTF8, Latin1, ISO88591, Windows1252}

// Delimiters are the candidate field separators, in tie-break order.
var Delimiters = []rune{',', ';', '\t'}

// SampleSize is the number of decoded characters inspected by the sniffer.
const SampleSize = 4096

// minConsistency is the share of sample lines that must agree on the
// delimiter count.
const minConsistency = 0.9

var (
	// ErrDecode is returned when no supported encoding decodes the input.
	ErrDecode = errors.New("no supported encoding could decode the file")

	// ErrSniff is returned when no candidate delimiter is consistent.
	ErrSniff = errors.New("could not determine delimiter")

	// ErrUnknownEncoding is returned by Decode for names outside Encodings.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// DIALECT
// =============================================================================

// Dialect is the detected encoding and delimiter of a delimited text file.
type Dialect struct {
	Encoding  Encoding
	Delimiter rune

	// Sniffed is false when the dialect is the fallback pair.
	Sniffed bool
}

// String renders the dialect for logs.
func (d Dialect) String() string {
	return fmt.Sprintf("%s/%q", d.Encoding, d.Delimiter)
}

// =============================================================================
// DETECTION
// =============================================================================

// Detect guesses the encoding and delimiter of data.
func Detect(data []byte) (Dialect, error) {
	data = StripBOM(data)

	var fallback Encoding
	for _, enc := range Encodings {
		text, err := Decode(data, enc)
		if err != nil {
			continue
		}
		if fallback == "" {
			fallback = enc
		}

		delim, err := Sniff(head(text, SampleSize))
		if err != nil {
			continue
		}
		return Dialect{Encoding: enc, Delimiter: delim, Sniffed: true}, nil
	}

	if fallback == "" {
		return Dialect{}, ErrDecode
	}
	return Dialect{Encoding: fallback, Delimiter: ','}, nil
}

// StripBOM removes a leading UTF-8 byte order mark.
func StripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// Decode converts data from enc to a Go string, failing when the bytes are not
// valid in that encoding.
func Decode(data []byte, enc Encoding) (string, error) {
	data = StripBOM(data)

	if enc == UTF8 {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid %s", ErrDecode, enc)
		}
		return string(data), nil
	}

	cm, err := charmapFor(enc)
	if err != nil {
		return "", err
	}

	out, _, err := transform.Bytes(cm.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecode, enc, err)
	}

	text := string(out)
	if i := strings.IndexFunc(text, undecodable); i >= 0 {
		return "", fmt.Errorf("%w: %s: undefined byte at offset %d", ErrDecode, enc, i)
	}
	return text, nil
}

func charmapFor(enc Encoding) (encoding.Encoding, error) {
	switch enc {
	case Latin1, ISO88591:
		return charmap.ISO8859_1, nil
	case Windows1252:
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, enc)
	}
}

func undecodable(r rune) bool {
	return r == utf8.RuneError || (r >= 0x80 && r <= 0x9F)
}

func head(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

// =============================================================================
// DELIMITER SNIFFING
// =============================================================================

// Sniff picks the candidate delimiter whose per-line count is most consistent
// across the sample. A trailing partial line is ignored unless it is the only
// line.
func Sniff(sample string) (rune, error) {
	lines := sampleLines(sample)
	if len(lines) == 0 {
		return 0, ErrSniff
	}

	best := rune(0)
	bestConsistency, bestMode := 0.0, 0
	for _, d := range Delimiters {
		counts := make([]int, len(lines))
		for i, line := range lines {
			counts[i] = countOutsideQuotes(line, d)
		}

		m, freq := mode(counts)
		if m == 0 {
			continue
		}
		consistency := float64(freq) / float64(len(lines))
		if consistency > bestConsistency || (consistency == bestConsistency && m > bestMode) {
			best, bestConsistency, bestMode = d, consistency, m
		}
	}

	if best == 0 || bestConsistency < minConsistency {
		return 0, ErrSniff
	}
	return best, nil
}

func sampleLines(sample string) []string {
	sample = strings.ReplaceAll(sample, "\r\n", "\n")
	sample = strings.ReplaceAll(sample, "\r", "\n")

	parts := strings.Split(sample, "\n")
	if len(parts) > 1 {
		// The last element is either empty or a line cut off by the sample limit.
		parts = parts[:len(parts)-1]
	}

	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// mode returns the most frequent value and its frequency; ties go to the
// larger value.
func mode(values []int) (int, int) {
	freq := make(map[int]int, len(values))
	for _, v := range values {
		freq[v]++
	}
	m, f := 0, 0
	for v, c := range freq {
		if c > f || (c == f && v > m) {
			m, f = v, c
		}
	}
	return m, f
}
