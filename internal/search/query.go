package search

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// queryTokenRegex matches alphanumeric token runs.
var queryTokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Query is an immutable per-request value object holding the raw text and
// its normalized token form. Dense and sparse representations are computed
// by the engine's encoders at dispatch time.
type Query struct {
	Raw        string
	Normalized string
	Tokens     []string
}

// normalizer strips diacritics and recomposes, so "Café" and "Cafe"
// tokenize identically.
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NewQuery builds a Query from raw text.
func NewQuery(raw string) Query {
	trimmed := strings.TrimSpace(raw)
	normalized := normalizeText(trimmed)
	return Query{
		Raw:        trimmed,
		Normalized: normalized,
		Tokens:     queryTokenRegex.FindAllString(normalized, -1),
	}
}

// IsEmpty reports whether the query carries no searchable text.
func (q Query) IsEmpty() bool {
	return len(q.Tokens) == 0
}

// TokenCount returns the number of normalized tokens.
func (q Query) TokenCount() int {
	return len(q.Tokens)
}

// normalizeText lowercases and folds away combining marks.
func normalizeText(s string) string {
	folded, _, err := transform.String(normalizer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// formatFloat renders a float for error details.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
