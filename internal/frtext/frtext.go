// Package frtext normalizes French prose for matching and comparison.
// All validators that compare agent-written case text against generated
// targets go through these helpers so that accents, casing, and spacing
// never cause spurious mismatches.
package frtext

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespace = regexp.MustCompile(`\s+`)
	wordRe     = regexp.MustCompile(`[a-z0-9àâçéèêëîïôûùüÿñæœ]+`)
)

// NormalizeText canonicalizes line endings, collapses runs of spaces and
// tabs, and squeezes three or more consecutive newlines down to a single
// blank line.
func NormalizeText(value string) string {
	text := strings.ReplaceAll(value, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// NormalizeKey lowercases the text and strips diacritics, yielding a stable
// key for loose matching ("Hélène" and "helene" normalize identically).
func NormalizeKey(value string) string {
	decomposed := norm.NFD.String(strings.ToLower(NormalizeText(value)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanName reduces a personal name to lowercase ASCII word tokens separated
// by single spaces. Empty output means the name carried no usable letters.
func CleanName(value string) string {
	cleaned := nonAlnum.ReplaceAllString(NormalizeKey(value), " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(cleaned, " "))
}

// Tokens splits text into normalized word tokens in document order,
// dropping single-character noise.
func Tokens(text string) []string {
	raw := wordRe.FindAllString(NormalizeKey(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) > 1 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Shingles returns the set of n-word shingles of text. Texts shorter than
// n words fall back to individual tokens so that very short submissions
// still compare meaningfully.
func Shingles(text string, n int) map[string]struct{} {
	if n < 1 {
		n = 1
	}
	tokens := Tokens(text)
	set := make(map[string]struct{})
	if len(tokens) < n {
		for _, tok := range tokens {
			set[tok] = struct{}{}
		}
		return set
	}
	for i := 0; i+n <= len(tokens); i++ {
		set[strings.Join(tokens[i:i+n], " ")] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity of the n-word shingle sets of the
// two texts. Either side empty yields 0.
func Jaccard(left, right string, n int) float64 {
	ls := Shingles(left, n)
	rs := Shingles(right, n)
	if len(ls) == 0 || len(rs) == 0 {
		return 0
	}
	intersection := 0
	for s := range ls {
		if _, ok := rs[s]; ok {
			intersection++
		}
	}
	union := len(ls) + len(rs) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
