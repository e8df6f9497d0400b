package textutil

import (
	"math"
	"strings"
	"unicode"
)

// fingerprint is a term-frequency vector over name tokens.
type fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// tokenize splits a name into comparable terms. Latin words shorter than two
// characters are dropped; each Han, Hiragana or Katakana rune counts as its
// own term because CJK titles have no word separators.
func tokenize(value string) []string {
	value = FoldKey(value)
	var (
		terms []string
		word  strings.Builder
	)
	flush := func() {
		if word.Len() >= 2 {
			terms = append(terms, word.String())
		}
		word.Reset()
	}
	for _, r := range value {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
			flush()
			terms = append(terms, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}

func newFingerprint(value string) *fingerprint {
	terms := tokenize(value)
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

// Similarity returns the cosine similarity of the two names' term vectors,
// in the range [0, 1].
func Similarity(a, b string) float64 {
	fa, fb := newFingerprint(a), newFingerprint(b)
	if fa == nil || fb == nil {
		return 0
	}
	var dot float64
	for token, count := range fa.tokens {
		dot += count * fb.tokens[token]
	}
	return dot / (fa.norm * fb.norm)
}
