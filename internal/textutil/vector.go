package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// TermVector is a term-frequency vector used for similarity comparison.
type TermVector struct {
	terms map[string]float64
	norm  float64
}

// NewTermVector builds a vector from text. Returns nil when text has no
// tokens of three or more characters.
func NewTermVector(text string) *TermVector {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	return &TermVector{terms: counts, norm: math.Sqrt(norm)}
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit, dropping tokens shorter than three runes.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < 3 {
			continue
		}
		out = append(out, token)
	}
	return out
}

// Len returns the number of distinct terms.
func (v *TermVector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Similarity returns the cosine similarity of a and b, or 0 when either is
// empty.
func Similarity(a, b *TermVector) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for term, c := range small.terms {
		dot += c * large.terms[term]
	}
	return dot / (a.norm * b.norm)
}
