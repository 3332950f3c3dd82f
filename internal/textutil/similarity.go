package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// TitleVector is a term-frequency vector over a headline, used to catch the
// same story arriving from different outlets under slightly different titles.
type TitleVector struct {
	tokens map[string]float64
	norm   float64
}

// NewTitleVector builds a vector from the headline. Returns nil when the
// headline produces no usable tokens.
func NewTitleVector(title string) *TitleVector {
	tokens := tokenize(title)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &TitleVector{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// tokenize lowercases the text, splits on non-alphanumerics, and drops
// tokens shorter than 3 characters.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Cosine computes the cosine similarity between two title vectors.
// Returns 0 if either vector is nil or has zero norm.
func Cosine(a, b *TitleVector) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	return dot / (a.norm * b.norm)
}
