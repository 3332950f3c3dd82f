// Package textutil provides small text helpers shared by the rewrite and
// fingerprint packages.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// NormalizeTitle lowercases a title and strips punctuation so near-identical
// headlines hash to the same value.
func NormalizeTitle(title string) string {
	var builder strings.Builder
	builder.Grow(len(title))
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				builder.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(builder.String(), " ")
}

// TruncateBytes shortens text to at most limit bytes, cutting on a rune
// boundary so the result stays valid UTF-8.
func TruncateBytes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// ContainsFold reports whether text contains term ignoring case.
func ContainsFold(text, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
