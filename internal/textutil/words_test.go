package textutil_test

import (
	"testing"
	"unicode/utf8"

	"ancile/internal/textutil"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"two words", 2},
		{"  spaced   out\n\twords ", 3},
	}
	for _, tt := range tests {
		if got := textutil.CountWords(tt.text); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Breaking: Markets Fall!", "breaking markets fall"},
		{"  Sanctions   Expanded  ", "sanctions expanded"},
		{"NATO's 2024 Summit", "natos 2024 summit"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := textutil.NormalizeTitle(tt.title); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	if !textutil.ContainsFold("Major BOMBSHELL report", "bombshell") {
		t.Error("expected case-insensitive match")
	}
	if textutil.ContainsFold("quiet day in markets", "bombshell") {
		t.Error("unexpected match")
	}
	if textutil.ContainsFold("anything", "") {
		t.Error("empty term must not match")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := textutil.NewTitleVector("Central bank raises interest rates amid inflation")
	b := textutil.NewTitleVector("Central bank raises rates as inflation climbs")
	c := textutil.NewTitleVector("Navy deploys carrier group to the Pacific")

	if sim := textutil.Cosine(a, b); sim < 0.5 {
		t.Errorf("related headlines scored %.2f, want >= 0.5", sim)
	}
	if sim := textutil.Cosine(a, c); sim > 0.2 {
		t.Errorf("unrelated headlines scored %.2f, want <= 0.2", sim)
	}
	if sim := textutil.Cosine(a, a); sim < 0.999 {
		t.Errorf("identical headlines scored %.2f, want 1.0", sim)
	}
}

func TestCosineNilVectors(t *testing.T) {
	if textutil.NewTitleVector("a b") != nil {
		t.Error("short tokens should produce a nil vector")
	}
	if sim := textutil.Cosine(nil, textutil.NewTitleVector("real headline here")); sim != 0 {
		t.Errorf("nil vector similarity = %.2f, want 0", sim)
	}
}

func TestTruncateBytes(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"short", 300, "short"},
		{"exact", 5, "exact"},
		{"abcdef", 3, "abc"},
		{"", 10, ""},
		{"anything", 0, ""},
		{"héllo", 2, "h"},
		{"日本語", 7, "日本"},
	}
	for _, tt := range tests {
		got := textutil.TruncateBytes(tt.text, tt.limit)
		if got != tt.want {
			t.Errorf("TruncateBytes(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("TruncateBytes(%q, %d) produced invalid UTF-8", tt.text, tt.limit)
		}
	}
}
