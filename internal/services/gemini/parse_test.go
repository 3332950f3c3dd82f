package gemini

import (
	"strings"
	"testing"
)

func TestParseDraftWithMetadata(t *testing.T) {
	completion := strings.Join([]string{
		"# Sanctions Regime Expands to Shipping Insurers",
		"",
		"The latest measures extend coverage restrictions to maritime insurers.",
		"",
		"Analysts expect secondary effects across regional markets.",
		"",
		"---METADATA---",
		"SUMMARY: Expanded sanctions now cover maritime insurance providers.",
		`KEYWORDS: ["sanctions", "shipping", "insurance"]`,
		"CAPTION: New sanctions reach the maritime insurance sector.",
		"Follow for further analysis.",
		"---END_METADATA---",
	}, "\n")

	draft := parseDraft(completion)
	if draft.Title != "Sanctions Regime Expands to Shipping Insurers" {
		t.Errorf("title = %q", draft.Title)
	}
	if strings.Contains(draft.Body, "METADATA") {
		t.Error("metadata leaked into body")
	}
	if draft.Summary != "Expanded sanctions now cover maritime insurance providers." {
		t.Errorf("summary = %q", draft.Summary)
	}
	if len(draft.Keywords) != 3 || draft.Keywords[0] != "sanctions" {
		t.Errorf("keywords = %v", draft.Keywords)
	}
	if !strings.Contains(draft.Caption, "maritime insurance sector") {
		t.Errorf("caption = %q", draft.Caption)
	}
	if !strings.Contains(draft.Caption, "Follow for further analysis.") {
		t.Errorf("multi-line caption lost continuation: %q", draft.Caption)
	}
}

func TestParseDraftWithoutMetadata(t *testing.T) {
	completion := "# Quiet Session on Bond Desks\n\nTrading volumes stayed thin through the session.\n\nDealers cited the holiday calendar."

	draft := parseDraft(completion)
	if draft.Title != "Quiet Session on Bond Desks" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.Summary != "Trading volumes stayed thin through the session." {
		t.Errorf("summary fallback = %q", draft.Summary)
	}
	if len(draft.Keywords) != 0 {
		t.Errorf("keywords = %v, want none", draft.Keywords)
	}
}

func TestParseDraftUntitled(t *testing.T) {
	draft := parseDraft("\n\nBody only, no heading line follows.")
	if draft.Title == "" {
		t.Error("expected a fallback title")
	}
}

func TestParseKeywordListVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`["a", "b"]`, 2},
		{`a, b, c`, 3},
		{`[]`, 0},
		{`  `, 0},
		{`['single']`, 1},
	}
	for _, tt := range tests {
		if got := parseKeywordList(tt.raw); len(got) != tt.want {
			t.Errorf("parseKeywordList(%q) = %v, want %d entries", tt.raw, got, tt.want)
		}
	}
}
