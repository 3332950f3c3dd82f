package relevance_test

import (
	"testing"

	"ancile/internal/config"
	"ancile/internal/news"
	"ancile/internal/relevance"
)

func testConfig() config.Relevance {
	return config.Relevance{
		Threshold:    0.5,
		ScoreCeiling: 2.0,
		Categories: []config.CategoryKeywords{
			{
				Name: "geopolitics",
				Keywords: []config.Keyword{
					{Term: "sanctions", Weight: 1.0},
					{Term: "treaty", Weight: 0.8},
				},
			},
			{
				Name: "cyber",
				Keywords: []config.Keyword{
					{Term: "ransomware", Weight: 1.2},
					{Term: "breach", Weight: 0.8},
				},
			},
		},
	}
}

func TestScorePicksHighestCategory(t *testing.T) {
	filter := relevance.New(testConfig())
	item := news.RawItem{
		Title:       "Ransomware breach disrupts port operators",
		BodyExcerpt: "Attackers demanded payment after the breach.",
	}

	result := filter.Score(item)
	if result.Category != news.CategoryCyber {
		t.Errorf("category = %q, want cyber", result.Category)
	}
	// ransomware (1.2) + breach (0.8) = 2.0 against a ceiling of 2.0.
	if result.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.00", result.Score)
	}
	if !filter.Relevant(result) {
		t.Error("item above threshold reported as irrelevant")
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	filter := relevance.New(testConfig())
	item := news.RawItem{Title: "Sanctions announced after treaty collapse"}

	first := filter.Score(item)
	for i := 0; i < 5; i++ {
		if got := filter.Score(item); got.Score != first.Score || got.Category != first.Category {
			t.Fatalf("scoring not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestRepeatedKeywordCountsOnce(t *testing.T) {
	filter := relevance.New(testConfig())
	once := filter.Score(news.RawItem{Title: "sanctions imposed"})
	many := filter.Score(news.RawItem{Title: "sanctions sanctions sanctions imposed"})
	if once.Score != many.Score {
		t.Errorf("repeated keyword changed score: %.2f vs %.2f", once.Score, many.Score)
	}
}

func TestZeroMatchesFallsBackToHint(t *testing.T) {
	filter := relevance.New(testConfig())
	item := news.RawItem{
		Title:        "Local bakery wins award",
		CategoryHint: news.CategoryFinance,
	}

	result := filter.Score(item)
	if result.Score != 0 {
		t.Errorf("score = %.2f, want 0", result.Score)
	}
	if result.Category != news.CategoryFinance {
		t.Errorf("category = %q, want hint fallback finance", result.Category)
	}
	if filter.Relevant(result) {
		t.Error("zero-score item must not be relevant")
	}

	noHint := filter.Score(news.RawItem{Title: "Local bakery wins award"})
	if noHint.Category != news.CategoryOther {
		t.Errorf("category without hint = %q, want other", noHint.Category)
	}
}

func TestTieBreaksByDeclarationOrder(t *testing.T) {
	cfg := config.Relevance{
		Threshold:    0.1,
		ScoreCeiling: 1.0,
		Categories: []config.CategoryKeywords{
			{Name: "defense", Keywords: []config.Keyword{{Term: "missile", Weight: 1.0}}},
			{Name: "cyber", Keywords: []config.Keyword{{Term: "missile", Weight: 1.0}}},
		},
	}
	filter := relevance.New(cfg)

	result := filter.Score(news.RawItem{Title: "missile test reported"})
	if result.Category != news.CategoryDefense {
		t.Errorf("tie resolved to %q, want first declared category defense", result.Category)
	}
}

func TestScoreCapsAtOne(t *testing.T) {
	cfg := config.Relevance{
		Threshold:    0.5,
		ScoreCeiling: 1.0,
		Categories: []config.CategoryKeywords{
			{Name: "finance", Keywords: []config.Keyword{
				{Term: "rates", Weight: 2.0},
				{Term: "inflation", Weight: 2.0},
			}},
		},
	}
	filter := relevance.New(cfg)
	result := filter.Score(news.RawItem{Title: "rates climb as inflation persists"})
	if result.Score != 1.0 {
		t.Errorf("score = %.2f, want capped 1.00", result.Score)
	}
}
