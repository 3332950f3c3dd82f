// Package relevance scores raw items against configured per-category keyword
// tables. Scoring is pure: the same item and configuration always produce the
// same score and category.
package relevance

import (
	"strings"

	"ancile/internal/config"
	"ancile/internal/news"
	"ancile/internal/textutil"
)

// Result is the outcome of scoring one raw item.
type Result struct {
	Score    float64
	Category news.Category
	Matched  []string
}

type categoryTable struct {
	name     news.Category
	keywords []config.Keyword
}

// Filter evaluates items against the configured keyword tables.
type Filter struct {
	categories []categoryTable
	threshold  float64
	ceiling    float64
}

// New builds a filter from configuration. Category declaration order is
// preserved; it breaks ties when two categories score equally.
func New(cfg config.Relevance) *Filter {
	filter := &Filter{
		threshold: cfg.Threshold,
		ceiling:   cfg.ScoreCeiling,
	}
	for _, category := range cfg.Categories {
		name, ok := news.ParseCategory(category.Name)
		if !ok {
			continue
		}
		filter.categories = append(filter.categories, categoryTable{
			name:     name,
			keywords: category.Keywords,
		})
	}
	return filter
}

// Score computes the relevance of an item in [0,1] and resolves its category.
// The category with the highest weighted keyword sum wins; when nothing
// matches, the item's hint is kept (falling back to "other").
func (f *Filter) Score(item news.RawItem) Result {
	text := strings.ToLower(item.Title + " " + item.BodyExcerpt)

	best := Result{Category: fallbackCategory(item)}
	bestRaw := 0.0
	for _, category := range f.categories {
		raw, matched := scoreCategory(text, category.keywords)
		if raw > bestRaw {
			bestRaw = raw
			best.Category = category.name
			best.Matched = matched
		}
	}

	if bestRaw > 0 {
		score := bestRaw / f.ceiling
		if score > 1 {
			score = 1
		}
		best.Score = score
	}
	return best
}

// Relevant reports whether an item's score clears the configured threshold.
func (f *Filter) Relevant(result Result) bool {
	return result.Score >= f.threshold
}

// Threshold returns the configured minimum score.
func (f *Filter) Threshold() float64 {
	return f.threshold
}

func scoreCategory(text string, keywords []config.Keyword) (float64, []string) {
	var (
		sum     float64
		matched []string
	)
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		term := strings.ToLower(strings.TrimSpace(keyword.Term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		if textutil.ContainsFold(text, term) {
			sum += keyword.Weight
			matched = append(matched, keyword.Term)
		}
	}
	return sum, matched
}

func fallbackCategory(item news.RawItem) news.Category {
	if item.CategoryHint != "" {
		if category, ok := news.ParseCategory(string(item.CategoryHint)); ok {
			return category
		}
	}
	return news.CategoryOther
}
