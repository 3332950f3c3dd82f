package rewrite

import (
	"fmt"

	"ancile/internal/news"
	"ancile/internal/services"
	"ancile/internal/textutil"
)

// validateDraft enforces the house style before a draft becomes an article:
// the body must land inside the configured word band, avoid banned phrasing,
// and use the institutional replacement for every mapped raw term.
func (s *Stage) validateDraft(draft news.Draft) error {
	words := textutil.CountWords(draft.Body)
	if words == 0 {
		return services.Wrap(services.ErrValidation, "rewrite", "validate", "draft has no body", nil)
	}
	if s.cfg.MinWords > 0 && words < s.cfg.MinWords {
		return services.Wrap(services.ErrValidation, "rewrite", "validate",
			fmt.Sprintf("draft is %d words, need at least %d", words, s.cfg.MinWords), nil)
	}
	if s.cfg.MaxWords > 0 && words > s.cfg.MaxWords {
		return services.Wrap(services.ErrValidation, "rewrite", "validate",
			fmt.Sprintf("draft is %d words, limit is %d", words, s.cfg.MaxWords), nil)
	}
	for _, term := range s.cfg.BannedTerms {
		if textutil.ContainsFold(draft.Body, term) || textutil.ContainsFold(draft.Title, term) {
			return services.Wrap(services.ErrValidation, "rewrite", "validate",
				fmt.Sprintf("draft uses banned term %q", term), nil)
		}
	}
	for _, mapping := range s.cfg.Terminology {
		if textutil.ContainsFold(draft.Body, mapping.Raw) {
			return services.Wrap(services.ErrValidation, "rewrite", "validate",
				fmt.Sprintf("draft uses %q instead of %q", mapping.Raw, mapping.Replacement), nil)
		}
	}
	return nil
}
