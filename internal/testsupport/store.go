package testsupport

import (
	"context"
	"testing"

	"ancile/internal/config"
	"ancile/internal/news"
	"ancile/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewArticle persists a rewritten article for tests, recording its
// fingerprint first so the foreign key holds.
func NewArticle(t testing.TB, st *store.Store, title, fingerprint string) *news.Article {
	t.Helper()

	ctx := context.Background()
	if _, err := st.RecordFingerprint(ctx, fingerprint, "https://example.com/"+fingerprint); err != nil {
		t.Fatalf("store.RecordFingerprint: %v", err)
	}
	article := &news.Article{
		SourceFingerprint: fingerprint,
		Category:          news.CategoryGeopolitics,
		Title:             title,
		Body:              "Body text for " + title,
		SourceURL:         "https://example.com/" + fingerprint,
		SourceName:        "Example Wire",
		WordCount:         4,
		RelevanceScore:    0.9,
		Status:            news.StatusRewritten,
	}
	if err := st.CreateArticle(ctx, article); err != nil {
		t.Fatalf("store.CreateArticle: %v", err)
	}
	return article
}
