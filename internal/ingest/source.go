// Package ingest pulls raw items from configured upstream feeds. Each source
// returns a finite, ordered batch per invocation; the pipeline owns dedup and
// filtering, so sources report everything inside the lookback window.
package ingest

import (
	"context"

	"ancile/internal/news"
)

// Source yields one batch of raw items per call. Items keep the upstream
// order; a source error fails the whole batch rather than returning a
// partial one.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]news.RawItem, error)
}
