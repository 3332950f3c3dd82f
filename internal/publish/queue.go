package publish

import (
	"context"
	"fmt"
	"log/slog"

	"ancile/internal/logging"
	"ancile/internal/news"
	"ancile/internal/store"
)

// Queue enqueues delivery obligations for rewritten articles. Enqueueing is
// idempotent per article and channel, so re-running a pipeline over the same
// article never duplicates work.
type Queue struct {
	store  *store.Store
	logger *slog.Logger
}

// NewQueue returns a queue backed by the given store.
func NewQueue(st *store.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{store: st, logger: logger.With(logging.String("component", "publish-queue"))}
}

// Enqueue creates one pending task per channel for the article. It returns
// the number of tasks actually created; tasks that already exist are left
// untouched regardless of their state.
func (q *Queue) Enqueue(ctx context.Context, article *news.Article, channels []news.Channel, priority int) (int, error) {
	if article.ID == 0 {
		return 0, fmt.Errorf("enqueue: article has no id")
	}
	created := 0
	for _, channel := range channels {
		inserted, err := q.store.EnqueueTask(ctx, article.ID, channel, priority)
		if err != nil {
			return created, fmt.Errorf("enqueue article %d for %s: %w", article.ID, channel, err)
		}
		if inserted {
			created++
		} else {
			q.logger.Debug("task already enqueued",
				logging.Int64("article_id", article.ID),
				logging.String("channel", string(channel)))
		}
	}
	return created, nil
}
