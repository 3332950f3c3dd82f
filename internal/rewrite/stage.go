// Package rewrite turns filtered raw items into publishable articles. The
// stage owns retry policy for the rewriter: transient and validation failures
// are retried with exponential backoff, rate limits pause longer, and
// configuration errors abort immediately.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ancile/internal/config"
	"ancile/internal/logging"
	"ancile/internal/news"
	"ancile/internal/services"
	"ancile/internal/textutil"
)

// Rewriter produces a draft article from a raw item. Implementations tag
// failures with the services sentinel errors so the stage can classify them.
type Rewriter interface {
	Generate(ctx context.Context, item news.RawItem, category news.Category) (news.Draft, error)
}

// Stage runs the rewrite loop for a single item at a time. It is safe for
// concurrent use; the pacer serializes upstream requests across goroutines.
type Stage struct {
	rewriter Rewriter
	cfg      config.Rewrite
	logger   *slog.Logger
	pacer    *pacer
	sleep    func(context.Context, time.Duration) error
}

// NewStage wires a rewriter with the configured retry and validation policy.
func NewStage(rewriter Rewriter, cfg config.Rewrite, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		rewriter: rewriter,
		cfg:      cfg,
		logger:   logger.With(logging.String("component", "rewrite")),
		pacer:    newPacer(cfg.RequestsPerMinute),
		sleep:    sleepContext,
	}
}

// Rewrite produces a validated article for one raw item. The returned article
// carries StatusRewritten; on exhausted retries or an aborting error the
// article is nil and the error describes the final failure.
func (s *Stage) Rewrite(ctx context.Context, item news.RawItem, category news.Category, fingerprint string, score float64) (*news.Article, error) {
	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.pacer.wait(ctx); err != nil {
			return nil, err
		}

		draft, err := s.rewriter.Generate(ctx, item, category)
		if err == nil {
			err = s.validateDraft(draft)
			if err == nil {
				return s.buildArticle(item, category, fingerprint, score, draft), nil
			}
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if services.IsFatal(err) || errors.Is(err, services.ErrConfiguration) {
			return nil, err
		}

		delay := services.BackoffDelay(
			time.Duration(s.cfg.BackoffBaseSeconds)*time.Second,
			time.Duration(s.cfg.BackoffCapSeconds)*time.Second,
			attempt,
		)
		if services.IsRateLimited(err) {
			delay = time.Duration(s.cfg.RateLimitPauseSeconds) * time.Second
		}
		s.logger.Warn("rewrite attempt failed",
			logging.String("title", item.Title),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("retry_in", delay),
			logging.Error(err))

		if attempt == maxAttempts {
			break
		}
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("rewrite %q: %d attempts exhausted: %w", item.Title, maxAttempts, lastErr)
}

func (s *Stage) buildArticle(item news.RawItem, category news.Category, fingerprint string, score float64, draft news.Draft) *news.Article {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = strings.TrimSpace(item.Title)
	}
	return &news.Article{
		SourceFingerprint: fingerprint,
		Category:          category,
		Title:             title,
		Body:              draft.Body,
		Summary:           draft.Summary,
		Caption:           draft.Caption,
		Keywords:          draft.Keywords,
		SourceURL:         item.ExternalURL,
		SourceName:        item.SourceName,
		WordCount:         textutil.CountWords(draft.Body),
		RelevanceScore:    score,
		Status:            news.StatusRewritten,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
