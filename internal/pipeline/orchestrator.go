// Package pipeline coordinates one end-to-end run: ingest, dedup, relevance
// scoring, rewrite, enqueue, and a dispatcher pass over the publish queue.
// Item failures are contained to the item; only storage loss aborts a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ancile/internal/config"
	"ancile/internal/fingerprint"
	"ancile/internal/ingest"
	"ancile/internal/logging"
	"ancile/internal/news"
	"ancile/internal/notifications"
	"ancile/internal/publish"
	"ancile/internal/relevance"
	"ancile/internal/rewrite"
	"ancile/internal/store"
	"ancile/internal/textutil"
)

// Headlines scoring at or above this cosine similarity against an item
// already seen this run are treated as the same story from another outlet.
const nearDuplicateThreshold = 0.85

// Options tune a single run without touching persisted configuration.
type Options struct {
	// DryRun scores and reports items without writing to the store or
	// contacting the rewriter and publishers.
	DryRun bool
	// MaxArticles overrides pipeline.max_articles_per_run when positive.
	MaxArticles int
}

// Orchestrator wires the stages together and owns run-level policy: the
// article quota, the run deadline, and worker fan-out.
type Orchestrator struct {
	cfg        *config.Config
	store      *store.Store
	sources    []ingest.Source
	filter     *relevance.Filter
	stage      *rewrite.Stage
	queue      *publish.Queue
	dispatcher *publish.Dispatcher
	notifier   notifications.Service
	logger     *slog.Logger
}

// New assembles an orchestrator from already-constructed stages.
func New(
	cfg *config.Config,
	st *store.Store,
	sources []ingest.Source,
	filter *relevance.Filter,
	stage *rewrite.Stage,
	queue *publish.Queue,
	dispatcher *publish.Dispatcher,
	notifier notifications.Service,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		sources:    sources,
		filter:     filter,
		stage:      stage,
		queue:      queue,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger.With(logging.String("component", "pipeline")),
	}
}

// Run executes one pipeline pass and returns its report. The report is valid
// even when an error is returned; counts cover the work finished before the
// failure.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString()[:8],
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
		Delivered: make(map[news.Channel]int),
		Failed:    make(map[news.Channel]int),
	}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	logger := o.logger.With(logging.String("run_id", report.RunID))

	if err := o.store.Ping(ctx); err != nil {
		return report, fmt.Errorf("run %s: store unavailable: %w", report.RunID, err)
	}

	// The run deadline gates new work only. An item that already started a
	// stage finishes it on the parent context so partial work is not torn
	// down mid-call; per-call HTTP timeouts still bound each external call.
	runCtx := ctx
	if timeout := o.cfg.Pipeline.RunTimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	items := o.ingestAll(runCtx, logger, report)
	logger.Info("ingest complete",
		logging.Int("items", len(items)),
		logging.Int("source_errors", report.SourceErrors))

	if err := o.notifier.NotifyRunStarted(runCtx, report.RunID, len(items)); err != nil {
		logger.Warn("run start notification failed", logging.Error(err))
	}

	if err := o.processItems(runCtx, ctx, logger, report, items, opts); err != nil {
		o.notifyError(ctx, logger, err)
		return report, err
	}

	if !opts.DryRun {
		drain, err := o.dispatcher.Drain(runCtx)
		report.Delivered = drain.Delivered
		report.Failed = drain.Failed
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			o.notifyError(ctx, logger, err)
			return report, fmt.Errorf("run %s: %w", report.RunID, err)
		}
	}

	logger.Info("run complete",
		logging.Int("ingested", report.Ingested),
		logging.Int("deduplicated", report.Deduplicated),
		logging.Int("filtered_out", report.FilteredOut),
		logging.Int("rewritten", report.Rewritten),
		logging.Int("rewrite_failed", report.RewriteFailed),
		logging.Int("delivered", report.DeliveredTotal()),
		logging.Int("delivery_failures", report.FailedTotal()),
		logging.Bool("dry_run", opts.DryRun))

	published := report.DeliveredTotal()
	failed := report.RewriteFailed + report.FailedTotal()
	if err := o.notifier.NotifyRunCompleted(ctx, report.RunID, published, failed, time.Since(report.StartedAt)); err != nil {
		logger.Warn("run completion notification failed", logging.Error(err))
	}
	return report, nil
}

// ingestAll fetches every configured source. A failing source is logged and
// counted; the run continues with the sources that answered.
func (o *Orchestrator) ingestAll(ctx context.Context, logger *slog.Logger, report *RunReport) []news.RawItem {
	var items []news.RawItem
	for _, source := range o.sources {
		if ctx.Err() != nil {
			break
		}
		batch, err := source.Fetch(ctx)
		if err != nil {
			report.SourceErrors++
			logger.Warn("source fetch failed",
				logging.String("source", source.Name()),
				logging.Error(err))
			continue
		}
		items = append(items, batch...)
	}
	report.Ingested = len(items)
	return items
}

// processItems fans items out to workers, bounded by the configured
// concurrency and the per-run article quota. Quota slots are reserved before
// an item touches the store so unprocessed items stay eligible for the next
// run. gateCtx carries the run deadline and controls starting new items;
// started items run on workCtx.
func (o *Orchestrator) processItems(gateCtx, workCtx context.Context, logger *slog.Logger, report *RunReport, items []news.RawItem, opts Options) error {
	quota := o.cfg.Pipeline.MaxArticlesPerRun
	if opts.MaxArticles > 0 {
		quota = opts.MaxArticles
	}
	concurrency := o.cfg.Pipeline.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	slots := newQuota(quota)
	titles := &titleIndex{}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, item := range items {
		if gateCtx.Err() != nil {
			mu.Lock()
			report.DeadlineSkipped += len(items) - i
			mu.Unlock()
			break
		}
		if !slots.acquire() {
			mu.Lock()
			report.QuotaSkipped++
			mu.Unlock()
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(item news.RawItem) {
			defer wg.Done()
			defer func() { <-sem }()
			outcome, err := o.processItem(gateCtx, workCtx, logger, item, titles, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slots.release()
				if firstErr == nil && isStorageErr(err) {
					firstErr = err
				}
				return
			}
			switch {
			case outcome == nil:
				// Item survived every stage.
				report.Rewritten++
				if !opts.DryRun {
					report.TasksEnqueued += len(o.cfg.Channels())
				}
			case outcome.Reason == SkipRewriteFailed:
				report.RewriteFailed++
				report.Skipped = append(report.Skipped, *outcome)
				slots.release()
			case outcome.Reason == SkipDeadline:
				report.DeadlineSkipped++
				report.Skipped = append(report.Skipped, *outcome)
				slots.release()
			default:
				if outcome.Reason == SkipDuplicate {
					report.Deduplicated++
				} else {
					report.FilteredOut++
				}
				report.Skipped = append(report.Skipped, *outcome)
				slots.release()
			}
		}(item)
	}
	wg.Wait()
	return firstErr
}

// processItem runs one item through dedup, filter, rewrite, and enqueue. A
// nil outcome with a nil error means the item was rewritten and enqueued.
// The fingerprint commits only together with the verdict it accounts for: a
// skip record or an article row, in one transaction. An interrupted rewrite
// persists nothing, so the item is refetched and retried next run instead of
// being lost behind its own fingerprint.
func (o *Orchestrator) processItem(gateCtx, ctx context.Context, logger *slog.Logger, item news.RawItem, titles *titleIndex, opts Options) (*ItemOutcome, error) {
	fp := fingerprint.ForItem(item)

	if opts.DryRun {
		return o.previewItem(ctx, item, fp)
	}

	seen, err := o.store.Seen(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}
	if seen {
		if err := o.store.IncrementSkip(ctx, fp); err != nil {
			return nil, fmt.Errorf("increment skip: %w", err)
		}
		logger.Debug("duplicate item skipped",
			logging.String("source", item.SourceID),
			logging.String("url", item.ExternalURL))
		return &ItemOutcome{SourceID: item.SourceID, Title: item.Title, URL: item.ExternalURL, Reason: SkipDuplicate}, nil
	}

	if matched, ok := titles.observe(item.Title); !ok {
		if _, err := o.store.RecordFingerprint(ctx, fp, item.ExternalURL); err != nil {
			return nil, fmt.Errorf("record fingerprint: %w", err)
		}
		logger.Debug("near-duplicate headline skipped",
			logging.String("source", item.SourceID),
			logging.String("title", item.Title),
			logging.String("matches", matched))
		return &ItemOutcome{
			SourceID: item.SourceID,
			Title:    item.Title,
			URL:      item.ExternalURL,
			Reason:   SkipDuplicate,
			Detail:   fmt.Sprintf("near-duplicate of %q", matched),
		}, nil
	}

	result := o.filter.Score(item)
	if !o.filter.Relevant(result) {
		if _, err := o.store.RecordFingerprint(ctx, fp, item.ExternalURL); err != nil {
			return nil, fmt.Errorf("record fingerprint: %w", err)
		}
		logger.Debug("item below relevance threshold",
			logging.String("source", item.SourceID),
			logging.String("title", item.Title),
			logging.Float64("score", result.Score))
		return &ItemOutcome{
			SourceID: item.SourceID,
			Title:    item.Title,
			URL:      item.ExternalURL,
			Reason:   SkipNotRelevant,
			Detail:   fmt.Sprintf("score %.2f below threshold %.2f", result.Score, o.filter.Threshold()),
		}, nil
	}

	// The run deadline stops items here: the dedup and filter verdicts above
	// are cheap, the rewrite is not. Nothing has been persisted for this item
	// yet, so it stays eligible next run.
	if gateCtx.Err() != nil {
		logger.Debug("run deadline reached before rewrite",
			logging.String("source", item.SourceID),
			logging.String("title", item.Title))
		return &ItemOutcome{SourceID: item.SourceID, Title: item.Title, URL: item.ExternalURL, Reason: SkipDeadline}, nil
	}

	article, rewriteErr := o.stage.Rewrite(ctx, item, result.Category, fp, result.Score)
	if rewriteErr != nil {
		if errors.Is(rewriteErr, context.Canceled) || errors.Is(rewriteErr, context.DeadlineExceeded) {
			return nil, rewriteErr
		}
		failed := &news.Article{
			SourceFingerprint: fp,
			Category:          result.Category,
			Title:             item.Title,
			Body:              "",
			SourceURL:         item.ExternalURL,
			SourceName:        item.SourceName,
			RelevanceScore:    result.Score,
			Status:            news.StatusRewriteFailed,
			ErrorMessage:      rewriteErr.Error(),
		}
		if _, err := o.store.SaveArticleWithFingerprint(ctx, failed, fp, item.ExternalURL); err != nil {
			return nil, fmt.Errorf("record rewrite failure: %w", err)
		}
		logger.Warn("rewrite failed",
			logging.String("source", item.SourceID),
			logging.String("title", item.Title),
			logging.Error(rewriteErr))
		return &ItemOutcome{
			SourceID: item.SourceID,
			Title:    item.Title,
			URL:      item.ExternalURL,
			Reason:   SkipRewriteFailed,
			Detail:   rewriteErr.Error(),
		}, nil
	}

	inserted, err := o.store.SaveArticleWithFingerprint(ctx, article, fp, item.ExternalURL)
	if err != nil {
		return nil, fmt.Errorf("persist article: %w", err)
	}
	if !inserted {
		// Another worker committed the same source while this one was
		// rewriting.
		if err := o.store.IncrementSkip(ctx, fp); err != nil {
			return nil, fmt.Errorf("increment skip: %w", err)
		}
		return &ItemOutcome{SourceID: item.SourceID, Title: item.Title, URL: item.ExternalURL, Reason: SkipDuplicate}, nil
	}
	if _, err := o.queue.Enqueue(ctx, article, o.cfg.Channels(), 0); err != nil {
		return nil, err
	}
	logger.Info("article rewritten",
		logging.Int64("article_id", article.ID),
		logging.String("category", string(article.Category)),
		logging.Int("words", article.WordCount),
		logging.Float64("score", article.RelevanceScore))
	return nil, nil
}

// previewItem reports what a real run would do with the item without writing
// anything or spending rewriter quota.
func (o *Orchestrator) previewItem(ctx context.Context, item news.RawItem, fp string) (*ItemOutcome, error) {
	seen, err := o.store.Seen(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}
	if seen {
		return &ItemOutcome{SourceID: item.SourceID, Title: item.Title, URL: item.ExternalURL, Reason: SkipDuplicate}, nil
	}
	result := o.filter.Score(item)
	if !o.filter.Relevant(result) {
		return &ItemOutcome{
			SourceID: item.SourceID,
			Title:    item.Title,
			URL:      item.ExternalURL,
			Reason:   SkipNotRelevant,
			Detail:   fmt.Sprintf("score %.2f below threshold %.2f", result.Score, o.filter.Threshold()),
		}, nil
	}
	return nil, nil
}

func (o *Orchestrator) notifyError(ctx context.Context, logger *slog.Logger, runErr error) {
	if err := o.notifier.NotifyError(context.WithoutCancel(ctx), runErr, "pipeline run"); err != nil {
		logger.Warn("error notification failed", logging.Error(err))
	}
}

// isStorageErr reports whether the item failure is a store failure that
// should abort the run instead of being contained to the item.
func isStorageErr(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// titleIndex tracks the headlines seen during one run so the same story
// arriving from another outlet is caught even though its URL differs.
type titleIndex struct {
	mu      sync.Mutex
	entries []titleEntry
}

type titleEntry struct {
	vector *textutil.TitleVector
	title  string
}

// observe registers the headline and reports whether it is new. When the
// headline is a near duplicate of one seen earlier this run, observe returns
// the earlier headline and false.
func (ti *titleIndex) observe(title string) (string, bool) {
	vector := textutil.NewTitleVector(title)
	ti.mu.Lock()
	defer ti.mu.Unlock()
	if vector != nil {
		for _, entry := range ti.entries {
			if textutil.Cosine(vector, entry.vector) >= nearDuplicateThreshold {
				return entry.title, false
			}
		}
	}
	ti.entries = append(ti.entries, titleEntry{vector: vector, title: title})
	return "", true
}

// quota hands out per-run article slots, first come first served. A zero or
// negative limit disables the quota.
type quota struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
}

func newQuota(limit int) *quota {
	return &quota{remaining: limit, unlimited: limit <= 0}
}

func (q *quota) acquire() bool {
	if q.unlimited {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remaining <= 0 {
		return false
	}
	q.remaining--
	return true
}

func (q *quota) release() {
	if q.unlimited {
		return
	}
	q.mu.Lock()
	q.remaining++
	q.mu.Unlock()
}
