package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ancile/internal/config"
	"ancile/internal/logging"
	"ancile/internal/news"
	"ancile/internal/notifications"
	"ancile/internal/services"
	"ancile/internal/store"
)

// Dispatcher drains due tasks through the configured channel publishers.
// Every state transition is persisted before and after the delivery attempt,
// so a crash mid-flight leaves an in_flight row that the next run retries.
type Dispatcher struct {
	store      *store.Store
	publishers map[news.Channel]Publisher
	cfg        config.Publish
	logger     *slog.Logger
	notifier   notifications.Service
	now        func() time.Time
}

// WithNotifier routes per-delivery notifications through the given service.
func (d *Dispatcher) WithNotifier(n notifications.Service) *Dispatcher {
	if n != nil {
		d.notifier = n
	}
	return d
}

// DrainReport summarizes one dispatcher pass.
type DrainReport struct {
	Attempted int
	Delivered map[news.Channel]int
	Failed    map[news.Channel]int
}

// NewDispatcher builds a dispatcher over the given publishers. A channel
// without a registered publisher fails its tasks terminally.
func NewDispatcher(st *store.Store, cfg config.Publish, logger *slog.Logger, publishers ...Publisher) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	byChannel := make(map[news.Channel]Publisher, len(publishers))
	for _, p := range publishers {
		byChannel[p.Channel()] = p
	}
	return &Dispatcher{
		store:      st,
		publishers: byChannel,
		cfg:        cfg,
		logger:     logger.With(logging.String("component", "dispatcher")),
		now:        time.Now,
	}
}

// Drain processes every task that is due right now. Tasks pushed back with a
// future next_attempt_at wait for a later run. A task failure never aborts
// the pass; the first storage error does.
func (d *Dispatcher) Drain(ctx context.Context) (DrainReport, error) {
	report := DrainReport{
		Delivered: make(map[news.Channel]int),
		Failed:    make(map[news.Channel]int),
	}

	if err := d.recoverInFlight(ctx); err != nil {
		return report, err
	}

	tasks, err := d.store.DueTasks(ctx, d.now().UTC())
	if err != nil {
		return report, fmt.Errorf("drain: load due tasks: %w", err)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempted++
		if err := d.dispatch(ctx, task); err != nil {
			return report, err
		}
		switch task.Status {
		case news.TaskDelivered:
			report.Delivered[task.Channel]++
		case news.TaskFailedRetryable, news.TaskFailedTerminal:
			report.Failed[task.Channel]++
		}
	}
	return report, nil
}

// recoverInFlight requeues tasks a previous process left in_flight. The
// delivery outcome of those attempts is unknown, so they go back as
// retryable without consuming another attempt.
func (d *Dispatcher) recoverInFlight(ctx context.Context) error {
	stale, err := d.store.TasksByStatus(ctx, news.TaskInFlight)
	if err != nil {
		return fmt.Errorf("drain: load in-flight tasks: %w", err)
	}
	for _, task := range stale {
		task.Status = news.TaskFailedRetryable
		task.NextAttemptAt = nil
		if task.AttemptCount > 0 {
			task.AttemptCount--
		}
		if err := d.store.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("drain: requeue in-flight task %d: %w", task.ID, err)
		}
		d.logger.Warn("requeued interrupted task",
			logging.Int64("task_id", task.ID),
			logging.String("channel", string(task.Channel)))
	}
	return nil
}

// dispatch runs one delivery attempt and persists the outcome. The returned
// error is only non-nil for storage failures.
func (d *Dispatcher) dispatch(ctx context.Context, task *news.PublishTask) error {
	task.Status = news.TaskInFlight
	task.AttemptCount++
	if err := d.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("dispatch task %d: mark in flight: %w", task.ID, err)
	}

	article, remoteRef, pubErr := d.attempt(ctx, task)
	if pubErr == nil {
		now := d.now().UTC()
		task.Status = news.TaskDelivered
		task.LastError = ""
		task.RemoteRef = remoteRef
		task.DeliveredAt = &now
		task.NextAttemptAt = nil
		d.logger.Info("task delivered",
			logging.Int64("task_id", task.ID),
			logging.Int64("article_id", task.ArticleID),
			logging.String("channel", string(task.Channel)),
			logging.Int("attempts", task.AttemptCount))
		if d.notifier != nil {
			if err := d.notifier.NotifyArticlePublished(ctx, article.Title, string(task.Channel)); err != nil {
				d.logger.Warn("publish notification failed", logging.Error(err))
			}
		}
	} else if errors.Is(pubErr, context.Canceled) || errors.Is(pubErr, context.DeadlineExceeded) {
		// Run deadline, not a channel verdict. Leave the task retryable for
		// the next run without burning one of its attempts.
		task.Status = news.TaskFailedRetryable
		task.AttemptCount--
		task.LastError = pubErr.Error()
		task.NextAttemptAt = nil
	} else {
		d.recordFailure(task, pubErr)
	}

	if err := d.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("dispatch task %d: persist outcome: %w", task.ID, err)
	}
	return d.resolveArticle(ctx, task.ArticleID)
}

func (d *Dispatcher) attempt(ctx context.Context, task *news.PublishTask) (*news.Article, string, error) {
	publisher, ok := d.publishers[task.Channel]
	if !ok {
		return nil, "", services.Wrap(services.ErrConfiguration, "publish", "dispatch",
			fmt.Sprintf("no publisher for channel %s", task.Channel), nil)
	}
	article, err := d.store.GetArticle(ctx, task.ArticleID)
	if err != nil {
		return nil, "", services.Wrap(services.ErrFatal, "publish", "dispatch", "load article", err)
	}
	remoteRef, err := publisher.Publish(ctx, article)
	return article, remoteRef, err
}

func (d *Dispatcher) recordFailure(task *news.PublishTask, pubErr error) {
	task.LastError = pubErr.Error()

	retryable := services.IsRetryable(pubErr) || services.IsRateLimited(pubErr)
	if retryable && task.AttemptCount < d.cfg.MaxAttempts {
		delay := services.BackoffDelay(
			time.Duration(d.cfg.BackoffBaseSeconds)*time.Second,
			time.Duration(d.cfg.BackoffCapSeconds)*time.Second,
			task.AttemptCount,
		)
		next := d.now().UTC().Add(delay)
		task.Status = news.TaskFailedRetryable
		task.NextAttemptAt = &next
		d.logger.Warn("task failed, will retry",
			logging.Int64("task_id", task.ID),
			logging.String("channel", string(task.Channel)),
			logging.Int("attempt", task.AttemptCount),
			logging.Duration("retry_in", delay),
			logging.Error(pubErr))
		return
	}

	task.Status = news.TaskFailedTerminal
	task.NextAttemptAt = nil
	d.logger.Error("task failed terminally",
		logging.Int64("task_id", task.ID),
		logging.String("channel", string(task.Channel)),
		logging.Int("attempts", task.AttemptCount),
		logging.Error(pubErr))
}

// resolveArticle folds the article's task states into its overall status once
// every channel has reached a verdict. Articles with work still pending keep
// their current status.
func (d *Dispatcher) resolveArticle(ctx context.Context, articleID int64) error {
	tasks, err := d.store.TasksForArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("resolve article %d: %w", articleID, err)
	}
	delivered := 0
	for _, task := range tasks {
		if !task.Status.IsTerminal() {
			return nil
		}
		if task.Status == news.TaskDelivered {
			delivered++
		}
	}

	article, err := d.store.GetArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("resolve article %d: %w", articleID, err)
	}
	status := news.StatusPublished
	if delivered < len(tasks) {
		status = news.StatusPublishFailed
	}
	if article.Status == status {
		return nil
	}
	article.Status = status
	if status == news.StatusPublishFailed {
		article.ErrorMessage = fmt.Sprintf("%d of %d channels failed", len(tasks)-delivered, len(tasks))
	}
	if err := d.store.UpdateArticle(ctx, article); err != nil {
		return fmt.Errorf("resolve article %d: %w", articleID, err)
	}
	return nil
}
