package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ancile/internal/news"
)

const taskColumns = "id, article_id, channel, priority, status, attempt_count, last_error, remote_ref, next_attempt_at, delivered_at, created_at, updated_at"

// EnqueueTask creates a pending publish task for an (article, channel) pair
// if none exists, reporting whether this call created it. The unique
// constraint makes enqueue idempotent under whole-run retry.
func (s *Store) EnqueueTask(ctx context.Context, articleID int64, channel news.Channel, priority int) (bool, error) {
	if articleID == 0 {
		return false, errors.New("article id must be set")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_tasks (article_id, channel, priority, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (article_id, channel) DO NOTHING`,
		articleID,
		string(channel),
		priority,
		string(news.TaskPending),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateTask persists changes to an existing task.
func (s *Store) UpdateTask(ctx context.Context, task *news.PublishTask) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE publish_tasks
         SET status = ?, attempt_count = ?, last_error = ?, remote_ref = ?,
             next_attempt_at = ?, delivered_at = ?, updated_at = ?
         WHERE id = ?`,
		string(task.Status),
		task.AttemptCount,
		nullableString(task.LastError),
		nullableString(task.RemoteRef),
		nullableTime(task.NextAttemptAt),
		nullableTime(task.DeliveredAt),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DueTasks returns tasks eligible for dispatch at now: pending tasks plus
// retryable failures whose backoff has elapsed, in (priority, created_at)
// order.
func (s *Store) DueTasks(ctx context.Context, now time.Time) ([]*news.PublishTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM publish_tasks
         WHERE status = ?
            OR (status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
         ORDER BY priority, created_at`,
		string(news.TaskPending),
		string(news.TaskFailedRetryable),
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// TasksForArticle returns every task belonging to an article.
func (s *Store) TasksForArticle(ctx context.Context, articleID int64) ([]*news.PublishTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM publish_tasks WHERE article_id = ? ORDER BY priority, created_at`,
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("query article tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// TasksByStatus returns tasks matching a status ordered by creation.
func (s *Store) TasksByStatus(ctx context.Context, status news.TaskStatus) ([]*news.PublishTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM publish_tasks WHERE status = ? ORDER BY priority, created_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks by status: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// RetryTerminalTasks moves terminally failed tasks back to pending for
// operator-driven reprocessing. With no ids, all terminal failures retry.
func (s *Store) RetryTerminalTasks(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(ctx,
			`UPDATE publish_tasks
             SET status = ?, attempt_count = 0, last_error = NULL, next_attempt_at = NULL, updated_at = ?
             WHERE status = ?`,
			string(news.TaskPending), now, string(news.TaskFailedTerminal),
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed tasks: %w", err)
		}
		return res.RowsAffected()
	}

	var retried int64
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			`UPDATE publish_tasks
             SET status = ?, attempt_count = 0, last_error = NULL, next_attempt_at = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			string(news.TaskPending), now, id, string(news.TaskFailedTerminal),
		)
		if err != nil {
			return retried, fmt.Errorf("retry task %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return retried, err
		}
		retried += affected
	}
	return retried, nil
}

// TaskStats returns a count of tasks grouped by channel and status.
func (s *Store) TaskStats(ctx context.Context) (map[news.Channel]map[news.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, status, COUNT(1) FROM publish_tasks GROUP BY channel, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[news.Channel]map[news.TaskStatus]int)
	for rows.Next() {
		var channel, status string
		var count int
		if err := rows.Scan(&channel, &status, &count); err != nil {
			return nil, err
		}
		byStatus := stats[news.Channel(channel)]
		if byStatus == nil {
			byStatus = make(map[news.TaskStatus]int)
			stats[news.Channel(channel)] = byStatus
		}
		byStatus[news.TaskStatus(status)] = count
	}
	return stats, rows.Err()
}

func collectTasks(rows *sql.Rows) ([]*news.PublishTask, error) {
	var tasks []*news.PublishTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*news.PublishTask, error) {
	var (
		id          int64
		articleID   int64
		channel     string
		priority    int
		status      string
		attempts    int
		lastError   sql.NullString
		remoteRef   sql.NullString
		nextAttempt sql.NullString
		delivered   sql.NullString
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&id,
		&articleID,
		&channel,
		&priority,
		&status,
		&attempts,
		&lastError,
		&remoteRef,
		&nextAttempt,
		&delivered,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &news.PublishTask{
		ID:            id,
		ArticleID:     articleID,
		Channel:       news.Channel(channel),
		Priority:      priority,
		Status:        news.TaskStatus(status),
		AttemptCount:  attempts,
		LastError:     lastError.String,
		RemoteRef:     remoteRef.String,
		NextAttemptAt: parseTimePtr(nextAttempt),
		DeliveredAt:   parseTimePtr(delivered),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}
