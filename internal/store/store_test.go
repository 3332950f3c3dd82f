package store_test

import (
	"context"
	"testing"
	"time"

	"ancile/internal/news"
	"ancile/internal/testsupport"
)

func TestRecordFingerprintIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inserted, err := st.RecordFingerprint(ctx, "fp-1", "https://example.com/a")
	if err != nil {
		t.Fatalf("RecordFingerprint: %v", err)
	}
	if !inserted {
		t.Fatal("first sighting should insert")
	}

	inserted, err = st.RecordFingerprint(ctx, "fp-1", "https://example.com/a")
	if err != nil {
		t.Fatalf("RecordFingerprint second call: %v", err)
	}
	if inserted {
		t.Fatal("second sighting must not insert")
	}

	if err := st.IncrementSkip(ctx, "fp-1"); err != nil {
		t.Fatalf("IncrementSkip: %v", err)
	}
	record, err := st.GetFingerprint(ctx, "fp-1")
	if err != nil {
		t.Fatalf("GetFingerprint: %v", err)
	}
	if record.SkipCount != 1 {
		t.Errorf("skip count = %d, want 1", record.SkipCount)
	}

	seen, err := st.Seen(ctx, "fp-1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Error("recorded fingerprint should be seen")
	}
	seen, err = st.Seen(ctx, "fp-unknown")
	if err != nil {
		t.Fatalf("Seen unknown: %v", err)
	}
	if seen {
		t.Error("unknown fingerprint should not be seen")
	}
}

func TestArticleRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := testsupport.NewArticle(t, st, "Sanctions Expanded", "fp-article")
	if article.ID == 0 {
		t.Fatal("CreateArticle did not assign an id")
	}

	loaded, err := st.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if loaded.Title != article.Title {
		t.Errorf("title = %q, want %q", loaded.Title, article.Title)
	}
	if loaded.Status != news.StatusRewritten {
		t.Errorf("status = %q, want %q", loaded.Status, news.StatusRewritten)
	}

	loaded.Status = news.StatusPublished
	if err := st.UpdateArticle(ctx, loaded); err != nil {
		t.Fatalf("UpdateArticle: %v", err)
	}
	published, err := st.ArticlesByStatus(ctx, news.StatusPublished)
	if err != nil {
		t.Fatalf("ArticlesByStatus: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("published count = %d, want 1", len(published))
	}

	stats, err := st.ArticleStats(ctx)
	if err != nil {
		t.Fatalf("ArticleStats: %v", err)
	}
	if stats[news.StatusPublished] != 1 {
		t.Errorf("stats[published] = %d, want 1", stats[news.StatusPublished])
	}
}

func TestEnqueueTaskOncePerChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := testsupport.NewArticle(t, st, "Carrier Group Deployed", "fp-queue")

	for i := 0; i < 2; i++ {
		for _, channel := range news.AllChannels() {
			if _, err := st.EnqueueTask(ctx, article.ID, channel, 0); err != nil {
				t.Fatalf("EnqueueTask: %v", err)
			}
		}
	}

	tasks, err := st.TasksForArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("TasksForArticle: %v", err)
	}
	if len(tasks) != len(news.AllChannels()) {
		t.Fatalf("task count = %d, want %d", len(tasks), len(news.AllChannels()))
	}
	for _, task := range tasks {
		if task.Status != news.TaskPending {
			t.Errorf("task %d status = %q, want pending", task.ID, task.Status)
		}
	}
}

func TestDueTasksHonorsNextAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := testsupport.NewArticle(t, st, "Budget Vote Delayed", "fp-due")
	if _, err := st.EnqueueTask(ctx, article.ID, news.ChannelContentStore, 0); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}

	now := time.Now().UTC()
	due, err := st.DueTasks(ctx, now)
	if err != nil {
		t.Fatalf("DueTasks: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("pending task should be due, got %d", len(due))
	}

	task := due[0]
	future := now.Add(time.Hour)
	task.Status = news.TaskFailedRetryable
	task.AttemptCount = 1
	task.NextAttemptAt = &future
	if err := st.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	due, err = st.DueTasks(ctx, now)
	if err != nil {
		t.Fatalf("DueTasks after pushback: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("task with future next_attempt_at must not be due, got %d", len(due))
	}

	due, err = st.DueTasks(ctx, future.Add(time.Second))
	if err != nil {
		t.Fatalf("DueTasks past next attempt: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("task should be due after its next attempt time, got %d", len(due))
	}
}

func TestRetryTerminalTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := testsupport.NewArticle(t, st, "Pipeline Outage Reported", "fp-retry")
	if _, err := st.EnqueueTask(ctx, article.ID, news.ChannelContentStore, 0); err != nil {
		t.Fatalf("EnqueueTask: %v", err)
	}

	tasks, err := st.TasksForArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("TasksForArticle: %v", err)
	}
	task := tasks[0]
	task.Status = news.TaskFailedTerminal
	task.AttemptCount = 3
	task.LastError = "status 400"
	if err := st.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	requeued, err := st.RetryTerminalTasks(ctx)
	if err != nil {
		t.Fatalf("RetryTerminalTasks: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("requeued = %d, want 1", requeued)
	}

	tasks, err = st.TasksForArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("TasksForArticle after retry: %v", err)
	}
	if tasks[0].Status != news.TaskPending {
		t.Errorf("status = %q, want pending", tasks[0].Status)
	}
	if tasks[0].AttemptCount != 0 {
		t.Errorf("attempt count = %d, want 0", tasks[0].AttemptCount)
	}
}

func TestTaskStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := testsupport.NewArticle(t, st, "Cyber Incident Disclosed", "fp-stats")
	for _, channel := range news.AllChannels() {
		if _, err := st.EnqueueTask(ctx, article.ID, channel, 0); err != nil {
			t.Fatalf("EnqueueTask: %v", err)
		}
	}

	stats, err := st.TaskStats(ctx)
	if err != nil {
		t.Fatalf("TaskStats: %v", err)
	}
	for _, channel := range news.AllChannels() {
		if stats[channel][news.TaskPending] != 1 {
			t.Errorf("stats[%s][pending] = %d, want 1", channel, stats[channel][news.TaskPending])
		}
	}
}

func TestSaveArticleWithFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	build := func(title string) *news.Article {
		return &news.Article{
			SourceFingerprint: "fp-tx",
			Category:          news.CategoryGeopolitics,
			Title:             title,
			Body:              "Body text for " + title,
			SourceURL:         "https://example.com/fp-tx",
			SourceName:        "Example Wire",
			WordCount:         4,
			RelevanceScore:    0.9,
			Status:            news.StatusRewritten,
		}
	}

	article := build("Sanctions Expanded")
	inserted, err := st.SaveArticleWithFingerprint(ctx, article, "fp-tx", article.SourceURL)
	if err != nil {
		t.Fatalf("SaveArticleWithFingerprint: %v", err)
	}
	if !inserted {
		t.Fatal("first save should insert")
	}
	if article.ID == 0 {
		t.Fatal("save did not assign an id")
	}
	seen, err := st.Seen(ctx, "fp-tx")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatal("fingerprint should commit with the article")
	}

	// A second worker racing the same source loses the insert and writes
	// nothing, including its article row.
	inserted, err = st.SaveArticleWithFingerprint(ctx, build("Sanctions Expanded Again"), "fp-tx", article.SourceURL)
	if err != nil {
		t.Fatalf("SaveArticleWithFingerprint second call: %v", err)
	}
	if inserted {
		t.Fatal("second save for the same fingerprint must not insert")
	}
	rows, err := st.ArticlesByStatus(ctx, news.StatusRewritten)
	if err != nil {
		t.Fatalf("ArticlesByStatus: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("article rows = %d, want 1", len(rows))
	}
}
