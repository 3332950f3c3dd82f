package pipeline

import (
	"time"

	"ancile/internal/news"
)

// SkipReason classifies why an item was dropped before publishing.
type SkipReason string

const (
	SkipDuplicate     SkipReason = "duplicate"
	SkipNotRelevant   SkipReason = "not_relevant"
	SkipQuotaReached  SkipReason = "quota_reached"
	SkipRewriteFailed SkipReason = "rewrite_failed"
	SkipDeadline      SkipReason = "run_deadline"
)

// ItemOutcome records the fate of one raw item, kept per run for reporting.
type ItemOutcome struct {
	SourceID string
	Title    string
	URL      string
	Reason   SkipReason
	Detail   string
}

// RunReport summarizes one pipeline run end to end. DeadlineSkipped counts
// items the run deadline kept from reaching the rewrite stage; they are not
// persisted and stay eligible next run.
type RunReport struct {
	RunID           string
	DryRun          bool
	StartedAt       time.Time
	Duration        time.Duration
	Ingested        int
	SourceErrors    int
	Deduplicated    int
	FilteredOut     int
	QuotaSkipped    int
	DeadlineSkipped int
	Rewritten       int
	RewriteFailed   int
	TasksEnqueued   int
	Delivered       map[news.Channel]int
	Failed          map[news.Channel]int
	Skipped         []ItemOutcome
}

// DeliveredTotal sums deliveries across channels.
func (r *RunReport) DeliveredTotal() int {
	total := 0
	for _, n := range r.Delivered {
		total += n
	}
	return total
}

// FailedTotal sums failed delivery attempts across channels.
func (r *RunReport) FailedTotal() int {
	total := 0
	for _, n := range r.Failed {
		total += n
	}
	return total
}
