package news

import (
	"strings"
	"time"
)

// Category classifies an item into one of the configured intelligence desks.
type Category string

const (
	CategoryGeopolitics Category = "geopolitics"
	CategoryDefense     Category = "defense"
	CategoryCyber       Category = "cyber"
	CategoryFinance     Category = "finance"
	CategoryOther       Category = "other"
)

var allCategories = []Category{
	CategoryGeopolitics,
	CategoryDefense,
	CategoryCyber,
	CategoryFinance,
	CategoryOther,
}

var categorySet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(allCategories))
	for _, category := range allCategories {
		set[category] = struct{}{}
	}
	return set
}()

// AllCategories returns the ordered list of known categories.
func AllCategories() []Category {
	cp := make([]Category, len(allCategories))
	copy(cp, allCategories)
	return cp
}

// ParseCategory converts a string into a known Category.
func ParseCategory(value string) (Category, bool) {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := categorySet[normalized]
	return normalized, ok
}

// RawItem is a normalized news item handed over by the ingestion layer.
// The pipeline treats it as read-only and does not persist it.
type RawItem struct {
	SourceID     string
	SourceName   string
	ExternalURL  string
	Title        string
	BodyExcerpt  string
	PublishedAt  time.Time
	CategoryHint Category
}

// ArticleStatus represents the lifecycle of a persisted article.
type ArticleStatus string

const (
	// StatusRewritten marks an article whose rewrite passed validation and
	// which is eligible for publication.
	StatusRewritten ArticleStatus = "rewritten"
	// StatusRewriteFailed marks an article whose rewrite exhausted retries.
	// Kept for audit; never enqueued.
	StatusRewriteFailed ArticleStatus = "rewrite_failed"
	// StatusPublished means every configured channel delivered the article.
	StatusPublished ArticleStatus = "published"
	// StatusPublishFailed means every configured channel failed terminally.
	StatusPublishFailed ArticleStatus = "publish_failed"
)

var allArticleStatuses = []ArticleStatus{
	StatusRewritten,
	StatusRewriteFailed,
	StatusPublished,
	StatusPublishFailed,
}

// ParseArticleStatus converts a string into a known ArticleStatus.
func ParseArticleStatus(value string) (ArticleStatus, bool) {
	normalized := ArticleStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allArticleStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further automatic transition applies.
func (s ArticleStatus) IsTerminal() bool {
	return s == StatusRewriteFailed || s == StatusPublished || s == StatusPublishFailed
}

// Article is the pipeline's central artifact: a rewritten long-form report.
type Article struct {
	ID                int64
	SourceFingerprint string
	Category          Category
	Title             string
	Body              string
	Summary           string
	Caption           string
	Keywords          []string
	SourceURL         string
	SourceName        string
	WordCount         int
	RelevanceScore    float64
	Status            ArticleStatus
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Channel identifies a downstream publication target.
type Channel string

const (
	ChannelContentStore Channel = "content_store"
	ChannelSocialMedia  Channel = "social_media"
)

var allChannels = []Channel{ChannelContentStore, ChannelSocialMedia}

// AllChannels returns the ordered list of known channels.
func AllChannels() []Channel {
	cp := make([]Channel, len(allChannels))
	copy(cp, allChannels)
	return cp
}

// ParseChannel converts a string into a known Channel.
func ParseChannel(value string) (Channel, bool) {
	normalized := Channel(strings.ToLower(strings.TrimSpace(value)))
	for _, channel := range allChannels {
		if channel == normalized {
			return normalized, true
		}
	}
	return "", false
}

// TaskStatus represents the lifecycle of one channel delivery obligation.
type TaskStatus string

const (
	TaskPending         TaskStatus = "pending"
	TaskInFlight        TaskStatus = "in_flight"
	TaskDelivered       TaskStatus = "delivered"
	TaskFailedRetryable TaskStatus = "failed_retryable"
	TaskFailedTerminal  TaskStatus = "failed_terminal"
)

var allTaskStatuses = []TaskStatus{
	TaskPending,
	TaskInFlight,
	TaskDelivered,
	TaskFailedRetryable,
	TaskFailedTerminal,
}

// ParseTaskStatus converts a string into a known TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allTaskStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsTerminal reports whether the task requires no further dispatching.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDelivered || s == TaskFailedTerminal
}

// PublishTask is one channel-specific delivery obligation for an article.
// Exactly one task exists per (article, channel) pair.
type PublishTask struct {
	ID            int64
	ArticleID     int64
	Channel       Channel
	Priority      int
	Status        TaskStatus
	AttemptCount  int
	LastError     string
	RemoteRef     string
	NextAttemptAt *time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Due reports whether the task is eligible for a dispatch pass at now.
func (t *PublishTask) Due(now time.Time) bool {
	switch t.Status {
	case TaskPending:
		return true
	case TaskFailedRetryable:
		return t.NextAttemptAt == nil || !t.NextAttemptAt.After(now)
	default:
		return false
	}
}
