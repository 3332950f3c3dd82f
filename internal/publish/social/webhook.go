// Package social posts article teasers to the social automation webhook,
// which relays them to the downstream platform.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ancile/internal/config"
	"ancile/internal/news"
	"ancile/internal/services"
)

const defaultTimeout = 20 * time.Second

// Webhook publishes article captions to the configured automation endpoint.
type Webhook struct {
	url        string
	captionMax int
	httpClient *http.Client
}

// Option configures optional webhook settings.
type Option func(*Webhook)

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Webhook) { w.httpClient = c }
}

// New builds a webhook publisher from the social configuration.
func New(cfg config.Social, opts ...Option) *Webhook {
	w := &Webhook{
		url:        cfg.WebhookURL,
		captionMax: cfg.CaptionMaxLength,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		w.httpClient = &http.Client{Timeout: timeout}
	}
	return w
}

// Channel identifies this publisher's destination.
func (w *Webhook) Channel() news.Channel {
	return news.ChannelSocialMedia
}

type webhookPayload struct {
	Title     string   `json:"title"`
	Caption   string   `json:"caption"`
	Category  string   `json:"category"`
	Keywords  []string `json:"keywords,omitempty"`
	SourceURL string   `json:"source_url"`
}

// Publish posts the article caption to the webhook. The automation side is
// fire-and-forget, so any 2xx counts as delivered.
func (w *Webhook) Publish(ctx context.Context, article *news.Article) (string, error) {
	if w.url == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "social", "webhook url required", nil)
	}

	payload := webhookPayload{
		Title:     article.Title,
		Caption:   w.caption(article),
		Category:  string(article.Category),
		Keywords:  article.Keywords,
		SourceURL: article.SourceURL,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("social publish: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("social publish: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "social", "request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return strings.TrimSpace(string(body)), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", services.Wrap(services.ErrRateLimited, "publish", "social",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return "", services.Wrap(services.ErrTransient, "publish", "social",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	default:
		return "", services.Wrap(services.ErrValidation, "publish", "social",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
}

// caption prefers the rewriter's caption and falls back to the summary,
// truncated to the platform limit on a rune boundary.
func (w *Webhook) caption(article *news.Article) string {
	caption := strings.TrimSpace(article.Caption)
	if caption == "" {
		caption = strings.TrimSpace(article.Summary)
	}
	if caption == "" {
		caption = article.Title
	}
	if w.captionMax <= 0 || utf8.RuneCountInString(caption) <= w.captionMax {
		return caption
	}
	runes := []rune(caption)
	return strings.TrimSpace(string(runes[:w.captionMax-1])) + "…"
}
