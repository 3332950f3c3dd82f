// Package strapi delivers articles to the content store's REST collection.
package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ancile/internal/config"
	"ancile/internal/news"
	"ancile/internal/services"
	"ancile/internal/textutil"
)

const defaultTimeout = 30 * time.Second

// Client publishes articles to a Strapi collection over its REST API.
type Client struct {
	baseURL    string
	apiToken   string
	collection string
	httpClient *http.Client
}

// Option configures optional client settings.
type Option func(*Client)

// WithHTTPClient overrides the transport, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

// New builds a client from the content store configuration.
func New(cfg config.Strapi, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiToken:   cfg.APIToken,
		collection: cfg.Collection,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		timeout := defaultTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Channel identifies this publisher's destination.
func (c *Client) Channel() news.Channel {
	return news.ChannelContentStore
}

type entryPayload struct {
	Data entryData `json:"data"`
}

type entryData struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Summary     string   `json:"summary,omitempty"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords,omitempty"`
	SourceURL   string   `json:"source_url"`
	SourceName  string   `json:"source_name,omitempty"`
	WordCount   int      `json:"word_count"`
	PublishedAt string   `json:"publishedAt"`
}

type entryResponse struct {
	Data struct {
		ID         int64  `json:"id"`
		DocumentID string `json:"documentId"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Publish creates one collection entry for the article and returns its
// document id. Client errors from Strapi are terminal; the payload will not
// get better on retry.
func (c *Client) Publish(ctx context.Context, article *news.Article) (string, error) {
	if c.baseURL == "" {
		return "", services.Wrap(services.ErrConfiguration, "publish", "strapi", "url required", nil)
	}

	payload := entryPayload{Data: entryData{
		Title:       article.Title,
		Content:     article.Body,
		Summary:     article.Summary,
		Category:    string(article.Category),
		Keywords:    article.Keywords,
		SourceURL:   article.SourceURL,
		SourceName:  article.SourceName,
		WordCount:   article.WordCount,
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
	}}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("strapi publish: encode entry: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("strapi publish: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "strapi", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "strapi", "read response", err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var entry entryResponse
	if err := json.Unmarshal(body, &entry); err != nil {
		return "", services.Wrap(services.ErrTransient, "publish", "strapi", "decode response", err)
	}
	if entry.Error != nil {
		return "", services.Wrap(services.ErrValidation, "publish", "strapi", entry.Error.Message, nil)
	}
	if entry.Data.DocumentID != "" {
		return entry.Data.DocumentID, nil
	}
	return fmt.Sprintf("%d", entry.Data.ID), nil
}

func classifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail := textutil.TruncateBytes(strings.TrimSpace(string(body)), 300)
	message := fmt.Sprintf("status %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "publish", "strapi", message, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "publish", "strapi", message, nil)
	case status >= 500:
		return services.Wrap(services.ErrTransient, "publish", "strapi", message, nil)
	default:
		return services.Wrap(services.ErrValidation, "publish", "strapi", message, nil)
	}
}
