package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ancile/internal/news"
	"ancile/internal/services"
	"ancile/internal/textutil"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-2.0-flash-exp"
	defaultHTTPTimeout = 120 * time.Second

	generationTemperature = 0.4
	maxOutputTokens       = 8000
)

// Client wraps the Gemini generateContent API as the pipeline's rewriter.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option customizes the Gemini client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs a Gemini API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Generate asks Gemini to rewrite a raw item into a long-form report in the
// configured category's register. Rate-limit responses are tagged with
// services.ErrRateLimited so the rewrite stage can back off longer.
func (c *Client) Generate(ctx context.Context, item news.RawItem, category news.Category) (news.Draft, error) {
	var empty news.Draft
	if strings.TrimSpace(item.BodyExcerpt) == "" && strings.TrimSpace(item.Title) == "" {
		return empty, services.Wrap(services.ErrValidation, "rewrite", "generate", "raw item has no content", nil)
	}
	if c.apiKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "rewrite", "generate", "api key required", nil)
	}

	request := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: analystSystemPrompt}}},
		Contents: []content{
			{Role: "user", Parts: []part{{Text: buildUserPrompt(item, category)}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     generationTemperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return empty, fmt.Errorf("gemini generate: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("gemini generate: request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "rewrite", "generate", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "rewrite", "generate", "read body", err)
	}
	if err := classifyHTTPStatus(resp.StatusCode, body); err != nil {
		return empty, err
	}

	var completion generateResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, services.Wrap(services.ErrValidation, "rewrite", "generate", "decode response", err)
	}
	if completion.Error != nil {
		return empty, classifyAPIError(completion.Error)
	}
	text := completion.text()
	if text == "" {
		return empty, services.Wrap(services.ErrValidation, "rewrite", "generate", "empty completion", nil)
	}

	draft := parseDraft(text)
	if draft.Body == "" {
		return empty, services.Wrap(services.ErrValidation, "rewrite", "generate", "completion has no body", nil)
	}
	return draft, nil
}

func classifyHTTPStatus(status int, body []byte) error {
	detail := textutil.TruncateBytes(strings.TrimSpace(string(body)), 300)
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, "rewrite", "generate", fmt.Sprintf("http %d", status), errors.New(detail))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "rewrite", "generate", fmt.Sprintf("http %d", status), errors.New(detail))
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "rewrite", "generate", fmt.Sprintf("http %d", status), errors.New(detail))
	default:
		return services.Wrap(services.ErrValidation, "rewrite", "generate", fmt.Sprintf("http %d", status), errors.New(detail))
	}
}

func classifyAPIError(apiErr *apiError) error {
	message := strings.TrimSpace(apiErr.Message)
	if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
		return services.Wrap(services.ErrRateLimited, "rewrite", "generate", "api error", errors.New(message))
	}
	return services.Wrap(services.ErrTransient, "rewrite", "generate", "api error", errors.New(message))
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		builder.WriteString(p.Text)
	}
	return strings.TrimSpace(builder.String())
}
