package gemini_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ancile/internal/news"
	"ancile/internal/services"
	"ancile/internal/services/gemini"
)

func completionJSON(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func testItem() news.RawItem {
	return news.RawItem{
		SourceID:    "wire",
		SourceName:  "Example Wire",
		ExternalURL: "https://example.com/story",
		Title:       "Sanctions expanded",
		BodyExcerpt: "New measures target maritime insurers.",
	}
}

func TestGenerateParsesCompletion(t *testing.T) {
	var captured struct {
		path   string
		apiKey string
		body   []byte
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.apiKey = r.Header.Get("x-goog-api-key")
		captured.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("# Report Title\n\nBody paragraph here.\n\n---METADATA---\nSUMMARY: A summary.\nKEYWORDS: [\"one\"]\n---END_METADATA---")))
	}))
	defer server.Close()

	client := gemini.NewClient("key", gemini.WithBaseURL(server.URL), gemini.WithModel("test-model"))
	draft, err := client.Generate(context.Background(), testItem(), news.CategoryGeopolitics)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Title != "Report Title" {
		t.Errorf("title = %q", draft.Title)
	}
	if draft.Summary != "A summary." {
		t.Errorf("summary = %q", draft.Summary)
	}
	if !strings.Contains(captured.path, "test-model:generateContent") {
		t.Errorf("path = %q, want generateContent call", captured.path)
	}
	if captured.apiKey != "key" {
		t.Errorf("api key header = %q", captured.apiKey)
	}
	if !strings.Contains(string(captured.body), "Sanctions expanded") {
		t.Error("request body missing item title")
	}
}

func TestGenerateClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := gemini.NewClient("key", gemini.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), testItem(), news.CategoryCyber)
	if !services.IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
}

func TestGenerateClassifiesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := gemini.NewClient("key", gemini.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), testItem(), news.CategoryCyber)
	if err == nil || !services.IsRetryable(err) {
		t.Fatalf("expected retryable transient error, got %v", err)
	}
	if services.IsRateLimited(err) {
		t.Error("5xx must not be tagged rate-limited")
	}
}

func TestGenerateClassifiesAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := gemini.NewClient("bad-key", gemini.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), testItem(), news.CategoryCyber)
	if err == nil || services.IsRetryable(err) {
		t.Fatalf("expected non-retryable configuration error, got %v", err)
	}
}

func TestGenerateResourceExhaustedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := gemini.NewClient("key", gemini.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), testItem(), news.CategoryFinance)
	if !services.IsRateLimited(err) {
		t.Fatalf("expected rate-limited error from api status, got %v", err)
	}
}

func TestGenerateRejectsEmptyItem(t *testing.T) {
	client := gemini.NewClient("key")
	_, err := client.Generate(context.Background(), news.RawItem{}, news.CategoryOther)
	if err == nil || services.IsRetryable(err) {
		t.Fatalf("expected validation error for empty item, got %v", err)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := gemini.NewClient("")
	_, err := client.Generate(context.Background(), testItem(), news.CategoryOther)
	if err == nil || services.IsRetryable(err) {
		t.Fatalf("expected configuration error without api key, got %v", err)
	}
}
