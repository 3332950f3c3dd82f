package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ancile/internal/config"
	"ancile/internal/ingest"
	"ancile/internal/news"
)

func rssBody(pubDate string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Wire</title>
    <item>
      <title>Sanctions expanded against shipping firms</title>
      <link>https://example.com/story/1</link>
      <description>&lt;p&gt;New measures &lt;b&gt;target&lt;/b&gt; maritime insurers.&lt;/p&gt;</description>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://example.com/story/notitle</link>
    </item>
  </channel>
</rss>`, pubDate)
}

const atomBody = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry>
    <title>Carrier group deployed</title>
    <link rel="alternate" href="https://example.com/atom/1"/>
    <summary>Naval forces repositioned.</summary>
    <updated>2026-08-29T10:00:00Z</updated>
  </entry>
</feed>`

func newSource(t *testing.T, url string, lookbackHours int) ingest.Source {
	t.Helper()
	sources := ingest.NewSources(config.Ingest{
		Feeds:         []config.Feed{{SourceID: "wire", URL: url, Category: "geopolitics"}},
		LookbackHours: lookbackHours,
	}, nil)
	if len(sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(sources))
	}
	return sources[0]
}

func TestFetchParsesRSS(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssBody(recent)))
	}))
	defer server.Close()

	source := newSource(t, server.URL, 24)
	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (untitled entry dropped)", len(items))
	}

	item := items[0]
	if item.SourceID != "wire" {
		t.Errorf("source id = %q", item.SourceID)
	}
	if item.SourceName != "Example Wire" {
		t.Errorf("source name = %q", item.SourceName)
	}
	if item.ExternalURL != "https://example.com/story/1" {
		t.Errorf("url = %q", item.ExternalURL)
	}
	if item.BodyExcerpt != "New measures target maritime insurers." {
		t.Errorf("excerpt = %q, markup should be stripped", item.BodyExcerpt)
	}
	if item.CategoryHint != news.CategoryGeopolitics {
		t.Errorf("category hint = %q", item.CategoryHint)
	}
	if item.PublishedAt.IsZero() {
		t.Error("pubDate was not parsed")
	}
}

func TestFetchParsesAtom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomBody))
	}))
	defer server.Close()

	source := newSource(t, server.URL, 0)
	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Title != "Carrier group deployed" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].ExternalURL != "https://example.com/atom/1" {
		t.Errorf("url = %q", items[0].ExternalURL)
	}
	if items[0].BodyExcerpt != "Naval forces repositioned." {
		t.Errorf("excerpt = %q", items[0].BodyExcerpt)
	}
}

func TestFetchAppliesLookbackWindow(t *testing.T) {
	stale := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC1123Z)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssBody(stale)))
	}))
	defer server.Close()

	source := newSource(t, server.URL, 24)
	items, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, stale entries should be windowed out", len(items))
	}
}

func TestFetchServerErrorFailsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := newSource(t, server.URL, 24)
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestFetchRejectsNonFeedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer server.Close()

	source := newSource(t, server.URL, 24)
	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-feed payload")
	}
}
