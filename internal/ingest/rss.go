package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ancile/internal/config"
	"ancile/internal/logging"
	"ancile/internal/news"
	"ancile/internal/services"
)

const (
	defaultFeedTimeout = 30 * time.Second
	maxFeedBody        = 10 << 20
	userAgent          = "ancile/1.0 (+feed-reader)"
)

// FeedSource ingests one RSS or Atom feed.
type FeedSource struct {
	feed       config.Feed
	lookback   time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewSources builds one source per configured feed.
func NewSources(cfg config.Ingest, logger *slog.Logger) []Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultFeedTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &http.Client{Timeout: timeout}

	sources := make([]Source, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		sources = append(sources, &FeedSource{
			feed:       feed,
			lookback:   time.Duration(cfg.LookbackHours) * time.Hour,
			httpClient: client,
			logger:     logger.With(logging.String("component", "ingest"), logging.String("source", feed.SourceID)),
			now:        time.Now,
		})
	}
	return sources
}

// Name returns the configured source id.
func (f *FeedSource) Name() string {
	return f.feed.SourceID
}

// Fetch downloads the feed and returns the entries inside the lookback
// window, oldest first. Entries without a parseable timestamp are kept; the
// window only applies when the feed dates its items.
func (f *FeedSource) Fetch(ctx context.Context) ([]news.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: request: %w", f.feed.SourceID, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch", f.feed.SourceID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			marker = services.ErrConfiguration
		}
		return nil, services.Wrap(marker, "ingest", "fetch",
			fmt.Sprintf("%s: status %d", f.feed.SourceID, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ingest", "fetch", f.feed.SourceID, err)
	}

	entries, err := parseFeed(body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "parse", f.feed.SourceID, err)
	}

	cutoff := time.Time{}
	if f.lookback > 0 {
		cutoff = f.now().UTC().Add(-f.lookback)
	}
	items := make([]news.RawItem, 0, len(entries))
	for _, entry := range entries {
		if entry.link == "" || entry.title == "" {
			continue
		}
		published := parseFeedTime(entry.published)
		if !cutoff.IsZero() && !published.IsZero() && published.Before(cutoff) {
			continue
		}
		items = append(items, news.RawItem{
			SourceID:     f.feed.SourceID,
			SourceName:   entry.sourceName,
			ExternalURL:  entry.link,
			Title:        strings.TrimSpace(entry.title),
			BodyExcerpt:  stripHTML(entry.description),
			PublishedAt:  published,
			CategoryHint: news.Category(f.feed.Category),
		})
	}
	f.logger.Debug("feed fetched",
		logging.Int("entries", len(entries)),
		logging.Int("in_window", len(items)))
	return items, nil
}

type feedEntry struct {
	title       string
	link        string
	description string
	published   string
	sourceName  string
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDocument struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Entries []struct {
		Title   string     `xml:"title"`
		Links   []atomLink `xml:"link"`
		Summary string     `xml:"summary"`
		Content string     `xml:"content"`
		Updated string     `xml:"updated"`
	} `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// parseFeed handles both RSS 2.0 and Atom documents.
func parseFeed(body []byte) ([]feedEntry, error) {
	var rss rssDocument
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		entries := make([]feedEntry, 0, len(rss.Channel.Items))
		for _, item := range rss.Channel.Items {
			entries = append(entries, feedEntry{
				title:       item.Title,
				link:        strings.TrimSpace(item.Link),
				description: item.Description,
				published:   item.PubDate,
				sourceName:  strings.TrimSpace(rss.Channel.Title),
			})
		}
		return entries, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil, fmt.Errorf("not a recognized feed format: %w", err)
	}
	entries := make([]feedEntry, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		link := ""
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		description := entry.Summary
		if description == "" {
			description = entry.Content
		}
		entries = append(entries, feedEntry{
			title:       entry.Title,
			link:        strings.TrimSpace(link),
			description: description,
			published:   entry.Updated,
			sourceName:  strings.TrimSpace(atom.Title),
		})
	}
	return entries, nil
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range feedTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// stripHTML flattens feed markup into plain text for the excerpt.
func stripHTML(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || !strings.Contains(value, "<") {
		return value
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
