// Package fingerprint derives the stable identifiers used for source
// deduplication. Two sightings of the same document must always produce the
// same fingerprint, so URL normalization here is deliberately conservative.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"ancile/internal/news"
	"ancile/internal/textutil"
)

// trackingParams are query parameters stripped during URL normalization.
// They vary per distribution channel without identifying a different document.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
}

// ForItem computes the dedup fingerprint for a raw item. The external URL is
// preferred; items without one fall back to a normalized title plus publish
// date. The empty string is returned only when neither is available.
func ForItem(item news.RawItem) string {
	if normalized := NormalizeURL(item.ExternalURL); normalized != "" {
		return hash(normalized)
	}
	title := textutil.NormalizeTitle(item.Title)
	if title == "" {
		return ""
	}
	day := ""
	if !item.PublishedAt.IsZero() {
		day = item.PublishedAt.UTC().Format(time.DateOnly)
	}
	return hash(title + "|" + day)
}

// NormalizeURL canonicalizes an external URL: scheme and host lowercased,
// trailing slash stripped, tracking parameters removed, fragment dropped.
// Unparseable or empty input yields the empty string.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for param := range query {
			if _, tracking := trackingParams[strings.ToLower(param)]; tracking {
				query.Del(param)
			}
		}
		parsed.RawQuery = encodeSorted(query)
	}
	return parsed.String()
}

// encodeSorted renders query values with sorted keys so parameter order never
// changes the fingerprint.
func encodeSorted(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		for _, value := range values[key] {
			if builder.Len() > 0 {
				builder.WriteByte('&')
			}
			builder.WriteString(url.QueryEscape(key))
			builder.WriteByte('=')
			builder.WriteString(url.QueryEscape(value))
		}
	}
	return builder.String()
}

func hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
