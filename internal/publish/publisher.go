// Package publish owns the durable delivery queue: enqueueing one task per
// configured channel and draining due tasks through the channel publishers.
// Channels fail independently; one channel's outage never blocks another.
package publish

import (
	"context"

	"ancile/internal/news"
)

// Publisher delivers one article to a single destination channel.
// Implementations tag failures with the services sentinel errors so the
// dispatcher can decide between retry and terminal failure. The returned
// reference identifies the remote record when the channel provides one.
type Publisher interface {
	Channel() news.Channel
	Publish(ctx context.Context, article *news.Article) (remoteRef string, err error)
}
