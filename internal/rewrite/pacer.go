package rewrite

import (
	"context"
	"sync"
	"time"
)

// pacer spaces upstream requests so the run stays under the provider's
// per-minute quota even with concurrent workers. A zero rate disables pacing.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

func newPacer(requestsPerMinute int) *pacer {
	p := &pacer{now: time.Now}
	if requestsPerMinute > 0 {
		p.interval = time.Minute / time.Duration(requestsPerMinute)
	}
	return p
}

// wait blocks until this caller's slot arrives or the context ends. Slots are
// handed out in call order, one interval apart.
func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	p.mu.Lock()
	now := p.now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
