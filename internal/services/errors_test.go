package services_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"ancile/internal/services"
)

func TestWrapTagsSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "publish", "strapi", "request failed", cause)

	if !errors.Is(err, services.ErrTransient) {
		t.Error("wrapped error lost its sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "ingest", "fetch", "timeout", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Error("nil marker should default to transient")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrTransient, "a", "b", "c", nil), true},
		{services.Wrap(services.ErrRateLimited, "a", "b", "c", nil), true},
		{services.Wrap(services.ErrValidation, "a", "b", "c", nil), false},
		{services.Wrap(services.ErrConfiguration, "a", "b", "c", nil), false},
		{services.Wrap(services.ErrFatal, "a", "b", "c", nil), false},
		{fmt.Errorf("untagged network blip"), true},
		{nil, false},
	}
	for _, tt := range tests {
		if got := services.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsRateLimitedAndFatal(t *testing.T) {
	limited := services.Wrap(services.ErrRateLimited, "rewrite", "generate", "quota", nil)
	if !services.IsRateLimited(limited) {
		t.Error("rate limit tag lost")
	}
	if services.IsFatal(limited) {
		t.Error("rate limit must not be fatal")
	}
	fatal := services.Wrap(services.ErrFatal, "pipeline", "run", "store unavailable", nil)
	if !services.IsFatal(fatal) {
		t.Error("fatal tag lost")
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second
	cap := 60 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 60 * time.Second},
		{50, 60 * time.Second},
		{0, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := services.BackoffDelay(base, cap, tt.attempt); got != tt.want {
			t.Errorf("BackoffDelay(attempt=%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}

	if got := services.BackoffDelay(0, cap, 3); got != 0 {
		t.Errorf("zero base should disable backoff, got %s", got)
	}
	if got := services.BackoffDelay(base, 0, 10); got != 1024*time.Second {
		t.Errorf("zero cap should not clamp, got %s", got)
	}
}
