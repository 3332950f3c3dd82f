// Package services defines the error taxonomy shared by every stage that
// talks to an external collaborator. Stages tag failures with a sentinel so
// the rewrite loop and the channel dispatcher can classify without inspecting
// message text.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks timeouts, 5xx responses, and connection failures.
	// Eligible for bounded retry with short backoff.
	ErrTransient = errors.New("transient failure")
	// ErrRateLimited marks explicit rate-limit signals from an upstream
	// service. Eligible for retry with the longer configured backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrValidation marks rejected or malformed payloads. Never retried with
	// identical input; terminal for the unit of work.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration, such as a
	// revoked credential. Terminal.
	ErrConfiguration = errors.New("configuration error")
	// ErrFatal marks failures that make the whole run unsafe to continue,
	// such as an unreachable persistence layer.
	ErrFatal = errors.New("fatal failure")
)

// Wrap builds an error that includes stage context while tagging it with the
// provided sentinel for later classification. A nil marker defaults to
// ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error is eligible for automatic retry.
// Untagged errors are treated as transient so an unclassified network hiccup
// never becomes terminal by accident.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrFatal):
		return false
	default:
		return true
	}
}

// IsRateLimited reports whether the error carries an upstream rate-limit tag.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsFatal reports whether the error must abort the entire run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
