// Package testsupport provides shared helpers for package tests: seeded
// configs with unique temp directories and an opened store with cleanup.
package testsupport

import (
	"path/filepath"
	"testing"

	"ancile/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Gemini.APIKey = "test"
	cfg.Strapi.URL = "http://127.0.0.1:1"
	cfg.Strapi.APIToken = "test"
	cfg.Social.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSocialEnabled turns on the social channel with a stand-in webhook.
func WithSocialEnabled(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Social.Enabled = true
		cfg.Social.WebhookURL = url
	}
}

// WithMaxArticles caps the per-run article quota on the test config.
func WithMaxArticles(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxArticlesPerRun = n
	}
}
