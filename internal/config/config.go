package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"ancile/internal/news"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Feed describes one RSS/Atom source polled during ingestion.
type Feed struct {
	SourceID string `toml:"source_id"`
	URL      string `toml:"url"`
	Category string `toml:"category"`
}

// Ingest contains configuration for the feed ingestion adapter.
type Ingest struct {
	Feeds          []Feed `toml:"feeds"`
	LookbackHours  int    `toml:"lookback_hours"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Keyword is one weighted relevance term.
type Keyword struct {
	Term   string  `toml:"term"`
	Weight float64 `toml:"weight"`
}

// CategoryKeywords binds an ordered keyword list to a category. Declaration
// order in the config file breaks scoring ties between categories.
type CategoryKeywords struct {
	Name     string    `toml:"name"`
	Keywords []Keyword `toml:"keywords"`
}

// Relevance contains configuration for the relevance filter.
type Relevance struct {
	// Threshold is the minimum score an item needs to enter the pipeline.
	Threshold float64 `toml:"threshold"`
	// ScoreCeiling normalizes the summed keyword weights into [0,1].
	ScoreCeiling float64            `toml:"score_ceiling"`
	Categories   []CategoryKeywords `toml:"categories"`
}

// TermMapping replaces a raw term with its institutional equivalent.
type TermMapping struct {
	Raw         string `toml:"raw"`
	Replacement string `toml:"replacement"`
}

// Rewrite contains configuration for the AI rewrite stage.
type Rewrite struct {
	MinWords               int           `toml:"min_words"`
	MaxWords               int           `toml:"max_words"`
	MaxAttempts            int           `toml:"max_attempts"`
	BackoffBaseSeconds     int           `toml:"backoff_base_seconds"`
	BackoffCapSeconds      int           `toml:"backoff_cap_seconds"`
	RateLimitPauseSeconds  int           `toml:"rate_limit_pause_seconds"`
	RequestsPerMinute      int           `toml:"requests_per_minute"`
	BannedTerms            []string      `toml:"banned_terms"`
	Terminology            []TermMapping `toml:"terminology"`
}

// Gemini contains connection settings for the generative rewriter.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Strapi contains configuration for the headless content store channel.
type Strapi struct {
	URL            string `toml:"url"`
	APIToken       string `toml:"api_token"`
	Collection     string `toml:"collection"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Social contains configuration for the social media channel. Publishing goes
// through an outbound automation webhook.
type Social struct {
	Enabled          bool   `toml:"enabled"`
	WebhookURL       string `toml:"webhook_url"`
	CaptionMaxLength int    `toml:"caption_max_length"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Publish contains retry and backoff configuration for channel dispatch.
type Publish struct {
	MaxAttempts        int `toml:"max_attempts"`
	BackoffBaseSeconds int `toml:"backoff_base_seconds"`
	BackoffCapSeconds  int `toml:"backoff_cap_seconds"`
}

// Pipeline contains per-run orchestration limits.
type Pipeline struct {
	MaxArticlesPerRun int `toml:"max_articles_per_run"`
	Concurrency       int `toml:"concurrency"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunSummaries   bool   `toml:"run_summaries"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Ancile.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Ingest: RSS/Atom feeds and lookback window
//   - Relevance: per-category keyword tables, weights, threshold
//   - Rewrite: word band, tone rules, retry/backoff, RPM cap
//   - Gemini: generative rewriter connection settings
//   - Strapi: headless content store channel
//   - Social: social media webhook channel
//   - Publish: dispatch retry/backoff
//   - Pipeline: batch size, concurrency, run deadline
//   - Notifications: ntfy settings
//   - Logging: format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Relevance     Relevance     `toml:"relevance"`
	Rewrite       Rewrite       `toml:"rewrite"`
	Gemini        Gemini        `toml:"gemini"`
	Strapi        Strapi        `toml:"strapi"`
	Social        Social        `toml:"social"`
	Publish       Publish       `toml:"publish"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ancile/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ancile.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path. An existing
// file is an error unless overwrite is set.
func WriteSample(path string, overwrite bool) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(expanded); err == nil {
			return fmt.Errorf("config file already exists at %s", expanded)
		}
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ancile.db")
}

// LockPath returns the file lock guarding against overlapping runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "run.lock")
}

// Channels returns the channels enabled by configuration, content store
// first. The content store channel is always on; social is optional.
func (c *Config) Channels() []news.Channel {
	channels := []news.Channel{news.ChannelContentStore}
	if c.Social.Enabled {
		channels = append(channels, news.ChannelSocialMedia)
	}
	return channels
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.Strapi.URL = strings.TrimRight(strings.TrimSpace(c.Strapi.URL), "/")
	c.Social.WebhookURL = strings.TrimSpace(c.Social.WebhookURL)
	for i := range c.Relevance.Categories {
		c.Relevance.Categories[i].Name = strings.ToLower(strings.TrimSpace(c.Relevance.Categories[i].Name))
	}
	return nil
}

// ExpandPath resolves a user-supplied path to an absolute one, expanding a
// leading ~ to the home directory.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
