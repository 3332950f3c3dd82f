package config

import (
	"errors"
	"fmt"
	"strings"

	"ancile/internal/news"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateRelevance(); err != nil {
		return err
	}
	if err := c.validateRewrite(); err != nil {
		return err
	}
	if err := c.validateChannels(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGemini() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ancile/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Edit %s (create with 'ancile config init')", defaultPath)
	}
	if c.Gemini.Model == "" {
		return errors.New("gemini.model must be set")
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		return errors.New("gemini.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRelevance() error {
	if c.Relevance.Threshold < 0 || c.Relevance.Threshold > 1 {
		return errors.New("relevance.threshold must be between 0 and 1")
	}
	if c.Relevance.ScoreCeiling <= 0 {
		return errors.New("relevance.score_ceiling must be positive")
	}
	if len(c.Relevance.Categories) == 0 {
		return errors.New("relevance.categories must declare at least one category")
	}
	seen := make(map[string]struct{}, len(c.Relevance.Categories))
	for _, category := range c.Relevance.Categories {
		if _, ok := news.ParseCategory(category.Name); !ok {
			return fmt.Errorf("relevance.categories: unknown category %q", category.Name)
		}
		if _, dup := seen[category.Name]; dup {
			return fmt.Errorf("relevance.categories: category %q declared twice", category.Name)
		}
		seen[category.Name] = struct{}{}
		if len(category.Keywords) == 0 {
			return fmt.Errorf("relevance.categories: category %q has no keywords", category.Name)
		}
		for _, keyword := range category.Keywords {
			if strings.TrimSpace(keyword.Term) == "" {
				return fmt.Errorf("relevance.categories: category %q has an empty keyword", category.Name)
			}
			if keyword.Weight <= 0 {
				return fmt.Errorf("relevance.categories: keyword %q must have a positive weight", keyword.Term)
			}
		}
	}
	return nil
}

func (c *Config) validateRewrite() error {
	if c.Rewrite.MinWords <= 0 || c.Rewrite.MaxWords <= 0 {
		return errors.New("rewrite word band must be positive")
	}
	if c.Rewrite.MinWords >= c.Rewrite.MaxWords {
		return errors.New("rewrite.min_words must be below rewrite.max_words")
	}
	if c.Rewrite.MaxAttempts < 1 {
		return errors.New("rewrite.max_attempts must be at least 1")
	}
	if c.Rewrite.BackoffBaseSeconds < 1 || c.Rewrite.BackoffCapSeconds < c.Rewrite.BackoffBaseSeconds {
		return errors.New("rewrite backoff settings are inconsistent")
	}
	if c.Rewrite.RequestsPerMinute < 1 {
		return errors.New("rewrite.requests_per_minute must be at least 1")
	}
	for _, mapping := range c.Rewrite.Terminology {
		if strings.TrimSpace(mapping.Raw) == "" || strings.TrimSpace(mapping.Replacement) == "" {
			return errors.New("rewrite.terminology entries need both raw and replacement")
		}
	}
	return nil
}

func (c *Config) validateChannels() error {
	if c.Strapi.URL == "" {
		return errors.New("strapi.url must be set")
	}
	if strings.TrimSpace(c.Strapi.APIToken) == "" {
		return errors.New("strapi.api_token is required")
	}
	if c.Strapi.Collection == "" {
		return errors.New("strapi.collection must be set")
	}
	if c.Social.Enabled && c.Social.WebhookURL == "" {
		return errors.New("social.webhook_url is required when social.enabled is true")
	}
	if c.Publish.MaxAttempts < 1 {
		return errors.New("publish.max_attempts must be at least 1")
	}
	if c.Publish.BackoffBaseSeconds < 1 || c.Publish.BackoffCapSeconds < c.Publish.BackoffBaseSeconds {
		return errors.New("publish backoff settings are inconsistent")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxArticlesPerRun < 1 {
		return errors.New("pipeline.max_articles_per_run must be at least 1")
	}
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.RunTimeoutSeconds < 1 {
		return errors.New("pipeline.run_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.LookbackHours < 1 {
		return errors.New("ingest.lookback_hours must be at least 1")
	}
	for _, feed := range c.Ingest.Feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return errors.New("ingest.feeds entries need a url")
		}
		if feed.Category != "" {
			if _, ok := news.ParseCategory(feed.Category); !ok {
				return fmt.Errorf("ingest.feeds: unknown category %q for %s", feed.Category, feed.URL)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
