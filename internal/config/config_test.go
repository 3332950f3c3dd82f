package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ancile/internal/config"
	"ancile/internal/news"
)

func validConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Gemini.APIKey = "test-key"
	cfg.Strapi.APIToken = "test-token"
	base := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return cfg
}

func TestDefaultsValidateWithCredentials(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with credentials should validate: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.Gemini.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure without gemini.api_key")
	}
	if !strings.Contains(err.Error(), "gemini.api_key") {
		t.Errorf("error %q does not name the missing key", err)
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg := validConfig(t)
	cfg.Relevance.Threshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for threshold above 1")
	}
}

func TestValidateRejectsInvertedWordBand(t *testing.T) {
	cfg := validConfig(t)
	cfg.Rewrite.MinWords = 3000
	cfg.Rewrite.MaxWords = 1500
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for inverted word band")
	}
}

func TestValidateSocialNeedsWebhook(t *testing.T) {
	cfg := validConfig(t)
	cfg.Social.Enabled = true
	cfg.Social.WebhookURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for social without webhook url")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, path, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		// Defaults alone fail validation because credentials are absent.
		t.Fatal("expected credential validation error when loading defaults")
	}
	_ = path
	_ = exists
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[gemini]
api_key = "file-key"
model = "gemini-test"

[strapi]
api_token = "file-token"

[pipeline]
max_articles_per_run = 9
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Error("expected exists=true for written file")
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Gemini.APIKey != "file-key" {
		t.Errorf("api key = %q, want file-key", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-test" {
		t.Errorf("model = %q, want gemini-test", cfg.Gemini.Model)
	}
	if cfg.Pipeline.MaxArticlesPerRun != 9 {
		t.Errorf("max articles = %d, want 9", cfg.Pipeline.MaxArticlesPerRun)
	}
	// Unset sections keep their defaults.
	if cfg.Relevance.Threshold != 0.7 {
		t.Errorf("threshold = %.2f, want default 0.7", cfg.Relevance.Threshold)
	}
}

func TestChannelsFollowSocialToggle(t *testing.T) {
	cfg := validConfig(t)
	channels := cfg.Channels()
	if len(channels) != 1 || channels[0] != news.ChannelContentStore {
		t.Fatalf("channels = %v, want content_store only", channels)
	}

	cfg.Social.Enabled = true
	cfg.Social.WebhookURL = "https://hook.example.com/x"
	channels = cfg.Channels()
	if len(channels) != 2 {
		t.Fatalf("channels = %v, want both channels", channels)
	}
}

func TestWriteSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.WriteSample(path, false); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[gemini]") {
		t.Error("sample config missing [gemini] section")
	}
}

func TestWriteSampleOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte("stale = true\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := config.WriteSample(path, false); err == nil {
		t.Fatal("expected error without overwrite")
	}

	if err := config.WriteSample(path, true); err != nil {
		t.Fatalf("WriteSample with overwrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if strings.Contains(string(data), "stale") {
		t.Error("existing content was not replaced")
	}
}
