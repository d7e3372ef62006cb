package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestConfigValidate tests configuration validation rules.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"https://example.com"}
		cfg.OpenAIAPIKey = "test-key"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()

		if err := valid().Validate(); err != nil {
			t.Errorf("expected valid config, got error: %v", err)
		}
	})

	t.Run("no target", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.Targets = nil
		if err := cfg.Validate(); !errors.Is(err, ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("negative depth", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.CrawlMaxDepth = -1
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidDepth) {
			t.Errorf("expected ErrInvalidDepth, got %v", err)
		}
	})

	t.Run("zero concurrency", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.CrawlConcurrency = 0
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConcurrency) {
			t.Errorf("expected ErrInvalidConcurrency, got %v", err)
		}
	})

	t.Run("missing API key", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.OpenAIAPIKey = ""
		if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("skip-analysis tolerates missing key", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.OpenAIAPIKey = ""
		cfg.SkipAnalysis = true
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil error with --skip-analysis, got %v", err)
		}
	})
}

// TestApplyEnv tests environment variable overlays.
// Environment mutation means these subtests cannot run in parallel.
func TestApplyEnv(t *testing.T) {
	t.Run("start url fills empty targets", func(t *testing.T) {
		t.Setenv(EnvStartURL, "https://env.example.com")

		cfg := NewConfig()
		cfg.ApplyEnv()
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://env.example.com" {
			t.Errorf("expected START_URL target, got %v", cfg.Targets)
		}
	})

	t.Run("start url does not override explicit target", func(t *testing.T) {
		t.Setenv(EnvStartURL, "https://env.example.com")

		cfg := NewConfig()
		cfg.Targets = []string{"https://flag.example.com"}
		cfg.ApplyEnv()
		if cfg.Targets[0] != "https://flag.example.com" {
			t.Errorf("expected explicit target to win, got %v", cfg.Targets)
		}
	})

	t.Run("MODEL_NAME wins over OPENAI_MODEL", func(t *testing.T) {
		t.Setenv(EnvOpenAIModel, "gpt-4o")
		t.Setenv(EnvModelName, "gpt-5")

		cfg := NewConfig()
		cfg.ApplyEnv()
		if cfg.Model != "gpt-5" {
			t.Errorf("expected MODEL_NAME to win, got %q", cfg.Model)
		}
	})

	t.Run("numeric variables parse", func(t *testing.T) {
		t.Setenv(EnvCrawlMaxDepth, "3")
		t.Setenv(EnvCrawlConcurrency, "8")
		t.Setenv(EnvMaxTotalChars, "1000")

		cfg := NewConfig()
		cfg.ApplyEnv()
		if cfg.CrawlMaxDepth != 3 {
			t.Errorf("expected depth 3, got %d", cfg.CrawlMaxDepth)
		}
		if cfg.CrawlConcurrency != 8 {
			t.Errorf("expected concurrency 8, got %d", cfg.CrawlConcurrency)
		}
		if cfg.Guards.MaxTotalChars != 1000 {
			t.Errorf("expected guard 1000, got %d", cfg.Guards.MaxTotalChars)
		}
	})

	t.Run("unparseable numeric falls back", func(t *testing.T) {
		t.Setenv(EnvCrawlMaxDepth, "many")

		cfg := NewConfig()
		cfg.ApplyEnv()
		if cfg.CrawlMaxDepth != DefaultCrawlMaxDepth {
			t.Errorf("expected default depth, got %d", cfg.CrawlMaxDepth)
		}
	})
}

// TestLoadConfigFile tests YAML site configuration loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("sites and defaults merge", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  depth: 1
sites:
  app.example.com:
    cookie: "session=abc"
    depth: 3
`
		path := filepath.Join(t.TempDir(), ".webscan")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		site := cf.GetSiteConfig("app.example.com")
		if site.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", site.Cookie)
		}
		if site.Depth != 3 {
			t.Errorf("expected site depth 3, got %d", site.Depth)
		}

		other := cf.GetSiteConfig("other.example.com")
		if other.Depth != 1 {
			t.Errorf("expected default depth 1, got %d", other.Depth)
		}
	})
}
