package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names recognized by ApplyEnv.
// These names are part of the tool's documented interface and must not
// change between releases.
const (
	// EnvStartURL supplies a target URL when no --url flag is given.
	EnvStartURL = "START_URL"

	// EnvCrawlMaxDepth sets the maximum crawl depth.
	EnvCrawlMaxDepth = "CRAWL_MAX_DEPTH"

	// EnvCrawlConcurrency sets the number of concurrent target scans.
	EnvCrawlConcurrency = "CRAWL_CONCURRENCY"

	// EnvOpenAIAPIKey authenticates language-model calls.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// EnvModelName selects the language model. Takes precedence over
	// EnvOpenAIModel when both are set.
	EnvModelName = "MODEL_NAME"

	// EnvOpenAIModel is the alternative model selector.
	EnvOpenAIModel = "OPENAI_MODEL"

	// EnvOpenAIBaseURL overrides the OpenAI-compatible endpoint.
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"

	// EnvReportDir sets the artifact output directory.
	EnvReportDir = "REPORT_DIR"
)

// Payload-guard environment variables. Each overrides one field of
// PayloadGuards; see the analysis package shrinker.
const (
	EnvMaxTotalChars            = "MAX_TOTAL_CHARS"
	EnvMaxHTMLEvidencePerBucket = "MAX_HTML_EVIDENCE_PER_BUCKET"
	EnvMaxJSFiles               = "MAX_JS_FILES"
	EnvMaxJSEvidencePerFile     = "MAX_JS_EVIDENCE_PER_FILE"
	EnvMaxStrField              = "MAX_STR_FIELD"
)

// LoadDotEnv loads a .env file from the current directory into the
// process environment, if one exists. A missing file is not an error;
// keys already present in the environment are never overwritten.
func LoadDotEnv() {
	// godotenv.Load returns an error for a missing file; that is the
	// common case and intentionally ignored.
	_ = godotenv.Load() //nolint:errcheck // .env is optional
}

// ApplyEnv overlays environment variables onto the config.
// Only variables that are actually set modify the config, so flag
// handling can run afterwards and win.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvStartURL); v != "" && len(c.Targets) == 0 {
		c.Targets = []string{v}
	}

	if v := os.Getenv(EnvCrawlMaxDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CrawlMaxDepth = n
		}
	}

	if v := os.Getenv(EnvCrawlConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CrawlConcurrency = n
		}
	}

	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		c.OpenAIAPIKey = v
	}

	// MODEL_NAME wins over OPENAI_MODEL, so apply OPENAI_MODEL first.
	if v := os.Getenv(EnvOpenAIModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvModelName); v != "" {
		c.Model = v
	}

	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.OpenAIBaseURL = v
	}

	if v := os.Getenv(EnvReportDir); v != "" {
		c.ReportDir = v
	}

	c.Guards.MaxTotalChars = envInt(EnvMaxTotalChars, c.Guards.MaxTotalChars)
	c.Guards.MaxHTMLEvidencePerBucket = envInt(EnvMaxHTMLEvidencePerBucket, c.Guards.MaxHTMLEvidencePerBucket)
	c.Guards.MaxJSFiles = envInt(EnvMaxJSFiles, c.Guards.MaxJSFiles)
	c.Guards.MaxJSEvidencePerFile = envInt(EnvMaxJSEvidencePerFile, c.Guards.MaxJSEvidencePerFile)
	c.Guards.MaxStrField = envInt(EnvMaxStrField, c.Guards.MaxStrField)
}

// envInt returns the integer value of an environment variable,
// or the fallback when unset or unparseable.
func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
