package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These match the reference defaults of the analysis pipeline where one
// exists, and are otherwise chosen to be safe for unattended scans.
const (
	// DefaultReportDir is where scan artifacts are written: the rendered
	// page, retained core scripts, and the analysis reports.
	DefaultReportDir = "crawl_out"

	// DefaultCrawlMaxDepth of 0 renders only the start page. Sub-page
	// crawling is opt-in because every crawled page is rendered in a
	// full browser, which is expensive.
	DefaultCrawlMaxDepth = 0

	// DefaultCrawlConcurrency is the number of targets scanned in
	// parallel when a list file is given. Each concurrent scan holds a
	// browser tab and an LLM request in flight, so this stays small.
	DefaultCrawlConcurrency = 2

	// DefaultMaxPages caps pages rendered per target. This prevents
	// runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 20

	// DefaultTimeout is the per-request timeout for page rendering and
	// script fetching. Rendering includes script execution, so this is
	// more generous than a plain HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultSettleDelay is how long the renderer waits after navigation
	// before serializing the DOM, giving client-side frameworks time to
	// mount and fetch their initial data.
	DefaultSettleDelay = 2500 * time.Millisecond

	// DefaultCrawlDelay is the politeness delay between page renders.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultScriptFetchRate limits external script downloads per second.
	DefaultScriptFetchRate = 4

	// DefaultMaxBodySize limits response bodies read when fetching
	// scripts. 10MB accommodates large app bundles while preventing
	// memory exhaustion.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies the scanner in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

	// DefaultModel is the language model used when neither MODEL_NAME
	// nor OPENAI_MODEL is set.
	DefaultModel = "gpt-4o-mini"

	// DefaultOpenAIBaseURL is the OpenAI-compatible API endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultLLMTimeout is the timeout for one language-model call.
	// Large evidence payloads can take minutes to process.
	DefaultLLMTimeout = 4 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "webscan"
)

// Payload-guard defaults. These bound the size of the evidence payload
// sent to the analysis model; see the analysis package shrinker.
const (
	// DefaultMaxTotalChars bounds the serialized user payload.
	DefaultMaxTotalChars = 220000

	// DefaultMaxHTMLEvidencePerBucket caps each HTML evidence list.
	DefaultMaxHTMLEvidencePerBucket = 50

	// DefaultMaxJSFiles caps the number of script files in the payload.
	DefaultMaxJSFiles = 50

	// DefaultMaxJSEvidencePerFile caps pattern hits quoted per file.
	DefaultMaxJSEvidencePerFile = 25

	// DefaultMaxStrField caps general string fields. Offending-tag
	// outer HTML is exempt and never truncated.
	DefaultMaxStrField = 4000
)

// Config holds all configuration options for the scanner.
// This struct is designed to be populated from defaults, environment
// variables and CLI flags, and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CrawlConfig, LLMConfig) for simplicity. The number of options is
// manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// Targets is the list of start URLs to scan.
	Targets []string

	// ReportDir is the directory scan artifacts are written to.
	// Comes from --out or REPORT_DIR; defaults to "crawl_out".
	// With multiple targets, each target gets a subdirectory.
	ReportDir string

	// Modules restricts confirmed findings to the named vulnerability
	// classes (e.g. "xss", "sqli"). Empty means report everything.
	Modules []string

	// CrawlMaxDepth is the maximum link depth to follow from the start
	// URL. 0 renders only the start page.
	CrawlMaxDepth int

	// CrawlConcurrency is the number of targets scanned concurrently
	// when more than one target is given.
	CrawlConcurrency int

	// MaxPages caps pages rendered per target.
	MaxPages int

	// Timeout is the per-request timeout for rendering and fetching.
	Timeout time.Duration

	// SettleDelay is the post-navigation wait before DOM serialization.
	SettleDelay time.Duration

	// CrawlDelay is the politeness delay between page renders.
	CrawlDelay time.Duration

	// MaxBodySize limits response bodies read when fetching scripts.
	MaxBodySize int64

	// UserAgent is sent with all HTTP requests and browser navigation.
	UserAgent string

	// Headless controls whether the browser runs without a window.
	// Disabled only for debugging scan behavior interactively.
	Headless bool

	// Screenshot enables full-page PNG capture of the start page.
	Screenshot bool

	// SkipAnalysis stops the pipeline after classification, producing
	// crawl artifacts but no vulnerability report. Useful when the
	// OpenAI key is unavailable or the analysis will be run later.
	SkipAnalysis bool

	// OpenAIAPIKey authenticates language-model calls. Required unless
	// SkipAnalysis is set.
	OpenAIAPIKey string

	// OpenAIBaseURL is the OpenAI-compatible endpoint base URL.
	// Override to point at a local or proxied deployment.
	OpenAIBaseURL string

	// Model is the language model name. MODEL_NAME takes precedence
	// over OPENAI_MODEL when both are set.
	Model string

	// LLMTimeout bounds a single language-model call.
	LLMTimeout time.Duration

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONOnly suppresses the HTML report and terminal summary,
	// emitting only owasp_top10_report.json.
	JSONOnly bool

	// HTMLReport controls whether the HTML report file is written.
	// Enabled by default.
	HTMLReport bool

	// MarkdownReport additionally writes a Markdown report.
	MarkdownReport bool

	// DBDir is the directory for the scan-history SQLite database.
	// Defaults to the XDG data directory. Empty disables persistence.
	DBDir string

	// SaveToDB indicates whether scan results are persisted.
	SaveToDB bool

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// ConfigFilePath is an explicit site config file path. If empty,
	// the tool searches the current and home directories.
	ConfigFilePath string

	// Guards bound the analysis payload size.
	Guards PayloadGuards
}

// PayloadGuards bound the evidence payload sent to the analysis model.
// Oversized payloads are shrunk in stages; see analysis.ShrinkPayload.
type PayloadGuards struct {
	// MaxTotalChars bounds the serialized payload length.
	MaxTotalChars int

	// MaxHTMLEvidencePerBucket caps each HTML evidence list.
	MaxHTMLEvidencePerBucket int

	// MaxJSFiles caps script files included in the payload.
	MaxJSFiles int

	// MaxJSEvidencePerFile caps pattern hits quoted per file.
	MaxJSEvidencePerFile int

	// MaxStrField caps general string fields, except outer HTML.
	MaxStrField int
}

// DefaultPayloadGuards returns the built-in payload guard values.
func DefaultPayloadGuards() PayloadGuards {
	return PayloadGuards{
		MaxTotalChars:            DefaultMaxTotalChars,
		MaxHTMLEvidencePerBucket: DefaultMaxHTMLEvidencePerBucket,
		MaxJSFiles:               DefaultMaxJSFiles,
		MaxJSEvidencePerFile:     DefaultMaxJSEvidencePerFile,
		MaxStrField:              DefaultMaxStrField,
	}
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeouts, limits).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		ReportDir:        DefaultReportDir,
		CrawlMaxDepth:    DefaultCrawlMaxDepth,
		CrawlConcurrency: DefaultCrawlConcurrency,
		MaxPages:         DefaultMaxPages,
		Timeout:          DefaultTimeout,
		SettleDelay:      DefaultSettleDelay,
		CrawlDelay:       DefaultCrawlDelay,
		MaxBodySize:      DefaultMaxBodySize,
		UserAgent:        DefaultUserAgent,
		Headless:         true,
		HTMLReport:       true,
		OpenAIBaseURL:    DefaultOpenAIBaseURL,
		Model:            DefaultModel,
		LLMTimeout:       DefaultLLMTimeout,
		Guards:           DefaultPayloadGuards(),
	}
}

// XDGDataDir returns the XDG data directory for the scanner.
// On Linux: ~/.local/share/webscan
// On macOS: ~/Library/Application Support/webscan
// On Windows: %LOCALAPPDATA%\webscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.CrawlMaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.CrawlConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Analysis needs an API key; crawling alone does not.
	if !c.SkipAnalysis && c.OpenAIAPIKey == "" {
		return ErrMissingAPIKey
	}

	return nil
}
