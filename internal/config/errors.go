package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no target URL or list file is specified.
	// This error occurs when neither --url, --list, nor START_URL provides
	// a target.
	ErrNoTarget = errors.New("no target specified: use --url, --list, or set START_URL")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	// Use 0 to render only the start page.
	ErrInvalidDepth = errors.New("invalid crawl depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the crawl concurrency is not
	// positive. A concurrency of zero would mean no scanning at all.
	ErrInvalidConcurrency = errors.New("invalid crawl concurrency: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A zero or negative timeout would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to apply the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrMissingAPIKey is returned when analysis is requested without an
	// OpenAI API key. Set OPENAI_API_KEY or pass --skip-analysis to produce
	// crawl artifacts without a vulnerability report.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set (use --skip-analysis to crawl without analyzing)")
)
