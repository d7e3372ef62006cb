// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, API keys)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Provider API keys (OpenAI, Google, AWS)
//   - Session identifiers and authentication tokens
//
// A scanner routinely handles material that must not leak: the OpenAI key
// it authenticates with, site cookies from the config file, and secrets
// it discovers inside scanned pages. Even in verbose mode, sensitive
// values are masked to prevent accidental exposure in logs that may be
// shared or stored.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("rendering page",
//	    "cookie", "session=abc123",  // Will be sanitized
//	    "url", "https://example.com",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
