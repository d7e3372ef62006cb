// Package model defines the core data structures used throughout the scanner.
//
// This package contains the following main types:
//   - Page: a browser-rendered web page with its extracted script assets
//   - ScriptAsset: a single external or inline JavaScript asset
//   - Classification: the core/vendor verdict for a script asset
//   - Report: the strict-schema OWASP Top 10 analysis result
//   - ScanReport: the top-level per-target scan artifact
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, classify, analysis, report) need
// to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
