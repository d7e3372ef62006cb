// Package main provides the entry point for the scan CLI.
//
// scan is an AI-assisted web vulnerability scanner. It renders a target
// site in a headless browser, separates application JavaScript from
// vendor bundles, extracts security-relevant evidence, and asks a
// language model for a strict OWASP Top 10 report.
//
// Usage:
//
//	scan --url https://example.com
//	scan --list targets.txt
//
// See --help for all available options.
package main

// main is the entry point for the scanner.
func main() {
	Execute()
}
