// Package main provides the entry point for the scan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
)

// NewRootCmd creates the root command for the scanner.
// The scan itself runs on the root command so the tool can be invoked as
// `scan --url <url>` without a subcommand.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "AI-assisted OWASP Top 10 scanner for web applications",
		Long: `scan renders web pages in a headless browser, classifies their JavaScript
into application code and vendor bundles, extracts security-relevant
evidence, and asks a language model for definitive OWASP Top 10 findings.

Results are written to the report directory:
  page.html                 rendered DOM of the start page
  core_js/                  retained application scripts
  core_js_list.txt          one retained filename per line
  core_js_urls.json         classification verdicts
  input_urls.txt            scanned start URL
  owasp_top10_report.json   machine-readable findings
  owasp_top10_report.html   human-readable findings

Examples:
  # Scan a single site
  scan --url https://example.com

  # Scan every URL in a file, capturing screenshots
  scan --list targets.txt --screenshot

  # Report only XSS and SQL injection findings
  scan --url https://example.com --modules xss,sqli

  # Crawl two levels deep without calling the language model
  scan --url https://example.com --depth 2 --skip-analysis`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScanCmd,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Target selection flags
	cmd.Flags().StringP("url", "u", "", "Start URL to scan")
	cmd.Flags().StringP("list", "l", "", "File with one start URL per line")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlMaxDepth,
		"Maximum link depth to follow from the start URL (0 renders only the start page)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to render per target")
	cmd.Flags().Int("concurrency", config.DefaultCrawlConcurrency,
		"Number of targets scanned concurrently")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Per-page render and fetch timeout")
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window (disable for interactive debugging)")
	cmd.Flags().Bool("screenshot", false,
		"Capture a full-page PNG of the start page")

	// Analysis flags
	cmd.Flags().StringSlice("modules", nil,
		"Vulnerability classes to report (e.g. xss,sqli); empty reports everything")
	cmd.Flags().Bool("skip-analysis", false,
		"Stop after classification; produce crawl artifacts but no vulnerability report")
	cmd.Flags().String("model", "",
		"Language model name (overrides MODEL_NAME / OPENAI_MODEL)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Site configuration file path (default: .webscan in current or home directory)")

	// Report flags
	cmd.Flags().StringP("out", "o", "",
		"Report directory (default: crawl_out, or REPORT_DIR)")
	cmd.Flags().BoolP("json", "j", false,
		"Emit only the JSON report; suppress the HTML report and terminal summary")
	cmd.Flags().Bool("html", true,
		"Write the HTML report file")
	cmd.Flags().BoolP("markdown", "m", false,
		"Additionally write a Markdown report")

	// Add subcommands
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
