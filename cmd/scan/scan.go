package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/analysis"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/classify"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/crawler"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/database"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/llm"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/log"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/pipeline"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/report"
)

// runScanCmd executes the scan from the root command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with secret masking
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Handle interrupt signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger)
}

// buildConfig creates a Config from defaults, a .env file, environment
// variables, and cobra flags, in that order. Flags win over environment
// variables, which is why only flags the user actually changed are applied.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	config.LoadDotEnv()
	cfg.ApplyEnv()

	targets, err := collectTargets(cmd, args)
	if err != nil {
		return nil, err
	}
	if len(targets) > 0 {
		cfg.Targets = targets
	}

	flags := cmd.Flags()

	if flags.Changed("depth") {
		if cfg.CrawlMaxDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.CrawlConcurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("out") {
		if cfg.ReportDir, err = flags.GetString("out"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("model") {
		if cfg.Model, err = flags.GetString("model"); err != nil {
			return nil, err
		}
	}

	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return nil, err
	}
	if cfg.Screenshot, err = flags.GetBool("screenshot"); err != nil {
		return nil, err
	}
	if cfg.SkipAnalysis, err = flags.GetBool("skip-analysis"); err != nil {
		return nil, err
	}
	if cfg.JSONOnly, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.HTMLReport, err = flags.GetBool("html"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.Verbose, err = getVerboseFlag(cmd); err != nil {
		return nil, err
	}

	modules, err := flags.GetStringSlice("modules")
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			cfg.Modules = append(cfg.Modules, m)
		}
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	// Scan history always goes to the XDG data directory
	cfg.SaveToDB = true
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// collectTargets gathers start URLs from --url, --list, and positional
// arguments, in that order.
func collectTargets(cmd *cobra.Command, args []string) ([]string, error) {
	var targets []string

	startURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}
	if startURL != "" {
		targets = append(targets, startURL)
	}

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile != "" {
		fromFile, err := readTargetList(listFile)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}

	targets = append(targets, args...)
	return targets, nil
}

// readTargetList reads start URLs from a file, one per line.
// Blank lines and lines starting with # are skipped.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}

	return targets, nil
}

// loadSiteConfigs loads per-site settings from the config file.
// An explicitly specified file must exist; otherwise a missing file
// silently yields an empty config.
func loadSiteConfigs(cfg *config.Config) error {
	explicit := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		siteConfigs, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = siteConfigs
		return nil
	}

	if explicit {
		return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) (bool, error) {
	if flag := cmd.Flags().Lookup("verbose"); flag != nil {
		return cmd.Flags().GetBool("verbose")
	}
	return cmd.Root().PersistentFlags().GetBool("verbose")
}

// runScan executes the scan of every configured target.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", cfg.Targets,
		"depth", cfg.CrawlMaxDepth,
		"concurrency", cfg.CrawlConcurrency,
		"skipAnalysis", cfg.SkipAnalysis,
	)

	// Open the scan-history database
	var db *database.ScanDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// One language-model client is shared by classification and analysis.
	var chat *llm.Client
	if cfg.OpenAIAPIKey != "" {
		chat = llm.NewClient(cfg.OpenAIAPIKey,
			llm.WithBaseURL(cfg.OpenAIBaseURL),
			llm.WithModel(cfg.Model),
			llm.WithTimeout(cfg.LLMTimeout),
			llm.WithLLMLogger(logger),
		)
	}

	if len(cfg.Targets) > 1 && cfg.CrawlConcurrency > 1 {
		return runBatchScan(ctx, cfg, chat, db, logger)
	}
	return runSequentialScan(ctx, cfg, chat, db, logger)
}

// runSequentialScan scans targets one at a time. Each target gets its
// own browser so per-site cookies and headers apply.
func runSequentialScan(ctx context.Context, cfg *config.Config, chat *llm.Client, db *database.ScanDB, logger *slog.Logger) error {
	multi := len(cfg.Targets) > 1

	for _, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		site := siteConfigFor(cfg, target)

		renderer, err := crawler.NewChromeRenderer(ctx, rendererOptions(cfg, site)...)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}

		p := newPipelineForTarget(cfg, site, renderer, chat, outputDirFor(cfg, target, multi), logger)
		scan := model.NewScanReport(target)

		fmt.Printf("Scanning %s...\n", target)
		startTime := time.Now()

		execErr := p.Execute(ctx, scan)
		if closeErr := renderer.Close(); closeErr != nil {
			logger.Error("failed to close browser", "error", closeErr)
		}
		if execErr != nil {
			logger.Error("scan failed", "target", target, "error", execErr)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, execErr)
			continue
		}

		fmt.Printf("Scan completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

		if err := outputScanReport(cfg, scan); err != nil {
			logger.Error("report failed", "target", target, "error", err)
		}
		if err := persistScan(ctx, db, scan, logger); err != nil {
			logger.Error("failed to save scan report", "target", target, "error", err)
		}
	}

	return nil
}

// runBatchScan scans multiple targets concurrently using BatchProcessor.
// A single browser is shared; each render runs in its own tab.
func runBatchScan(ctx context.Context, cfg *config.Config, chat *llm.Client, db *database.ScanDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch scan of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.CrawlConcurrency)

	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.Sites) > 0 {
		logger.Warn("batch scanning ignores per-site cookies and headers; use --concurrency 1 to apply them",
			"siteCount", len(cfg.SiteConfigs.Sites))
		fmt.Fprintf(os.Stderr, "Warning: Site-specific configurations are ignored in batch mode. Use --concurrency 1 to apply per-site settings.\n\n")
	}

	var defaults config.SiteConfig
	if cfg.SiteConfigs != nil {
		defaults = cfg.SiteConfigs.Defaults
	}

	renderer, err := crawler.NewChromeRenderer(ctx, rendererOptions(cfg, defaults)...)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			logger.Error("failed to close browser", "error", err)
		}
	}()

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return newPipelineForTarget(cfg, defaults, renderer, chat, outputDirFor(cfg, target, true), logger)
		},
		pipeline.WithConcurrency(cfg.CrawlConcurrency),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(scan *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Scan completed: %s\n", index+1, len(cfg.Targets), scan.Target)

		if err := outputScanReport(cfg, scan); err != nil {
			logger.Error("report failed", "target", scan.Target, "error", err)
		}
		if err := persistScan(ctx, db, scan, logger); err != nil {
			logger.Error("failed to save scan report", "target", scan.Target, "error", err)
		}
	})

	fmt.Printf("\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// siteConfigFor returns the per-site configuration for a target URL.
func siteConfigFor(cfg *config.Config, target string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return cfg.SiteConfigs.GetSiteConfig(u.Host)
	}
	return cfg.SiteConfigs.GetSiteConfig(target)
}

// rendererOptions builds browser options from the config and site settings.
func rendererOptions(cfg *config.Config, site config.SiteConfig) []crawler.RendererOption {
	opts := []crawler.RendererOption{
		crawler.WithRenderTimeout(cfg.Timeout),
		crawler.WithSettleDelay(cfg.SettleDelay),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithHeadless(cfg.Headless),
		crawler.WithScreenshot(cfg.Screenshot),
	}
	if site.Cookie != "" {
		opts = append(opts, crawler.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, crawler.WithExtraHeaders(site.Headers))
	}
	return opts
}

// newPipelineForTarget assembles the scan pipeline for one target.
// Crawl and classify always run; analysis and reporting are optional.
func newPipelineForTarget(cfg *config.Config, site config.SiteConfig, renderer crawler.Renderer, chat *llm.Client, outDir string, logger *slog.Logger) *pipeline.Pipeline {
	fetcher := crawler.NewFetcher(
		crawler.WithFetcherUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetchRate(config.DefaultScriptFetchRate),
	)

	depth := cfg.CrawlMaxDepth
	if site.Depth > 0 {
		depth = site.Depth
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithFetcher(fetcher),
		crawler.WithSpiderLogger(logger),
	}
	if len(site.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(site.FollowPatterns))
	}
	spider := crawler.NewSpider(renderer, spiderOpts...)

	// A nil chat client degrades classification to heuristics only.
	var classifyChat classify.ChatCompleter
	var analyzeChat analysis.ChatCompleter
	if chat != nil {
		classifyChat = chat
		analyzeChat = chat
	}
	classifier := classify.NewClassifier(classifyChat, classify.WithClassifierLogger(logger))

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewCrawlStep(spider, outDir, pipeline.WithCrawlLogger(logger)))
	p.AddStep(pipeline.NewClassifyStep(classifier, fetcher, outDir, pipeline.WithClassifyLogger(logger)))

	if cfg.SkipAnalysis {
		return p
	}

	analyzer := analysis.NewAnalyzer(analyzeChat,
		analysis.WithGuards(cfg.Guards),
		analysis.WithModules(cfg.Modules),
		analysis.WithAnalyzerLogger(logger),
	)
	p.AddStep(pipeline.NewAnalyzeStep(analyzer, outDir, pipeline.WithAnalyzeLogger(logger)))

	if !cfg.JSONOnly {
		p.AddStep(pipeline.NewReportStep(outDir,
			pipeline.WithReportLogger(logger),
			pipeline.WithHTMLReport(cfg.HTMLReport),
			pipeline.WithMarkdownReport(cfg.MarkdownReport),
			pipeline.WithTerminalWriter(report.NewSimpleWriter(os.Stdout, report.WithVerbose(cfg.Verbose))),
		))
	}

	return p
}

// outputDirFor returns the artifact directory for a target.
// With multiple targets, each gets a subdirectory named after its host.
func outputDirFor(cfg *config.Config, target string, multi bool) string {
	if !multi {
		return cfg.ReportDir
	}
	return filepath.Join(cfg.ReportDir, sanitizeDirName(target))
}

// sanitizeDirName derives a filesystem-safe directory name from a URL.
func sanitizeDirName(target string) string {
	name := target
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		name = u.Host
	}
	replacer := strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "#", "_", " ", "_")
	return replacer.Replace(name)
}

// outputScanReport emits the machine-readable scan result to stdout
// when --json is set. The file artifacts are written by the pipeline.
func outputScanReport(cfg *config.Config, scan *model.ScanReport) error {
	if !cfg.JSONOnly {
		return nil
	}
	_, err := report.NewJSONWriter(os.Stdout, report.WithPrettyPrint()).Write(scan)
	return err
}

// persistScan saves the scan result, its pages, and its core scripts to
// the history database. If db is nil, this function is a no-op.
func persistScan(ctx context.Context, db *database.ScanDB, scan *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveScanReport(ctx, scan); err != nil {
		return err
	}

	for _, page := range scan.Pages {
		record := &database.PageRecord{
			URL:         page.URL,
			Target:      scan.Target,
			StatusCode:  page.StatusCode,
			Title:       page.Title,
			ContentHash: page.Hash,
			Depth:       page.Depth,
		}
		if _, err := db.InsertPageRecord(ctx, record); err != nil {
			logger.Warn("failed to save page record", "url", page.URL, "error", err)
		}
	}

	for i := range scan.CoreScripts {
		if err := db.InsertCoreScript(ctx, scan.Target, &scan.CoreScripts[i]); err != nil {
			logger.Warn("failed to save core script", "filename", scan.CoreScripts[i].Filename, "error", err)
		}
	}

	logger.Info("scan report saved to database", "target", scan.Target)
	return nil
}
