package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/analysis"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/classify"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/crawler"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/report"
)

// ScreenshotFile is the start-page screenshot filename.
const ScreenshotFile = "screenshot.png"

// CrawlStep renders the target in a headless browser and collects pages
// and script assets. It also persists the crawl artifacts: the rendered
// start page, the start URL record, and the optional screenshot.
//
// Design decision: Artifact persistence lives in this step rather than
// in the report step because the analysis stage re-reads page.html and
// core_js/ from disk. Writing them as soon as they exist means a crash
// later in the pipeline still leaves a re-analyzable crawl on disk.
type CrawlStep struct {
	// spider performs the crawl.
	spider *crawler.Spider

	// outDir receives page.html, input_urls.txt, and the screenshot.
	outDir string

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step writing artifacts to outDir.
func NewCrawlStep(spider *crawler.Spider, outDir string, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		spider: spider,
		outDir: outDir,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, scan *model.ScanReport) error {
	pages, err := s.spider.Crawl(ctx, scan.Target)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", scan.Target, err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("crawl %s: no pages rendered", scan.Target)
	}

	scan.Pages = pages
	scan.OutputDir = s.outDir

	return s.persistArtifacts(scan)
}

// persistArtifacts writes the rendered start page, the start URL record,
// and the screenshot when one was captured.
func (s *CrawlStep) persistArtifacts(scan *model.ScanReport) error {
	if err := os.MkdirAll(s.outDir, 0750); err != nil {
		return fmt.Errorf("create report dir %s: %w", s.outDir, err)
	}

	start := scan.StartPage()

	pagePath := filepath.Join(s.outDir, analysis.PageHTMLFile)
	if err := os.WriteFile(pagePath, []byte(start.HTML), 0600); err != nil {
		return fmt.Errorf("write %s: %w", pagePath, err)
	}

	urlsPath := filepath.Join(s.outDir, analysis.InputURLsFile)
	if err := os.WriteFile(urlsPath, []byte(scan.Target+"\n"), 0600); err != nil {
		return fmt.Errorf("write %s: %w", urlsPath, err)
	}

	if len(start.Screenshot) > 0 {
		shotPath := filepath.Join(s.outDir, ScreenshotFile)
		if err := os.WriteFile(shotPath, start.Screenshot, 0600); err != nil {
			return fmt.Errorf("write %s: %w", shotPath, err)
		}
	}

	s.logger.Info("crawl artifacts written",
		"dir", s.outDir,
		"pages", len(scan.Pages),
		"page_bytes", len(start.HTML))

	return nil
}

// ClassifyStep labels collected script assets and persists the retained
// application scripts under core_js/.
type ClassifyStep struct {
	// classifier labels assets as application or vendor code.
	classifier *classify.Classifier

	// fetcher re-downloads the full body of each retained script.
	fetcher *crawler.Fetcher

	// outDir receives core_js/, core_js_list.txt, and core_js_urls.json.
	outDir string

	// logger for structured logging.
	logger *slog.Logger
}

// ClassifyStepOption configures a ClassifyStep.
type ClassifyStepOption func(*ClassifyStep)

// WithClassifyLogger sets a custom logger for the classify step.
func WithClassifyLogger(logger *slog.Logger) ClassifyStepOption {
	return func(s *ClassifyStep) {
		s.logger = logger
	}
}

// NewClassifyStep creates a classification step writing to outDir.
func NewClassifyStep(classifier *classify.Classifier, fetcher *crawler.Fetcher, outDir string, opts ...ClassifyStepOption) *ClassifyStep {
	s := &ClassifyStep{
		classifier: classifier,
		fetcher:    fetcher,
		outDir:     outDir,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ClassifyStep) Name() string {
	return "classify"
}

// Do executes the classification step.
func (s *ClassifyStep) Do(ctx context.Context, scan *model.ScanReport) error {
	assets := scan.AllScripts()

	pageURL := scan.Target
	if start := scan.StartPage(); start != nil && start.FinalURL != "" {
		pageURL = start.FinalURL
	}

	classifications, err := s.classifier.Classify(ctx, pageURL, assets)
	if err != nil {
		return fmt.Errorf("classify scripts: %w", err)
	}

	scan.Classifications = make([]model.Classification, 0, len(classifications))
	for _, c := range classifications {
		scan.Classifications = append(scan.Classifications, *c)
	}

	result, err := classify.SaveCoreScripts(ctx, s.fetcher, s.outDir, assets, classifications, s.logger)
	if err != nil {
		return fmt.Errorf("save core scripts: %w", err)
	}

	scan.CoreScripts = make([]model.CoreScript, 0, len(result.CoreScripts))
	for _, cs := range result.CoreScripts {
		scan.CoreScripts = append(scan.CoreScripts, *cs)
	}

	return nil
}

// AnalyzeStep runs the OWASP Top 10 analysis over the persisted crawl
// artifacts and writes owasp_top10_report.json.
type AnalyzeStep struct {
	// analyzer performs the language-model analysis.
	analyzer *analysis.Analyzer

	// outDir holds the crawl artifacts and receives the JSON report.
	outDir string

	// logger for structured logging.
	logger *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates an analysis step over outDir.
func NewAnalyzeStep(analyzer *analysis.Analyzer, outDir string, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		analyzer: analyzer,
		outDir:   outDir,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analysis step.
func (s *AnalyzeStep) Do(ctx context.Context, scan *model.ScanReport) error {
	result, err := s.analyzer.AnalyzeDir(ctx, s.outDir, scan.Target)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", s.outDir, err)
	}
	scan.Analysis = result

	path, err := analysis.WriteReportJSON(s.outDir, result)
	if err != nil {
		return err
	}

	s.logger.Info("analysis report written",
		"path", path,
		"confirmed", len(result.Vulnerabilities),
		"excluded", len(result.ExcludedCandidates))

	return nil
}

// ReportStep renders the HTML report and the optional Markdown report,
// and prints the terminal summary.
type ReportStep struct {
	// outDir receives owasp_top10_report.html and the Markdown report.
	outDir string

	// terminal receives the human-readable summary. Nil disables it.
	terminal report.Writer

	// html controls the HTML report file. Enabled by default.
	html bool

	// markdown additionally writes a Markdown report file.
	markdown bool

	// logger for structured logging.
	logger *slog.Logger
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithTerminalWriter sets the writer for the terminal summary.
func WithTerminalWriter(w report.Writer) ReportStepOption {
	return func(s *ReportStep) {
		s.terminal = w
	}
}

// WithHTMLReport controls the HTML report file.
func WithHTMLReport(enabled bool) ReportStepOption {
	return func(s *ReportStep) {
		s.html = enabled
	}
}

// WithMarkdownReport enables the Markdown report file.
func WithMarkdownReport(enabled bool) ReportStepOption {
	return func(s *ReportStep) {
		s.markdown = enabled
	}
}

// WithReportLogger sets a custom logger for the report step.
func WithReportLogger(logger *slog.Logger) ReportStepOption {
	return func(s *ReportStep) {
		s.logger = logger
	}
}

// NewReportStep creates a report step writing to outDir.
func NewReportStep(outDir string, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{
		outDir: outDir,
		html:   true,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, scan *model.ScanReport) error {
	if s.html {
		htmlPath := filepath.Join(s.outDir, report.ReportHTMLFile)
		if err := s.writeFile(htmlPath, func(f *os.File) error {
			_, err := report.NewHTMLWriter(f).Write(scan)
			return err
		}); err != nil {
			return err
		}
		s.logger.Info("HTML report written", "path", htmlPath)
	}

	if s.markdown {
		mdPath := filepath.Join(s.outDir, "owasp_top10_report.md")
		if err := s.writeFile(mdPath, func(f *os.File) error {
			_, err := report.NewMarkdownWriter(f).Write(scan)
			return err
		}); err != nil {
			return err
		}
		s.logger.Info("Markdown report written", "path", mdPath)
	}

	if s.terminal != nil {
		if _, err := s.terminal.Write(scan); err != nil {
			return fmt.Errorf("write terminal summary: %w", err)
		}
	}

	return nil
}

// writeFile creates path and runs write against the open file.
func (s *ReportStep) writeFile(path string, write func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return nil
}
