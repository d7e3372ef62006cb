package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/classify"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/evidence"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// Artifact filenames under the report directory.
const (
	// PageHTMLFile is the rendered start page, written by the crawl step.
	PageHTMLFile = "page.html"

	// InputURLsFile records the scanned start URLs, one per line. Its
	// first line doubles as the site URL hint when analysis is re-run
	// from artifacts alone.
	InputURLsFile = "input_urls.txt"

	// ReportJSONFile is the analysis output.
	ReportJSONFile = "owasp_top10_report.json"
)

// ChatCompleter is the language-model dependency of the analyzer.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPayload string) (string, error)
}

// Analyzer runs the OWASP Top 10 analysis over extracted evidence.
type Analyzer struct {
	// chat performs the language-model call. May be nil, in which case
	// Analyze always returns a degraded report.
	chat ChatCompleter

	// guards bound the payload sent to the model.
	guards config.PayloadGuards

	// modules restricts confirmed findings to the named vulnerability
	// classes. Empty means report everything.
	modules []string

	// logger reports payload sizes and degradations.
	logger *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithGuards overrides the payload size guards.
func WithGuards(guards config.PayloadGuards) AnalyzerOption {
	return func(a *Analyzer) {
		a.guards = guards
	}
}

// WithModules restricts confirmed findings to the named classes.
// Non-matching findings are demoted to excluded candidates rather than
// dropped, so the report still records what was seen.
func WithModules(modules []string) AnalyzerOption {
	return func(a *Analyzer) {
		a.modules = modules
	}
}

// WithAnalyzerLogger sets the analyzer's logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an Analyzer with default payload guards.
func NewAnalyzer(chat ChatCompleter, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		chat:   chat,
		guards: config.DefaultPayloadGuards(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeDir runs analysis over the artifacts of a finished crawl:
// page.html and core_js/ under outDir. When siteURL is empty, the
// first line of input_urls.txt is used as a hint.
func (a *Analyzer) AnalyzeDir(ctx context.Context, outDir, siteURL string) (*model.Report, error) {
	if siteURL == "" {
		siteURL = SiteURLHint(outDir)
	}

	pagePath := filepath.Join(outDir, PageHTMLFile)
	htmlText, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, fmt.Errorf("read rendered page %s: %w", pagePath, err)
	}

	coreDir := filepath.Join(outDir, classify.CoreDirName)
	if info, err := os.Stat(coreDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("core script directory %s not found", coreDir)
	}

	htmlEv, err := evidence.AnalyzeHTML(string(htmlText), siteURL)
	if err != nil {
		return nil, fmt.Errorf("extract HTML evidence: %w", err)
	}
	jsEv, err := evidence.AnalyzeJSDir(coreDir, siteURL)
	if err != nil {
		return nil, fmt.Errorf("extract script evidence: %w", err)
	}

	return a.Analyze(ctx, siteURL, htmlEv, jsEv)
}

// Analyze sends the evidence to the language model and post-processes
// the result. Model failures and unparseable responses degrade to a
// report with overall risk "unknown"; only payload construction errors
// and context cancellation are returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, siteURL string, htmlEv *evidence.HTMLEvidence, jsEv *evidence.JSEvidenceSet) (*model.Report, error) {
	userPayload, err := BuildUserPayload(siteURL, htmlEv, jsEv, a.guards)
	if err != nil {
		return nil, fmt.Errorf("build analysis payload: %w", err)
	}
	a.logger.Debug("analysis payload built",
		"site_url", siteURL,
		"payload_chars", len(userPayload),
		"js_files", jsEv.Summary.TotalFiles,
		"js_hits", jsEv.Summary.TotalHits)

	if a.chat == nil {
		return a.finish(model.NewDegradedReport(siteURL)), nil
	}

	content, err := a.chat.CompleteJSON(ctx, analysisSystemPrompt, userPayload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("analysis model call failed", "error", err)
		return a.finish(model.NewDegradedReport(siteURL)), nil
	}

	var report model.Report
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		a.logger.Warn("analysis response not parseable", "error", err)
		return a.finish(model.NewDegradedReport(siteURL)), nil
	}
	if report.SiteURL == "" {
		report.SiteURL = siteURL
	}
	if report.Vulnerabilities == nil {
		report.Vulnerabilities = []model.Vulnerability{}
	}
	if report.ExcludedCandidates == nil {
		report.ExcludedCandidates = []model.ExcludedCandidate{}
	}

	return a.finish(&report), nil
}

// finish applies local enforcement and recomputes the summary counts.
// The model is asked to self-police its validation checklist, but the
// report's guarantee comes from checking it here.
func (a *Analyzer) finish(report *model.Report) *model.Report {
	EnforceValidation(report)
	FilterModules(report, a.modules)
	report.Summary.TotalConfirmed = len(report.Vulnerabilities)
	report.Summary.TotalExcluded = len(report.ExcludedCandidates)
	return report
}

// EnforceValidation demotes every confirmed finding whose validation
// checklist has any false check to an excluded candidate.
func EnforceValidation(report *model.Report) {
	kept := report.Vulnerabilities[:0]
	for i := range report.Vulnerabilities {
		v := report.Vulnerabilities[i]
		if v.Validation.AllChecksPass() {
			kept = append(kept, v)
			continue
		}
		ev := v.Evidence
		report.ExcludedCandidates = append(report.ExcludedCandidates, model.ExcludedCandidate{
			Hypothesis:      v.Name,
			Reason:          "validation checklist not fully satisfied: " + failedChecks(v.Validation),
			RelatedEvidence: &ev,
		})
	}
	report.Vulnerabilities = kept
}

// FilterModules demotes confirmed findings that match none of the
// requested vulnerability classes. An empty module list keeps all.
func FilterModules(report *model.Report, modules []string) {
	if len(modules) == 0 {
		return
	}
	kept := report.Vulnerabilities[:0]
	for i := range report.Vulnerabilities {
		v := report.Vulnerabilities[i]
		if matchesAnyModule(v, modules) {
			kept = append(kept, v)
			continue
		}
		ev := v.Evidence
		report.ExcludedCandidates = append(report.ExcludedCandidates, model.ExcludedCandidate{
			Hypothesis:      v.Name,
			Reason:          "outside requested modules (" + strings.Join(modules, ", ") + ")",
			RelatedEvidence: &ev,
		})
	}
	report.Vulnerabilities = kept
}

// moduleAliases maps short module names to the phrases that identify
// the class in a finding's name or validation class.
var moduleAliases = map[string][]string{
	"xss":          {"xss", "cross-site scripting"},
	"sqli":         {"sqli", "sql injection"},
	"csrf":         {"csrf", "cross-site request forgery"},
	"ssrf":         {"ssrf", "server-side request forgery"},
	"ssti":         {"ssti", "server-side template injection"},
	"idor":         {"idor", "insecure direct object reference"},
	"redirect":     {"open redirect"},
	"clickjacking": {"clickjacking"},
}

func matchesAnyModule(v model.Vulnerability, modules []string) bool {
	haystack := strings.ToLower(v.Name + " " + v.OWASPItem + " " + v.Validation.Class)
	for _, m := range modules {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		needles, ok := moduleAliases[m]
		if !ok {
			needles = []string{m}
		}
		for _, needle := range needles {
			if strings.Contains(haystack, needle) {
				return true
			}
		}
	}
	return false
}

func failedChecks(v model.Validation) string {
	var failed []string
	if !v.HasUserControlledInput {
		failed = append(failed, "has_user_controlled_input")
	}
	if !v.ReachesSensitiveSink {
		failed = append(failed, "reaches_sensitive_sink")
	}
	if !v.NoSanitizationOrEncoding {
		failed = append(failed, "no_sanitization_or_encoding")
	}
	if !v.IsTriggerableFromUI {
		failed = append(failed, "is_triggerable_from_ui")
	}
	if !v.DefenseAbsent {
		failed = append(failed, "defense_absent")
	}
	return strings.Join(failed, ", ")
}

// WriteReportJSON writes the report under outDir as indented JSON and
// returns the written path.
func WriteReportJSON(outDir string, report *model.Report) (string, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(outDir, ReportJSONFile)
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// SiteURLHint reads the first line of input_urls.txt under outDir.
// Returns "" when the file is missing or empty.
func SiteURLHint(outDir string) string {
	f, err := os.Open(filepath.Join(outDir, InputURLsFile))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
