package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/analysis"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/classify"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/crawler"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/report"
)

// stubRenderer serves canned render results for the crawl step.
type stubRenderer struct {
	html string
}

func (r *stubRenderer) Render(_ context.Context, pageURL string) (*crawler.RenderResult, error) {
	return &crawler.RenderResult{
		FinalURL:   pageURL,
		Title:      "Stub Page",
		HTML:       r.html,
		StatusCode: 200,
	}, nil
}

func (r *stubRenderer) Close() error { return nil }

// stubChat returns a fixed JSON document for any prompt.
type stubChat struct {
	response string
}

func (c *stubChat) CompleteJSON(_ context.Context, _, _ string) (string, error) {
	return c.response, nil
}

// TestCrawlStep tests crawling and artifact persistence.
func TestCrawlStep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	renderer := &stubRenderer{html: "<html><head><title>Stub Page</title></head><body>hello</body></html>"}
	spider := crawler.NewSpider(renderer, crawler.WithMaxDepth(0), crawler.WithDelay(0))

	step := NewCrawlStep(spider, dir)
	scan := model.NewScanReport("https://example.com")

	if err := step.Do(context.Background(), scan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scan.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(scan.Pages))
	}
	if scan.OutputDir != dir {
		t.Errorf("expected output dir recorded, got %q", scan.OutputDir)
	}

	page, err := os.ReadFile(filepath.Join(dir, analysis.PageHTMLFile))
	if err != nil {
		t.Fatalf("read page.html: %v", err)
	}
	if !strings.Contains(string(page), "hello") {
		t.Errorf("unexpected page.html contents: %q", page)
	}

	urls, err := os.ReadFile(filepath.Join(dir, analysis.InputURLsFile))
	if err != nil {
		t.Fatalf("read input_urls.txt: %v", err)
	}
	if string(urls) != "https://example.com\n" {
		t.Errorf("unexpected input_urls.txt contents: %q", urls)
	}
}

// TestClassifyStep tests classification and core script persistence.
func TestClassifyStep(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "window.addEventListener('load', init);")
	}))
	t.Cleanup(srv.Close)

	scriptURL := srv.URL + "/app.js"
	asset := &model.ScriptAsset{
		URL:      "/app.js",
		FinalURL: scriptURL,
		Filename: "app.js",
	}
	asset.SetSamples("window.addEventListener('load', init);")

	verdict, err := json.Marshal(map[string]any{
		"classified": []map[string]any{{
			"filename":   "app.js",
			"final_url":  scriptURL,
			"label":      "core_app",
			"confidence": 0.9,
			"reason":     "app bootstrap logic",
		}},
	})
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}

	dir := t.TempDir()
	classifier := classify.NewClassifier(&stubChat{response: string(verdict)})
	fetcher := crawler.NewFetcher()
	step := NewClassifyStep(classifier, fetcher, dir)

	scan := model.NewScanReport("https://example.com")
	scan.Pages = []*model.Page{{
		URL:      "https://example.com",
		FinalURL: "https://example.com",
		Scripts:  []*model.ScriptAsset{asset},
	}}

	if err := step.Do(context.Background(), scan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scan.Classifications) != 1 {
		t.Fatalf("expected 1 classification, got %d", len(scan.Classifications))
	}
	if scan.Classifications[0].Label != model.LabelCoreApp {
		t.Errorf("unexpected label: %q", scan.Classifications[0].Label)
	}
	if len(scan.CoreScripts) != 1 {
		t.Fatalf("expected 1 core script, got %d", len(scan.CoreScripts))
	}

	body, err := os.ReadFile(filepath.Join(dir, classify.CoreDirName, "app.js"))
	if err != nil {
		t.Fatalf("read core script: %v", err)
	}
	if !strings.Contains(string(body), "addEventListener") {
		t.Errorf("unexpected core script body: %q", body)
	}
}

// TestAnalyzeStep tests analysis over persisted artifacts.
func TestAnalyzeStep(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, analysis.PageHTMLFile), []byte("<html><body></body></html>"), 0600); err != nil {
		t.Fatalf("write page: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, classify.CoreDirName), 0750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	response, err := json.Marshal(model.NewDegradedReport("https://example.com"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	analyzer := analysis.NewAnalyzer(&stubChat{response: string(response)})
	step := NewAnalyzeStep(analyzer, dir)

	scan := model.NewScanReport("https://example.com")
	if err := step.Do(context.Background(), scan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scan.Analysis == nil {
		t.Fatal("expected analysis result")
	}
	if _, err := os.Stat(filepath.Join(dir, analysis.ReportJSONFile)); err != nil {
		t.Errorf("expected JSON report written: %v", err)
	}
}

// TestReportStep tests report rendering.
func TestReportStep(t *testing.T) {
	t.Parallel()

	t.Run("writes HTML report", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewReportStep(dir)

		scan := model.NewScanReport("https://example.com")
		scan.Analysis = model.NewDegradedReport("https://example.com")

		if err := step.Do(context.Background(), scan); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		html, err := os.ReadFile(filepath.Join(dir, report.ReportHTMLFile))
		if err != nil {
			t.Fatalf("read HTML report: %v", err)
		}
		if !strings.Contains(string(html), "</html>") {
			t.Error("expected complete HTML document")
		}
	})

	t.Run("markdown and terminal opt-in", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var terminal bytes.Buffer
		step := NewReportStep(dir,
			WithMarkdownReport(true),
			WithTerminalWriter(report.NewSimpleWriter(&terminal)),
		)

		scan := model.NewScanReport("https://example.com")
		scan.Analysis = model.NewDegradedReport("https://example.com")

		if err := step.Do(context.Background(), scan); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(filepath.Join(dir, "owasp_top10_report.md")); err != nil {
			t.Errorf("expected Markdown report written: %v", err)
		}
		if !strings.Contains(terminal.String(), "OWASP TOP 10 SCAN REPORT") {
			t.Error("expected terminal summary")
		}
	})

	t.Run("HTML report can be disabled", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		step := NewReportStep(dir, WithHTMLReport(false))

		scan := model.NewScanReport("https://example.com")
		scan.Analysis = model.NewDegradedReport("https://example.com")

		if err := step.Do(context.Background(), scan); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(filepath.Join(dir, report.ReportHTMLFile)); !os.IsNotExist(err) {
			t.Error("expected no HTML report")
		}
	})
}
