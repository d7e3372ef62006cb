package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/evidence"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// fakeChat records the prompts it was called with and returns a canned
// response or error.
type fakeChat struct {
	system   string
	payload  string
	response string
	err      error
}

func (f *fakeChat) CompleteJSON(_ context.Context, systemPrompt, userPayload string) (string, error) {
	f.system = systemPrompt
	f.payload = userPayload
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func confirmedXSS() model.Vulnerability {
	return model.Vulnerability{
		Name:         "Cross-Site Scripting (XSS)",
		OWASPItem:    "A03:2021-Injection",
		Severity:     "High",
		Likelihood:   "High",
		Probability:  0.9,
		Reasoning:    "location.search flows to innerHTML without encoding",
		AffectedURIs: []string{"https://example.com/"},
		Evidence: model.Evidence{
			HTML: []string{`<div id="out"></div>`},
			JS: []model.JSEvidence{{
				Filename: "app.js",
				Line:     3,
				Context:  []model.CodeLine{{Line: 3, Code: "el.innerHTML = q;"}},
			}},
		},
		Validation: model.Validation{
			Class:                    "XSS",
			HasUserControlledInput:   true,
			ReachesSensitiveSink:     true,
			NoSanitizationOrEncoding: true,
			IsTriggerableFromUI:      true,
			DefenseAbsent:            true,
			WhyTrue:                  "query string reaches innerHTML unencoded",
		},
		ReproSteps:  []string{"Open the page with a crafted query string"},
		Remediation: []string{"Encode untrusted data before DOM insertion"},
	}
}

// TestAnalyze tests the model call and local post-processing.
func TestAnalyze(t *testing.T) {
	t.Parallel()

	htmlEv, err := evidence.AnalyzeHTML(`<html><body><div id="out"></div></body></html>`, "https://example.com")
	if err != nil {
		t.Fatalf("evidence failed: %v", err)
	}
	jsEv := &evidence.JSEvidenceSet{Files: []*evidence.JSFileEvidence{}, Summary: evidence.JSSummary{}}

	t.Run("confirmed finding survives", func(t *testing.T) {
		t.Parallel()

		report := model.Report{
			Summary:            model.Summary{OverallRisk: "high", KeyObservations: []string{"unencoded sink"}},
			Vulnerabilities:    []model.Vulnerability{confirmedXSS()},
			ExcludedCandidates: []model.ExcludedCandidate{},
		}
		raw, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		chat := &fakeChat{response: string(raw)}

		got, err := NewAnalyzer(chat).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if len(got.Vulnerabilities) != 1 {
			t.Fatalf("expected 1 confirmed finding, got %d", len(got.Vulnerabilities))
		}
		if got.Summary.TotalConfirmed != 1 || got.Summary.TotalExcluded != 0 {
			t.Errorf("unexpected summary counts: %+v", got.Summary)
		}
		if !strings.Contains(chat.system, "STRICT RULES") {
			t.Error("expected strict system prompt")
		}
		if !strings.Contains(chat.payload, `"schema"`) || !strings.Contains(chat.payload, `"instructions"`) {
			t.Error("expected schema and instructions in payload")
		}
		if !strings.Contains(chat.payload, `"exclude_if_any_validation_false":true`) {
			t.Error("expected validation instruction flag in payload")
		}
	})

	t.Run("failed validation check demotes finding", func(t *testing.T) {
		t.Parallel()

		weak := confirmedXSS()
		weak.Validation.NoSanitizationOrEncoding = false
		report := model.Report{
			Summary:            model.Summary{OverallRisk: "medium"},
			Vulnerabilities:    []model.Vulnerability{weak},
			ExcludedCandidates: []model.ExcludedCandidate{},
		}
		raw, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		chat := &fakeChat{response: string(raw)}

		got, err := NewAnalyzer(chat).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if len(got.Vulnerabilities) != 0 {
			t.Fatalf("expected 0 confirmed findings, got %d", len(got.Vulnerabilities))
		}
		if len(got.ExcludedCandidates) != 1 {
			t.Fatalf("expected 1 excluded candidate, got %d", len(got.ExcludedCandidates))
		}
		excl := got.ExcludedCandidates[0]
		if excl.Hypothesis != "Cross-Site Scripting (XSS)" {
			t.Errorf("unexpected hypothesis: %q", excl.Hypothesis)
		}
		if !strings.Contains(excl.Reason, "no_sanitization_or_encoding") {
			t.Errorf("expected failed check named in reason, got %q", excl.Reason)
		}
		if excl.RelatedEvidence == nil || len(excl.RelatedEvidence.JS) != 1 {
			t.Error("expected evidence carried over to the excluded candidate")
		}
		if got.Summary.TotalConfirmed != 0 || got.Summary.TotalExcluded != 1 {
			t.Errorf("unexpected summary counts: %+v", got.Summary)
		}
	})

	t.Run("module filter demotes non-matching findings", func(t *testing.T) {
		t.Parallel()

		report := model.Report{
			Summary:            model.Summary{OverallRisk: "high"},
			Vulnerabilities:    []model.Vulnerability{confirmedXSS()},
			ExcludedCandidates: []model.ExcludedCandidate{},
		}
		raw, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		chat := &fakeChat{response: string(raw)}

		got, err := NewAnalyzer(chat, WithModules([]string{"sqli"})).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if len(got.Vulnerabilities) != 0 {
			t.Fatalf("expected 0 confirmed findings, got %d", len(got.Vulnerabilities))
		}
		if len(got.ExcludedCandidates) != 1 {
			t.Fatalf("expected 1 excluded candidate, got %d", len(got.ExcludedCandidates))
		}
		if !strings.Contains(got.ExcludedCandidates[0].Reason, "sqli") {
			t.Errorf("expected modules named in reason, got %q", got.ExcludedCandidates[0].Reason)
		}
	})

	t.Run("module filter keeps matching findings", func(t *testing.T) {
		t.Parallel()

		report := model.Report{
			Summary:            model.Summary{OverallRisk: "high"},
			Vulnerabilities:    []model.Vulnerability{confirmedXSS()},
			ExcludedCandidates: []model.ExcludedCandidate{},
		}
		raw, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		chat := &fakeChat{response: string(raw)}

		got, err := NewAnalyzer(chat, WithModules([]string{"xss", "csrf"})).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if len(got.Vulnerabilities) != 1 {
			t.Fatalf("expected 1 confirmed finding, got %d", len(got.Vulnerabilities))
		}
	})

	t.Run("model error degrades", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{err: errors.New("status 500")}
		got, err := NewAnalyzer(chat).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("expected degraded report, got error: %v", err)
		}
		if got.Summary.OverallRisk != "unknown" {
			t.Errorf("expected unknown risk, got %q", got.Summary.OverallRisk)
		}
		if len(got.Summary.KeyObservations) != 1 ||
			got.Summary.KeyObservations[0] != "OpenAI request failed or response parsing error" {
			t.Errorf("unexpected observations: %v", got.Summary.KeyObservations)
		}
	})

	t.Run("unparseable response degrades", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{response: "not json at all"}
		got, err := NewAnalyzer(chat).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("expected degraded report, got error: %v", err)
		}
		if got.Summary.OverallRisk != "unknown" {
			t.Errorf("expected unknown risk, got %q", got.Summary.OverallRisk)
		}
	})

	t.Run("canceled context returns error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		chat := &fakeChat{err: context.Canceled}
		if _, err := NewAnalyzer(chat).Analyze(ctx, "https://example.com", htmlEv, jsEv); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("nil chat degrades", func(t *testing.T) {
		t.Parallel()

		got, err := NewAnalyzer(nil).Analyze(context.Background(), "https://example.com", htmlEv, jsEv)
		if err != nil {
			t.Fatalf("expected degraded report, got error: %v", err)
		}
		if got.Summary.OverallRisk != "unknown" {
			t.Errorf("expected unknown risk, got %q", got.Summary.OverallRisk)
		}
	})
}

// TestAnalyzeDir tests artifact-driven analysis.
func TestAnalyzeDir(t *testing.T) {
	t.Parallel()

	t.Run("reads artifacts and URL hint", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, PageHTMLFile), []byte("<html><body><form action='/login'></form></body></html>"), 0600); err != nil {
			t.Fatalf("write page: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, InputURLsFile), []byte("https://example.com/start\n"), 0600); err != nil {
			t.Fatalf("write urls: %v", err)
		}
		coreDir := filepath.Join(dir, "core_js")
		if err := os.Mkdir(coreDir, 0750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(coreDir, "app.js"), []byte("el.innerHTML = location.search;\n"), 0600); err != nil {
			t.Fatalf("write script: %v", err)
		}

		degraded := model.NewDegradedReport("")
		raw, err := json.Marshal(degraded)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		chat := &fakeChat{response: string(raw)}

		got, err := NewAnalyzer(chat).AnalyzeDir(context.Background(), dir, "")
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}
		if got.SiteURL != "https://example.com/start" {
			t.Errorf("expected URL hint from input_urls.txt, got %q", got.SiteURL)
		}
		if !strings.Contains(chat.payload, "innerHTML_assignment") {
			t.Error("expected script evidence in payload")
		}
		if !strings.Contains(chat.payload, "/login") {
			t.Error("expected HTML evidence in payload")
		}
	})

	t.Run("missing page is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := NewAnalyzer(nil).AnalyzeDir(context.Background(), t.TempDir(), "https://example.com"); err == nil {
			t.Error("expected error for missing page.html")
		}
	})
}

// TestWriteReportJSON tests report serialization.
func TestWriteReportJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := model.NewDegradedReport("https://example.com")

	path, err := WriteReportJSON(dir, report)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if filepath.Base(path) != ReportJSONFile {
		t.Errorf("unexpected filename: %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(raw), "  \"summary\"") {
		t.Error("expected two-space indentation")
	}
	var got model.Report
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.SiteURL != "https://example.com" {
		t.Errorf("unexpected site URL: %q", got.SiteURL)
	}
}

// TestShrinkPayload tests the staged payload shrinker.
func TestShrinkPayload(t *testing.T) {
	t.Parallel()

	guards := config.PayloadGuards{
		MaxTotalChars:            300,
		MaxHTMLEvidencePerBucket: 2,
		MaxJSFiles:               2,
		MaxJSEvidencePerFile:     1,
		MaxStrField:              40,
	}

	t.Run("small payload untouched", func(t *testing.T) {
		t.Parallel()

		payload := map[string]any{"site_url": "https://example.com"}
		got := ShrinkPayload(payload, guards)
		if got["site_url"] != "https://example.com" {
			t.Errorf("payload modified: %+v", got)
		}
	})

	t.Run("stages apply in order", func(t *testing.T) {
		t.Parallel()

		tight := guards
		tight.MaxTotalChars = 100

		files := make([]any, 4)
		for i := range files {
			files[i] = map[string]any{
				"filename":  strings.Repeat("f", 30),
				"evidences": []any{map[string]any{"pattern": "a"}, map[string]any{"pattern": "b"}},
			}
		}
		buckets := map[string]any{
			"forms": []any{
				map[string]any{"outer_html": "<form>1</form>"},
				map[string]any{"outer_html": "<form>2</form>"},
				map[string]any{"outer_html": "<form>3</form>"},
			},
		}
		payload := map[string]any{
			"javascript": map[string]any{"files": files},
			"html":       map[string]any{"highlights": buckets},
		}

		got := ShrinkPayload(payload, tight)

		js := got["javascript"].(map[string]any)
		gotFiles := js["files"].([]any)
		if len(gotFiles) != 2 {
			t.Errorf("expected 2 files after shrink, got %d", len(gotFiles))
		}
		for _, f := range gotFiles {
			ev := f.(map[string]any)["evidences"].([]any)
			if len(ev) != 1 {
				t.Errorf("expected 1 evidence per file, got %d", len(ev))
			}
		}
		highlights := got["html"].(map[string]any)["highlights"].(map[string]any)
		if forms := highlights["forms"].([]any); len(forms) != 2 {
			t.Errorf("expected bucket capped to 2, got %d", len(forms))
		}
	})

	t.Run("long strings truncated but outer_html kept", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", 500)
		payload := map[string]any{
			"html": map[string]any{
				"highlights": map[string]any{
					"forms": []any{map[string]any{
						"outer_html": long,
						"action":     long,
					}},
				},
			},
		}

		got := ShrinkPayload(payload, guards)
		form := got["html"].(map[string]any)["highlights"].(map[string]any)["forms"].([]any)[0].(map[string]any)
		if form["outer_html"] != long {
			t.Error("outer_html must never be truncated")
		}
		action := form["action"].(string)
		if len(action) >= 500 {
			t.Error("expected action to be truncated")
		}
		if !strings.Contains(action, "\n...\n") {
			t.Errorf("expected ellipsis marker, got %q", action)
		}
	})
}

// TestTruncateText tests head-and-tail truncation.
func TestTruncateText(t *testing.T) {
	t.Parallel()

	if got := truncateText("short", 100); got != "short" {
		t.Errorf("expected unchanged text, got %q", got)
	}

	s := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	got := truncateText(s, 20)
	parts := strings.Split(got, "\n...\n")
	if len(parts) != 2 {
		t.Fatalf("expected one ellipsis marker, got %q", got)
	}
	if len(parts[0]) != 12 || len(parts[1]) != 6 {
		t.Errorf("expected 60%%/30%% split, got head=%d tail=%d", len(parts[0]), len(parts[1]))
	}
	if !strings.HasPrefix(parts[0], "a") || !strings.HasSuffix(parts[1], "b") {
		t.Errorf("expected head and tail preserved, got %q", got)
	}
}

// TestSiteURLHint tests reading the start URL from input_urls.txt.
func TestSiteURLHint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if got := SiteURLHint(dir); got != "" {
		t.Errorf("expected empty hint for missing file, got %q", got)
	}

	content := "https://example.com/first\nhttps://example.com/second\n"
	if err := os.WriteFile(filepath.Join(dir, InputURLsFile), []byte(content), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got := SiteURLHint(dir); got != "https://example.com/first" {
		t.Errorf("expected first line, got %q", got)
	}
}
