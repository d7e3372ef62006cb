package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/crawler"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// TestIsProbablyVendor tests the vendor heuristic.
func TestIsProbablyVendor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"jquery by name", "jquery-3.6.0.min.js", true},
		{"react by name", "react-dom.production.js", true},
		{"analytics tag", "https://www.googletagmanager.com/gtag/js", true},
		{"cdn host", "https://cdn.jsdelivr.net/npm/axios/dist/axios.js", true},
		{"unpkg host", "https://unpkg.com/some-lib@1.0.0/index.js", true},
		{"vendor path", "https://example.com/vendor/utils.js", true},
		{"webpack vendor chunk", "vendors~main.49a3f12.js", true},
		{"generic min.js", "widget.min.js", true},
		{"app bundle exception", "app.min.js", false},
		{"main bundle exception", "https://example.com/static/js/main.8f3b2c.js", false},
		{"dist app exception", "https://example.com/dist/app.min.js", false},
		{"plain app script", "https://example.com/js/checkout.js", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsProbablyVendor(tt.input); got != tt.want {
				t.Errorf("IsProbablyVendor(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// fakeChat returns a canned response or error.
type fakeChat struct {
	response string
	err      error
	lastUser string
}

func (f *fakeChat) CompleteJSON(_ context.Context, _ string, userPayload string) (string, error) {
	f.lastUser = userPayload
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func externalAsset(filename, finalURL string) *model.ScriptAsset {
	a := &model.ScriptAsset{
		URL:      finalURL,
		FinalURL: finalURL,
		Filename: filename,
	}
	a.SetSamples("function main() {}")
	return a
}

// TestClassifier tests the two-pass classification flow.
func TestClassifier(t *testing.T) {
	t.Parallel()

	t.Run("heuristic vendors skip the model", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{response: `{"classified": []}`}
		classifier := NewClassifier(chat)

		assets := []*model.ScriptAsset{
			externalAsset("jquery.min.js", "https://example.com/js/jquery.min.js"),
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		if len(verdicts) != 1 {
			t.Fatalf("expected 1 verdict, got %d", len(verdicts))
		}
		if verdicts[0].Label != model.LabelVendor {
			t.Errorf("expected vendor label, got %q", verdicts[0].Label)
		}
		if verdicts[0].Reason != "vendor_heuristic" {
			t.Errorf("expected vendor_heuristic reason, got %q", verdicts[0].Reason)
		}
		if chat.lastUser != "" {
			t.Error("expected no model call for heuristic vendors")
		}
	})

	t.Run("inline assets are skipped", func(t *testing.T) {
		t.Parallel()

		classifier := NewClassifier(&fakeChat{response: `{"classified": []}`})

		assets := []*model.ScriptAsset{
			{Filename: "inline_1.js", Inline: true},
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if len(verdicts) != 0 {
			t.Errorf("expected no verdicts for inline assets, got %d", len(verdicts))
		}
	})

	t.Run("model verdicts are returned", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{response: `{"classified": [
			{"filename": "checkout.js", "final_url": "https://example.com/js/checkout.js",
			 "label": "core_app", "confidence": 0.92, "reason": "api_calls"}
		]}`}
		classifier := NewClassifier(chat)

		assets := []*model.ScriptAsset{
			externalAsset("checkout.js", "https://example.com/js/checkout.js"),
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		if len(verdicts) != 1 {
			t.Fatalf("expected 1 verdict, got %d", len(verdicts))
		}
		if !verdicts[0].IsCore() {
			t.Errorf("expected core_app verdict, got %q", verdicts[0].Label)
		}

		// The request payload carries the asset brief and the schema.
		if !strings.Contains(chat.lastUser, `"head_sample"`) {
			t.Error("expected head_sample in request payload")
		}
		if !strings.Contains(chat.lastUser, `"output_format"`) {
			t.Error("expected output_format schema in request payload")
		}
	})

	t.Run("model failure degrades to unknown", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{err: errors.New("upstream unavailable")}
		classifier := NewClassifier(chat)

		assets := []*model.ScriptAsset{
			externalAsset("checkout.js", "https://example.com/js/checkout.js"),
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}

		if len(verdicts) != 1 {
			t.Fatalf("expected 1 verdict, got %d", len(verdicts))
		}
		if verdicts[0].Label != model.LabelUnknown {
			t.Errorf("expected unknown label, got %q", verdicts[0].Label)
		}
		if verdicts[0].Reason != "parse_error" {
			t.Errorf("expected parse_error reason, got %q", verdicts[0].Reason)
		}
	})

	t.Run("unparseable response degrades to unknown", func(t *testing.T) {
		t.Parallel()

		chat := &fakeChat{response: "not json at all"}
		classifier := NewClassifier(chat)

		assets := []*model.ScriptAsset{
			externalAsset("checkout.js", "https://example.com/js/checkout.js"),
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if len(verdicts) != 1 || verdicts[0].Reason != "parse_error" {
			t.Errorf("expected parse_error fallback, got %+v", verdicts)
		}
	})

	t.Run("nil chat labels non-vendor unknown", func(t *testing.T) {
		t.Parallel()

		classifier := NewClassifier(nil)

		assets := []*model.ScriptAsset{
			externalAsset("checkout.js", "https://example.com/js/checkout.js"),
		}
		verdicts, err := classifier.Classify(context.Background(), "https://example.com", assets)
		if err != nil {
			t.Fatalf("classify failed: %v", err)
		}
		if len(verdicts) != 1 || verdicts[0].Reason != "classifier_disabled" {
			t.Errorf("expected classifier_disabled fallback, got %+v", verdicts)
		}
	})
}

// TestSaveCoreScripts tests persisting core assets to disk.
func TestSaveCoreScripts(t *testing.T) {
	t.Parallel()

	body := "export function checkout() { fetch('/api/pay'); }"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	t.Run("saves core_app assets and list files", func(t *testing.T) {
		t.Parallel()

		outDir := t.TempDir()
		fetcher := crawler.NewFetcher(crawler.WithFetchRate(100))

		assets := []*model.ScriptAsset{
			externalAsset("checkout.js", server.URL+"/js/checkout.js"),
			externalAsset("jquery.min.js", server.URL+"/js/jquery.min.js"),
		}
		classifications := []*model.Classification{
			{Filename: "checkout.js", FinalURL: server.URL + "/js/checkout.js", Label: model.LabelCoreApp},
			{Filename: "jquery.min.js", FinalURL: server.URL + "/js/jquery.min.js", Label: model.LabelVendor},
		}

		result, err := SaveCoreScripts(context.Background(), fetcher, outDir, assets, classifications, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}

		if len(result.CoreScripts) != 1 {
			t.Fatalf("expected 1 core script, got %d", len(result.CoreScripts))
		}
		cs := result.CoreScripts[0]
		if cs.Filename != "checkout.js" {
			t.Errorf("expected checkout.js, got %q", cs.Filename)
		}
		if cs.SizeBytes != len(body) {
			t.Errorf("expected size %d, got %d", len(body), cs.SizeBytes)
		}

		saved, err := os.ReadFile(filepath.Join(outDir, CoreDirName, "checkout.js"))
		if err != nil {
			t.Fatalf("failed to read saved script: %v", err)
		}
		if string(saved) != body {
			t.Errorf("saved body mismatch: %q", saved)
		}

		list, err := os.ReadFile(result.ListPath)
		if err != nil {
			t.Fatalf("failed to read list file: %v", err)
		}
		want := "checkout.js\t" + server.URL + "/js/checkout.js\n"
		if string(list) != want {
			t.Errorf("list file mismatch: got %q, want %q", list, want)
		}

		data, err := os.ReadFile(result.JSONPath)
		if err != nil {
			t.Fatalf("failed to read json file: %v", err)
		}
		var records []*model.CoreScript
		if err := json.Unmarshal(data, &records); err != nil {
			t.Fatalf("failed to parse json file: %v", err)
		}
		if len(records) != 1 || records[0].SHA1 == "" {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("renames on filename collision", func(t *testing.T) {
		t.Parallel()

		outDir := t.TempDir()
		fetcher := crawler.NewFetcher(crawler.WithFetchRate(100))

		assets := []*model.ScriptAsset{
			externalAsset("app.js", server.URL+"/a/app.js"),
			externalAsset("app.js", server.URL+"/b/app.js"),
		}
		classifications := []*model.Classification{
			{Filename: "app.js", FinalURL: server.URL + "/a/app.js", Label: model.LabelCoreApp},
			{Filename: "app.js", FinalURL: server.URL + "/b/app.js", Label: model.LabelCoreApp},
		}

		result, err := SaveCoreScripts(context.Background(), fetcher, outDir, assets, classifications, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if len(result.CoreScripts) != 2 {
			t.Fatalf("expected 2 core scripts, got %d", len(result.CoreScripts))
		}
		if result.CoreScripts[0].Filename != "app.js" || result.CoreScripts[1].Filename != "app_1.js" {
			t.Errorf("unexpected filenames: %q, %q",
				result.CoreScripts[0].Filename, result.CoreScripts[1].Filename)
		}
	})

	t.Run("failed downloads are skipped", func(t *testing.T) {
		t.Parallel()

		// A server that is already closed refuses connections.
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		outDir := t.TempDir()
		fetcher := crawler.NewFetcher(crawler.WithFetchRate(100))

		assets := []*model.ScriptAsset{
			externalAsset("missing.js", deadURL+"/js/missing.js"),
		}
		classifications := []*model.Classification{
			{Filename: "missing.js", FinalURL: deadURL + "/js/missing.js", Label: model.LabelCoreApp},
		}

		result, err := SaveCoreScripts(context.Background(), fetcher, outDir, assets, classifications, nil)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if len(result.CoreScripts) != 0 {
			t.Errorf("expected no core scripts, got %d", len(result.CoreScripts))
		}
	})
}
