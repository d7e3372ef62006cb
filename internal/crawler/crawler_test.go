package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Test Page</title></head><body></body></html>`
		parser, err := NewParser("https://example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("classifies links by host", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/internal">Internal Link</a>
			<a href="https://example.com/same">Same Host</a>
			<a href="https://other.example.org/external">External</a>
			<a href="javascript:void(0)">JS Link</a>
			<a href="mailto:admin@example.com">Mail</a>
		</body></html>`

		parser, err := NewParser("https://example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if len(result.InternalLinks) != 2 {
			t.Errorf("expected 2 internal links, got %d: %v", len(result.InternalLinks), result.InternalLinks)
		}
		if result.InternalLinks[0] != "https://example.com/internal" {
			t.Errorf("expected resolved internal link, got %q", result.InternalLinks[0])
		}
		if len(result.ExternalLinks) != 1 {
			t.Errorf("expected 1 external link, got %d", len(result.ExternalLinks))
		}
	})

	t.Run("collects scripts", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<script src="/static/app.js"></script>
			<script src="https://cdn.example.net/lib.js"></script>
			<script src="/static/app.js"></script>
			<script>console.log("inline");</script>
			<script>   </script>
		</head><body></body></html>`

		parser, err := NewParser("https://example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		// Duplicate src is collected once.
		if len(result.ScriptSrcs) != 2 {
			t.Fatalf("expected 2 script srcs, got %d: %v", len(result.ScriptSrcs), result.ScriptSrcs)
		}
		if result.ScriptSrcs[0] != "https://example.com/static/app.js" {
			t.Errorf("expected resolved script src, got %q", result.ScriptSrcs[0])
		}

		// Whitespace-only inline script is skipped.
		if len(result.InlineScripts) != 1 {
			t.Fatalf("expected 1 inline script, got %d", len(result.InlineScripts))
		}
		if !strings.Contains(result.InlineScripts[0], "console.log") {
			t.Errorf("unexpected inline body: %q", result.InlineScripts[0])
		}
	})
}

// fakeRenderer serves canned HTML keyed by URL.
type fakeRenderer struct {
	pages   map[string]string
	renders int
}

func (f *fakeRenderer) Render(_ context.Context, pageURL string) (*RenderResult, error) {
	html, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("no such page: %s", pageURL)
	}
	f.renders++
	return &RenderResult{
		FinalURL:   pageURL,
		HTML:       html,
		StatusCode: http.StatusOK,
	}, nil
}

func (f *fakeRenderer) Close() error { return nil }

// TestSpiderCrawl tests crawl coordination with a fake renderer.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		"https://example.com/": `<html><head><title>Home</title>
			<script>var x = document.location.hash;</script></head>
			<body><a href="/about">About</a><a href="/admin/panel">Admin</a></body></html>`,
		"https://example.com/about": `<html><head><title>About</title></head>
			<body><a href="/">Home</a><a href="/about#team">Team</a></body></html>`,
		"https://example.com/admin/panel": `<html><body></body></html>`,
	}

	t.Run("depth zero renders only the start page", func(t *testing.T) {
		t.Parallel()

		renderer := &fakeRenderer{pages: site}
		spider := NewSpider(renderer, WithMaxDepth(0), WithDelay(0))

		pages, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(pages))
		}
		if pages[0].Depth != 0 {
			t.Errorf("expected depth 0, got %d", pages[0].Depth)
		}
		if len(pages[0].Scripts) != 1 || !pages[0].Scripts[0].Inline {
			t.Errorf("expected one inline script, got %+v", pages[0].Scripts)
		}
		if pages[0].Scripts[0].Filename != "inline_1.js" {
			t.Errorf("expected inline_1.js, got %q", pages[0].Scripts[0].Filename)
		}
	})

	t.Run("depth one follows same-host links without revisiting", func(t *testing.T) {
		t.Parallel()

		renderer := &fakeRenderer{pages: site}
		spider := NewSpider(renderer, WithMaxDepth(2), WithDelay(0))

		pages, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		// Home, about, admin. The fragment variant of /about is a
		// duplicate after normalization.
		if len(pages) != 3 {
			t.Fatalf("expected 3 pages, got %d", len(pages))
		}
		if renderer.renders != 3 {
			t.Errorf("expected 3 renders, got %d", renderer.renders)
		}
	})

	t.Run("ignore patterns prune the queue", func(t *testing.T) {
		t.Parallel()

		renderer := &fakeRenderer{pages: site}
		spider := NewSpider(renderer,
			WithMaxDepth(2),
			WithDelay(0),
			WithIgnorePatterns([]string{"/admin/*"}))

		pages, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		for _, p := range pages {
			if strings.Contains(p.URL, "/admin/") {
				t.Errorf("crawled ignored URL: %s", p.URL)
			}
		}
	})

	t.Run("max pages caps the crawl", func(t *testing.T) {
		t.Parallel()

		renderer := &fakeRenderer{pages: site}
		spider := NewSpider(renderer, WithMaxDepth(2), WithMaxPages(1), WithDelay(0))

		pages, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(pages) != 1 {
			t.Errorf("expected 1 page, got %d", len(pages))
		}
	})
}

// TestNormalizeURL tests URL normalization for deduplication.
func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"fragment stripped", "https://example.com/p#top", "https://example.com/p", true},
		{"root path added", "https://example.com", "https://example.com/", true},
		{"host case folded", "https://EXAMPLE.com/", "https://example.com/", true},
		{"query preserved", "https://example.com/?a=1", "https://example.com/", false},
		{"path differs", "https://example.com/a", "https://example.com/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := normalizeURL(tt.a) == normalizeURL(tt.b)
			if got != tt.same {
				t.Errorf("normalizeURL(%q) == normalizeURL(%q): got %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

// TestMatchPattern tests glob pattern matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/dashboard", true},
		{"/admin/*", "/admin", true},
		{"/admin/*", "/public/admin", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.html", false},
		{"/api/v?", "/api/v1", true},
		{"/api/v?", "/api/v10", false},
		{"/logout*", "/logout", true},
		{"/logout*", "/logoutall", true},
		{"/logout*", "/account/logout", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestFetcher tests script downloading.
func TestFetcher(t *testing.T) {
	t.Parallel()

	t.Run("fetches body and fills samples", func(t *testing.T) {
		t.Parallel()

		body := "function app() { return 42; }"
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			fmt.Fprint(w, body)
		}))
		defer server.Close()

		fetcher := NewFetcher(WithFetchRate(100))
		asset, raw, err := fetcher.Fetch(context.Background(), server.URL+"/static/app.js?v=3")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}

		if string(raw) != body {
			t.Errorf("unexpected body: %q", raw)
		}
		if asset.HTTPStatus != http.StatusOK {
			t.Errorf("expected status 200, got %d", asset.HTTPStatus)
		}
		if asset.Filename != "app.js" {
			t.Errorf("expected filename app.js, got %q", asset.Filename)
		}
		if asset.SizeBytes != len(body) {
			t.Errorf("expected size %d, got %d", len(body), asset.SizeBytes)
		}
		if asset.HeadSample != body {
			t.Errorf("expected head sample to equal short body, got %q", asset.HeadSample)
		}
		if asset.SHA1 == "" {
			t.Error("expected SHA1 to be set")
		}
	})

	t.Run("truncates oversized bodies", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, strings.Repeat("a", 4096))
		}))
		defer server.Close()

		fetcher := NewFetcher(WithFetchRate(100), WithMaxBodySize(1024))
		_, raw, err := fetcher.Fetch(context.Background(), server.URL+"/big.js")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(raw) != 1024 {
			t.Errorf("expected 1024 bytes, got %d", len(raw))
		}
	})

	t.Run("records non-200 status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer server.Close()

		fetcher := NewFetcher(WithFetchRate(100))
		asset, _, err := fetcher.Fetch(context.Background(), server.URL+"/missing.js")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if asset.HTTPStatus != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", asset.HTTPStatus)
		}
	})
}
