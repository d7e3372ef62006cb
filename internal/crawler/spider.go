package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// Spider crawls a site by rendering pages and following same-host links.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// renderer renders pages in a browser.
	renderer Renderer

	// fetcher downloads external script bodies. Optional; when nil,
	// external scripts are recorded without body samples.
	fetcher *Fetcher

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages rendered.
	// This prevents runaway crawling on large sites.
	maxPages int

	// delay is the time to wait between page renders.
	// This is a politeness setting to avoid overwhelming servers.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	// logger reports per-page progress and failures.
	logger *slog.Logger

	// visited tracks URLs already rendered to avoid duplicates.
	visited map[string]bool

	// mutex protects visited and the counters below.
	mutex sync.Mutex

	// pageCount tracks pages rendered.
	pageCount int

	// inlineCount numbers inline scripts across the whole crawl so
	// their synthetic filenames stay unique.
	inlineCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to render.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the politeness delay between page renders.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithFetcher sets the fetcher used to download external script bodies.
func WithFetcher(f *Fetcher) SpiderOption {
	return func(s *Spider) {
		s.fetcher = f
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger used for crawl progress.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a new Spider using the given renderer.
//
// Design decision: We require an external renderer because:
//  1. Browser lifecycle is managed by the caller, one per scan
//  2. Tests can substitute a fake that serves canned HTML
func NewSpider(renderer Renderer, opts ...SpiderOption) *Spider {
	s := &Spider{
		renderer: renderer,
		maxDepth: 0,
		maxPages: 20,
		delay:    1 * time.Second,
		logger:   slog.Default(),
		visited:  make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl renders the start URL and same-host pages reachable from it,
// up to the configured depth and page limits.
//
// Design decision: We return a slice of pages rather than using a
// callback because the caller processes the whole crawl at once and
// pages are small relative to total memory.
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]*model.Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		start.Scheme = "https"
	}

	pages := make([]*model.Page, 0)
	queue := []queueItem{{url: start.String(), depth: 0}}

	for len(queue) > 0 && s.pagesRendered() < s.maxPages {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		if s.isVisited(item.url) {
			continue
		}
		s.markVisited(item.url)

		page, links, err := s.renderPage(ctx, item.url, item.depth)
		if err != nil {
			if ctx.Err() != nil {
				return pages, ctx.Err()
			}
			// Some pages will fail; the crawl goes on.
			s.logger.Warn("failed to render page", "url", item.url, "error", err)
			continue
		}

		pages = append(pages, page)
		s.addRendered()

		s.logger.Info("rendered page",
			"url", page.URL,
			"depth", page.Depth,
			"scripts", len(page.Scripts),
			"links", len(page.Links))

		if item.depth < s.maxDepth {
			for _, link := range links {
				if !s.isVisited(link) && s.isSameHost(start, link) && s.shouldCrawl(link) {
					queue = append(queue, queueItem{url: link, depth: item.depth + 1})
				}
			}
		}

		// Politeness delay
		if s.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return pages, nil
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// renderPage renders one page and collects its links and scripts.
func (s *Spider) renderPage(ctx context.Context, pageURL string, depth int) (*model.Page, []string, error) {
	rendered, err := s.renderer.Render(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}

	page := &model.Page{
		URL:        pageURL,
		FinalURL:   rendered.FinalURL,
		StatusCode: rendered.StatusCode,
		Title:      rendered.Title,
		HTML:       rendered.HTML,
		Depth:      depth,
		Screenshot: rendered.Screenshot,
	}
	page.ComputeHash()
	page.TruncateHTML()

	// Relative URLs in the document resolve against the final location,
	// not the requested one.
	base := rendered.FinalURL
	if base == "" {
		base = pageURL
	}
	parser, err := NewParser(base)
	if err != nil {
		return nil, nil, err
	}
	result, err := parser.Parse(strings.NewReader(rendered.HTML))
	if err != nil {
		return nil, nil, err
	}

	if page.Title == "" {
		page.Title = result.Title
	}
	page.Links = result.InternalLinks
	page.Scripts = s.collectScripts(ctx, page, result)

	return page, result.InternalLinks, nil
}

// collectScripts builds script assets for a page, fetching external
// bodies when a fetcher is configured.
func (s *Spider) collectScripts(ctx context.Context, page *model.Page, result *ParseResult) []*model.ScriptAsset {
	assets := make([]*model.ScriptAsset, 0, len(result.ScriptSrcs)+len(result.InlineScripts))

	for _, src := range result.ScriptSrcs {
		if s.fetcher == nil {
			assets = append(assets, &model.ScriptAsset{
				URL:      src,
				FinalURL: src,
				Filename: model.GuessFilename(src),
			})
			continue
		}

		asset, _, err := s.fetcher.Fetch(ctx, src)
		if err != nil {
			s.logger.Warn("failed to fetch script", "url", src, "error", err)
			// Keep the reference; classification still sees the URL.
			assets = append(assets, &model.ScriptAsset{
				URL:      src,
				FinalURL: src,
				Filename: model.GuessFilename(src),
			})
			continue
		}
		assets = append(assets, asset)
	}

	for _, body := range result.InlineScripts {
		n := s.nextInlineIndex()
		asset := &model.ScriptAsset{
			URL:         model.InlineScriptURL,
			FinalURL:    page.FinalURL,
			Filename:    model.InlineFilename(n),
			HTTPStatus:  page.StatusCode,
			Inline:      true,
			InlineIndex: n,
		}
		asset.SetSamples(body)
		assets = append(assets, asset)
	}

	return assets
}

// isVisited checks if a URL has been rendered.
func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[normalizeURL(pageURL)]
}

// markVisited marks a URL as rendered.
func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[normalizeURL(pageURL)] = true
}

// pagesRendered returns the number of pages rendered so far.
func (s *Spider) pagesRendered() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

// addRendered increments the rendered page counter.
func (s *Spider) addRendered() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// nextInlineIndex returns the next crawl-wide inline script number.
func (s *Spider) nextInlineIndex() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.inlineCount++
	return s.inlineCount
}

// normalizeURL normalizes a URL for deduplication.
//
// Design decision: We normalize URLs because:
//  1. Same page can have different URL representations
//  2. Fragment (#anchor) doesn't change content
//  3. An empty path and "/" are equivalent
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// isSameHost checks if a URL is on the same host as the start URL.
//
// Design decision: We only crawl the same host because:
//  1. Crawling other sites could be seen as unauthorized
//  2. Keeps the crawl focused on the target
func (s *Spider) isSameHost(start *url.URL, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), start.Hostname())
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// For patterns like "/admin/*", match anything under the prefix.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Handle extension patterns like "*.pdf" anywhere in the path.
	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Also try matching just the filename for patterns like "*.pdf".
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
