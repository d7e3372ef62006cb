// Package crawler renders web pages in a headless browser and collects
// the material later stages analyze: the post-JavaScript DOM, same-host
// links, and every script the page carries.
//
// # Architecture
//
// The package is designed around three components:
//
//   - Renderer: drives a headless Chrome instance over the DevTools
//     protocol and returns the rendered document
//   - Spider: coordinates the crawl with a work queue, respecting depth
//     limits and politeness settings
//   - Fetcher: downloads external script bodies over plain HTTP with
//     rate limiting
//
// Design decision: We render in a real browser rather than fetching raw
// HTML because:
//  1. Single-page applications only reveal their markup after scripts run
//  2. Dynamically injected scripts are invisible to a plain HTTP fetch
//  3. The analysis stage reasons about what an attacker's browser sees
//
// Raw HTTP is still used for script bodies, where no execution is needed
// and a browser round-trip per file would be wasteful.
//
// # Politeness
//
// The crawler is designed to be polite:
//   - Delays between page renders (configurable)
//   - Rate-limited script downloads
//   - Respects max depth and max page settings
//   - Response size limits prevent memory exhaustion on huge bundles
//
// # Usage
//
//	renderer, err := crawler.NewChromeRenderer(ctx)
//	if err != nil { ... }
//	defer renderer.Close()
//
//	spider := crawler.NewSpider(renderer, crawler.WithMaxDepth(2))
//	pages, err := spider.Crawl(ctx, "https://example.com")
package crawler
