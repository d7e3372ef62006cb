package crawler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrBrowserUnavailable is returned when no Chrome or Chromium binary can
// be started. Callers should surface this as an environment problem, not
// a page failure.
var ErrBrowserUnavailable = errors.New("headless browser unavailable: install Chrome or Chromium")

// RenderResult holds everything captured from one page render.
type RenderResult struct {
	// FinalURL is the document location after redirects.
	FinalURL string

	// Title is the document title after rendering.
	Title string

	// HTML is the serialized outer HTML of the rendered document.
	HTML string

	// StatusCode is the HTTP status of the main document response.
	// Zero when the browser served the page from cache or the event
	// was not observed.
	StatusCode int

	// Screenshot holds full-page PNG bytes when capture is enabled.
	Screenshot []byte
}

// Renderer renders a page and returns its post-JavaScript state.
//
// Design decision: We define an interface rather than using ChromeRenderer
// directly because:
//  1. The spider can be tested with a fake that serves canned HTML
//  2. Rendering strategy is a detail the crawl logic should not depend on
type Renderer interface {
	// Render navigates to the URL, waits for the page to settle, and
	// returns the rendered document.
	Render(ctx context.Context, pageURL string) (*RenderResult, error)

	// Close releases the underlying browser.
	Close() error
}

// ChromeRenderer renders pages in a headless Chrome instance.
// One browser process is shared across renders; each render gets its own
// tab, so a crashed page does not take down the crawl.
type ChromeRenderer struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	timeout     time.Duration
	settleDelay time.Duration
	screenshot  bool
	headers     map[string]string
}

// RendererOption configures a ChromeRenderer.
type RendererOption func(*rendererConfig)

// rendererConfig collects options before the browser is started.
type rendererConfig struct {
	timeout     time.Duration
	settleDelay time.Duration
	userAgent   string
	headless    bool
	screenshot  bool
	headers     map[string]string
	cookie      string
}

// WithRenderTimeout sets the per-page render timeout.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(c *rendererConfig) {
		c.timeout = d
	}
}

// WithSettleDelay sets how long to wait after navigation before the DOM
// is serialized. Client-side frameworks need this time to mount.
func WithSettleDelay(d time.Duration) RendererOption {
	return func(c *rendererConfig) {
		c.settleDelay = d
	}
}

// WithUserAgent sets the browser User-Agent.
func WithUserAgent(ua string) RendererOption {
	return func(c *rendererConfig) {
		c.userAgent = ua
	}
}

// WithHeadless controls whether the browser runs without a window.
// Disable only for interactive debugging.
func WithHeadless(headless bool) RendererOption {
	return func(c *rendererConfig) {
		c.headless = headless
	}
}

// WithScreenshot enables full-page PNG capture on every render.
func WithScreenshot(enabled bool) RendererOption {
	return func(c *rendererConfig) {
		c.screenshot = enabled
	}
}

// WithExtraHeaders sets custom HTTP headers sent with every request.
func WithExtraHeaders(headers map[string]string) RendererOption {
	return func(c *rendererConfig) {
		c.headers = headers
	}
}

// WithCookie sets a Cookie header sent with every request.
// Format: "name=value" or "name1=value1; name2=value2".
func WithCookie(cookie string) RendererOption {
	return func(c *rendererConfig) {
		c.cookie = cookie
	}
}

// NewChromeRenderer starts a headless Chrome instance.
// The returned renderer must be closed with Close to release the browser
// process.
func NewChromeRenderer(ctx context.Context, opts ...RendererOption) (*ChromeRenderer, error) {
	cfg := &rendererConfig{
		timeout:     60 * time.Second,
		settleDelay: 2500 * time.Millisecond,
		headless:    true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	allocOpts := allocatorOptions(cfg)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so a missing binary fails fast instead of
	// on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, wrapBrowserError(err)
	}

	headers := make(map[string]string, len(cfg.headers)+1)
	for k, v := range cfg.headers {
		headers[k] = v
	}
	if cfg.cookie != "" {
		headers["Cookie"] = cfg.cookie
	}

	return &ChromeRenderer{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       cfg.timeout,
		settleDelay:   cfg.settleDelay,
		screenshot:    cfg.screenshot,
		headers:       headers,
	}, nil
}

// allocatorOptions builds the Chrome launch flags.
// The container flags (no-sandbox, disable-dev-shm-usage) keep the
// browser working inside Docker, where the default /dev/shm is too small.
func allocatorOptions(cfg *rendererConfig) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	if cfg.headless {
		opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	} else {
		// DefaultExecAllocatorOptions[2] is chromedp.Headless; skip it
		// to get a visible window.
		opts = append(opts, chromedp.DefaultExecAllocatorOptions[0:2]...)
		opts = append(opts, chromedp.DefaultExecAllocatorOptions[3:]...)
	}

	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("window-size", "1920,1080"),
	)

	if cfg.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.userAgent))
	}

	return opts
}

// Render navigates a fresh tab to the URL, waits for the settle delay,
// and serializes the document.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (*RenderResult, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.timeout)
	defer timeoutCancel()

	// The tab context descends from the browser, not from the caller's
	// context, so cancellation has to be propagated by hand.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	// The main document status arrives as a DevTools event, not as a
	// return value. Capture the first document response only; iframes
	// and redirect chains produce more.
	var status atomic.Int64
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		status.CompareAndSwap(0, resp.Response.Status)
	})

	result := &RenderResult{}

	tasks := chromedp.Tasks{network.Enable()}
	if len(r.headers) > 0 {
		hdrs := make(network.Headers, len(r.headers))
		for k, v := range r.headers {
			hdrs[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(hdrs))
	}
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.settleDelay),
		chromedp.Location(&result.FinalURL),
		chromedp.Title(&result.Title),
		chromedp.OuterHTML("html", &result.HTML, chromedp.ByQuery),
	)
	if r.screenshot {
		tasks = append(tasks, chromedp.FullScreenshot(&result.Screenshot, 90))
	}

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, wrapBrowserError(err))
	}

	result.StatusCode = int(status.Load())
	return result, nil
}

// Close shuts down the browser process.
func (r *ChromeRenderer) Close() error {
	r.browserCancel()
	r.allocCancel()
	return nil
}

// wrapBrowserError maps a failed browser launch to ErrBrowserUnavailable.
func wrapBrowserError(err error) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	return err
}
