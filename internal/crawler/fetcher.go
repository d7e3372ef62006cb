package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// Fetcher downloads script bodies over plain HTTP.
// Downloads are rate limited so a page with dozens of script tags does
// not hammer the origin or a shared CDN.
type Fetcher struct {
	// client performs the HTTP requests.
	client *http.Client

	// limiter throttles requests per second.
	limiter *rate.Limiter

	// maxBodySize limits how many bytes of a body are read.
	maxBodySize int64

	// userAgent is the User-Agent header to use.
	userAgent string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchRate sets the maximum script downloads per second.
func WithFetchRate(perSecond int) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

// WithFetcherUserAgent sets a custom User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithHTTPClient sets the HTTP client used for downloads.
// Useful for tests and for injecting custom transports.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a Fetcher with sensible defaults.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(4), 4),
		maxBodySize: 10 * 1024 * 1024, // 10MB
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads a script and returns its asset record and body.
// The body is decoded to UTF-8 using the response charset, so byte
// offsets in the returned body may differ from the wire form.
func (f *Fetcher) Fetch(ctx context.Context, scriptURL string) (*model.ScriptAsset, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	limited := io.LimitReader(resp.Body, f.maxBodySize)
	decoded, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Undecodable charset; fall back to the raw bytes.
		decoded = limited
	}

	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read script body: %w", err)
	}

	finalURL := scriptURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	asset := &model.ScriptAsset{
		URL:        scriptURL,
		FinalURL:   finalURL,
		Filename:   model.GuessFilename(finalURL),
		HTTPStatus: resp.StatusCode,
	}
	asset.SetSamples(string(body))

	return asset, body, nil
}
