package model

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is used for content fingerprinting, not security
	"encoding/hex"
	"strings"
)

// MaxPageSize is the maximum size of rendered HTML to keep in memory.
// Larger documents are truncated to this size before analysis.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page represents a browser-rendered web page.
// The HTML field holds the post-JavaScript DOM serialization, not the raw
// network response, because single-page applications only reveal their real
// markup after scripts have run.
type Page struct {
	// URL is the URL the crawler was asked to render.
	URL string `json:"url"`

	// FinalURL is the URL after any redirects the browser followed.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP status of the main document response.
	StatusCode int `json:"status_code"`

	// Title is the document title after rendering.
	Title string `json:"title,omitempty"`

	// HTML is the rendered outer HTML of the document.
	HTML string `json:"-"` // Excluded from JSON due to size; persisted as page.html

	// Hash is the SHA-1 hex digest of the rendered HTML.
	// Used for deduplication and change detection between scans.
	Hash string `json:"hash"`

	// Depth is the link depth at which this page was discovered.
	// The start URL has depth 0.
	Depth int `json:"depth"`

	// Links contains same-host links discovered on the page.
	Links []string `json:"links,omitempty"`

	// Scripts contains all script assets collected from the page.
	Scripts []*ScriptAsset `json:"scripts,omitempty"`

	// Screenshot holds full-page PNG bytes when screenshot capture is enabled.
	Screenshot []byte `json:"-"`
}

// ComputeHash calculates and sets the SHA-1 hash of the rendered HTML.
// Call this after setting the HTML field.
func (p *Page) ComputeHash() {
	if p.HTML == "" {
		p.Hash = ""
		return
	}
	sum := sha1.Sum([]byte(p.HTML)) //nolint:gosec // fingerprint only
	p.Hash = hex.EncodeToString(sum[:])
}

// TruncateHTML enforces MaxPageSize on the rendered document.
func (p *Page) TruncateHTML() {
	if len(p.HTML) > MaxPageSize {
		p.HTML = p.HTML[:MaxPageSize]
	}
}

// HashText returns the SHA-1 hex digest of arbitrary text.
// Shared helper so pages and scripts hash content identically.
func HashText(text string) string {
	sum := sha1.Sum([]byte(text)) //nolint:gosec // fingerprint only
	return hex.EncodeToString(sum[:])
}

// IsHTMLContentType reports whether a Content-Type value indicates HTML.
func IsHTMLContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/html") ||
		strings.HasPrefix(contentType, "application/xhtml+xml")
}
