package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Sample size limits for classification payloads.
// The classifier never sees whole script bodies; it sees the head and tail,
// which is where module imports, framework boilerplate, and license banners
// live, and is usually enough to tell an app bundle from a vendor library.
const (
	// ScriptHeadSampleChars is the number of leading characters sampled.
	ScriptHeadSampleChars = 1200

	// ScriptTailSampleChars is the number of trailing characters sampled.
	ScriptTailSampleChars = 800
)

// InlineScriptURL is the placeholder source URL recorded for inline scripts.
const InlineScriptURL = "(inline)"

// ScriptAsset is a single <script> collected from a rendered page.
// External scripts carry their resolved URL and a fetched body sample;
// inline scripts carry a synthetic filename and an index.
type ScriptAsset struct {
	// URL is the script's src attribute as written in the page,
	// or "(inline)" for inline scripts.
	URL string `json:"url"`

	// FinalURL is the absolute URL the script was fetched from.
	// For inline scripts this is the page URL.
	FinalURL string `json:"final_url"`

	// Filename is the name the asset would be stored under.
	Filename string `json:"filename"`

	// SizeBytes is the byte length of the script body.
	SizeBytes int `json:"size_bytes"`

	// HTTPStatus is the status code of the script fetch.
	// Inline scripts record 200.
	HTTPStatus int `json:"http_status,omitempty"`

	// SHA1 is the hex digest of the script body.
	SHA1 string `json:"sha1,omitempty"`

	// HeadSample is the first ScriptHeadSampleChars characters of the body.
	HeadSample string `json:"head_sample,omitempty"`

	// TailSample is the last ScriptTailSampleChars characters of the body.
	TailSample string `json:"tail_sample,omitempty"`

	// Inline is true for scripts embedded directly in the page.
	Inline bool `json:"inline"`

	// InlineIndex is the 1-based position among the page's inline scripts.
	InlineIndex int `json:"inline_index,omitempty"`
}

// SetSamples fills SizeBytes, SHA1, HeadSample and TailSample from the body.
func (a *ScriptAsset) SetSamples(body string) {
	a.SizeBytes = len(body)
	a.SHA1 = HashText(body)
	a.HeadSample, a.TailSample = SampleCode(body)
}

// SampleCode returns the head and tail samples of a script body.
// The tail is empty when the body is shorter than the tail sample size,
// so short scripts are not sent to the classifier twice.
func SampleCode(body string) (head, tail string) {
	head = body
	if len(head) > ScriptHeadSampleChars {
		head = head[:ScriptHeadSampleChars]
	}
	if len(body) > ScriptTailSampleChars {
		tail = body[len(body)-ScriptTailSampleChars:]
	}
	return head, tail
}

// GuessFilename derives a storage filename from a script URL.
// Query strings and fragments are stripped; an empty basename falls back
// to "script.js".
func GuessFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	name := ""
	if err == nil {
		name = path.Base(u.Path)
	}
	// path.Base returns "." or "/" for empty paths
	if name == "." || name == "/" || name == "" {
		return "script.js"
	}
	// Defensive: strip anything a sloppy caller left behind
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "script.js"
	}
	return name
}

// InlineFilename returns the synthetic filename for the n-th inline script.
func InlineFilename(n int) string {
	return fmt.Sprintf("inline_%d.js", n)
}

// CoreScript records a retained application script as written to disk.
// These entries populate core_js_urls.json and core_js_list.txt.
type CoreScript struct {
	// Filename is the name of the file under core_js/, after any
	// collision renaming.
	Filename string `json:"filename"`

	// SourceURL is the URL the script body was fetched from.
	SourceURL string `json:"source_url"`

	// Status is the HTTP status of the persistence fetch.
	Status int `json:"status"`

	// SizeBytes is the byte length of the fetched body.
	SizeBytes int `json:"size_bytes"`

	// SHA1 is the hex digest of the fetched body.
	SHA1 string `json:"sha1"`
}
