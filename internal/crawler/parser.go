package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links and scripts from rendered HTML.
//
// Design decision: We use golang.org/x/net/html rather than regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. More maintainable than complex regex patterns
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative URLs.
	baseURL *url.URL
}

// ParseResult contains what one parsing pass extracted from a page.
//
// Design decision: We return a comprehensive result struct rather than
// multiple methods because a single parsing pass is more efficient and
// the caller can choose what to use.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// InternalLinks are same-host links, resolved to absolute URLs.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string

	// ScriptSrcs are external script URLs, resolved to absolute URLs
	// and deduplicated in document order.
	ScriptSrcs []string

	// InlineScripts are the bodies of inline <script> elements, in
	// document order. Whitespace-only bodies are skipped.
	InlineScripts []string
}

// NewParser creates a parser with the given base URL for resolving
// relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts links and scripts.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
		ScriptSrcs:    make([]string, 0),
		InlineScripts: make([]string, 0),
	}
	seenSrcs := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result, seenSrcs)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles a single HTML element node.
func (p *Parser) processElement(n *html.Node, result *ParseResult, seenSrcs map[string]bool) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if href := getAttr(n, "href"); href != "" {
			resolved := p.resolveURL(href)
			if resolved != "" {
				p.classifyLink(resolved, result)
			}
		}

	case "script":
		if src := getAttr(n, "src"); src != "" {
			resolved := p.resolveURL(src)
			if resolved != "" && !seenSrcs[resolved] {
				seenSrcs[resolved] = true
				result.ScriptSrcs = append(result.ScriptSrcs, resolved)
			}
			return
		}
		// Inline script: collect the body text.
		body := scriptBody(n)
		if strings.TrimSpace(body) != "" {
			result.InlineScripts = append(result.InlineScripts, body)
		}
	}
}

// scriptBody concatenates the text children of a script element.
func scriptBody(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// resolveURL resolves a relative URL against the base URL.
// Pseudo-scheme hrefs (javascript:, mailto:, data:) resolve to nothing;
// the evidence extractor flags those separately from the raw HTML.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// classifyLink categorizes a link as internal or external by host.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}

	if strings.EqualFold(u.Hostname(), p.baseURL.Hostname()) {
		result.InternalLinks = append(result.InternalLinks, link)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, link)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
