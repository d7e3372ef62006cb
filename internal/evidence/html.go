package evidence

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLEvidence groups security-relevant constructs found in a rendered
// page. Every item carries the full outer HTML of the offending tag;
// the payload shrinker never truncates those.
type HTMLEvidence struct {
	// Meta records document-level markers like CSP meta tags.
	Meta MetaEvidence `json:"meta"`

	// Forms are all forms with their submission targets.
	Forms []FormEvidence `json:"forms"`

	// InlineEventHandlers are elements with on* attributes.
	InlineEventHandlers []HandlerEvidence `json:"inline_event_handlers"`

	// JavaScriptHrefLinks are anchors with javascript: hrefs.
	JavaScriptHrefLinks []LinkEvidence `json:"javascript_href_links"`

	// TargetBlankWithoutNoopener are reverse-tabnabbing candidates.
	TargetBlankWithoutNoopener []BlankLinkEvidence `json:"target_blank_without_noopener"`

	// IFrames are all embedded frames.
	IFrames []IFrameEvidence `json:"iframes"`

	// ScriptTags are all script tags with integrity attributes.
	ScriptTags []ScriptTagEvidence `json:"script_tags"`

	// Links are all anchors, as URI candidates for the analysis.
	Links []LinkEvidence `json:"links"`

	// PotentialSecretsInHTML are credential-shaped strings in the page.
	PotentialSecretsInHTML []SecretEvidence `json:"potential_secrets_in_html"`
}

// MetaEvidence records document-level security markers.
type MetaEvidence struct {
	// CSPMetaPresent is true when a Content-Security-Policy meta tag
	// exists. Header-delivered CSP is invisible at this layer.
	CSPMetaPresent bool `json:"csp_meta_present"`

	// CSPMetaTag is the full CSP meta tag, when present.
	CSPMetaTag string `json:"csp_meta_tag,omitempty"`

	// Charset is the full charset meta tag, when present.
	Charset string `json:"charset,omitempty"`
}

// FormEvidence is a form with its submission target.
type FormEvidence struct {
	OuterHTML string `json:"outer_html"`
	Action    string `json:"action,omitempty"`
	ActionAbs string `json:"action_abs,omitempty"`
	Method    string `json:"method"`
}

// HandlerEvidence is an element carrying an inline on* event handler.
type HandlerEvidence struct {
	OuterHTML string `json:"outer_html"`
	Attr      string `json:"attr"`
	Value     string `json:"value"`
}

// LinkEvidence is an anchor element.
type LinkEvidence struct {
	OuterHTML string `json:"outer_html"`
	Href      string `json:"href"`
	HrefAbs   string `json:"href_abs,omitempty"`
}

// BlankLinkEvidence is a target=_blank anchor without rel=noopener,
// a reverse-tabnabbing candidate.
type BlankLinkEvidence struct {
	OuterHTML string `json:"outer_html"`
	Href      string `json:"href"`
	HrefAbs   string `json:"href_abs,omitempty"`
	Target    string `json:"target"`
	Rel       string `json:"rel,omitempty"`
}

// IFrameEvidence is an embedded frame.
type IFrameEvidence struct {
	OuterHTML string `json:"outer_html"`
	Src       string `json:"src,omitempty"`
	SrcAbs    string `json:"src_abs,omitempty"`
}

// ScriptTagEvidence is a script tag with its integrity attributes.
type ScriptTagEvidence struct {
	OuterHTML   string `json:"outer_html"`
	Src         string `json:"src,omitempty"`
	SrcAbs      string `json:"src_abs,omitempty"`
	Integrity   string `json:"integrity,omitempty"`
	CrossOrigin string `json:"crossorigin,omitempty"`
}

// SecretEvidence is a credential-shaped string found in the page text.
type SecretEvidence struct {
	// Name labels the pattern that matched, e.g. "aws_access_key_id".
	Name string `json:"name"`

	// Match is the matched text with 60 characters of context on each
	// side, enough to judge whether it is a real credential.
	Match string `json:"match"`
}

// secretPatterns are credential formats worth flagging when they appear
// in page markup.
var secretPatterns = []struct {
	regex *regexp.Regexp
	name  string
}{
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "aws_access_key_id"},
	{regexp.MustCompile(`AIzaSy[0-9A-Za-z\-_]{35}`), "gcp_api_key"},
	{regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`), "openai_key_like"},
}

// AnalyzeHTML extracts evidence buckets from rendered page HTML.
// siteURL resolves relative attribute URLs; pass "" when unknown.
func AnalyzeHTML(htmlText, siteURL string) (*HTMLEvidence, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}

	ev := &HTMLEvidence{
		Forms:                      make([]FormEvidence, 0),
		InlineEventHandlers:        make([]HandlerEvidence, 0),
		JavaScriptHrefLinks:        make([]LinkEvidence, 0),
		TargetBlankWithoutNoopener: make([]BlankLinkEvidence, 0),
		IFrames:                    make([]IFrameEvidence, 0),
		ScriptTags:                 make([]ScriptTagEvidence, 0),
		Links:                      make([]LinkEvidence, 0),
		PotentialSecretsInHTML:     make([]SecretEvidence, 0),
	}

	collectMeta(doc, ev)
	collectForms(doc, ev, siteURL)
	collectEventHandlers(doc, ev)
	collectAnchors(doc, ev, siteURL)
	collectIFrames(doc, ev, siteURL)
	collectScriptTags(doc, ev, siteURL)
	collectSecrets(htmlText, ev)

	return ev, nil
}

func collectMeta(doc *goquery.Document, ev *HTMLEvidence) {
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if equiv, ok := s.Attr("http-equiv"); ok && strings.EqualFold(equiv, "content-security-policy") {
			ev.Meta.CSPMetaPresent = true
			ev.Meta.CSPMetaTag = outerHTML(s)
			return false
		}
		return true
	})
	doc.Find("meta[charset]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ev.Meta.Charset = outerHTML(s)
		return false
	})
}

func collectForms(doc *goquery.Document, ev *HTMLEvidence, siteURL string) {
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action := s.AttrOr("action", "")
		method := strings.ToUpper(s.AttrOr("method", "GET"))
		if method == "" {
			method = "GET"
		}
		ev.Forms = append(ev.Forms, FormEvidence{
			OuterHTML: outerHTML(s),
			Action:    action,
			ActionAbs: absURL(siteURL, action),
			Method:    method,
		})
	})
}

func collectEventHandlers(doc *goquery.Document, ev *HTMLEvidence) {
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		for _, attr := range node.Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				ev.InlineEventHandlers = append(ev.InlineEventHandlers, HandlerEvidence{
					OuterHTML: outerHTML(s),
					Attr:      attr.Key,
					Value:     attr.Val,
				})
			}
		}
	})
}

func collectAnchors(doc *goquery.Document, ev *HTMLEvidence, siteURL string) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		outer := outerHTML(s)

		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			ev.JavaScriptHrefLinks = append(ev.JavaScriptHrefLinks, LinkEvidence{
				OuterHTML: outer,
				Href:      href,
			})
		}

		if s.AttrOr("target", "") == "_blank" {
			rel := s.AttrOr("rel", "")
			if !strings.Contains(rel, "noopener") {
				ev.TargetBlankWithoutNoopener = append(ev.TargetBlankWithoutNoopener, BlankLinkEvidence{
					OuterHTML: outer,
					Href:      href,
					HrefAbs:   absURL(siteURL, href),
					Target:    "_blank",
					Rel:       rel,
				})
			}
		}

		ev.Links = append(ev.Links, LinkEvidence{
			OuterHTML: outer,
			Href:      href,
			HrefAbs:   absURL(siteURL, href),
		})
	})
}

func collectIFrames(doc *goquery.Document, ev *HTMLEvidence, siteURL string) {
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		ev.IFrames = append(ev.IFrames, IFrameEvidence{
			OuterHTML: outerHTML(s),
			Src:       src,
			SrcAbs:    absURL(siteURL, src),
		})
	})
}

func collectScriptTags(doc *goquery.Document, ev *HTMLEvidence, siteURL string) {
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		ev.ScriptTags = append(ev.ScriptTags, ScriptTagEvidence{
			OuterHTML:   outerHTML(s),
			Src:         src,
			SrcAbs:      absURL(siteURL, src),
			Integrity:   s.AttrOr("integrity", ""),
			CrossOrigin: s.AttrOr("crossorigin", ""),
		})
	})
}

// collectSecrets scans the raw page text, not the DOM: secrets leak in
// comments and inline code as often as in attributes.
func collectSecrets(htmlText string, ev *HTMLEvidence) {
	for _, p := range secretPatterns {
		for _, loc := range p.regex.FindAllStringIndex(htmlText, -1) {
			start := loc[0] - 60
			if start < 0 {
				start = 0
			}
			end := loc[1] + 60
			if end > len(htmlText) {
				end = len(htmlText)
			}
			ev.PotentialSecretsInHTML = append(ev.PotentialSecretsInHTML, SecretEvidence{
				Name:  p.name,
				Match: htmlText[start:end],
			})
		}
	}
}

// outerHTML serializes a selection including its own tag.
func outerHTML(s *goquery.Selection) string {
	out, err := goquery.OuterHtml(s)
	if err != nil {
		return s.Text()
	}
	return out
}

// absURL resolves a possibly-relative URL against the site URL.
// Data URIs and unparseable inputs are returned unchanged.
func absURL(siteURL, maybeRel string) string {
	if maybeRel == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(maybeRel)), "data:") {
		return maybeRel
	}
	base, err := url.Parse(siteURL)
	if err != nil || siteURL == "" {
		return maybeRel
	}
	ref, err := url.Parse(maybeRel)
	if err != nil {
		return maybeRel
	}
	return base.ResolveReference(ref).String()
}
