package evidence

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// jsPatterns are the source and sink constructs worth quoting to the
// analysis model. Labels are stable identifiers; the report references
// them verbatim.
var jsPatterns = []struct {
	regex *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\beval\s*\(`), "use_of_eval"},
	{regexp.MustCompile(`(?i)\bnew\s+Function\s*\(`), "new_Function"},
	{regexp.MustCompile(`(?i)\bset(?:Timeout|Interval)\s*\(\s*['"]`), "setTimeout_string_code"},
	{regexp.MustCompile(`(?i)\.innerHTML\s*=`), "innerHTML_assignment"},
	{regexp.MustCompile(`(?i)\.outerHTML\s*=`), "outerHTML_assignment"},
	{regexp.MustCompile(`(?i)\.insertAdjacentHTML\s*\(`), "insertAdjacentHTML"},
	{regexp.MustCompile(`(?i)\bdocument\.write\s*\(`), "document_write"},
	{regexp.MustCompile(`(?i)\bdocument\.cookie\b`), "document_cookie_access"},
	{regexp.MustCompile(`(?i)\blocalStorage\.(?:setItem|getItem|removeItem)\s*\(`), "localStorage_usage"},
	{regexp.MustCompile(`(?i)\bsessionStorage\.(?:setItem|getItem|removeItem)\s*\(`), "sessionStorage_usage"},
	{regexp.MustCompile(`(?i)\bdangerouslySetInnerHTML\b`), "react_dangerouslySetInnerHTML"},
	{regexp.MustCompile(`(?i)\bfetch\s*\(\s*['"]([^'"]+)`), "fetch_call"},
	{regexp.MustCompile(`(?i)\bXMLHttpRequest\s*\(`), "xhr_usage"},
	{regexp.MustCompile(`(?i)\.open\s*\(\s*['"](GET|POST|PUT|DELETE|PATCH)['"]\s*,\s*['"]([^'"]+)`), "xhr_open"},
	{regexp.MustCompile(`(?i)\bURLSearchParams\s*\(`), "urlsearchparams_usage"},
	{regexp.MustCompile(`(?i)\blocation\.(?:hash|search|href)\b`), "location_usage"},
}

// Endpoint extraction patterns, a subset of jsPatterns with capture
// groups for the URL.
var (
	fetchEndpointPattern = regexp.MustCompile(`\bfetch\s*\(\s*['"]([^'"]+)`)
	xhrEndpointPattern   = regexp.MustCompile(`(?i)\.open\s*\(\s*['"](GET|POST|PUT|DELETE|PATCH)['"]\s*,\s*['"]([^'"]+)`)
)

// JSHit is a single pattern match in a script file.
type JSHit struct {
	// Pattern is the stable label of the matched pattern.
	Pattern string `json:"pattern"`

	// Regex is the pattern source, so the analysis model knows exactly
	// what was searched for.
	Regex string `json:"regex"`

	// Filename is the script file the hit is in.
	Filename string `json:"filename"`

	// LineNo is the 1-based line of the match.
	LineNo int `json:"line_no"`

	// Context is the matched line with one line on each side.
	Context []model.CodeLine `json:"context"`
}

// Endpoint is an API endpoint referenced from script code.
type Endpoint struct {
	// Type is "fetch" or "xhr".
	Type string `json:"type"`

	// Method is the HTTP method for xhr endpoints.
	Method string `json:"method,omitempty"`

	// URL is the endpoint as written in the code.
	URL string `json:"url"`

	// URLAbs is the endpoint resolved against the site URL.
	URLAbs string `json:"url_abs,omitempty"`

	// Filename is the script file the reference is in.
	Filename string `json:"filename"`
}

// JSFileEvidence is the extraction result for one script file.
type JSFileEvidence struct {
	// Filename is the file's name under core_js/.
	Filename string `json:"filename"`

	// SHA1 is the hex digest of the file contents.
	SHA1 string `json:"sha1"`

	// Evidences are all pattern hits in the file.
	Evidences []JSHit `json:"evidences"`

	// Endpoints are API endpoints referenced by the file.
	Endpoints []Endpoint `json:"endpoints"`
}

// JSEvidenceSet is the extraction result across all retained scripts.
type JSEvidenceSet struct {
	// Files holds one entry per script, in filename order.
	Files []*JSFileEvidence `json:"files"`

	// Summary counts files and total hits.
	Summary JSSummary `json:"summary"`
}

// JSSummary is the aggregate hit count.
type JSSummary struct {
	TotalFiles int `json:"total_files"`
	TotalHits  int `json:"total_hits"`
}

// AnalyzeJS extracts pattern hits and endpoints from one script body.
func AnalyzeJS(jsText, filename, siteURL string) *JSFileEvidence {
	lines := strings.Split(jsText, "\n")

	result := &JSFileEvidence{
		Filename:  filename,
		SHA1:      model.HashText(jsText),
		Evidences: make([]JSHit, 0),
		Endpoints: make([]Endpoint, 0),
	}

	for _, p := range jsPatterns {
		for _, loc := range p.regex.FindAllStringIndex(jsText, -1) {
			lineNo := strings.Count(jsText[:loc[0]], "\n") + 1
			result.Evidences = append(result.Evidences, JSHit{
				Pattern:  p.label,
				Regex:    p.regex.String(),
				Filename: filename,
				LineNo:   lineNo,
				Context:  contextLines(lines, lineNo),
			})
		}
	}

	for _, m := range fetchEndpointPattern.FindAllStringSubmatch(jsText, -1) {
		result.Endpoints = append(result.Endpoints, Endpoint{
			Type:     "fetch",
			URL:      m[1],
			URLAbs:   absURL(siteURL, m[1]),
			Filename: filename,
		})
	}
	for _, m := range xhrEndpointPattern.FindAllStringSubmatch(jsText, -1) {
		result.Endpoints = append(result.Endpoints, Endpoint{
			Type:     "xhr",
			Method:   strings.ToUpper(m[1]),
			URL:      m[2],
			URLAbs:   absURL(siteURL, m[2]),
			Filename: filename,
		})
	}

	return result
}

// contextLines quotes the matched line and one line on each side.
func contextLines(lines []string, lineNo int) []model.CodeLine {
	ctx := make([]model.CodeLine, 0, 3)
	for n := lineNo - 1; n <= lineNo+1; n++ {
		if n < 1 || n > len(lines) {
			continue
		}
		ctx = append(ctx, model.CodeLine{Line: n, Code: lines[n-1]})
	}
	return ctx
}

// AnalyzeJSDir runs extraction over every .js file in a directory,
// typically the core_js/ output of the classification stage.
func AnalyzeJSDir(dir, siteURL string) (*JSEvidenceSet, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	set := &JSEvidenceSet{Files: make([]*JSFileEvidence, 0, len(paths))}
	for _, path := range paths {
		body, err := os.ReadFile(path) //nolint:gosec // paths come from our own output dir
		if err != nil {
			return nil, err
		}
		fileEv := AnalyzeJS(string(body), filepath.Base(path), siteURL)
		set.Files = append(set.Files, fileEv)
		set.Summary.TotalHits += len(fileEv.Evidences)
	}
	set.Summary.TotalFiles = len(paths)

	return set, nil
}
