package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// HTMLWriter renders a self-contained HTML report.
//
// Design decision: The report is rendered locally with html/template
// instead of asking the language model to write HTML, because:
// 1. Template output is deterministic and costs nothing to produce
// 2. html/template escapes evidence markup, so offending tags render
//    as text instead of executing in the reviewer's browser
// 3. The JSON report remains the single source of truth; the HTML is
//    a pure view over it
type HTMLWriter struct {
	baseWriter

	// now supplies the generation timestamp. Overridable in tests.
	now func() time.Time
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
}

// Write renders the analysis portion of the scan report.
// A report without analysis renders the degraded placeholder document.
func (w *HTMLWriter) Write(report *model.ScanReport) (int, error) {
	analysis := report.Analysis
	if analysis == nil {
		analysis = model.NewDegradedReport(report.Target)
	}
	return w.WriteAnalysis(analysis)
}

// WriteAnalysis renders the full HTML document for the analysis report.
func (w *HTMLWriter) WriteAnalysis(report *model.Report) (int, error) {
	data := htmlReportData{
		Report:      report,
		GeneratedAt: w.now().Format("2006-01-02 15:04:05"),
	}

	cw := &countingWriter{w: w.output}
	if err := htmlReportTemplate.Execute(cw, data); err != nil {
		return cw.n, fmt.Errorf("render HTML report: %w", err)
	}
	return cw.n, nil
}

// htmlReportData is the template input.
type htmlReportData struct {
	Report      *model.Report
	GeneratedAt string
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

var htmlReportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(p float64) string {
		return fmt.Sprintf("%.0f%%", p*100)
	},
}).Parse(htmlReportBody))

// htmlReportBody lays out one section per finding: the name, the grade
// and likelihood, the offending code in full, and the explanation.
// Evidence code is never truncated here; a report that elides the
// offending markup cannot be verified.
const htmlReportBody = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>OWASP Top 10 Report</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, Segoe UI, Roboto, Helvetica, Arial, sans-serif;
         margin: 40px; line-height: 1.6; }
  h1 { margin-top: 0; }
  section.vuln, section.excluded { border: 1px solid #e5e7eb; border-radius: 10px; padding: 16px 18px; margin-bottom: 18px; }
  section.vuln h2 { margin: 0 0 8px; font-size: 20px; }
  section.vuln h3, section.excluded h3 { margin: 12px 0 6px; font-size: 16px; }
  pre { background: #f9fafb; border: 1px solid #e5e7eb; border-radius: 8px; padding: 10px; overflow-x: auto; }
  code { white-space: pre-wrap; word-break: break-word; }
  .muted { color: #6b7280; font-size: 12px; }
</style>
</head>
<body>
<h1>OWASP Top 10 Report</h1>
<p class="muted">Generated at {{.GeneratedAt}}{{with .Report.SiteURL}} &middot; Target: {{.}}{{end}}</p>

<p>Overall risk: <strong>{{.Report.Summary.OverallRisk}}</strong> &middot;
Confirmed: {{.Report.Summary.TotalConfirmed}} &middot;
Excluded: {{.Report.Summary.TotalExcluded}}</p>
{{range .Report.Summary.KeyObservations}}<p class="muted">{{.}}</p>
{{end}}
{{range .Report.Vulnerabilities}}
<section class="vuln">
  <h2>{{.Name}} ({{.OWASPItem}})</h2>
  <h3>Severity and likelihood</h3>
  <p>Severity {{.Severity}}, likelihood {{.Likelihood}}{{if .Probability}} ({{percent .Probability}}){{end}}.</p>
  <h3>Offending code</h3>
  {{range .Evidence.HTML}}<pre><code>{{.}}</code></pre>
  {{end}}{{range .Evidence.JS}}<p class="muted">{{.Filename}}:{{.Line}}</p>
  <pre><code>{{range .Context}}{{.Line}}: {{.Code}}
{{end}}</code></pre>
  {{end}}
  <h3>Explanation</h3>
  <p>{{.Reasoning}}</p>
  {{with .Impact}}<p>Impact: {{.}}</p>{{end}}
  {{with .Validation.WhyTrue}}<p>Why confirmed: {{.}}</p>{{end}}
  {{if .ReproSteps}}<p>Reproduction (high level):</p>
  <ul>{{range .ReproSteps}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .Remediation}}<p>Remediation:</p>
  <ul>{{range .Remediation}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{range .AffectedURIs}}<p class="muted">Affected: {{.}}</p>
  {{end}}
</section>
{{else}}
<p>No confirmed vulnerabilities.</p>
{{end}}
{{if .Report.ExcludedCandidates}}
<h2>Excluded candidates</h2>
{{range .Report.ExcludedCandidates}}
<section class="excluded">
  <h3>{{.Hypothesis}}</h3>
  <p>{{.Reason}}</p>
  {{with .RelatedEvidence}}{{range .HTML}}<pre><code>{{.}}</code></pre>
  {{end}}{{range .JS}}<p class="muted">{{.Filename}}:{{.Line}}</p>
  <pre><code>{{range .Context}}{{.Line}}: {{.Code}}
{{end}}</code></pre>
  {{end}}{{end}}
</section>
{{end}}
{{end}}
</body>
</html>
`
