package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full scan report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("OWASP Top 10 Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Rendered", strconv.Itoa(len(report.Pages))},
			{"Core Scripts", strconv.Itoa(len(report.CoreScripts))},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")

	analysis := report.Analysis
	if analysis == nil {
		analysis = model.NewDegradedReport(report.Target)
	}
	w.writeAnalysis(md, analysis)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteAnalysis outputs only the analysis report in Markdown format.
func (w *MarkdownWriter) WriteAnalysis(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("OWASP Top 10 Report")
	md.PlainText("")
	w.writeAnalysis(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ScanReport) string {
	if report.TimedOut {
		return "⚠️ Timed Out (partial results)"
	}
	if report.Error != nil {
		return "❌ Error - " + report.Error.Error()
	}
	return "✅ Complete"
}

// writeAnalysis writes the summary, findings, and excluded sections.
func (w *MarkdownWriter) writeAnalysis(md *markdown.Markdown, report *model.Report) {
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeExcluded(md, report)
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Summary")
	md.PlainText("")

	counts := severityCounts(report)
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(counts[model.SeverityCritical])},
			{"🟠 High", strconv.Itoa(counts[model.SeverityHigh])},
			{"🟡 Medium", strconv.Itoa(counts[model.SeverityMedium])},
			{"🔵 Low", strconv.Itoa(counts[model.SeverityLow])},
			{"⚪ Info", strconv.Itoa(counts[model.SeverityInfo])},
			{"**Total**", "**" + strconv.Itoa(len(report.Vulnerabilities)) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Vulnerabilities) > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report, counts)

	if len(report.Summary.KeyObservations) > 0 {
		md.BulletList(report.Summary.KeyObservations...)
		md.PlainText("")
	}
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Severity]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, sev := range []model.Severity{
		model.SeverityCritical,
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	} {
		if counts[sev] > 0 {
			chart.LabelAndIntValue(sev.String(), uint64(counts[sev]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report, counts map[model.Severity]int) {
	switch {
	case counts[model.SeverityCritical] > 0:
		md.Cautionf(
			"Critical security issues detected! %d critical finding(s) require immediate attention.",
			counts[model.SeverityCritical],
		)
	case counts[model.SeverityHigh] > 0:
		md.Warningf(
			"High severity issues detected. %d high severity finding(s) should be addressed.",
			counts[model.SeverityHigh],
		)
	case counts[model.SeverityMedium] > 0:
		md.Importantf(
			"Medium severity issues found. %d finding(s) warrant attention.",
			counts[model.SeverityMedium],
		)
	case len(report.Vulnerabilities) > 0:
		md.Note("Only low severity and informational findings confirmed.")
	default:
		md.Tip("No definitive vulnerabilities confirmed from the evidence.")
	}
	md.PlainText("")
}

// writeFindings writes each confirmed finding with its evidence in full.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.Report) {
	md.H2("Confirmed Vulnerabilities")
	md.PlainText("")

	if len(report.Vulnerabilities) == 0 {
		md.PlainText("No confirmed vulnerabilities.")
		md.PlainText("")
		return
	}

	for _, v := range report.Vulnerabilities {
		md.H3(v.Name + " (" + v.OWASPItem + ")")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Severity", "Likelihood", "Probability"},
			Rows: [][]string{
				{v.Severity, v.Likelihood, strconv.FormatFloat(v.Probability, 'f', 2, 64)},
			},
		})
		md.PlainText("")
		md.PlainText(v.Reasoning)
		md.PlainText("")

		for _, tag := range v.Evidence.HTML {
			md.CodeBlocks(markdown.SyntaxHighlightHTML, tag)
			md.PlainText("")
		}
		for _, js := range v.Evidence.JS {
			md.PlainTextf("`%s:%d`", js.Filename, js.Line)
			md.PlainText("")
			md.CodeBlocks(markdown.SyntaxHighlightJavaScript, codeContext(js.Context))
			md.PlainText("")
		}

		if len(v.Remediation) > 0 {
			md.PlainText("Remediation:")
			md.PlainText("")
			md.BulletList(v.Remediation...)
			md.PlainText("")
		}
	}
}

// writeExcluded writes the excluded candidates section.
func (w *MarkdownWriter) writeExcluded(md *markdown.Markdown, report *model.Report) {
	if len(report.ExcludedCandidates) == 0 {
		return
	}

	md.H2("Excluded Candidates")
	md.PlainText("")

	rows := make([][]string, 0, len(report.ExcludedCandidates))
	for _, excl := range report.ExcludedCandidates {
		rows = append(rows, []string{excl.Hypothesis, excl.Reason})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Hypothesis", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("Report generated by [K-AI-bug-hunters](https://github.com/bokyungprincess/K-AI-bug-hunters)")
}

// severityCounts buckets confirmed findings by parsed severity.
func severityCounts(report *model.Report) map[model.Severity]int {
	counts := make(map[model.Severity]int)
	for _, v := range report.Vulnerabilities {
		counts[model.ParseSeverity(v.Severity)]++
	}
	return counts
}

// codeContext joins quoted context lines into one code block.
func codeContext(lines []model.CodeLine) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(strconv.Itoa(l.Line))
		sb.WriteString(": ")
		sb.WriteString(l.Code)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
