package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting and findings grouped by severity.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full scan report in human-readable format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if report.Analysis != nil {
		w.writeAnalysis(&sb, report.Analysis)
	} else {
		sb.WriteString("  Analysis was skipped; no vulnerability report.\n\n")
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteAnalysis outputs only the analysis report.
func (w *SimpleWriter) WriteAnalysis(report *model.Report) (int, error) {
	var sb strings.Builder
	w.writeAnalysis(&sb, report)
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       OWASP TOP 10 SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Target:         %s\n", report.Target))
	sb.WriteString(fmt.Sprintf("Scan Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Pages Rendered: %d\n", len(report.Pages)))
	sb.WriteString(fmt.Sprintf("Core Scripts:   %d\n", len(report.CoreScripts)))

	switch {
	case report.TimedOut:
		sb.WriteString("Status:         TIMED OUT (partial results)\n")
	case report.Error != nil:
		sb.WriteString(fmt.Sprintf("Status:         ERROR - %s\n", report.Error))
	default:
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeAnalysis writes the summary and findings sections.
func (w *SimpleWriter) writeAnalysis(sb *strings.Builder, report *model.Report) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Overall Risk: %s\n", strings.ToUpper(report.Summary.OverallRisk)))
	sb.WriteString(fmt.Sprintf("  Confirmed:    %d\n", len(report.Vulnerabilities)))
	sb.WriteString(fmt.Sprintf("  Excluded:     %d\n", len(report.ExcludedCandidates)))
	sb.WriteString("\n")

	for _, obs := range report.Summary.KeyObservations {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", obs))
	}
	if len(report.Summary.KeyObservations) > 0 {
		sb.WriteString("\n")
	}

	w.writeFindings(sb, report)
	w.writeExcluded(sb, report)
}

// writeFindings writes confirmed findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.Report) {
	if len(report.Vulnerabilities) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("CONFIRMED VULNERABILITIES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Vulnerabilities) == 0 {
		sb.WriteString("  No confirmed vulnerabilities\n\n")
		return
	}

	// Critical first.
	severities := []model.Severity{
		model.SeverityCritical,
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	}

	for _, severity := range severities {
		var findings []model.Vulnerability
		for _, v := range report.Vulnerabilities {
			if model.ParseSeverity(v.Severity) == severity {
				findings = append(findings, v)
			}
		}
		if len(findings) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("[%s] %s\n", w.getSeverityIndicator(severity), severity.String()))
		for _, v := range findings {
			sb.WriteString(fmt.Sprintf("  * %s (%s)\n", v.Name, v.OWASPItem))
			sb.WriteString(fmt.Sprintf("    Likelihood: %s (%.0f%%)\n", v.Likelihood, v.Probability*100))
			for _, uri := range v.AffectedURIs {
				sb.WriteString(fmt.Sprintf("    Affected: %s\n", uri))
			}
			if w.verbose && v.Reasoning != "" {
				sb.WriteString(fmt.Sprintf("    Reasoning: %s\n", v.Reasoning))
			}
		}
		sb.WriteString("\n")
	}
}

// writeExcluded writes the excluded candidates section.
func (w *SimpleWriter) writeExcluded(sb *strings.Builder, report *model.Report) {
	if len(report.ExcludedCandidates) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("EXCLUDED CANDIDATES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, excl := range report.ExcludedCandidates {
		sb.WriteString(fmt.Sprintf("  * %s\n", excl.Hypothesis))
		sb.WriteString(fmt.Sprintf("    Reason: %s\n", excl.Reason))
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by K-AI-bug-hunters\n")
	sb.WriteString("https://github.com/bokyungprincess/K-AI-bug-hunters\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
