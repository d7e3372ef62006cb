package report

import (
	"io"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// ReportHTMLFile is the HTML report filename under the report directory.
const ReportHTMLFile = "owasp_top10_report.html"

// Writer defines the interface for report output.
// Implementations write scan results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the full scan report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)

	// WriteAnalysis outputs only the OWASP analysis portion.
	// This is useful when the crawl metadata is not of interest.
	WriteAnalysis(report *model.Report) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAnalysis outputs the analysis report to all configured Writers.
func (m *MultiWriter) WriteAnalysis(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAnalysis(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
