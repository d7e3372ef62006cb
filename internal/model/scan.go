package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanReport is the top-level artifact for one scanned target.
// It accumulates state as the pipeline runs: the crawler fills Pages,
// the classifier fills Classifications and CoreScripts, the analysis
// engine fills Analysis, and the report step records output paths.
//
// Design decision: We use a single mutable struct threaded through the
// pipeline rather than per-step return values because steps build on each
// other's output and the whole thing serializes naturally for storage.
type ScanReport struct {
	// ID uniquely identifies this scan run.
	ID string `json:"id"`

	// Target is the start URL the scan was invoked with.
	Target string `json:"target"`

	// StartedAt is when the pipeline began executing.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the pipeline finished.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Pages contains every page rendered during the crawl,
	// start page first.
	Pages []*Page `json:"pages,omitempty"`

	// Classifications holds the verdict for every classified script asset.
	Classifications []Classification `json:"classifications,omitempty"`

	// CoreScripts records the retained application scripts.
	CoreScripts []CoreScript `json:"core_scripts,omitempty"`

	// Analysis is the OWASP Top 10 analysis result.
	// Nil when analysis was skipped or has not run yet.
	Analysis *Report `json:"analysis,omitempty"`

	// OutputDir is the directory scan artifacts were written to.
	OutputDir string `json:"output_dir,omitempty"`

	// PerformedStages lists pipeline steps that executed, in order.
	PerformedStages []string `json:"performed_stages,omitempty"`

	// TimedOut is true when the scan was cancelled before completing.
	TimedOut bool `json:"timed_out,omitempty"`

	// Error holds the first fatal pipeline error, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates a ScanReport for the given target.
func NewScanReport(target string) *ScanReport {
	return &ScanReport{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
	}
}

// StartPage returns the rendered start page, or nil if the crawl
// produced nothing.
func (r *ScanReport) StartPage() *Page {
	if len(r.Pages) == 0 {
		return nil
	}
	return r.Pages[0]
}

// AllScripts returns the script assets of every crawled page, in crawl
// order, deduplicated by final URL. Inline scripts are never duplicates
// of each other because their final URL is the page they came from and
// their filenames are indexed per page; they are deduplicated by SHA-1.
func (r *ScanReport) AllScripts() []*ScriptAsset {
	var out []*ScriptAsset
	seenURL := make(map[string]bool)
	seenHash := make(map[string]bool)
	for _, p := range r.Pages {
		for _, s := range p.Scripts {
			if s.Inline {
				if s.SHA1 != "" && seenHash[s.SHA1] {
					continue
				}
				seenHash[s.SHA1] = true
			} else {
				if seenURL[s.FinalURL] {
					continue
				}
				seenURL[s.FinalURL] = true
			}
			out = append(out, s)
		}
	}
	return out
}

// ConfirmedCount returns the number of confirmed vulnerabilities,
// or 0 when analysis has not run.
func (r *ScanReport) ConfirmedCount() int {
	if r.Analysis == nil {
		return 0
	}
	return len(r.Analysis.Vulnerabilities)
}

// ExcludedCount returns the number of excluded candidates,
// or 0 when analysis has not run.
func (r *ScanReport) ExcludedCount() int {
	if r.Analysis == nil {
		return 0
	}
	return len(r.Analysis.ExcludedCandidates)
}

// OverallRisk returns the summary risk, or "unknown" before analysis.
func (r *ScanReport) OverallRisk() string {
	if r.Analysis == nil || r.Analysis.Summary.OverallRisk == "" {
		return "unknown"
	}
	return r.Analysis.Summary.OverallRisk
}

// Duration returns how long the scan took, using the current time when
// the scan has not finished yet.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
