package model

import "strings"

// Severity represents the risk level of a confirmed finding.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The analysis engine receives
// severities as strings from the language model; ParseSeverity normalizes
// them for ranking, and String() provides human-readable output.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct impact.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	// Examples: target=_blank without noopener, missing charset meta.
	SeverityLow

	// SeverityMedium indicates moderate issues that warrant attention.
	// Examples: missing CSRF defenses on state-changing forms.
	SeverityMedium

	// SeverityHigh indicates serious, directly exploitable issues.
	// Examples: DOM XSS with a confirmed source-to-sink flow.
	SeverityHigh

	// SeverityCritical indicates issues that likely compromise the
	// application outright. Examples: credentials or API keys in markup.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a free-form severity string from the language model
// to a Severity. Unrecognized values map to SeverityInfo so a sloppy model
// response never inflates the ranking.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityInfo
	}
}
