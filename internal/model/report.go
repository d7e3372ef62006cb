package model

// Report is the strict-schema JSON document produced by the analysis engine.
// A finding appears under Vulnerabilities only when every validation check
// for its class is true; anything weaker is kept under ExcludedCandidates
// so the report never overstates what the evidence proves.
type Report struct {
	// SiteURL is the analyzed page URL, when known.
	SiteURL string `json:"site_url,omitempty"`

	// Summary aggregates the analysis outcome.
	Summary Summary `json:"summary"`

	// Vulnerabilities contains only definitive, fully validated findings.
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`

	// ExcludedCandidates contains hypotheses that could not be confirmed,
	// with the reason each one was excluded.
	ExcludedCandidates []ExcludedCandidate `json:"excluded_candidates"`
}

// Summary is the roll-up section of a Report.
type Summary struct {
	// OverallRisk is the model's qualitative risk assessment,
	// or "unknown" when analysis failed.
	OverallRisk string `json:"overall_risk"`

	// KeyObservations lists notable facts about the target.
	KeyObservations []string `json:"key_observations"`

	// TotalConfirmed is the number of confirmed vulnerabilities.
	TotalConfirmed int `json:"total_confirmed"`

	// TotalExcluded is the number of excluded candidates.
	TotalExcluded int `json:"total_excluded"`
}

// Vulnerability is a single confirmed finding.
// Names are precise vulnerability names (e.g. "Cross-Site Scripting (XSS)"),
// never OWASP category titles.
type Vulnerability struct {
	// Name is the precise vulnerability name.
	Name string `json:"name"`

	// OWASPItem is the OWASP Top 10 item, e.g. "A03:2021-Injection".
	OWASPItem string `json:"owasp_item"`

	// Severity is the qualitative severity (Critical/High/Medium/Low).
	Severity string `json:"severity"`

	// Likelihood describes how likely exploitation is.
	Likelihood string `json:"likelihood"`

	// Probability is a numeric exploitation likelihood in [0, 1].
	Probability float64 `json:"probability"`

	// Impact describes the consequence of exploitation.
	Impact string `json:"impact,omitempty"`

	// Reasoning explains why the evidence proves the finding.
	Reasoning string `json:"reasoning"`

	// AffectedURIs lists the URIs the finding applies to.
	AffectedURIs []string `json:"affected_uris"`

	// AffectedFiles lists the script files involved.
	AffectedFiles []string `json:"affected_files,omitempty"`

	// Evidence carries the verbatim offending markup and code.
	Evidence Evidence `json:"evidence"`

	// Validation records the per-class checks that confirmed the finding.
	Validation Validation `json:"validation"`

	// ReproSteps are high-level reproduction steps. Never payloads.
	ReproSteps []string `json:"repro_steps"`

	// Remediation lists concrete fixes.
	Remediation []string `json:"remediation"`

	// References lists supporting documentation URLs.
	References []string `json:"references,omitempty"`
}

// Evidence holds the frontend-verifiable proof for a finding.
type Evidence struct {
	// HTML contains full offending tags. These are never truncated:
	// a report that elides the offending markup cannot be verified.
	HTML []string `json:"html"`

	// JS contains JavaScript sink/source evidence with exact locations.
	JS []JSEvidence `json:"js"`
}

// JSEvidence points at a JavaScript sink or source with its context.
type JSEvidence struct {
	// Filename is the core script file the evidence was found in.
	Filename string `json:"filename"`

	// Line is the 1-based line number of the match.
	Line int `json:"line"`

	// Context contains the surrounding source lines.
	Context []CodeLine `json:"context"`

	// Source names the attacker-controlled input, e.g. "location.search".
	Source string `json:"source,omitempty"`

	// Sink names the dangerous operation, e.g. "innerHTML".
	Sink string `json:"sink,omitempty"`

	// SanitizationCheck describes what escaping was (not) observed.
	SanitizationCheck string `json:"sanitization_check,omitempty"`

	// TaintFlow is a short input -> transformation -> sink trace.
	TaintFlow string `json:"taint_flow,omitempty"`
}

// CodeLine is a single line of quoted source code.
type CodeLine struct {
	// Line is the 1-based line number.
	Line int `json:"line"`

	// Code is the verbatim source line.
	Code string `json:"code"`
}

// Validation is the per-class checklist a finding must fully pass
// to be confirmed. Any false check demotes the finding to an
// excluded candidate.
type Validation struct {
	// Class is the vulnerability class being validated, e.g. "XSS".
	Class string `json:"class"`

	// HasUserControlledInput is true when the evidence shows
	// attacker-controllable input.
	HasUserControlledInput bool `json:"has_user_controlled_input"`

	// ReachesSensitiveSink is true when that input reaches a
	// dangerous sink.
	ReachesSensitiveSink bool `json:"reaches_sensitive_sink"`

	// NoSanitizationOrEncoding is true when no escaping or encoding
	// was observed between source and sink.
	NoSanitizationOrEncoding bool `json:"no_sanitization_or_encoding"`

	// IsTriggerableFromUI is true when the flaw can be reached from
	// the page itself.
	IsTriggerableFromUI bool `json:"is_triggerable_from_ui"`

	// DefenseAbsent is true when the expected defense (CSRF token,
	// CSP, noopener, ...) is missing.
	DefenseAbsent bool `json:"defense_absent"`

	// WhyTrue explains, in prose, why every check above holds.
	WhyTrue string `json:"why_true"`
}

// AllChecksPass reports whether every boolean validation check is true.
func (v Validation) AllChecksPass() bool {
	return v.HasUserControlledInput &&
		v.ReachesSensitiveSink &&
		v.NoSanitizationOrEncoding &&
		v.IsTriggerableFromUI &&
		v.DefenseAbsent
}

// ExcludedCandidate is a hypothesis that failed validation.
type ExcludedCandidate struct {
	// Hypothesis names the suspected vulnerability.
	Hypothesis string `json:"hypothesis"`

	// Reason explains why the candidate could not be confirmed.
	Reason string `json:"reason"`

	// RelatedEvidence carries whatever evidence prompted the hypothesis.
	RelatedEvidence *Evidence `json:"related_evidence,omitempty"`
}

// NewDegradedReport returns the fallback report used when the language
// model call fails or its response cannot be parsed. The scan still
// completes; the report just records that analysis did not happen.
func NewDegradedReport(siteURL string) *Report {
	return &Report{
		SiteURL: siteURL,
		Summary: Summary{
			OverallRisk:     "unknown",
			KeyObservations: []string{"OpenAI request failed or response parsing error"},
		},
		Vulnerabilities:    []Vulnerability{},
		ExcludedCandidates: []ExcludedCandidate{},
	}
}
