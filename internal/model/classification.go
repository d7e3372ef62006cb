package model

// ScriptLabel is the classification verdict for a script asset.
type ScriptLabel string

// Script classification labels.
// Only LabelCoreApp assets are persisted and fed to the analysis engine;
// everything else is discarded after classification.
const (
	// LabelCoreApp marks application-authored code: business logic,
	// routing, state management, API calls, controllers, view composition.
	LabelCoreApp ScriptLabel = "core_app"

	// LabelVendor marks third-party libraries, UI kits, charts, analytics
	// and similar off-the-shelf code.
	LabelVendor ScriptLabel = "vendor"

	// LabelUnknown marks assets the classifier could not decide on.
	// Unknown assets are treated as non-core.
	LabelUnknown ScriptLabel = "unknown"
)

// Classification is the per-asset verdict produced by the heuristic
// filter or the language-model classifier.
type Classification struct {
	// Filename identifies the asset, matching ScriptAsset.Filename.
	Filename string `json:"filename"`

	// FinalURL identifies the asset, matching ScriptAsset.FinalURL.
	// Filename alone is ambiguous: two paths can serve the same basename.
	FinalURL string `json:"final_url"`

	// Label is the verdict.
	Label ScriptLabel `json:"label"`

	// Confidence is the classifier's self-reported confidence in [0, 1].
	// Heuristic verdicts use 0.99.
	Confidence float64 `json:"confidence,omitempty"`

	// Reason is a short machine-readable justification,
	// e.g. "vendor_heuristic" or "parse_error".
	Reason string `json:"reason,omitempty"`
}

// IsCore reports whether the classified asset should be retained.
func (c Classification) IsCore() bool {
	return c.Label == LabelCoreApp
}
