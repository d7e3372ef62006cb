// Package analysis turns extracted page evidence into an OWASP Top 10
// report. The evidence is serialized into a single JSON payload, shrunk
// in stages to stay under the model's practical input size, and sent to
// the language model with a strict system prompt and an embedded output
// schema. The response is parsed and then re-validated locally: a
// finding whose validation checklist is not fully satisfied is demoted
// to an excluded candidate regardless of what the model claimed, so the
// report never overstates what the evidence proves.
//
// When the model call fails or its response cannot be parsed, analysis
// degrades to a report with overall risk "unknown" instead of failing
// the scan. The crawl artifacts are already on disk at that point and
// the analysis can be re-run later.
package analysis
