// Package classify separates application-authored JavaScript from vendor
// libraries, so the analysis stage only reads code the site's developers
// actually wrote.
//
// Classification runs in two passes. A heuristic pass labels obvious
// vendor assets (known library names, CDN hosts, vendor paths) without
// spending tokens on them. Everything left goes to the language model in
// one batch, which sees each asset's filename, URL, and head/tail code
// samples and answers with core_app, vendor, or unknown.
//
// Design decision: The heuristic runs first rather than trusting the
// model for everything because:
//  1. jQuery does not need a language model to identify
//  2. Fewer assets in the prompt means cheaper, faster classification
//  3. The heuristic verdicts are deterministic and testable
//
// Only core_app assets survive: SaveCoreScripts downloads their bodies
// into core_js/ and records them in core_js_list.txt and
// core_js_urls.json.
package classify
