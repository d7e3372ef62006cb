// Package evidence extracts the raw material the analysis model reasons
// over: security-relevant HTML constructs from the rendered page and
// source/sink pattern hits from the retained application scripts.
//
// Extraction is deliberately mechanical. Nothing here decides whether
// something is a vulnerability; it collects full offending tags, exact
// line numbers, and surrounding context so the analysis stage can judge
// with the evidence in front of it and quote it verbatim in the report.
//
// HTML evidence is grouped into fixed buckets (forms, inline event
// handlers, javascript: links, iframes, script tags, potential secrets,
// and so on). JavaScript evidence is one record per pattern hit with the
// matched line and one line of context on each side.
package evidence
