package analysis

import (
	"encoding/json"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
)

// maxShrinkRounds bounds the shrink loop. Each round applies at most
// one stage, so this is enough for every stage plus string truncation.
const maxShrinkRounds = 20

// ShrinkPayload reduces the analysis payload until its serialized form
// fits within guards.MaxTotalChars, or until no stage can shrink it
// further. Stages apply in order of how much signal they cost:
//
//  1. Cap the number of script files.
//  2. Cap pattern hits quoted per file.
//  3. Cap each HTML evidence bucket.
//  4. Truncate long string fields, keeping the head and tail.
//
// Offending-tag outer HTML is never truncated. A report that elides
// the offending markup cannot be verified by a reader.
//
// The payload is modified in place and returned for convenience.
func ShrinkPayload(payload map[string]any, guards config.PayloadGuards) map[string]any {
	for range maxShrinkRounds {
		if serializedLen(payload) <= guards.MaxTotalChars {
			break
		}
		if capJSFiles(payload, guards.MaxJSFiles) {
			continue
		}
		if capJSEvidences(payload, guards.MaxJSEvidencePerFile) {
			continue
		}
		if capHTMLBuckets(payload, guards.MaxHTMLEvidencePerBucket) {
			continue
		}
		truncateStrings(payload, guards.MaxStrField)
	}
	return payload
}

func serializedLen(obj any) int {
	raw, err := json.Marshal(obj)
	if err != nil {
		return 0
	}
	return len(raw)
}

func capJSFiles(payload map[string]any, limit int) bool {
	js, ok := payload["javascript"].(map[string]any)
	if !ok {
		return false
	}
	files, ok := js["files"].([]any)
	if !ok || len(files) <= limit {
		return false
	}
	js["files"] = files[:limit]
	return true
}

func capJSEvidences(payload map[string]any, limit int) bool {
	js, ok := payload["javascript"].(map[string]any)
	if !ok {
		return false
	}
	files, ok := js["files"].([]any)
	if !ok {
		return false
	}
	shrunk := false
	for _, f := range files {
		file, ok := f.(map[string]any)
		if !ok {
			continue
		}
		evidences, ok := file["evidences"].([]any)
		if ok && len(evidences) > limit {
			file["evidences"] = evidences[:limit]
			shrunk = true
		}
	}
	return shrunk
}

func capHTMLBuckets(payload map[string]any, limit int) bool {
	html, ok := payload["html"].(map[string]any)
	if !ok {
		return false
	}
	highlights, ok := html["highlights"].(map[string]any)
	if !ok {
		return false
	}
	shrunk := false
	for key, v := range highlights {
		arr, ok := v.([]any)
		if ok && len(arr) > limit {
			highlights[key] = arr[:limit]
			shrunk = true
		}
	}
	return shrunk
}

// truncateStrings walks the payload and truncates every string field
// longer than limit, except fields named "outer_html".
func truncateStrings(node any, limit int) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if k == "outer_html" {
				continue
			}
			if s, ok := v.(string); ok {
				if len(s) > limit {
					n[k] = truncateText(s, limit)
				}
				continue
			}
			truncateStrings(v, limit)
		}
	case []any:
		for _, it := range n {
			truncateStrings(it, limit)
		}
	}
}

// truncateText keeps the head and tail of an oversized string with an
// ellipsis marker between them. 60% head and 30% tail of the limit
// preserves both the opening context and the trailing code.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	head := s[:limit*6/10]
	tail := s[len(s)-limit*3/10:]
	return head + "\n...\n" + tail
}
