package analysis

import (
	"encoding/json"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/config"
	"github.com/bokyungprincess/K-AI-bug-hunters/internal/evidence"
)

// analysisSystemPrompt constrains the model to definitive,
// frontend-verifiable findings. The rules mirror the local
// post-processing: anything that fails them is excluded.
const analysisSystemPrompt = "You are an application security analyst. Analyze ONLY the provided HTML and core JavaScript evidence.\n" +
	"GOAL: Report ONLY definitive OWASP Top 10 vulnerabilities that are provably exploitable based on the evidence.\n" +
	"STRICT RULES:\n" +
	"1) Use precise vulnerability NAMES only (e.g., 'Cross-Site Scripting (XSS)', 'Cross-Site Request Forgery (CSRF)', 'Insecure Direct Object Reference (IDOR)', 'SQL Injection', 'Server-Side Request Forgery (SSRF)', 'Server-Side Template Injection (SSTI)', 'Open Redirect', 'Clickjacking', etc.). Do NOT use category titles.\n" +
	"2) Evidence MUST be frontend-verifiable: full offending HTML tags (untruncated) and JavaScript sinks/sources with exact filename+line+context.\n" +
	"3) A finding goes into 'vulnerabilities' ONLY IF ALL validation checks for that class are TRUE (see 'validation' section). Otherwise, put it into 'excluded_candidates' with explicit reasons.\n" +
	"4) NO payloads, NO exploit generation, NO backend inference. Do not speculate beyond the given evidence.\n" +
	"5) Output STRICTLY one JSON object conforming to the schema.\n"

// reportSchema is the JSON Schema embedded in the user payload so the
// model knows the exact shape of the report it must produce. It matches
// the model.Report type field for field.
const reportSchema = `{
  "type": "object",
  "properties": {
    "site_url": {"type": ["string", "null"]},
    "summary": {
      "type": "object",
      "properties": {
        "overall_risk": {"type": "string"},
        "key_observations": {"type": "array", "items": {"type": "string"}},
        "total_confirmed": {"type": "number"},
        "total_excluded": {"type": "number"}
      },
      "required": ["overall_risk", "key_observations", "total_confirmed", "total_excluded"]
    },
    "vulnerabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "owasp_item": {"type": "string"},
          "severity": {"type": "string"},
          "likelihood": {"type": "string"},
          "probability": {"type": "number"},
          "impact": {"type": "string"},
          "reasoning": {"type": "string"},
          "affected_uris": {"type": "array", "items": {"type": "string"}},
          "affected_files": {"type": "array", "items": {"type": "string"}},
          "evidence": {
            "type": "object",
            "properties": {
              "html": {"type": "array", "items": {"type": "string"}},
              "js": {"type": "array", "items": {
                "type": "object",
                "properties": {
                  "filename": {"type": "string"},
                  "line": {"type": "number"},
                  "context": {"type": "array", "items": {
                    "type": "object",
                    "properties": {"line": {"type": "number"}, "code": {"type": "string"}},
                    "required": ["line", "code"]
                  }},
                  "source": {"type": ["string", "null"]},
                  "sink": {"type": ["string", "null"]},
                  "sanitization_check": {"type": ["string", "null"]},
                  "taint_flow": {"type": ["string", "null"]}
                },
                "required": ["filename", "line", "context"]
              }}
            },
            "required": ["html", "js"]
          },
          "validation": {
            "type": "object",
            "properties": {
              "class": {"type": "string"},
              "has_user_controlled_input": {"type": "boolean"},
              "reaches_sensitive_sink": {"type": "boolean"},
              "no_sanitization_or_encoding": {"type": "boolean"},
              "is_triggerable_from_ui": {"type": "boolean"},
              "defense_absent": {"type": "boolean"},
              "why_true": {"type": "string"}
            },
            "required": ["class", "has_user_controlled_input", "reaches_sensitive_sink", "no_sanitization_or_encoding", "is_triggerable_from_ui", "defense_absent", "why_true"]
          },
          "repro_steps": {"type": "array", "items": {"type": "string"}},
          "remediation": {"type": "array", "items": {"type": "string"}},
          "references": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["name", "owasp_item", "severity", "likelihood", "probability", "reasoning", "affected_uris", "evidence", "validation", "repro_steps", "remediation"]
      }
    },
    "excluded_candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "hypothesis": {"type": "string"},
          "reason": {"type": "string"},
          "related_evidence": {
            "type": "object",
            "properties": {
              "html": {"type": "array", "items": {"type": "string"}},
              "js": {"type": "array", "items": {
                "type": "object",
                "properties": {
                  "filename": {"type": "string"},
                  "line": {"type": "number"},
                  "context": {"type": "array", "items": {
                    "type": "object",
                    "properties": {"line": {"type": "number"}, "code": {"type": "string"}},
                    "required": ["line", "code"]
                  }}
                },
                "required": ["filename", "line", "context"]
              }}
            }
          }
        },
        "required": ["hypothesis", "reason"]
      }
    }
  },
  "required": ["summary", "vulnerabilities", "excluded_candidates"]
}`

// payloadInstructions are restated in the payload itself. Models follow
// in-band flags more reliably than system-prompt prose alone.
var payloadInstructions = map[string]bool{
	"no_payloads":                     true,
	"only_owasp_top10":                true,
	"precise_names_only":              true,
	"full_offending_html_required":    true,
	"definitive_only":                 true,
	"exclude_if_any_validation_false": true,
}

// BuildUserPayload assembles the analysis payload and shrinks it to fit
// the configured size guards. siteURL may be empty when the start URL
// is unknown; the field is then serialized as null.
func BuildUserPayload(siteURL string, htmlEv *evidence.HTMLEvidence, jsEv *evidence.JSEvidenceSet, guards config.PayloadGuards) (string, error) {
	var site any
	if siteURL != "" {
		site = siteURL
	}

	payload := map[string]any{
		"site_url":     site,
		"schema":       json.RawMessage(reportSchema),
		"html":         map[string]any{"highlights": htmlEv},
		"javascript":   jsEv,
		"instructions": payloadInstructions,
	}

	// Round-trip through JSON so the shrinker sees plain maps and
	// slices instead of the typed evidence structures.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	shrunk := ShrinkPayload(generic, guards)
	out, err := json.Marshal(shrunk)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
