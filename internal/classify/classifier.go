package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bokyungprincess/K-AI-bug-hunters/internal/model"
)

// ChatCompleter is the language-model dependency of the classifier.
// The system prompt pins the model's role; the user payload is a
// serialized JSON document; the response is expected to be JSON.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPayload string) (string, error)
}

// classifierSystemPrompt pins the model to the auditing task and the
// compact JSON output shape.
const classifierSystemPrompt = "You are a strict web app JavaScript auditor. " +
	"Goal: identify only 'core_app' assets (business logic, routing, state/store, API calls, controllers, view composition). " +
	"Classify each asset as 'core_app' or 'vendor' or 'unknown'. Prefer 'vendor' for known libs, charts, ui kits, analytics, utils. " +
	"Return compact JSON only."

// Classifier labels script assets as application code or vendor code.
type Classifier struct {
	// chat performs the language-model call. May be nil, in which case
	// non-vendor assets are labeled unknown.
	chat ChatCompleter

	// logger reports batch sizes and fallbacks.
	logger *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClassifierLogger sets the classifier's logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier creates a Classifier. A nil chat client disables the
// language-model pass; heuristics still run.
func NewClassifier(chat ChatCompleter, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		chat:   chat,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// assetBrief is the per-asset view the model classifies from.
// Head and tail samples are where imports, framework boilerplate, and
// license banners live.
type assetBrief struct {
	Filename   string `json:"filename"`
	FinalURL   string `json:"final_url"`
	SizeBytes  int    `json:"size_bytes"`
	HTTPStatus int    `json:"http_status"`
	HeadSample string `json:"head_sample"`
	TailSample string `json:"tail_sample"`
}

// classifyRequest is the user payload sent to the model.
// The output_format block restates the expected response schema inline;
// models follow an explicit schema far more reliably than prose.
type classifyRequest struct {
	Task         string          `json:"task"`
	PageURL      string          `json:"page_url"`
	Assets       []assetBrief    `json:"assets"`
	OutputFormat json.RawMessage `json:"output_format"`
}

// classifyResponse is the expected model response.
type classifyResponse struct {
	Classified []*model.Classification `json:"classified"`
}

// classifyOutputSchema is the JSON schema embedded in the request.
const classifyOutputSchema = `{
  "type": "object",
  "properties": {
    "classified": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "filename": {"type": "string"},
          "final_url": {"type": "string"},
          "label": {"type": "string", "enum": ["core_app", "vendor", "unknown"]},
          "confidence": {"type": "number"},
          "reason": {"type": "string"}
        },
        "required": ["filename", "final_url", "label"]
      }
    }
  },
  "required": ["classified"]
}`

// Classify labels the external script assets of a page.
// Inline scripts are skipped; obvious vendor assets are labeled by
// heuristic; the rest go to the language model in one batch.
//
// A failed or unparseable model response degrades to unknown labels
// rather than failing the scan: the caller still gets a verdict for
// every external asset.
func (c *Classifier) Classify(ctx context.Context, pageURL string, assets []*model.ScriptAsset) ([]*model.Classification, error) {
	pre := make([]*model.Classification, 0, len(assets))
	toModel := make([]*model.ScriptAsset, 0, len(assets))

	for _, a := range assets {
		if a.Inline {
			// Inline code is part of the page and already reaches the
			// analysis stage through the rendered HTML.
			continue
		}
		if IsProbablyVendor(a.Filename) || IsProbablyVendor(a.FinalURL) {
			pre = append(pre, &model.Classification{
				Filename:   a.Filename,
				FinalURL:   a.FinalURL,
				Label:      model.LabelVendor,
				Confidence: 0.99,
				Reason:     "vendor_heuristic",
			})
			continue
		}
		toModel = append(toModel, a)
	}

	c.logger.Info("classifying scripts",
		"page", pageURL,
		"heuristic_vendor", len(pre),
		"to_model", len(toModel))

	if len(toModel) == 0 {
		return pre, nil
	}
	if c.chat == nil {
		return append(pre, fallbackClassifications(toModel, "classifier_disabled")...), nil
	}

	verdicts, err := c.classifyBatch(ctx, pageURL, toModel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("script classification degraded", "error", err)
		return append(pre, fallbackClassifications(toModel, "parse_error")...), nil
	}

	return append(pre, verdicts...), nil
}

// classifyBatch sends one batch of assets to the model.
func (c *Classifier) classifyBatch(ctx context.Context, pageURL string, assets []*model.ScriptAsset) ([]*model.Classification, error) {
	briefs := make([]assetBrief, 0, len(assets))
	for _, a := range assets {
		briefs = append(briefs, assetBrief{
			Filename:   a.Filename,
			FinalURL:   a.FinalURL,
			SizeBytes:  a.SizeBytes,
			HTTPStatus: a.HTTPStatus,
			HeadSample: a.HeadSample,
			TailSample: a.TailSample,
		})
	}

	request := classifyRequest{
		Task:         "Classify JS assets to find true app logic only",
		PageURL:      pageURL,
		Assets:       briefs,
		OutputFormat: json.RawMessage(classifyOutputSchema),
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification request: %w", err)
	}

	raw, err := c.chat.CompleteJSON(ctx, classifierSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	var response classifyResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return response.Classified, nil
}

// fallbackClassifications labels assets unknown when no model verdict
// is available.
func fallbackClassifications(assets []*model.ScriptAsset, reason string) []*model.Classification {
	out := make([]*model.Classification, 0, len(assets))
	for _, a := range assets {
		out = append(out, &model.Classification{
			Filename:   a.Filename,
			FinalURL:   a.FinalURL,
			Label:      model.LabelUnknown,
			Confidence: 0.0,
			Reason:     reason,
		})
	}
	return out
}
