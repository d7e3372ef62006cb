package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client errors.
var (
	// ErrEmptyResponse is returned when the API answers with no choices.
	ErrEmptyResponse = errors.New("empty completion response")
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client

	// baseURL is the API base, e.g. "https://api.openai.com/v1".
	baseURL string

	// apiKey is sent as a Bearer token. Optional for local deployments.
	apiKey string

	// model is the model name sent with every request.
	model string

	// temperature is the sampling temperature.
	temperature float64

	// logger reports request timing and failures.
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLLMHTTPClient replaces the underlying HTTP client.
func WithLLMHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLLMLogger sets the client's logger.
func WithLLMLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a chat completions client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 4 * time.Minute},
		baseURL:     "https://api.openai.com/v1",
		apiKey:      apiKey,
		model:       "gpt-4o-mini",
		temperature: 1,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

// chatResponse is the subset of the response body we read.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteJSON sends a system prompt and user payload, asking the model
// for a JSON object, and returns the cleaned response content.
//
// The returned string is ready for json.Unmarshal: markdown fences and
// surrounding prose are stripped, and bare control characters inside
// string values are escaped.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPayload string) (string, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPayload},
		},
		Temperature:    c.temperature,
		ResponseFormat: &chatFormat{Type: "json_object"},
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only response body

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned status %d: %s",
			resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := parsed.Choices[0].Message.Content
	content = CleanJSONResponse(content)
	content = EscapeControlChars(content)

	c.logger.Debug("chat completion finished",
		"model", c.model,
		"duration", time.Since(start),
		"response_bytes", len(content))

	return content, nil
}

// truncate shortens a string for error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
