package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultGrokBaseURL is the xAI API endpoint.
const DefaultGrokBaseURL = "https://api.x.ai"

// GrokClient calls the xAI completions API with bearer-token auth.
type GrokClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewGrokClient constructs a Grok summarizer with defaults.
func NewGrokClient(apiKey string) *GrokClient {
	return &GrokClient{
		APIKey:  apiKey,
		BaseURL: DefaultGrokBaseURL,
		Model:   "grok-3",
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name implements Summarizer.
func (c *GrokClient) Name() string { return "grok" }

type grokRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type grokResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Summarize implements Summarizer.
func (c *GrokClient) Summarize(ctx context.Context, prompt string) (string, error) {
	base := c.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultGrokBaseURL
	}
	payload, err := json.Marshal(grokRequest{
		Model:       c.Model,
		Prompt:      prompt,
		MaxTokens:   500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: grok: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(base, "/")+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("summarize: grok: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &ServiceError{Service: c.Name(), Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ServiceError{Service: c.Name(), StatusCode: resp.StatusCode, Detail: readErrorBody(resp)}
	}

	var body grokResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ServiceError{Service: c.Name(), StatusCode: resp.StatusCode, Detail: "malformed response: " + err.Error()}
	}
	if len(body.Choices) == 0 {
		return "", &ServiceError{Service: c.Name(), StatusCode: resp.StatusCode, Detail: "response contains no choices"}
	}
	return strings.TrimSpace(body.Choices[0].Text), nil
}
