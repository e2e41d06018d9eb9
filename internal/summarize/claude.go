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

// DefaultClaudeBaseURL is the Anthropic API endpoint.
const DefaultClaudeBaseURL = "https://api.anthropic.com"

const anthropicVersion = "2023-06-01"

// ClaudeClient calls the Anthropic messages API.
type ClaudeClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewClaudeClient constructs a Claude summarizer with defaults.
func NewClaudeClient(apiKey string) *ClaudeClient {
	return &ClaudeClient{
		APIKey:  apiKey,
		BaseURL: DefaultClaudeBaseURL,
		Model:   "claude-3-5-sonnet-20241022",
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name implements Summarizer.
func (c *ClaudeClient) Name() string { return "claude" }

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Summarize implements Summarizer.
func (c *ClaudeClient) Summarize(ctx context.Context, prompt string) (string, error) {
	base := c.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultClaudeBaseURL
	}
	payload, err := json.Marshal(claudeRequest{
		Model:       c.Model,
		MaxTokens:   500,
		Temperature: 0.7,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: claude: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(base, "/")+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("summarize: claude: build request: %w", err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
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

	var body claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ServiceError{Service: c.Name(), StatusCode: resp.StatusCode, Detail: "malformed response: " + err.Error()}
	}
	if len(body.Content) == 0 {
		return "", &ServiceError{Service: c.Name(), StatusCode: resp.StatusCode, Detail: "response contains no content"}
	}
	return strings.TrimSpace(body.Content[0].Text), nil
}
