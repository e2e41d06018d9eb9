// Package summarize submits digest prompts to the natural-language
// summarization services.
package summarize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ServiceError reports a non-2xx or undecodable response from a
// summarization service. It is rendered inline, not fatal for the run.
type ServiceError struct {
	Service    string
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("summarize: %s: status %d: %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("summarize: %s: %s", e.Service, e.Detail)
}

// Summarizer is one summarization collaborator: submit a prompt, receive
// opaque completion text.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, prompt string) (string, error)
}

const maxErrorBody = 512

// readErrorBody captures a bounded response-body snippet for error detail.
func readErrorBody(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(snippet))
}
