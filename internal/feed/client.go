// Package feed implements the AlienVault OTX client that fetches the
// subscribed pulse stream.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public OTX API endpoint.
const DefaultBaseURL = "https://otx.alienvault.com"

const subscribedPath = "/api/v1/pulses/subscribed"

// Fetcher is the feed collaborator: one operation, fetch every subscribed
// pulse record.
type Fetcher interface {
	Subscribed(ctx context.Context) ([]Record, error)
}

// Client fetches subscribed pulses from the OTX API.
type Client struct {
	APIKey     string
	BaseURL    string
	PageSize   int
	HTTPClient *http.Client
}

// NewClient constructs an OTX client with default endpoint and timeouts.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:   apiKey,
		BaseURL:  DefaultBaseURL,
		PageSize: 50,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// page is the OTX list envelope.
type page struct {
	Results []Record `json:"results"`
	Next    string   `json:"next"`
}

// Subscribed pages through the subscribed-pulses endpoint until the server
// reports no next page, returning the concatenated records in feed order.
func (c *Client) Subscribed(ctx context.Context) ([]Record, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("feed: missing API key")
	}

	base := c.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	next := fmt.Sprintf("%s%s?limit=%d", strings.TrimSuffix(base, "/"), subscribedPath, pageSize)

	var records []Record
	pages := 0
	for next != "" {
		body, err := c.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}
		records = append(records, body.Results...)
		pages++
		next = body.Next
	}

	log.WithFields(log.Fields{"pulses": len(records), "pages": pages}).Debug("feed fetch complete")
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("feed: bad page url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("X-OTX-API-KEY", c.APIKey)
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed: fetch %s: status %d: %s", rawURL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body page
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("feed: decode page: %w", err)
	}
	return &body, nil
}
