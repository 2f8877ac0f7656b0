// Package mailchimp pushes order records into the Mailchimp marketing and
// e-commerce APIs. Every write is an upsert keyed by values derived from the
// order itself, so redelivering the same webhook converges on the same remote
// state.
package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ticketbridge/api/internal/platform/observability"
)

// Logger defines the logging contract for Mailchimp API operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the REST client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://us21.api.mailchimp.com/3.0.
	BaseURL string
	APIKey  string
	// HTTPClient must carry the outbound timeout. Required.
	HTTPClient *http.Client
	Logger     Logger
}

// Client is a thin wrapper over the Mailchimp v3 REST surface. It knows about
// transport, auth, and response logging; the Syncer decides which resources
// to write.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  Logger
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("mailchimp: base url is required")
	}
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("mailchimp: http client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    cfg.HTTPClient,
		logger:  logger,
	}, nil
}

// Put upserts a resource. A non-2xx response is returned as a value error
// carrying the status and (truncated) body; the caller records it and moves on.
func (c *Client) Put(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPut, path, body)
}

// Post creates or appends to a resource.
func (c *Client) Post(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("mailchimp: encode %s %s: %w", method, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("mailchimp: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger(ctx, "mailchimp.request_failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return fmt.Errorf("mailchimp: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	c.logger(ctx, "mailchimp.response", map[string]any{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"body":   observability.SanitizeResponseBody(string(respBody)),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   observability.SanitizeResponseBody(string(respBody)),
		}
	}
	return nil
}

// APIError is a non-2xx Mailchimp response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("mailchimp: %s %s returned HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}
