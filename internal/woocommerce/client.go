// Package woocommerce creates products and orders in a WooCommerce store over
// its v3 REST API. Unlike the CRM side, order creation here is plain creation:
// the commerce API has no natural upsert key for orders, so a redelivered
// webhook produces a second order. Store operators reconcile duplicates by
// the ticketspice_order metadata flag.
package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ticketbridge/api/internal/platform/observability"
)

// Logger defines the logging contract for WooCommerce API operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the REST client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. https://shop.example.com/wp-json/wc/v3.
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	// HTTPClient must carry the outbound timeout. Required.
	HTTPClient *http.Client
	Logger     Logger
}

// Client wraps the WooCommerce REST surface with query-parameter auth and
// response logging.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	logger  Logger
}

// NewClient constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("woocommerce: base url is required")
	}
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("woocommerce: http client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Client{
		baseURL: base,
		key:     strings.TrimSpace(cfg.ConsumerKey),
		secret:  strings.TrimSpace(cfg.ConsumerSecret),
		http:    cfg.HTTPClient,
		logger:  logger,
	}, nil
}

// Get fetches a resource and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post creates a resource and decodes the response into out when out is
// non-nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	q := url.Values{}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("consumer_key", c.key)
	q.Set("consumer_secret", c.secret)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("woocommerce: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), reader)
	if err != nil {
		return fmt.Errorf("woocommerce: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger(ctx, "woocommerce.request_failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return fmt.Errorf("woocommerce: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	c.logger(ctx, "woocommerce.response", map[string]any{
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
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("woocommerce: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// APIError is a non-2xx WooCommerce response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("woocommerce: %s %s returned HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}
