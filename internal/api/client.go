package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the messaging backend's REST surface. It is safe for
// concurrent use.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a REST client for the given base URL, e.g.
// "https://chat.example.com/api".
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiError(resp.Body, resp.Status))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// apiError extracts the backend's {message} field when present, falling
// back to the HTTP status line.
func apiError(body io.Reader, status string) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&e); err == nil && e.Message != "" {
		return e.Message
	}
	return status
}
