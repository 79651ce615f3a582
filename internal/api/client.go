// Package api is the HTTP client for the flame-data backend.
//
// Every response body is an envelope: {"contents": ...} on success and
// {"error": "..."} on failure. The session is carried in a cookie, so one
// Client is one logged-in (or anonymous) session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client issues envelope-decoded requests against one backend.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient bases the underlying http.Client on a copy of hc. The
// copy gets a cookie jar when hc has none, so sessions still work and hc
// itself is left alone.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout bounds each request. Zero leaves transport defaults in place.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for baseURL (scheme and host, no trailing path).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the backend the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the response body shape for every endpoint.
type envelope struct {
	Contents json.RawMessage `json:"contents,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Do sends one request. rawQuery is appended verbatim (the backend relies
// on a bare "partial" key that url.Values cannot express). body, when
// non-nil, is sent as JSON. out, when non-nil, receives the decoded
// "contents" field; an absent or empty body leaves out untouched.
//
// Non-2xx responses return *StatusError carrying the envelope's error text.
func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body, out any) error {
	url := c.baseURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 300 {
				return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
			}
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Contents) > 0 && string(env.Contents) != "null" {
		if err := json.Unmarshal(env.Contents, out); err != nil {
			return fmt.Errorf("decode contents: %w", err)
		}
	}
	return nil
}
