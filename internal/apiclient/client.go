// Package apiclient talks to the PlanHaus API server on behalf of the CLI
// and TUI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 4 << 20 // 4 MB
	userAgent      = "github.com/theirongolddev/planhaus/1.0"
)

// ErrLoginRequired means the session is gone and could not be refreshed.
// Terminal clients treat it as the redirect to `planhaus login`.
var ErrLoginRequired = errors.New("apiclient: login required")

// APIError is a non-2xx response.
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+": "+v)
		}
		return fmt.Sprintf("%d %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.Status }

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client is an authenticated JSON client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	log     *zap.Logger
	timeout time.Duration
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		log:     zap.NewNop(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Tokens returns the credential store.
func (c *Client) Tokens() TokenStore { return c.tokens }

// Do sends a JSON request and decodes the response into out. A 401 triggers
// one token refresh and one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encoding %s %s: %w", method, path, err)
		}
	}

	creds, _ := c.tokens.Load()
	status, data, err := c.send(ctx, method, path, payload, creds.SessionID)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !isAuthPath(path) {
		if err := c.refreshSession(ctx, creds.SessionID); err != nil {
			return err
		}
		creds, _ = c.tokens.Load()
		status, data, err = c.send(ctx, method, path, payload, creds.SessionID)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			_ = c.tokens.Clear()
			return ErrLoginRequired
		}
	}

	if status < 200 || status >= 300 {
		return decodeError(status, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.log.Warn("malformed response body, using zero value",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
	}
	return nil
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/")
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: reading response: %w", err)
	}
	c.log.Debug("api request", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
	return resp.StatusCode, data, nil
}

// decodeError builds an APIError, falling back to the status text when the
// body is not the server's error shape.
func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
		if apiErr.Message == "" {
			apiErr.Message = "unexpected status"
		}
	}
	return apiErr
}
