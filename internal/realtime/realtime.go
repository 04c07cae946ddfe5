// Package realtime follows a project's /ws channel and invalidates the
// query cache as activity arrives.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/querycache"
)

// ErrReconnectExhausted is returned by Run once every reconnect attempt
// has failed.
var ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")

const (
	DefaultReconnectDelay = time.Second
	DefaultMaxAttempts    = 5
)

// Config configures a Client.
type Config struct {
	// ServerURL is the API base URL (http or https).
	ServerURL string
	ProjectID string
	// ReconnectDelay is multiplied by the attempt number before each retry.
	ReconnectDelay time.Duration
	MaxAttempts    int
}

// Client keeps one WebSocket open for a project.
type Client struct {
	cfg    Config
	tokens apiclient.TokenStore
	cache  *querycache.Cache
	log    *zap.Logger
	dialer *websocket.Dialer
	sleep  func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	handlers  []func(events.Message)
	connected bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithCache sets the cache invalidated by incoming activity.
func WithCache(qc *querycache.Cache) Option {
	return func(c *Client) { c.cache = qc }
}

// New returns a client. Nothing connects until Run.
func New(cfg Config, tokens apiclient.TokenStore, opts ...Option) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	c := &Client{
		cfg:    cfg,
		tokens: tokens,
		log:    zap.NewNop(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers fn for every message received. It runs on the read
// goroutine and must not block.
func (c *Client) OnMessage(fn func(events.Message)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// URL returns the WebSocket endpoint for the configured project.
func (c *Client) URL() (string, error) {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("realtime: server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"projectId": {c.cfg.ProjectID}}.Encode()
	return u.String(), nil
}

// Run connects and reads until ctx is canceled. A dropped or failed
// connection is retried after ReconnectDelay × attempt; a successful
// connection resets the count. After MaxAttempts consecutive failures Run
// returns ErrReconnectExhausted. A rejected session is not retried.
func (c *Client) Run(ctx context.Context) error {
	endpoint, err := c.URL()
	if err != nil {
		return err
	}

	attempt := 0
	for {
		connected, err := c.session(ctx, endpoint)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, apiclient.ErrLoginRequired) {
			return err
		}
		if connected {
			attempt = 0
		}
		attempt++
		if attempt > c.cfg.MaxAttempts {
			c.log.Warn("realtime giving up", zap.Int("attempts", c.cfg.MaxAttempts), zap.Error(err))
			return ErrReconnectExhausted
		}
		wait := c.cfg.ReconnectDelay * time.Duration(attempt)
		c.log.Debug("realtime reconnecting", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// session dials once and reads until the connection ends. connected
// reports whether the handshake succeeded.
func (c *Client) session(ctx context.Context, endpoint string) (bool, error) {
	hdr := http.Header{}
	if c.tokens != nil {
		if creds, _ := c.tokens.Load(); creds.Valid() {
			hdr.Set("Authorization", "Bearer "+creds.SessionID)
		}
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, hdr)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, fmt.Errorf("realtime: %w", apiclient.ErrLoginRequired)
		}
		return false, fmt.Errorf("realtime: dial: %w", err)
	}

	c.setConnected(true)
	defer c.setConnected(false)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var msg events.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("realtime: skipping undecodable frame", zap.Int("bytes", len(data)), zap.Error(err))
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) handle(msg events.Message) {
	if c.cache != nil {
		Invalidate(c.cache, msg)
	}
	c.mu.Lock()
	handlers := append([]func(events.Message){}, c.handlers...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

// Invalidate marks stale what msg says changed: for activity, the touched
// entity list, the project's dashboard stats and its activity feed; for
// presence, the collaborator list.
func Invalidate(qc *querycache.Cache, msg events.Message) {
	pid := msg.ProjectID
	if pid == "" {
		return
	}
	switch msg.Type {
	case events.TypeActivity:
		if k, ok := querycache.Keys.ForEntity(pid, msg.EntityType); ok {
			qc.Invalidate(k)
		}
		if msg.EntityType == "member" {
			qc.Invalidate(querycache.Keys.Collaborators(pid))
		}
		qc.Invalidate(querycache.Keys.DashboardScope(pid))
		qc.Invalidate(querycache.Keys.Activities(pid))
	case events.TypePresence:
		qc.Invalidate(querycache.Keys.Collaborators(pid))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
