// Package server is the PlanHaus HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/ratelimit"
	"github.com/theirongolddev/planhaus/internal/store"
)

// Config controls the server runtime behavior.
type Config struct {
	Addr          string
	SessionTTL    time.Duration
	RateLimit     config.RateLimitConfig
	SweepInterval time.Duration
	EventsBuffer  int
}

// Status is served at /api/status.
type Status struct {
	StartedAt     time.Time `json:"startedAt"`
	UptimeSec     int64     `json:"uptimeSec"`
	Addr          string    `json:"addr"`
	Requests      int64     `json:"requests"`
	Connections   int       `json:"connections"`
	Projects      int       `json:"projects"`
	RecentEvents  int       `json:"recentEvents"`
	RateLimited   int       `json:"rateLimitBuckets"`
	LastSweepAt   time.Time `json:"lastSweepAt,omitzero"`
	PurgedExpired int64     `json:"purgedSessions"`
}

// Server wires the store, the realtime hub and the event publisher to the
// HTTP routes.
type Server struct {
	cfg   Config
	store *store.Store
	hub   *Hub
	pub   events.Publisher
	log   *zap.Logger
	now   func() time.Time

	limiter     *ratelimit.Limiter
	authLimiter *ratelimit.Limiter
	clientKey   ratelimit.KeyFunc

	startedAt time.Time
	requests  atomic.Int64
	lastSweep atomic.Int64
	purged    atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPublisher sets where activity is published besides the hub.
func WithPublisher(p events.Publisher) Option {
	return func(s *Server) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns a server over st.
func New(cfg Config, st *store.Store, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8686"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 100
	}
	s := &Server{
		cfg:       cfg,
		store:     st,
		pub:       events.NoopPublisher{},
		log:       zap.NewNop(),
		now:       time.Now,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(cfg.EventsBuffer, s.log)
	key, err := ratelimit.Forwarded(cfg.RateLimit.TrustedProxies)
	if err != nil {
		s.log.Warn("ignoring trusted proxies", zap.Error(err))
		key = ratelimit.ClientIP
	}
	s.clientKey = key
	s.limiter = ratelimit.New(ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute), cfg.RateLimit.Burst, s.log)
	authBurst := cfg.RateLimit.AuthPerMinute
	if authBurst > 5 || authBurst <= 0 {
		authBurst = 5
	}
	s.authLimiter = ratelimit.New(ratelimit.PerMinute(cfg.RateLimit.AuthPerMinute), authBurst, s.log)
	return s
}

// Hub returns the realtime hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := s.requireAuth
	authed := func(h http.HandlerFunc) http.Handler { return auth(h) }
	authLimited := func(h http.HandlerFunc) http.Handler {
		return s.authLimiter.Middleware(s.clientKey)(h)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	mux.Handle("POST /api/auth/login", authLimited(s.handleLogin))
	mux.Handle("POST /api/auth/refresh", authLimited(s.handleRefresh))
	mux.Handle("POST /api/auth/logout", authed(s.handleLogout))

	mux.Handle("GET /api/projects", authed(s.handleListProjects))
	mux.Handle("POST /api/projects", authed(s.handleCreateProject))
	mux.Handle("GET /api/projects/{id}", authed(s.handleGetProject))
	mux.Handle("PATCH /api/projects/{id}", authed(s.handleUpdateProject))
	mux.Handle("POST /api/projects/{id}/members", authed(s.handleAddMember))

	mux.Handle("GET /api/dashboard/stats", authed(s.handleDashboardStats))

	for _, e := range entities {
		mux.Handle("GET /api/projects/{id}/"+e.collection(), authed(s.listHandler(e)))
		mux.Handle("POST /api/projects/{id}/"+e.collection(), authed(s.createHandler(e)))
		mux.Handle("PATCH /api/projects/{id}/"+e.collection()+"/{itemId}", authed(s.updateHandler(e)))
		mux.Handle("DELETE /api/projects/{id}/"+e.collection()+"/{itemId}", authed(s.deleteHandler(e)))
	}

	mux.Handle("GET /api/projects/{id}/activities", authed(s.handleActivities))
	mux.Handle("GET /api/projects/{id}/collaborators", authed(s.handleCollaborators))
	mux.Handle("GET /ws", authed(s.handleWS))

	return chain(mux,
		s.recoverer,
		s.requestLogger,
		securityHeaders,
		s.limiter.Middleware(s.clientKey),
	)
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down within 5s.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("planhaus server listening", zap.String("addr", ln.Addr().String()))

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.hub.Close()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.sweep(ctx)
		case err := <-errCh:
			return fmt.Errorf("planhaus http server: %w", err)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	idle := 2 * s.cfg.SweepInterval
	n := s.limiter.Sweep(idle) + s.authLimiter.Sweep(idle)
	purged, err := s.store.PurgeExpiredSessions(ctx, s.now())
	if err != nil {
		s.log.Warn("purging expired sessions", zap.Error(err))
	}
	s.purged.Add(purged)
	s.lastSweep.Store(s.now().UnixNano())
	s.log.Debug("sweep", zap.Int("buckets", n), zap.Int64("sessions", purged))
}

func (s *Server) snapshotStatus() Status {
	st := Status{
		StartedAt:     s.startedAt,
		UptimeSec:     int64(s.now().Sub(s.startedAt).Seconds()),
		Addr:          s.cfg.Addr,
		Requests:      s.requests.Load(),
		Connections:   s.hub.Connections(),
		Projects:      s.hub.Projects(),
		RecentEvents:  s.hub.RecentCount(),
		RateLimited:   s.limiter.Len(),
		PurgedExpired: s.purged.Load(),
	}
	if ns := s.lastSweep.Load(); ns > 0 {
		st.LastSweepAt = time.Unix(0, ns)
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}
