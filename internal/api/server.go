// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the submission workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/ManuGH/xmlembed/internal/api/middleware"
	"github.com/ManuGH/xmlembed/internal/health"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

// Runner starts and cancels background submissions.
type Runner interface {
	Submit(ctx context.Context, req workflow.Request) (*workflow.Handle, error)
	Active() (string, bool)
	Cancel(id string) error
}

// Store reads submission history.
type Store interface {
	Get(ctx context.Context, id string) (history.Record, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Config configures the HTTP surface.
type Config struct {
	RateLimit       int    // requests per minute per client IP, 0 disables
	TracingService  string // empty disables otelhttp
	MaxConns        int    // 0 leaves the listener unbounded
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	// Token is required on /api/v1 when set. Probes and metrics stay open.
	Token string
}

const defaultMaxBodyBytes = 8 << 20

// Server is the HTTP control surface.
type Server struct {
	cfg    Config
	runner Runner
	store  Store
	health *health.Manager
	router chi.Router
	logger zerolog.Logger
}

// New builds the router. A nil health manager serves bare liveness and readiness.
func New(cfg Config, runner Runner, store Store, hm *health.Manager) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{
		cfg:    cfg,
		runner: runner,
		store:  store,
		health: hm,
		logger: log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, middleware.RequestID)

	// Probes and scrapes bypass rate limiting and tracing.
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        s.cfg.TracingService,
			EnableLogging:         true,
			RateLimit:             s.cfg.RateLimit,
			AuthToken:             s.cfg.Token,
		})
		r.Post("/submissions", s.handleCreate)
		r.Get("/submissions", s.handleList)
		r.Get("/submissions/{id}", s.handleGet)
		r.Delete("/submissions/{id}", s.handleCancel)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed")
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// The listener is capped at Config.MaxConns concurrent connections.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout / 2,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("event", "api.listening").
			Str("addr", ln.Addr().String()).
			Int("max_conns", s.cfg.MaxConns).
			Msg("API server listening (HTTP)")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error().Err(err).Str("event", "api.server.failed").Msg("API server failed")
		return fmt.Errorf("API server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Str("event", "api.shutdown").Msg("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
