// SPDX-License-Identifier: MIT

// Package api exposes the watcher's local HTTP surface: probes, metrics and
// a small read-only status API for desktop tooling.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sd-tools/sd-watcher-afk/internal/config"
	"github.com/sd-tools/sd-watcher-afk/internal/health"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/watcher"
)

// Options wires the server to the rest of the daemon.
type Options struct {
	Config       *config.Holder
	Health       *health.Manager
	Status       func() watcher.Snapshot
	QueueDepth   func(ctx context.Context) int
	LastAccepted func() time.Time

	// RateLimit caps requests per client IP per minute. Zero disables it.
	RateLimit int
}

// Server is the daemon's local HTTP endpoint.
type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
	logger zerolog.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		logger: log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)
	if s.opts.RateLimit > 0 {
		r.Use(httprate.Limit(
			s.opts.RateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
	}

	r.Get("/healthz", s.opts.Health.ServeHealth)
	r.Get("/readyz", s.opts.Health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleConfig)
	})
	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.opts.Config.Get().Listen
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(log.FieldListen, addr).
			Str(log.FieldEvent, "api.listening").
			Msg("local API listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}
