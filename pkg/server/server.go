// Package server provides the HTTP API server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/server/handlers"
	"mercator-hq/callisto/pkg/server/middleware"
	"mercator-hq/callisto/pkg/telemetry/health"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// Options wires the server to its handlers.
type Options struct {
	API         *handlers.API
	Health      *health.Checker
	Metrics     *metrics.Collector
	MetricsPath string
	Logger      *slog.Logger
}

// Server is the Callisto HTTP API server.
type Server struct {
	config       *config.ServerConfig
	opts         Options
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New creates a server.
func New(cfg *config.ServerConfig, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	return &Server{
		config: cfg,
		opts:   opts,
		logger: opts.Logger.With("component", "server"),
	}
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// Handler builds the routes and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.opts.API != nil {
		s.opts.API.Register(mux, middleware.IdentityMiddleware(s.config.UserHeader))
	}
	if s.opts.Health != nil {
		mux.Handle("/health", s.opts.Health.LivenessHandler())
		mux.Handle("/ready", s.opts.Health.ReadinessHandler())
	}
	if s.opts.Metrics != nil {
		mux.Handle("GET "+s.opts.MetricsPath, s.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.MetricsMiddleware(s.opts.Metrics)(handler)
	handler = middleware.TimeoutMiddleware(s.config.RequestTimeout)(handler)
	handler = middleware.CORSMiddleware(middleware.CORSConfigFrom(s.config.CORS))(handler)
	handler = middleware.LoggingMiddleware(s.opts.Logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.opts.Logger)(handler)
	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
