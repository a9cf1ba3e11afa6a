// Package server wires the gproxy HTTP host: router, proxy handler,
// Gemini generator and metrics, plus graceful start and shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/errors"
	"github.com/teilomillet/gproxy/server/handlers"
	"github.com/teilomillet/gproxy/server/metrics"
	"github.com/teilomillet/gproxy/server/processing"
	"github.com/teilomillet/gproxy/server/provider"
	"github.com/teilomillet/gproxy/server/routing"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a server that serves handler with the timeouts of cfg.
// Panics escaping handler are answered with the 500 envelope.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        errors.ErrorHandler(logger)(handler),
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
			ErrorLog:       zap.NewStdLog(logger),
		},
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// NewServerWithConfig builds the full server from configuration: metrics,
// the generator for the configured transport, and the proxy handler.
func NewServerWithConfig(ctx context.Context, cfg *config.Config, credential config.Credential, logger *zap.Logger) (*Server, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	gen, err := provider.NewGenerator(ctx, cfg.Gemini, credential, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return NewServerWithGenerator(cfg, credential, gen, m, logger)
}

// NewServerWithGenerator builds the server around an existing generator.
// m may be nil to disable metrics.
func NewServerWithGenerator(cfg *config.Config, credential config.Credential, gen provider.Generator, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	processor, err := processing.NewProcessor(cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}

	proxy := handlers.NewProxyHandler(credential, processor, gen, logger)
	router := routing.NewRouter(cfg, proxy, m, logger)

	return NewServer(cfg.Server, router, logger), nil
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and blocks until ctx is cancelled or the listener
// fails. On cancellation in-flight requests get ShutdownTimeout to finish.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.shutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
