// Package routing assembles the HTTP route table of the gproxy server.
package routing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/gproxy/config"
	"github.com/teilomillet/gproxy/errors"
	"github.com/teilomillet/gproxy/server/metrics"
	"github.com/teilomillet/gproxy/server/middleware"
	"go.uber.org/zap"
)

// Router serves the proxy, health and metrics routes behind the common
// middleware chain:
//
//	RequestID -> Logging -> PrometheusMetrics -> Recovery -> RequestTimer
//
// The proxy handler is mounted for every method so that it can answer
// OPTIONS and reject other methods with its own envelope.
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter creates a router for cfg. m may be nil, in which case neither
// the metrics middleware nor the metrics endpoint is installed.
func NewRouter(cfg *config.Config, proxy http.Handler, m *metrics.Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		router: chi.NewRouter(),
		logger: logger,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Logging(logger))
	if m != nil {
		r.router.Use(middleware.PrometheusMetrics(m))
	}
	r.router.Use(middleware.Recovery(logger))
	r.router.Use(middleware.RequestTimer)

	r.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.ErrorWithType(w, errors.MsgNotFound, errors.ValidationError, http.StatusNotFound)
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.ErrorWithType(w, errors.MsgMethodNotAllowed, errors.MethodError, http.StatusMethodNotAllowed)
	})

	r.router.Handle(cfg.Server.ProxyPath, proxy)
	r.router.Get("/health", healthHandler)

	if m != nil && cfg.Metrics.Enabled {
		RegisterMetricsRoutes(r.router, cfg.Metrics.Path, m)
	}

	logger.Debug("Routes registered",
		zap.String("proxy", cfg.Server.ProxyPath),
		zap.Bool("metrics", m != nil && cfg.Metrics.Enabled),
	)
	return r
}

// healthHandler reports liveness. It does not call the upstream API.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ServeHTTP implements the http.Handler interface.
// Delegates request handling to the underlying Chi router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
