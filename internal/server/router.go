package server

import (
	"net/http"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/server/handlers"
	"github.com/agentstation/feedsync/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux, s.handlers)
	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes. Feed routes are instrumented
// when metrics are enabled.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Middleware(pattern, fn))
	}

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/ready", h.HandleReady)

	route(handlers.EventsRoute, h.HandleEvents)
	route(handlers.ConflictsRoute, h.HandleConflicts)

	if s.config.MetricsEnabled {
		mux.Handle("/metrics", metrics.Handler(s.registry))
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	handler = middleware.Token(handler)

	if cfg.RateLimit > 0 {
		handler = middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, s.logger))(handler)
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		} else {
			corsConfig.AllowAll = true
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	// Logging and recovery (always enabled)
	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(handler)
}
