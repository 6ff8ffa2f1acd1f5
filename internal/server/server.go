package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/server/cache"
	"github.com/agentstation/feedsync/internal/server/fixtures"
	"github.com/agentstation/feedsync/internal/server/handlers"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	config    Config
	fixtures  *fixtures.Set
	cache     *cache.Cache[handlers.Conflicts]
	handlers  *handlers.Handlers
	registry  *prometheus.Registry
	metrics   *metrics.HTTP
	logger    *zerolog.Logger
	startTime time.Time
}

// New creates a new server instance with the given configuration. A nil fx
// loads cfg.FixturesPath, or the embedded defaults when that is empty.
func New(cfg Config, fx *fixtures.Set, logger *zerolog.Logger) (*Server, error) {
	logger = logging.OrDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = constants.CacheTTL
	}

	if fx == nil {
		var err error
		if fx, err = fixtures.Load(cfg.FixturesPath); err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:    cfg,
		fixtures:  fx,
		cache:     cache.New[handlers.Conflicts](cfg.CacheTTL, constants.CacheCleanupInterval),
		logger:    logger,
		startTime: time.Now(),
	}

	if cfg.MetricsEnabled {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := metrics.NewHTTP(s.registry)
		if err != nil {
			return nil, errors.NewConfigError("metrics", "registering HTTP collectors", err)
		}
		s.metrics = m
	}

	s.handlers = handlers.New(fx, s.cache, handlers.Policy{
		RequireToken: cfg.RequiresToken(),
		Exhausted:    cfg.ExhaustedTokens,
		ChunkDelay:   cfg.ChunkDelay,
	}, logger)

	logger.Debug().
		Str("mode", cfg.Mode).
		Int("events", len(fx.Events)).
		Int("countries", len(fx.Countries)).
		Msg("Server instance created")
	return s, nil
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// HTTPServer returns an http.Server for the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	return Serve(ctx, s.HTTPServer(), s.logger)
}

// Cache returns the server's conflicts cache.
func (s *Server) Cache() *cache.Cache[handlers.Conflicts] {
	return s.cache
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}

// Serve runs srv until ctx is cancelled. Outstanding requests get
// constants.ShutdownTimeout to complete.
func Serve(ctx context.Context, srv *http.Server, logger *zerolog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return errors.WrapResource("listen", "server", srv.Addr, err)
	}
	return ServeListener(ctx, srv, ln, logger)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, srv *http.Server, ln net.Listener, logger *zerolog.Logger) error {
	logger = logging.OrDefault(logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return errors.WrapResource("serve", "server", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapResource("shutdown", "server", srv.Addr, err)
	}
	logger.Info().Msg("Server stopped gracefully")
	return nil
}
