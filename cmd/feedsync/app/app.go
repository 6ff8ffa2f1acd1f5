// Package app provides the application context and dependency management
// for the feedsync CLI. It centralizes configuration, the credit signal, the
// session and the lazily created sync client.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/appcontext"
	"github.com/agentstation/feedsync/internal/cmd/globals"
	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/session"
)

// Compile-time interface check.
var _ appcontext.Interface = (*App)(nil)

// App represents the feedsync application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	viper  *viper.Viper
	flags  *globals.Flags
	config *config.Config
	logger *zerolog.Logger

	credits  *credit.Signal
	registry *prometheus.Registry

	// client is created on first use, after flags are parsed
	mu     sync.Mutex
	client feedsync.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		viper:   config.New(),
		flags:   &globals.Flags{},
		credits: credit.New(),
	}

	cfg, err := config.Load(app.viper, "")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = cfg

	logger := NewLogger(cfg, app.flags)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Credits returns the process-wide credit signal.
func (a *App) Credits() *credit.Signal {
	return a.credits
}

// OutputFormat returns the --format flag value.
func (a *App) OutputFormat() string {
	return a.flags.Format
}

// NoColor reports whether colored output is disabled.
func (a *App) NoColor() bool {
	return a.flags.NoColor
}

// Registry returns the metrics registry, creating it on first use.
func (a *App) Registry() *prometheus.Registry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registryLocked()
}

func (a *App) registryLocked() *prometheus.Registry {
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return a.registry
}

// Client returns the sync client, creating it lazily from the configuration.
// Every call returns the same instance.
func (a *App) Client() (feedsync.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	m, err := metrics.NewEngine(a.registryLocked())
	if err != nil {
		return nil, errors.WrapResource("create", "metrics", "engine", err)
	}

	c, err := feedsync.New(a.clientOptions(m)...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", a.config.BaseURL, err)
	}
	a.client = c
	return c, nil
}

func (a *App) clientOptions(m *metrics.Engine) []feedsync.Option {
	cfg := a.config
	return []feedsync.Option{
		feedsync.WithBaseURL(cfg.BaseURL),
		feedsync.WithHTTPTimeout(cfg.HTTPTimeout),
		feedsync.WithSession(session.New(session.WithToken(cfg.AccessToken))),
		feedsync.WithCreditSignal(a.credits),
		feedsync.WithAppMode(cfg.AppMode),
		feedsync.WithQueries(cfg.Queries...),
		feedsync.WithAutoRefresh(cfg.AutoRefresh),
		feedsync.WithRefreshInterval(cfg.RefreshInterval),
		feedsync.WithLogger(a.logger),
		feedsync.WithMetrics(m),
	}
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	c := a.client
	a.mu.Unlock()

	if c != nil {
		if err := c.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close client during shutdown")
			return err
		}
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithClient sets a custom client (useful for testing).
func WithClient(c feedsync.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}
