package appcontext

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/logging"
)

// Compile-time interface check.
var _ Interface = (*Mock)(nil)

// Mock provides a mock implementation of Interface for testing.
// Each field can be set to customize the corresponding method; zero fields
// give a usable default.
type Mock struct {
	ClientFunc func() (feedsync.Client, error)
	Cfg        *config.Config
	Format     string
	Signal     *credit.Signal
	Log        *zerolog.Logger

	once     sync.Once
	registry *prometheus.Registry
}

// Client returns a client using the mock function or a default client.
func (m *Mock) Client() (feedsync.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc()
	}
	return feedsync.New(feedsync.WithCreditSignal(m.Credits()))
}

// Credits returns Signal, creating it on first use.
func (m *Mock) Credits() *credit.Signal {
	m.init()
	return m.Signal
}

// Config returns Cfg or an empty configuration.
func (m *Mock) Config() *config.Config {
	if m.Cfg == nil {
		return &config.Config{}
	}
	return m.Cfg
}

// Registry returns a private registry.
func (m *Mock) Registry() *prometheus.Registry {
	m.init()
	return m.registry
}

// Logger returns Log or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.Log == nil {
		return logging.NewNopLogger()
	}
	return m.Log
}

// OutputFormat returns Format.
func (m *Mock) OutputFormat() string { return m.Format }

// NoColor always reports true.
func (m *Mock) NoColor() bool { return true }

// Version returns "test".
func (m *Mock) Version() string { return "test" }

// Commit returns "none".
func (m *Mock) Commit() string { return "none" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

func (m *Mock) init() {
	m.once.Do(func() {
		if m.Signal == nil {
			m.Signal = credit.New()
		}
		m.registry = prometheus.NewRegistry()
	})
}
