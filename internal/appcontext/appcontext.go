// Package appcontext defines the application dependencies shared by all CLI
// commands. The App in cmd/feedsync/app implements Interface; commands accept
// the interface so they can be tested with Mock.
package appcontext

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/pkg/credit"
)

// Interface defines the application context commands need.
type Interface interface {
	// Client returns the process-wide sync client, creating it lazily.
	Client() (feedsync.Client, error)

	// Credits returns the process-wide credit signal.
	Credits() *credit.Signal

	// Config returns the resolved configuration.
	Config() *config.Config

	// Registry returns the metrics registry the client reports to.
	Registry() *prometheus.Registry

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format, or "" for auto.
	OutputFormat() string

	// NoColor reports whether colored output is disabled.
	NoColor() bool

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
