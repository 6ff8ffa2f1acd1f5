// Package serve implements the serve command, a local feed API backed by
// fixtures for developing and testing clients without the remote service.
package serve

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/internal/appcontext"
	"github.com/agentstation/feedsync/internal/server"
	"github.com/agentstation/feedsync/pkg/constants"
)

// NewCommand creates the serve command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: "development",
		Short:   "Serve a local feed API from fixtures",
		Long: `Start a local implementation of the feed API.

Endpoints:
  - POST /api/events                   events matching the request queries
  - GET  /api/countries/conflicts      conflicts summary, or a stream with stream=true
  - GET  /health, /ready, /metrics

In valyu mode every feed request needs an access token. Tokens listed with
--exhausted-tokens get credit failures, which lets clients exercise the
top-up flow.`,
		Example: `  # Serve the built-in fixtures on port 3000
  feedsync serve

  # Require tokens and simulate an exhausted account
  feedsync serve --mode valyu --exhausted-tokens tok-empty

  # Serve custom fixtures with slow streams
  feedsync serve --fixtures ./fixtures.yaml --chunk-delay 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, app)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			logger := app.Logger()
			s, err := server.New(cfg, nil, logger)
			if err != nil {
				return err
			}

			logger.Info().
				Str("addr", cfg.Addr()).
				Str("mode", cfg.Mode).
				Bool("cors", cfg.CORSEnabled).
				Int("rate_limit", cfg.RateLimit).
				Dur("cache_ttl", cfg.CacheTTL).
				Msg("Starting feed server")
			return s.Run(cmd.Context())
		},
	}

	defaults := server.DefaultConfig()
	cmd.Flags().IntP("port", "p", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("mode", defaults.Mode, "App mode: valyu or self-hosted")
	cmd.Flags().String("fixtures", "", "Fixture file (defaults to the built-in feed)")
	cmd.Flags().StringSlice("exhausted-tokens", nil, "Access tokens that get credit failures")
	cmd.Flags().Duration("chunk-delay", 0, "Delay between stream chunks")
	cmd.Flags().Bool("cors", false, "Enable CORS")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")
	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("cache-ttl", defaults.CacheTTL, "Conflicts cache TTL")
	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable metrics endpoint")

	return cmd
}

// buildConfig reads the server configuration from flags. HTTP_HOST and
// HTTP_PORT override the flags for container deployments.
func buildConfig(cmd *cobra.Command, app appcontext.Interface) (server.Config, error) {
	cfg := server.DefaultConfig()
	flags := cmd.Flags()

	cfg.Port, _ = flags.GetInt("port")
	cfg.Host, _ = flags.GetString("host")
	cfg.Mode, _ = flags.GetString("mode")
	cfg.ExhaustedTokens, _ = flags.GetStringSlice("exhausted-tokens")
	cfg.ChunkDelay, _ = flags.GetDuration("chunk-delay")
	cfg.CORSEnabled, _ = flags.GetBool("cors")
	cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origins")
	cfg.RateLimit, _ = flags.GetInt("rate-limit")
	cfg.CacheTTL, _ = flags.GetDuration("cache-ttl")
	cfg.MetricsEnabled, _ = flags.GetBool("metrics")

	// Bound to the config key by the root command, so the file and
	// FEEDSYNC_FIXTURES are honored too.
	cfg.FixturesPath, _ = flags.GetString("fixtures")
	if appCfg := app.Config(); appCfg != nil && appCfg.Fixtures != "" && !flags.Changed("fixtures") {
		cfg.FixturesPath = appCfg.Fixtures
	}

	if len(cfg.CORSOrigins) > 0 {
		cfg.CORSEnabled = true
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.CacheTTL
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}

	if host := os.Getenv("HTTP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	return cfg, cfg.Validate()
}
