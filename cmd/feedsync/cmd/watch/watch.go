// Package watch implements the watch command, which keeps the working set
// current and prints new events as they arrive.
package watch

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/internal/appcontext"
	"github.com/agentstation/feedsync/internal/cmd/alerts"
	"github.com/agentstation/feedsync/internal/cmd/hints"
	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/internal/metrics"
	"github.com/agentstation/feedsync/internal/relay"
	"github.com/agentstation/feedsync/internal/server"
	"github.com/agentstation/feedsync/pkg/constants"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/events"
)

// NewCommand creates the watch command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Load the feed and print new events as they arrive",
		Long: `Watch performs the initial load, then refreshes on a timer and prints
every event that was not seen before.

With --listen the working set is also relayed to UI clients over
WebSocket (/ws) and Server-Sent Events (/events). Clients dismiss a
raised credit error with {"type":"credit.dismiss"} or POST /credit.`,
		Example: `  feedsync watch --queries "iran war,protest"
  feedsync watch --app-mode valyu --access-token $TOKEN --interval 30s
  feedsync watch --listen :8090 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			once, _ := cmd.Flags().GetBool("once")
			return run(cmd, app, once)
		},
	}

	cmd.Flags().String("listen", "", "relay address for UI clients, e.g. :8090 (disabled when empty)")
	cmd.Flags().Duration("interval", 0, "refresh interval (default 1m0s)")
	cmd.Flags().Bool("auto-refresh", true, "refresh periodically after the initial load")
	cmd.Flags().Bool("once", false, "exit after the initial load")

	return cmd
}

func run(cmd *cobra.Command, app appcontext.Interface, once bool) error {
	ctx := cmd.Context()
	logger := app.Logger()
	cfg := app.Config()

	client, err := app.Client()
	if err != nil {
		return err
	}
	defer client.Close()

	format := output.DetectFormat(app.OutputFormat())
	p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format, app.NoColor())
	client.OnEventsAdded(func(added []events.Event) {
		if err := p.events(added); err != nil {
			logger.Error().Err(err).Msg("Failed to print events")
		}
	})
	client.OnStateChanged(p.stateChanged)
	client.OnError(p.failed)
	defer app.Credits().Observe(p.credit)()

	serveErr := make(chan error, 1)
	if cfg.Listen != "" && !once {
		r := relay.New(client, app.Credits(), logger)
		defer r.Close()
		r.Start(ctx)

		mux := http.NewServeMux()
		mux.Handle("/", r.Handler())
		mux.Handle("/metrics", metrics.Handler(app.Registry()))

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           mux,
			ReadHeaderTimeout: constants.DefaultTimeout,
		}
		go func() { serveErr <- server.Serve(ctx, srv, logger) }()
		p.alert(alerts.NewInfo("Relay listening on " + cfg.Listen))
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("app_mode", cfg.AppMode).
		Strs("queries", cfg.Queries).
		Msg("Starting watch")

	err = client.Start(ctx)
	if err != nil {
		_ = hints.Display(cmd.ErrOrStderr(), format, app.NoColor(), hints.For("watch", nil, err, cfg))
	}
	if once {
		return err
	}

	// The refresh timer only runs after a successful initial load, so a
	// failed one is retried on the refresh interval.
	var retry <-chan time.Time
	if err != nil {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		retry = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("events", client.Len()).Msg("Watch stopped")
			return nil

		case err := <-serveErr:
			if err != nil {
				return err
			}

		case <-retry:
			err := client.Start(ctx)
			switch {
			case err == nil, errors.Is(err, errors.ErrAlreadyLoaded):
				retry = nil
			default:
				logger.Debug().Err(err).Msg("Initial load retry failed")
			}
		}
	}
}
