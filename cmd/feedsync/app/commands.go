package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/cmd/feedsync/cmd/conflicts"
	"github.com/agentstation/feedsync/cmd/feedsync/cmd/serve"
	"github.com/agentstation/feedsync/cmd/feedsync/cmd/stream"
	"github.com/agentstation/feedsync/cmd/feedsync/cmd/watch"
	"github.com/agentstation/feedsync/internal/cmd/globals"
	"github.com/agentstation/feedsync/internal/config"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	watchCmd := watch.NewCommand(a)
	globals.Bind(a.viper, watchCmd, config.KeyListen, "listen")
	globals.Bind(a.viper, watchCmd, config.KeyRefreshInterval, "interval")
	globals.Bind(a.viper, watchCmd, config.KeyAutoRefresh, "auto-refresh")

	serveCmd := serve.NewCommand(a)
	globals.Bind(a.viper, serveCmd, config.KeyFixtures, "fixtures")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(stream.NewCommand(a))
	rootCmd.AddCommand(conflicts.NewCommand(a))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(a.NewVersionCommand())
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("feedsync %s\n", a.version)
			if a.flags.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
