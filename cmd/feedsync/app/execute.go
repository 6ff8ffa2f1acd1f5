package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/internal/cmd/globals"
	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/internal/config"
	"github.com/agentstation/feedsync/pkg/errors"
)

// Execute runs the feedsync CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "feedsync",
		Short:   "Event feed synchronization CLI",
		Version: a.version,
		Long: `feedsync keeps a de-duplicated working set of intelligence feed events
current against a remote feed API.

It performs one free initial load, then refreshes on a timer. In valyu
mode refreshes require a signed-in session, and exhausted credits raise
a credit error that stays visible until it is dismissed.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "development", Title: "Development Commands:"})

	a.flags = globals.AddFlags(rootCmd)
	globals.AddFeedFlags(rootCmd, a.viper)

	rootCmd.SetVersionTemplate("feedsync {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand reloads the configuration once flags are parsed and
// rebuilds the logger from it.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if _, err := output.ParseFormat(a.flags.Format); err != nil {
		return err
	}

	cfg, err := config.Load(a.viper, a.flags.ConfigFile)
	if err != nil {
		return errors.WrapResource("load", "config", a.flags.ConfigFile, err)
	}
	a.config = cfg

	logger := NewLogger(cfg, a.flags)
	a.logger = &logger

	if cfg.ConfigFile != "" {
		a.logger.Debug().Str("file", cfg.ConfigFile).Msg("Using config file")
	}
	return nil
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
