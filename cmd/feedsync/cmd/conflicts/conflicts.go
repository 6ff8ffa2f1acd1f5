// Package conflicts implements the conflicts command, which fetches the
// complete conflicts summary for a country in one request.
package conflicts

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/internal/appcontext"
	"github.com/agentstation/feedsync/internal/cmd/hints"
	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/internal/cmd/table"
	"github.com/agentstation/feedsync/pkg/logging"
)

// NewCommand creates the conflicts command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "conflicts <country>",
		GroupID: "core",
		Short:   "Fetch the conflicts summary for a country",
		Example: `  feedsync conflicts sudan
  feedsync conflicts ukraine -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := logging.WithLogger(cmd.Context(), app.Logger())

			client, err := app.Client()
			if err != nil {
				return err
			}
			format := output.DetectFormat(app.OutputFormat())
			result, err := client.FetchConflicts(ctx, args[0])
			defer func() {
				_ = hints.Display(cmd.ErrOrStderr(), format, app.NoColor(),
					hints.For("conflicts", args, err, app.Config()))
			}()
			if err != nil {
				return err
			}

			var data any = result
			if format.IsTable() {
				data = table.ConflictsToTableData(result)
			}
			err = output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
			return err
		},
	}
}
