// Package stream implements the stream command, which prints the incremental
// conflicts stream for a country frame by frame.
package stream

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/feedsync/internal/appcontext"
	"github.com/agentstation/feedsync/internal/cmd/alerts"
	"github.com/agentstation/feedsync/internal/cmd/hints"
	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/internal/cmd/table"
	"github.com/agentstation/feedsync/pkg/errors"
	"github.com/agentstation/feedsync/pkg/logging"
	"github.com/agentstation/feedsync/pkg/stream"
)

// NewCommand creates the stream command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "stream <country>",
		GroupID: "core",
		Short:   "Stream past and current conflicts for a country",
		Long: `Stream opens the conflicts stream for a country and prints every frame
as it arrives. A terminal error frame ends the stream; a credit error
raises the credit signal and a rejected session signs out.`,
		Example: `  feedsync stream ukraine
  feedsync stream "south sudan" -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd, app, args[0])
		},
	}
}

func run(cmd *cobra.Command, app appcontext.Interface, country string) error {
	ctx := logging.WithCountry(logging.WithLogger(cmd.Context(), app.Logger()), country)

	client, err := app.Client()
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	sink := newSink(cmd.OutOrStdout(), format)
	notices := alerts.NewFormatWriter(cmd.ErrOrStderr(), format, app.NoColor())

	err = client.Stream(ctx, country, sink)
	if err == nil {
		return nil
	}

	switch {
	case errors.IsInsufficientCredits(err):
		_ = notices.WriteAlert(alerts.NewWarning("Insufficient credits").WithDetails(app.Credits().State().Message))
	case errors.IsSessionExpired(err):
		_ = notices.WriteAlert(alerts.NewWarning("Session expired. Please sign in again."))
	default:
		_ = notices.WriteAlert(alerts.NewError("Stream failed").WithError(err))
	}
	_ = hints.Display(cmd.ErrOrStderr(), format, app.NoColor(),
		hints.For("stream", []string{country}, err, app.Config()))
	return err
}

// newSink returns a sink printing frames in format. Table output prints one
// aligned line per frame so it can be followed live.
func newSink(w io.Writer, format output.Format) stream.Sink {
	now := time.Now
	switch format {
	case output.FormatJSON:
		f := &output.JSONFormatter{}
		return stream.SinkFunc(func(fr stream.Frame) error {
			return f.Format(w, frameDoc(fr))
		})
	case output.FormatYAML:
		f := &output.YAMLFormatter{}
		return stream.SinkFunc(func(fr stream.Frame) error {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return err
			}
			return f.Format(w, frameDoc(fr))
		})
	default:
		header := false
		return stream.SinkFunc(func(fr stream.Frame) error {
			if !header {
				header = true
				if err := printRow(w, table.FrameHeaders); err != nil {
					return err
				}
			}
			return printRow(w, table.FrameRow(fr, now()))
		})
	}
}

func printRow(w io.Writer, row []string) error {
	_, err := fmt.Fprintf(w, "%-8s %-10s %s\n", row[0], row[1], row[2])
	return err
}

// frameDoc is the structured form of a frame: the payload as sent for data
// frames, the normalized error otherwise.
func frameDoc(fr stream.Frame) any {
	if fr.IsError() {
		return fr
	}
	return fr.Payload
}
