package alerts

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/agentstation/feedsync/internal/cmd/output"
)

// Writer handles alert output to different formats and destinations.
type Writer interface {
	WriteAlert(alert *Alert) error
}

// WriterFunc is an adapter to allow functions to be used as Writers.
type WriterFunc func(*Alert) error

// WriteAlert calls the function.
func (f WriterFunc) WriteAlert(alert *Alert) error {
	return f(alert)
}

// Discard is a Writer that discards all alerts.
var Discard Writer = WriterFunc(func(*Alert) error { return nil })

// FormatWriter writes alerts in the CLI output format. Structured formats
// emit one object per alert so they can be parsed line by line.
type FormatWriter struct {
	writer   io.Writer
	format   output.Format
	useColor bool
}

// NewFormatWriter creates a new FormatWriter for the specified format.
func NewFormatWriter(w io.Writer, format output.Format, noColor bool) *FormatWriter {
	return &FormatWriter{
		writer:   w,
		format:   format,
		useColor: !noColor && isTerminal(w),
	}
}

type alertData struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteAlert writes an alert in the configured format.
func (fw *FormatWriter) WriteAlert(alert *Alert) error {
	switch fw.format {
	case output.FormatJSON:
		return (&output.JSONFormatter{}).Format(fw.writer, toData(alert))
	case output.FormatYAML:
		if _, err := io.WriteString(fw.writer, "---\n"); err != nil {
			return err
		}
		return (&output.YAMLFormatter{}).Format(fw.writer, toData(alert))
	default:
		return fw.writeText(alert)
	}
}

func toData(alert *Alert) alertData {
	data := alertData{
		Level:     alert.Level.String(),
		Message:   alert.Message,
		Details:   alert.Details,
		Timestamp: alert.Timestamp.UTC(),
	}
	if alert.Err != nil {
		data.Error = alert.Err.Error()
	}
	return data
}

func (fw *FormatWriter) writeText(alert *Alert) error {
	message := alert.String()
	if fw.useColor {
		message = alert.Level.Color() + message + resetColor
	}
	if _, err := fmt.Fprintln(fw.writer, message); err != nil {
		return err
	}
	for _, detail := range alert.Details {
		if _, err := fmt.Fprintf(fw.writer, "   %s\n", detail); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
