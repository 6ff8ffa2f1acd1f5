package hints

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/feedsync/internal/cmd/output"
)

// Formatter formats hints for different output types.
type Formatter struct {
	writer    io.Writer
	format    output.Format
	showIcons bool
}

// NewFormatter creates a new hint formatter.
func NewFormatter(w io.Writer, format output.Format) *Formatter {
	return &Formatter{writer: w, format: format, showIcons: true}
}

// WithIcons toggles the emoji prefix of text output.
func (f *Formatter) WithIcons(show bool) *Formatter {
	f.showIcons = show
	return f
}

// hintData represents hint data for structured output.
type hintData struct {
	Message string   `json:"message" yaml:"message"`
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// FormatHints formats and writes a slice of hints.
func (f *Formatter) FormatHints(hints []*Hint) error {
	if len(hints) == 0 {
		return nil
	}

	data := make([]hintData, len(hints))
	for i, h := range hints {
		data[i] = hintData{Message: h.Message, Command: h.Command, URL: h.URL, Tags: h.Tags}
	}
	wrapped := struct {
		Hints []hintData `json:"hints" yaml:"hints"`
	}{Hints: data}

	switch f.format {
	case output.FormatJSON:
		return json.NewEncoder(f.writer).Encode(wrapped)
	case output.FormatYAML:
		b, err := yaml.MarshalWithOptions(wrapped, yaml.Indent(2), yaml.IndentSequence(false))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(f.writer, "---\n"); err != nil {
			return err
		}
		_, err = f.writer.Write(b)
		return err
	default:
		return f.formatText(hints)
	}
}

func (f *Formatter) formatText(hints []*Hint) error {
	icon := "💡"
	if !f.showIcons {
		icon = "Tip:"
	}
	if _, err := fmt.Fprintln(f.writer); err != nil {
		return err
	}
	for _, h := range hints {
		if _, err := fmt.Fprintf(f.writer, "%s %s\n", icon, h.Message); err != nil {
			return err
		}
		if h.Command != "" {
			_, _ = fmt.Fprintf(f.writer, "   Run: %s\n", h.Command)
		}
		if h.URL != "" {
			_, _ = fmt.Fprintf(f.writer, "   See: %s\n", h.URL)
		}
	}
	return nil
}

// Display formats the hints the default registry produces for ctx.
func Display(w io.Writer, format output.Format, noColor bool, ctx Context) error {
	return NewFormatter(w, format).WithIcons(!noColor).FormatHints(Default().GetHints(ctx))
}
