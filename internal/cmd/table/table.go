// Package table converts feed data into rows for tabular CLI output.
package table

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/pkg/events"
	"github.com/agentstation/feedsync/pkg/stream"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align
}

// Column widths for truncated cells.
const (
	titleWidth   = 60
	contentWidth = 80
)

// eventColumns are the payload fields shown for each event. Wide output adds
// wideColumns.
var (
	eventColumns = []string{"title", "category", "threatLevel"}
	wideColumns  = []string{"country", "location", "timestamp"}
)

var headerCaser = cases.Title(language.English)

// Header turns a payload field name such as threatLevel or threat_level
// into a column header.
func Header(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
		case i > 0 && r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return headerCaser.String(b.String())
}

// EventsToTableData converts events to table format.
func EventsToTableData(evts []events.Event, wide bool) Data {
	fields := eventColumns
	if wide {
		fields = append(append([]string(nil), eventColumns...), wideColumns...)
	}

	headers := []string{"ID"}
	for _, f := range fields {
		headers = append(headers, Header(f))
	}

	rows := make([][]string, 0, len(evts))
	for _, e := range evts {
		row := []string{e.ID}
		for _, f := range fields {
			cell := Cell(e, f)
			if f == "title" && !wide {
				cell = Truncate(cell, titleWidth)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return Data{Headers: headers, Rows: rows}
}

// Cell renders a payload field. Strings are shown as-is, other JSON values
// in their compact form, and missing fields as "-".
func Cell(e events.Event, field string) string {
	if s := e.String(field); s != "" {
		return s
	}
	raw, ok := e.Fields[field]
	if !ok || string(raw) == "null" || string(raw) == `""` {
		return "-"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		if m, ok := v.(map[string]any); ok {
			if name, ok := m["name"].(string); ok {
				return name
			}
		}
	}
	return string(raw)
}

// ConflictsToTableData converts a conflicts summary to a section per row.
func ConflictsToTableData(c *feedsync.Conflicts) Data {
	rows := [][]string{
		{"Past", Truncate(oneLine(c.Past.Conflicts), contentWidth), sourcesCell(c.Past.Sources)},
		{"Current", Truncate(oneLine(c.Current.Conflicts), contentWidth), sourcesCell(c.Current.Sources)},
	}
	return Data{
		Headers:         []string{"Section", Header(c.Country), "Sources"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignRight},
	}
}

// FrameRow renders one stream frame as a row of FrameHeaders.
func FrameRow(f stream.Frame, at time.Time) []string {
	if f.IsError() {
		return []string{at.Format(time.Kitchen), string(f.Type), Truncate(f.Error, contentWidth)}
	}
	var body struct {
		Content string `json:"content"`
		Section string `json:"section"`
		Sources []any  `json:"sources"`
	}
	_ = f.Decode(&body)

	var detail string
	switch {
	case body.Content != "":
		detail = Truncate(oneLine(body.Content), contentWidth)
	case body.Sources != nil:
		detail = strings.TrimSpace(body.Section + " " + pluralize(len(body.Sources), "source"))
	}
	return []string{at.Format(time.Kitchen), f.Kind, detail}
}

// FrameHeaders are the columns of FrameRow.
var FrameHeaders = []string{"Time", "Type", "Detail"}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sourcesCell(sources []feedsync.Source) string {
	return pluralize(len(sources), "source")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
