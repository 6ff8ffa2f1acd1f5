package watch

import (
	"io"
	"sync"

	"github.com/agentstation/feedsync"
	"github.com/agentstation/feedsync/internal/cmd/alerts"
	"github.com/agentstation/feedsync/internal/cmd/output"
	"github.com/agentstation/feedsync/internal/cmd/table"
	"github.com/agentstation/feedsync/pkg/credit"
	"github.com/agentstation/feedsync/pkg/events"
)

// printer writes engine activity to the command's streams. Hooks fire on
// different goroutines, so writes are serialized.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format output.Format
	alerts alerts.Writer
}

func newPrinter(out, errOut io.Writer, format output.Format, noColor bool) *printer {
	return &printer{
		out:    out,
		format: format,
		alerts: alerts.NewFormatWriter(errOut, format, noColor),
	}
}

// events prints one batch of newly added events. Structured formats print
// one document per event so the stream can be consumed line by line.
func (p *printer) events(added []events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format.IsTable() {
		return output.NewFormatter(p.format).Format(p.out, table.EventsToTableData(added, p.format == output.FormatWide))
	}

	formatter := output.NewFormatter(p.format)
	if p.format == output.FormatJSON {
		formatter = &output.JSONFormatter{}
	}
	for _, e := range added {
		if p.format == output.FormatYAML {
			if _, err := io.WriteString(p.out, "---\n"); err != nil {
				return err
			}
		}
		if err := formatter.Format(p.out, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) alert(a *alerts.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.alerts.WriteAlert(a)
}

func (p *printer) stateChanged(_, to feedsync.State) {
	switch to {
	case feedsync.StateSignInRequired:
		p.alert(alerts.NewWarning("Sign in required, refreshes paused"))
	case feedsync.StateLoaded:
		p.alert(alerts.NewSuccess("Feed loaded"))
	}
}

func (p *printer) failed(err error) {
	p.alert(alerts.NewError("Sync failed").WithError(err))
}

func (p *printer) credit(s credit.State) {
	if s.HasError {
		p.alert(alerts.NewWarning("Insufficient credits").WithDetails(s.Message))
		return
	}
	p.alert(alerts.NewInfo("Credit error dismissed"))
}
