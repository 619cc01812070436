package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/go-go-golems/dltctl/pkg/tui/styles"
	"github.com/rs/zerolog/log"
)

// StatusType is the type column used for lines the CLI writes itself.
const StatusType = "cli_status"

// Printer writes event and status lines to a terminal or any writer:
//
//	✔ 2024-01-01T00:00:01.000Z update_progress Update 6f3e is RUNNING.
//
// Errors are red, everything else green. Colors are dropped when out is not
// a terminal.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	theme styles.Theme
	now   func() time.Time
}

var _ monitor.Sink = (*Printer)(nil)

type PrinterOption func(*Printer)

// WithClock overrides the clock used to stamp status lines.
func WithClock(now func() time.Time) PrinterOption {
	return func(p *Printer) { p.now = now }
}

func WithTheme(t styles.Theme) PrinterOption {
	return func(p *Printer) { p.theme = t }
}

func NewPrinter(out io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{
		out:   out,
		theme: styles.NewTheme(lipgloss.NewRenderer(out)),
		now:   time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Status prints a CLI status line stamped with the current time.
func (p *Printer) Status(msg string) {
	p.line(events.FormatTimestamp(p.now()), StatusType, events.LevelInfo, msg)
}

// Statusf is Status with formatting.
func (p *Printer) Statusf(format string, args ...any) {
	p.Status(fmt.Sprintf(format, args...))
}

// Errorf prints a red status line.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(events.FormatTimestamp(p.now()), StatusType, events.LevelError, fmt.Sprintf(format, args...))
}

// Event prints one event; verbose adds the typed fields, origin, details and
// error payload below the main line.
func (p *Printer) Event(ev events.TypedEvent, verbose bool) {
	base := ev.Base()
	ts := base.RawTimestamp
	if !base.Timestamp.IsZero() {
		ts = events.FormatTimestamp(base.Timestamp)
	}
	p.line(ts, base.TypeName(), base.Level, base.Message)
	if !verbose {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, kv := range verboseFields(ev) {
		fmt.Fprintf(p.out, "    %s %s\n", p.theme.TitleMuted.Render(kv[0]+":"), kv[1])
	}
}

func (p *Printer) line(ts, kind string, level events.Level, msg string) {
	style := p.theme.LevelStyle(string(level))

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s %s %s\n",
		style.Render(styles.IconCheck),
		ts,
		style.Render(kind),
		msg,
	)
}

func verboseFields(ev events.TypedEvent) [][2]string {
	base := ev.Base()
	var fields [][2]string
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, [2]string{k, v})
		}
	}

	add("id", base.ID)
	add("level", string(base.Level))
	if len(base.Sequence) > 0 {
		add("sequence", string(base.Sequence))
	}

	switch e := ev.(type) {
	case events.UpdateProgress:
		add("state", e.State)
	case events.FlowProgress:
		add("flow", e.FlowName)
		add("status", e.Status)
	case events.CreateUpdate:
		add("cause", e.Cause)
		add("full_refresh", fmt.Sprintf("%t", e.FullRefresh))
	case events.FlowDefinition:
		add("output_dataset", e.OutputDataset)
		add("flow_type", e.FlowType)
	case events.DatasetDefinition:
		add("dataset_type", e.DatasetType)
	case events.MaintenanceProgress:
		add("state", e.State)
	case events.GraphCreated, events.Other:
	}

	add("origin", formatOrigin(base.Origin))
	add("maturity", base.MaturityLevel)
	add("details", RedactJSON(base.Details))
	if base.HasError() {
		add("error", RedactJSON(base.Error))
	}
	return fields
}

func formatOrigin(o events.Origin) string {
	kv := map[string]string{
		"pipeline_id":   o.PipelineID,
		"pipeline_name": o.PipelineName,
		"update_id":     o.UpdateID,
		"flow_name":     o.FlowName,
		"request_id":    o.RequestID,
	}
	keys := make([]string, 0, len(kv))
	for k, v := range kv {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+kv[k])
	}
	return strings.Join(parts, " ")
}

func (p *Printer) PollStarted(s monitor.Status) {
	log.Debug().Str("pipeline", s.PipelineID).Int("poll", s.Poll).
		Time("watermark", s.Watermark).Msg("polling events")
}

func (p *Printer) EventReceived(ev events.TypedEvent, s monitor.Status) {
	p.Event(ev, s.Verbose)
}

func (p *Printer) Idle(s monitor.Status) {
	if s.Verbose {
		p.Statusf("No new events (%d/%d idle polls)", s.Idle, s.MaxIdle)
		return
	}
	log.Debug().Str("pipeline", s.PipelineID).Int("idle", s.Idle).Int("max", s.MaxIdle).Msg("no new events")
}

func (p *Printer) Finished(o monitor.Outcome) {
	switch o.Kind {
	case monitor.KindFailure:
		p.Errorf("%s", o.String())
	case "":
		log.Debug().Str("pipeline", o.PipelineID).Msg("monitoring interrupted")
	default:
		p.Status(o.String())
	}
}
