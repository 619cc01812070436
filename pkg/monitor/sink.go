package monitor

import (
	"context"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
)

// Status is a snapshot of the monitoring session handed to sinks.
type Status struct {
	PipelineID string
	Poll       int
	Idle       int
	MaxIdle    int
	Watermark  time.Time
	Verbose    bool
}

// Sink receives everything the monitor wants shown. Implementations must not
// block for long; the poll loop waits on them.
type Sink interface {
	PollStarted(s Status)
	EventReceived(ev events.TypedEvent, s Status)
	Idle(s Status)
	Finished(o Outcome)
}

// Filter may rewrite or drop events before they reach the sink. Terminal
// detection always looks at the unfiltered event.
type Filter interface {
	Apply(ctx context.Context, ev events.Event) (events.Event, bool, error)
}

type NopSink struct{}

func (NopSink) PollStarted(Status)                      {}
func (NopSink) EventReceived(events.TypedEvent, Status) {}
func (NopSink) Idle(Status)                             {}
func (NopSink) Finished(Outcome)                        {}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) PollStarted(s Status) {
	for _, x := range m {
		x.PollStarted(s)
	}
}

func (m MultiSink) EventReceived(ev events.TypedEvent, s Status) {
	for _, x := range m {
		x.EventReceived(ev, s)
	}
}

func (m MultiSink) Idle(s Status) {
	for _, x := range m {
		x.Idle(s)
	}
}

func (m MultiSink) Finished(o Outcome) {
	for _, x := range m {
		x.Finished(o)
	}
}
