package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

var _ Sender = (*captureSender)(nil)

func (c *captureSender) Send(msg tea.Msg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureSender) snapshot() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tea.Msg(nil), c.msgs...)
}

func startBus(t *testing.T) (*Bus, *captureSender) {
	t.Helper()
	bus, err := NewInMemoryBus(0)
	require.NoError(t, err)

	sender := &captureSender{}
	RegisterDomainToUITransformer(bus)
	RegisterUIForwarder(bus, sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}
	return bus, sender
}

func TestBus_MonitorCallbacksReachTheProgram(t *testing.T) {
	bus, sender := startBus(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := &BusSink{Pub: bus.Publisher(), Now: func() time.Time { return fixed }}

	st := monitor.Status{PipelineID: "p-1", Poll: 2, Idle: 0, MaxIdle: 60}
	sink.PollStarted(st)

	flow := events.Classify(events.Event{
		ID:        "e-1",
		Timestamp: fixed,
		Level:     events.LevelInfo,
		Type:      events.TypeFlowProgress,
		Message:   "Flow 'orders' is RUNNING.",
		Origin:    events.Origin{FlowName: "orders"},
		Details:   []byte(`{"flow_progress":{"status":"RUNNING"}}`),
	})
	sink.EventReceived(flow, st)

	sink.Finished(monitor.Outcome{Kind: monitor.KindFailure, PipelineID: "p-1", Reason: "update FAILED", Polls: 2, EventsSeen: 1})

	var msgs []tea.Msg
	require.Eventually(t, func() bool {
		msgs = sender.snapshot()
		for _, m := range msgs {
			if _, ok := m.(OutcomeMsg); ok {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	var (
		sessions []SessionStatus
		entries  []EventLogEntry
		flows    []FlowStatus
		outcome  *OutcomeView
	)
	for _, m := range msgs {
		switch v := m.(type) {
		case SessionStatusMsg:
			sessions = append(sessions, v.Status)
		case EventLogAppendMsg:
			entries = append(entries, v.Entry)
		case FlowStatusMsg:
			flows = append(flows, v.Flow)
		case OutcomeMsg:
			o := v.Outcome
			outcome = &o
		}
	}

	require.NotEmpty(t, sessions)
	require.Equal(t, "p-1", sessions[0].PipelineID)
	require.Equal(t, 2, sessions[0].Poll)
	require.Equal(t, 60, sessions[0].MaxIdle)

	require.Len(t, flows, 1)
	require.Equal(t, "orders", flows[0].Flow)
	require.Equal(t, "RUNNING", flows[0].Status)

	require.NotEmpty(t, entries)
	require.Equal(t, "flow_progress", entries[0].Source)
	require.Equal(t, "Flow 'orders' is RUNNING.", entries[0].Text)

	require.NotNil(t, outcome)
	require.Equal(t, "failure", outcome.Kind)
	require.Equal(t, "pipeline p-1 failed: update FAILED", outcome.Text)
	require.Equal(t, 2, outcome.Polls)
}

func TestBus_StatusLinesBecomeLogEntries(t *testing.T) {
	bus, sender := startBus(t)
	sink := NewBusSink(bus.Publisher())
	sink.Status("Run started. Job ID: 1, Run ID: 2")

	require.Eventually(t, func() bool {
		for _, m := range sender.snapshot() {
			if v, ok := m.(EventLogAppendMsg); ok {
				return v.Entry.Source == "cli_status" && v.Entry.Text == "Run started. Job ID: 1, Run ID: 2"
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEnvelope_SealAndOpen(t *testing.T) {
	b, err := Seal(UITypeFlowStatus, FlowStatus{Flow: "silver", Status: "RUNNING"})
	require.NoError(t, err)

	env, err := OpenEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, UITypeFlowStatus, env.Kind)
	var fs FlowStatus
	require.NoError(t, env.Decode(&fs))
	require.Equal(t, "silver", fs.Flow)

	_, err = Seal("", nil)
	require.Error(t, err)
	_, err = OpenEnvelope([]byte(`{"payload":{}}`))
	require.Error(t, err)
	_, err = OpenEnvelope([]byte(`not json`))
	require.Error(t, err)
}
