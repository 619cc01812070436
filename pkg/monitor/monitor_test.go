package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns one scripted batch per poll and an empty batch once
// the script is exhausted.
type scriptedFetcher struct {
	batches  [][]events.Event
	err      error
	sinces   []time.Time
	cancel   context.CancelFunc
	cancelAt int
}

var _ EventFetcher = (*scriptedFetcher)(nil)

func (f *scriptedFetcher) FetchSince(_ context.Context, _ string, since time.Time) ([]events.Event, error) {
	f.sinces = append(f.sinces, since)
	if f.cancel != nil && len(f.sinces) == f.cancelAt {
		f.cancel()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

type recordingSink struct {
	polls    int
	idles    []int
	shown    []events.TypedEvent
	statuses []Status
	outcomes []Outcome
}

var _ Sink = (*recordingSink)(nil)

func (r *recordingSink) PollStarted(Status) { r.polls++ }
func (r *recordingSink) EventReceived(ev events.TypedEvent, s Status) {
	r.shown = append(r.shown, ev)
	r.statuses = append(r.statuses, s)
}
func (r *recordingSink) Idle(s Status)      { r.idles = append(r.idles, s.Idle) }
func (r *recordingSink) Finished(o Outcome) { r.outcomes = append(r.outcomes, o) }

func ts(sec int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, sec, 0, time.UTC)
}

func ev(id string, sec int) events.Event {
	return events.Event{ID: id, Timestamp: ts(sec), Type: events.TypeFlowProgress, Level: events.LevelInfo, Message: "flow " + id}
}

func updateState(id string, sec int, state string) events.Event {
	e := ev(id, sec)
	e.Type = events.TypeUpdateProgress
	e.Details = []byte(`{"update_progress":{"state":"` + state + `"}}`)
	e.Message = "Update is " + state + "."
	return e
}

func TestStream_IdleTerminationAfterExactlyMaxPolls(t *testing.T) {
	f := &scriptedFetcher{}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 3})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.Equal(t, KindTimeoutExhausted, o.Kind)
	require.Equal(t, 3, o.Polls)
	require.Len(t, f.sinces, 3)
	require.Equal(t, []int{1, 2, 3}, sink.idles)
	require.Len(t, sink.outcomes, 1)
	require.NoError(t, o.Err())
}

func TestStream_OneEventThenQuiet(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{{ev("a", 1)}, {}, {}}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 2})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Idle())
	require.Equal(t, 3, o.Polls)
	require.Equal(t, 1, o.EventsSeen)
	require.Len(t, sink.shown, 1)
	require.Equal(t, "a", sink.shown[0].Base().ID)
}

func TestStream_EventsResetIdleCounter(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{{}, {ev("a", 1)}, {}, {ev("b", 2)}, {}, {}}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 2})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Idle())
	require.Equal(t, 6, o.Polls)
	require.Equal(t, []int{1, 1, 1, 2}, sink.idles)
}

func TestStream_FailureStopsInSameCycle(t *testing.T) {
	failing := ev("boom", 2)
	failing.Level = events.LevelError
	failing.Error = []byte(`{"exceptions":[{"message":"table not found"}]}`)
	failing.Message = "Flow 'silver' has FAILED."

	f := &scriptedFetcher{batches: [][]events.Event{{ev("a", 1), failing, ev("after", 3)}, {ev("never", 4)}}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 5})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Failed())
	require.Equal(t, 1, o.Polls)
	require.Len(t, f.sinces, 1)
	require.Equal(t, "Flow 'silver' has FAILED.", o.Reason)
	require.JSONEq(t, `{"exceptions":[{"message":"table not found"}]}`, string(o.Detail))
	require.Equal(t, "boom", o.Event.ID)
	require.Len(t, sink.shown, 3)
	require.Equal(t, "after", sink.shown[2].Base().ID)
	require.Equal(t, 3, o.EventsSeen)

	var fe *FailureError
	require.True(t, errors.As(o.Err(), &fe))
	require.Contains(t, o.Err().Error(), "table not found")
}

func TestStream_ErrorAfterCompletionInSameBatchIsFailure(t *testing.T) {
	failing := ev("late-error", 3)
	failing.Error = []byte(`{"exceptions":[{"message":"sink write failed"}]}`)

	f := &scriptedFetcher{batches: [][]events.Event{{updateState("u1", 2, "COMPLETED"), failing}}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 5})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Failed())
	require.Equal(t, 1, o.Polls)
	require.Equal(t, "late-error", o.Event.ID)
	require.Len(t, sink.shown, 2)
	require.Contains(t, o.Err().Error(), "sink write failed")
}

func TestStream_UpdateCompletedIsSuccess(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{
		{updateState("u1", 1, "RUNNING")},
		{ev("a", 2), updateState("u2", 3, "COMPLETED")},
	}}
	m := New(f, &recordingSink{}, Options{MaxPollsWithoutEvents: 5})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Succeeded())
	require.Equal(t, 2, o.Polls)
	require.Equal(t, 3, o.EventsSeen)
	require.Equal(t, ts(3), o.Watermark)
}

func TestStream_CanceledUpdate(t *testing.T) {
	newFetcher := func() *scriptedFetcher {
		return &scriptedFetcher{batches: [][]events.Event{{updateState("u1", 1, "CANCELED")}}}
	}

	o, err := New(newFetcher(), nil, Options{}).Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Failed())

	o, err = New(newFetcher(), nil, Options{CancelIsSuccess: true}).Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Succeeded())
}

func TestStream_WatermarkNeverRegresses(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{
		{ev("a", 5)},
		{ev("stale", 2)},
		{ev("b", 7)},
	}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 1})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Idle())

	require.Equal(t, []time.Time{ts(0), ts(5), ts(5), ts(7)}, f.sinces)
	require.Len(t, sink.shown, 3)
	require.Equal(t, "stale", sink.shown[1].Base().ID)
	require.Equal(t, ts(5), sink.statuses[1].Watermark)
	require.Equal(t, ts(7), o.Watermark)
}

func TestStream_DuplicatesAtWatermarkAreNotShownTwice(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{
		{ev("a", 5), ev("b", 5)},
		{ev("a", 5), ev("b", 5)},
		{ev("a", 5), ev("b", 5), ev("c", 5)},
	}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 2})

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Idle())
	require.Equal(t, 3, o.EventsSeen)
	require.Equal(t, []int{1, 1, 2}, sink.idles)
}

func TestStream_FetchErrorPropagates(t *testing.T) {
	boom := errors.New("502 bad gateway")
	m := New(&scriptedFetcher{err: boom}, nil, Options{})

	_, err := m.Stream(context.Background(), "p1", ts(0))
	require.Error(t, err)
	require.Equal(t, boom, errors.Cause(err))
}

func TestStream_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &scriptedFetcher{cancel: cancel, cancelAt: 1}
	m := New(f, nil, Options{MaxPollsWithoutEvents: 100, PollInterval: time.Hour})

	o, err := m.Stream(ctx, "p1", ts(0))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, o.Kind)
}

type dropFilter struct{ drop string }

func (d dropFilter) Apply(_ context.Context, e events.Event) (events.Event, bool, error) {
	if e.ID == d.drop {
		return e, false, nil
	}
	e.Message = "filtered: " + e.Message
	return e, true, nil
}

func TestStream_FilterDropsAndRewritesButKeepsActivity(t *testing.T) {
	f := &scriptedFetcher{batches: [][]events.Event{{ev("noise", 1)}, {ev("a", 2)}}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 1})
	m.Filter = dropFilter{drop: "noise"}

	o, err := m.Stream(context.Background(), "p1", ts(0))
	require.NoError(t, err)
	require.Equal(t, 3, o.Polls)
	require.Len(t, sink.shown, 1)
	require.Equal(t, "filtered: flow a", sink.shown[0].Base().Message)
}

// sinceFetcher serves a fixed feed the way the control plane does, returning
// everything at or after since on every poll.
type sinceFetcher struct {
	feed  []events.Event
	polls int
}

func (f *sinceFetcher) FetchSince(_ context.Context, _ string, since time.Time) ([]events.Event, error) {
	f.polls++
	var out []events.Event
	for _, e := range f.feed {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestStream_EventWithoutIDIsShownOnce(t *testing.T) {
	anon := ev("", 4)
	anon.Sequence = []byte(`{"data_plane_id":{"seq_no":7}}`)
	f := &sinceFetcher{feed: []events.Event{anon}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := m.Stream(ctx, "p1", ts(0))
	require.NoError(t, err)
	require.True(t, o.Idle())
	require.Equal(t, 3, o.Polls)
	require.Equal(t, 1, o.EventsSeen)
	require.Len(t, sink.shown, 1)
}

func TestEventKey_DistinguishesEventsWithoutID(t *testing.T) {
	a := ev("", 4)
	b := ev("", 4)
	b.Message = "flow other"
	require.NotEqual(t, EventKey(a), EventKey(b))
	require.Equal(t, EventKey(a), EventKey(ev("", 4)))
	require.NotEqual(t, EventKey(ev("x", 4)), EventKey(a))
}

func TestStreamFrom_SkipsKnownEventsAtTheCursor(t *testing.T) {
	old := ev("old", 5)
	f := &sinceFetcher{feed: []events.Event{ev("older", 3), old, ev("same-ms", 5), ev("next", 6)}}
	sink := &recordingSink{}
	m := New(f, sink, Options{MaxPollsWithoutEvents: 1})

	o, err := m.StreamFrom(context.Background(), "p1", Cursor{Since: ts(5), Seen: []events.Event{old}})
	require.NoError(t, err)
	require.True(t, o.Idle())
	require.Len(t, sink.shown, 2)
	require.Equal(t, "same-ms", sink.shown[0].Base().ID)
	require.Equal(t, "next", sink.shown[1].Base().ID)
}
