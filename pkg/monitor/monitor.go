package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxPollsWithoutEvents = 60
	DefaultPollInterval          = 5 * time.Second

	// seenPruneThreshold bounds the ids remembered for duplicate suppression.
	seenPruneThreshold = 4096
)

type Options struct {
	MaxPollsWithoutEvents int
	PollInterval          time.Duration
	Verbose               bool
	// CancelIsSuccess treats a canceled update as the expected end, as when
	// watching a stop request.
	CancelIsSuccess bool
}

func (o Options) withDefaults() Options {
	if o.MaxPollsWithoutEvents <= 0 {
		o.MaxPollsWithoutEvents = DefaultMaxPollsWithoutEvents
	}
	if o.PollInterval < 0 {
		o.PollInterval = 0
	}
	return o
}

// EventFetcher is satisfied by *events.Fetcher.
type EventFetcher interface {
	FetchSince(ctx context.Context, pipelineID string, since time.Time) ([]events.Event, error)
}

type Monitor struct {
	Fetcher EventFetcher
	Sink    Sink
	Filter  Filter
	Options Options
}

func New(f EventFetcher, sink Sink, opts Options) *Monitor {
	return &Monitor{Fetcher: f, Sink: sink, Options: opts}
}

// Cursor is where a stream begins: events at or after Since, except the ones
// listed in Seen, which were already in the feed.
type Cursor struct {
	Since time.Time
	Seen  []events.Event
}

// Stream polls the event feed of a pipeline until a terminal event shows up
// or MaxPollsWithoutEvents consecutive polls bring nothing new. A non-nil
// error means the stream was interrupted by the fetcher or ctx; the returned
// Outcome then carries the progress made so far with an empty Kind.
func (m *Monitor) Stream(ctx context.Context, pipelineID string, since time.Time) (Outcome, error) {
	return m.StreamFrom(ctx, pipelineID, Cursor{Since: since})
}

// StreamFrom is Stream starting at a cursor.
func (m *Monitor) StreamFrom(ctx context.Context, pipelineID string, c Cursor) (Outcome, error) {
	if m.Fetcher == nil {
		return Outcome{}, errors.New("monitor has no event fetcher")
	}
	sink := m.Sink
	if sink == nil {
		sink = NopSink{}
	}
	s := newSession(pipelineID, c.Since, m.Options.withDefaults())
	for _, ev := range c.Seen {
		s.seen[EventKey(ev)] = ev.Timestamp
	}
	tracer := otel.Tracer("github.com/go-go-golems/dltctl/pkg/monitor")

	log.Debug().Str("pipeline", pipelineID).Time("since", c.Since).Int("known", len(c.Seen)).
		Int("max_idle_polls", s.opts.MaxPollsWithoutEvents).
		Dur("interval", s.opts.PollInterval).
		Msg("event stream started")

	for {
		if err := ctx.Err(); err != nil {
			return s.outcome(""), err
		}

		s.polls++
		sink.PollStarted(s.status())

		pollCtx, span := tracer.Start(ctx, "monitor.poll", trace.WithAttributes(
			attribute.String("pipeline.id", pipelineID),
			attribute.Int("poll", s.polls),
			attribute.Int("idle", s.idle),
		))
		evs, err := m.Fetcher.FetchSince(pollCtx, pipelineID, s.watermark)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch events")
			span.End()
			return s.outcome(""), errors.Wrap(err, "poll events")
		}
		fresh := s.admit(evs)
		span.SetAttributes(attribute.Int("events.fetched", len(evs)), attribute.Int("events.new", len(fresh)))
		span.End()

		if len(fresh) == 0 {
			s.idle++
			log.Debug().Str("pipeline", pipelineID).Int("idle", s.idle).Msg("no new events")
			sink.Idle(s.status())
			if s.idle >= s.opts.MaxPollsWithoutEvents {
				o := s.outcome(KindTimeoutExhausted)
				o.Reason = fmt.Sprintf("no new events in %d consecutive polls", s.idle)
				sink.Finished(o)
				return o, nil
			}
		} else {
			s.idle = 0
			if o, done := m.dispatch(ctx, sink, s, fresh); done {
				sink.Finished(o)
				return o, nil
			}
		}

		if err := sleep(ctx, s.opts.PollInterval); err != nil {
			return s.outcome(""), err
		}
	}
}

// dispatch shows every fresh event of the cycle, then settles on the first
// failure if there is one, otherwise on the first success.
func (m *Monitor) dispatch(ctx context.Context, sink Sink, s *session, fresh []events.Event) (Outcome, bool) {
	var failure, success *events.Event
	for i := range fresh {
		ev := fresh[i]
		shown, keep := m.applyFilter(ctx, ev)
		if keep {
			s.displayed++
			sink.EventReceived(events.Classify(shown), s.status())
		}

		switch events.TerminalSignal(ev) {
		case events.SignalFailure:
			if failure == nil {
				failure = &fresh[i]
			}
		case events.SignalCanceled:
			if s.opts.CancelIsSuccess {
				if success == nil {
					success = &fresh[i]
				}
			} else if failure == nil {
				failure = &fresh[i]
			}
		case events.SignalSuccess:
			if success == nil {
				success = &fresh[i]
			}
		case events.SignalNone:
		}
	}
	switch {
	case failure != nil:
		return s.terminal(KindFailure, *failure), true
	case success != nil:
		return s.terminal(KindSuccess, *success), true
	}
	return Outcome{}, false
}

func (m *Monitor) applyFilter(ctx context.Context, ev events.Event) (events.Event, bool) {
	if m.Filter == nil {
		return ev, true
	}
	out, keep, err := m.Filter.Apply(ctx, ev)
	if err != nil {
		log.Warn().Err(err).Str("event", ev.ID).Msg("event filter failed, showing event unchanged")
		return ev, true
	}
	return out, keep
}

type session struct {
	pipelineID string
	opts       Options
	watermark  time.Time
	seen       map[string]time.Time
	idle       int
	polls      int
	displayed  int
}

func newSession(pipelineID string, since time.Time, opts Options) *session {
	return &session{
		pipelineID: pipelineID,
		opts:       opts,
		watermark:  since,
		seen:       map[string]time.Time{},
	}
}

// admit drops events already handled and advances the watermark. The
// watermark only moves forward; stale events pass through untouched.
func (s *session) admit(evs []events.Event) []events.Event {
	var fresh []events.Event
	for _, ev := range evs {
		key := EventKey(ev)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = ev.Timestamp
		fresh = append(fresh, ev)
		if ev.Timestamp.After(s.watermark) {
			s.watermark = ev.Timestamp
		}
	}
	s.prune()
	return fresh
}

// EventKey identifies an event for duplicate suppression. Events without an
// id fall back to their content.
func EventKey(ev events.Event) string {
	if ev.ID != "" {
		return "id:" + ev.ID
	}
	return strings.Join([]string{
		"anon",
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.TypeName(),
		ev.Message,
		string(ev.Sequence),
		string(ev.RawOrigin),
	}, "\x00")
}

func (s *session) prune() {
	if len(s.seen) < seenPruneThreshold {
		return
	}
	for id, ts := range s.seen {
		if ts.Before(s.watermark) {
			delete(s.seen, id)
		}
	}
}

func (s *session) status() Status {
	return Status{
		PipelineID: s.pipelineID,
		Poll:       s.polls,
		Idle:       s.idle,
		MaxIdle:    s.opts.MaxPollsWithoutEvents,
		Watermark:  s.watermark,
		Verbose:    s.opts.Verbose,
	}
}

func (s *session) outcome(kind Kind) Outcome {
	return Outcome{
		Kind:       kind,
		PipelineID: s.pipelineID,
		EventsSeen: s.displayed,
		Polls:      s.polls,
		Watermark:  s.watermark,
	}
}

func (s *session) terminal(kind Kind, ev events.Event) Outcome {
	o := s.outcome(kind)
	o.Reason = ev.Message
	if o.Reason == "" {
		o.Reason = ev.TypeName()
	}
	if ev.HasError() {
		o.Detail = ev.Error
	}
	o.Event = &ev
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
