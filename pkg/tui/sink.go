package tui

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/rs/zerolog/log"
)

// BusSink publishes the monitor's callbacks as domain envelopes on
// TopicMonitorEvents. A failed publish is logged and otherwise ignored so a
// stuck UI never stalls the poll loop.
type BusSink struct {
	Pub message.Publisher
	Now func() time.Time
}

var _ monitor.Sink = (*BusSink)(nil)

func NewBusSink(pub message.Publisher) *BusSink {
	return &BusSink{Pub: pub, Now: time.Now}
}

func (s *BusSink) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *BusSink) publish(kind string, payload any) {
	if err := Publish(s.Pub, TopicMonitorEvents, kind, payload); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("drop ui message")
	}
}

func (s *BusSink) pollObserved(st monitor.Status) PollObserved {
	return PollObserved{
		At:         s.now(),
		PipelineID: st.PipelineID,
		Poll:       st.Poll,
		Idle:       st.Idle,
		MaxIdle:    st.MaxIdle,
		Watermark:  st.Watermark,
	}
}

func (s *BusSink) PollStarted(st monitor.Status) {
	s.publish(DomainTypePollStarted, s.pollObserved(st))
}

func (s *BusSink) EventReceived(ev events.TypedEvent, st monitor.Status) {
	base := ev.Base()
	obs := EventObserved{
		At:       base.Timestamp,
		ID:       base.ID,
		Type:     base.TypeName(),
		Level:    string(base.Level),
		Message:  base.Message,
		HasError: base.HasError(),
		Poll:     s.pollObserved(st),
	}
	switch e := ev.(type) {
	case events.FlowProgress:
		obs.Flow, obs.State = e.FlowName, e.Status
	case events.UpdateProgress:
		obs.State = e.State
	}
	s.publish(DomainTypeEventReceived, obs)
}

func (s *BusSink) Idle(st monitor.Status) {
	s.publish(DomainTypeIdle, s.pollObserved(st))
}

func (s *BusSink) Finished(o monitor.Outcome) {
	s.publish(DomainTypeMonitorFinished, MonitorFinished{
		At:         s.now(),
		PipelineID: o.PipelineID,
		Kind:       string(o.Kind),
		Text:       o.String(),
		EventsSeen: o.EventsSeen,
		Polls:      o.Polls,
	})
}

// Status publishes a CLI status line; it fits jobs.StatusFunc.
func (s *BusSink) Status(msg string) {
	s.publish(DomainTypeStatusLine, StatusLine{At: s.now(), Text: msg})
}
