package tui

import "github.com/go-go-golems/dltctl/pkg/monitor"

func levelOf(s string) LogLevel {
	switch s {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}

func sessionFrom(p PollObserved) SessionStatus {
	return SessionStatus{
		PipelineID: p.PipelineID,
		Poll:       p.Poll,
		Idle:       p.Idle,
		MaxIdle:    p.MaxIdle,
		Watermark:  p.Watermark,
	}
}

// RegisterDomainToUITransformer turns monitor envelopes into the smaller UI
// messages the models understand.
func RegisterDomainToUITransformer(bus *Bus) {
	pub := bus.Publisher()
	publishUI := func(kind string, payload any) error {
		return Publish(pub, TopicUIMessages, kind, payload)
	}

	bus.Handle("dltctl-domain-to-ui", TopicMonitorEvents, func(env Envelope) error {
		switch env.Kind {
		case DomainTypePollStarted, DomainTypeIdle:
			var ev PollObserved
			if err := env.Decode(&ev); err != nil {
				return err
			}
			return publishUI(UITypeSessionStatus, sessionFrom(ev))

		case DomainTypeEventReceived:
			var ev EventObserved
			if err := env.Decode(&ev); err != nil {
				return err
			}
			level := levelOf(ev.Level)
			if ev.HasError {
				level = LogLevelError
			}
			if err := publishUI(UITypeEventAppend, EventLogEntry{At: ev.At, Source: ev.Type, Level: level, Text: ev.Message}); err != nil {
				return err
			}
			if ev.Flow != "" && ev.State != "" {
				if err := publishUI(UITypeFlowStatus, FlowStatus{At: ev.At, Flow: ev.Flow, Status: ev.State}); err != nil {
					return err
				}
			}
			st := sessionFrom(ev.Poll)
			if ev.Flow == "" {
				st.State = ev.State
			}
			return publishUI(UITypeSessionStatus, st)

		case DomainTypeMonitorFinished:
			var ev MonitorFinished
			if err := env.Decode(&ev); err != nil {
				return err
			}
			if err := publishUI(UITypeOutcome, OutcomeView{Kind: ev.Kind, Text: ev.Text, EventsSeen: ev.EventsSeen, Polls: ev.Polls}); err != nil {
				return err
			}
			level := LogLevelInfo
			if ev.Kind == string(monitor.KindFailure) {
				level = LogLevelError
			}
			return publishUI(UITypeEventAppend, EventLogEntry{At: ev.At, Source: "cli_status", Level: level, Text: ev.Text})

		case DomainTypeStatusLine:
			var ev StatusLine
			if err := env.Decode(&ev); err != nil {
				return err
			}
			return publishUI(UITypeEventAppend, EventLogEntry{At: ev.At, Source: "cli_status", Level: LogLevelInfo, Text: ev.Text})

		default:
			return nil
		}
	})
}
