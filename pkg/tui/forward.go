package tui

import tea "github.com/charmbracelet/bubbletea"

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

// RegisterUIForwarder hands every UI envelope to p as the matching tea.Msg.
func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.Handle("dltctl-ui-forward", TopicUIMessages, func(env Envelope) error {
		switch env.Kind {
		case UITypeEventAppend:
			var entry EventLogEntry
			if err := env.Decode(&entry); err != nil {
				return err
			}
			p.Send(EventLogAppendMsg{Entry: entry})
		case UITypeSessionStatus:
			var st SessionStatus
			if err := env.Decode(&st); err != nil {
				return err
			}
			p.Send(SessionStatusMsg{Status: st})
		case UITypeFlowStatus:
			var fs FlowStatus
			if err := env.Decode(&fs); err != nil {
				return err
			}
			p.Send(FlowStatusMsg{Flow: fs})
		case UITypeOutcome:
			var o OutcomeView
			if err := env.Decode(&o); err != nil {
				return err
			}
			p.Send(OutcomeMsg{Outcome: o})
		}
		return nil
	})
}
