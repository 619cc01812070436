package tui

const (
	TopicMonitorEvents = "dltctl.monitor"
	TopicUIMessages    = "dltctl.ui.msgs"
)

const (
	DomainTypePollStarted     = "monitor.poll.started"
	DomainTypeEventReceived   = "monitor.event.received"
	DomainTypeIdle            = "monitor.idle"
	DomainTypeMonitorFinished = "monitor.finished"
	DomainTypeStatusLine      = "cli.status"
)

const (
	UITypeEventAppend   = "tui.event.append"
	UITypeSessionStatus = "tui.session.status"
	UITypeFlowStatus    = "tui.flow.status"
	UITypeOutcome       = "tui.outcome"
)
