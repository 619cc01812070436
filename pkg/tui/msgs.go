package tui

type EventLogAppendMsg struct {
	Entry EventLogEntry
}

type SessionStatusMsg struct {
	Status SessionStatus
}

type FlowStatusMsg struct {
	Flow FlowStatus
}

type OutcomeMsg struct {
	Outcome OutcomeView
}
