package tui

import (
	"time"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Domain payloads, published by BusSink.

type PollObserved struct {
	At         time.Time `json:"at"`
	PipelineID string    `json:"pipeline_id"`
	Poll       int       `json:"poll"`
	Idle       int       `json:"idle"`
	MaxIdle    int       `json:"max_idle"`
	Watermark  time.Time `json:"watermark"`
}

type EventObserved struct {
	At       time.Time `json:"at"`
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Level    string    `json:"level"`
	Message  string    `json:"message"`
	Flow     string    `json:"flow,omitempty"`
	State    string    `json:"state,omitempty"`
	HasError bool      `json:"has_error,omitempty"`
	// Poll is the session snapshot at the time the event was shown.
	Poll PollObserved `json:"poll"`
}

type MonitorFinished struct {
	At         time.Time `json:"at"`
	PipelineID string    `json:"pipeline_id"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	EventsSeen int       `json:"events_seen"`
	Polls      int       `json:"polls"`
}

type StatusLine struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// UI payloads, produced by the transformer.

type EventLogEntry struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Level  LogLevel  `json:"level"`
	Text   string    `json:"text"`
}

type SessionStatus struct {
	PipelineID string    `json:"pipeline_id"`
	Poll       int       `json:"poll"`
	Idle       int       `json:"idle"`
	MaxIdle    int       `json:"max_idle"`
	Watermark  time.Time `json:"watermark"`
	// State is the latest update state seen, e.g. RUNNING.
	State string `json:"state,omitempty"`
}

type FlowStatus struct {
	At     time.Time `json:"at"`
	Flow   string    `json:"flow"`
	Status string    `json:"status"`
}

type OutcomeView struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	EventsSeen int    `json:"events_seen"`
	Polls      int    `json:"polls"`
}
