package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
)

type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelUnknown Level = "UNKNOWN"
)

// ParseLevel maps the vendor level string onto the known set. Anything else,
// including an empty string, is LevelUnknown.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelInfo:
		return LevelInfo
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelUnknown
	}
}

type Type string

const (
	TypeFlowProgress        Type = "flow_progress"
	TypeCreateUpdate        Type = "create_update"
	TypeUpdateProgress      Type = "update_progress"
	TypeFlowDefinition      Type = "flow_definition"
	TypeDatasetDefinition   Type = "dataset_definition"
	TypeGraphCreated        Type = "graph_created"
	TypeMaintenanceProgress Type = "maintenance_progress"
	TypeOther               Type = "other"
)

// KnownTypes lists the discriminants with a dedicated variant, in display order.
var KnownTypes = []Type{
	TypeFlowProgress,
	TypeCreateUpdate,
	TypeUpdateProgress,
	TypeFlowDefinition,
	TypeDatasetDefinition,
	TypeGraphCreated,
	TypeMaintenanceProgress,
}

type Origin struct {
	Cloud        string `json:"cloud,omitempty"`
	Region       string `json:"region,omitempty"`
	PipelineID   string `json:"pipeline_id,omitempty"`
	PipelineName string `json:"pipeline_name,omitempty"`
	UpdateID     string `json:"update_id,omitempty"`
	FlowID       string `json:"flow_id,omitempty"`
	FlowName     string `json:"flow_name,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// Event is a single record of the pipeline event feed. Details and Error keep
// their raw JSON since their shape depends on the event type.
type Event struct {
	ID            string
	Sequence      json.RawMessage
	Origin        Origin
	RawOrigin     json.RawMessage
	Timestamp     time.Time
	RawTimestamp  string
	Message       string
	Level         Level
	RawLevel      string
	Details       json.RawMessage
	Type          Type
	RawType       string
	Error         json.RawMessage
	MaturityLevel string
}

type wireEvent struct {
	ID            string          `json:"id"`
	Sequence      json.RawMessage `json:"sequence"`
	Origin        json.RawMessage `json:"origin"`
	Timestamp     string          `json:"timestamp"`
	Message       string          `json:"message"`
	Level         string          `json:"level"`
	Details       json.RawMessage `json:"details"`
	EventType     string          `json:"event_type"`
	Error         json.RawMessage `json:"error"`
	MaturityLevel string          `json:"maturity_level"`
}

// Parse decodes one raw event record. Missing fields are left empty; only
// malformed JSON is an error.
func Parse(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, errors.Wrap(err, "parse event json")
	}

	ev := Event{
		ID:            w.ID,
		Sequence:      w.Sequence,
		RawOrigin:     w.Origin,
		RawTimestamp:  w.Timestamp,
		Timestamp:     ParseTimestamp(w.Timestamp),
		Message:       w.Message,
		RawLevel:      w.Level,
		Level:         ParseLevel(w.Level),
		Details:       w.Details,
		RawType:       w.EventType,
		Type:          parseType(w.EventType),
		Error:         w.Error,
		MaturityLevel: w.MaturityLevel,
	}
	if isPopulated(w.Origin) {
		// A malformed origin is not worth dropping the event for.
		_ = json.Unmarshal(w.Origin, &ev.Origin)
	}
	return ev, nil
}

// ParseString is Parse for the events_json wire form, where each event is a
// JSON document embedded as a string.
func ParseString(raw string) (Event, error) {
	return Parse([]byte(raw))
}

func parseType(s string) Type {
	t := Type(s)
	for _, k := range KnownTypes {
		if t == k {
			return t
		}
	}
	return TypeOther
}

// ParseTimestamp accepts RFC 3339 timestamps and falls back to dateparse for
// the odd formats the feed has produced. Unparsable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// TimestampLayout is how the feed writes timestamps: UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HasError reports whether the error payload is present and non-empty.
func (e Event) HasError() bool {
	return isPopulated(e.Error)
}

func (e Event) TypedEvent() TypedEvent {
	return Classify(e)
}

// TypeName returns the vendor type string, falling back to the discriminant.
func (e Event) TypeName() string {
	if e.RawType != "" {
		return e.RawType
	}
	return string(e.Type)
}

func isPopulated(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "null", "{}", "[]", `""`:
		return false
	}
	return true
}
