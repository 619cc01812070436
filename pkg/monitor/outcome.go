package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
)

type Kind string

const (
	KindSuccess          Kind = "success"
	KindFailure          Kind = "failure"
	KindTimeoutExhausted Kind = "timeout_exhausted"
)

// Outcome is what a finished Stream reports upward. TimeoutExhausted means the
// feed went quiet, not that the pipeline failed.
type Outcome struct {
	Kind       Kind
	PipelineID string
	Reason     string
	Detail     json.RawMessage
	Event      *events.Event
	EventsSeen int
	Polls      int
	Watermark  time.Time
}

func (o Outcome) Succeeded() bool { return o.Kind == KindSuccess }
func (o Outcome) Failed() bool    { return o.Kind == KindFailure }
func (o Outcome) Idle() bool      { return o.Kind == KindTimeoutExhausted }

func (o Outcome) String() string {
	switch o.Kind {
	case KindSuccess:
		return fmt.Sprintf("pipeline %s finished: %s", o.PipelineID, o.Reason)
	case KindFailure:
		return fmt.Sprintf("pipeline %s failed: %s", o.PipelineID, o.Reason)
	case KindTimeoutExhausted:
		return fmt.Sprintf("stopped watching pipeline %s: %s", o.PipelineID, o.Reason)
	default:
		return fmt.Sprintf("pipeline %s: monitoring interrupted", o.PipelineID)
	}
}

// FailureError turns a failure outcome into an error for command exit codes.
type FailureError struct {
	Outcome Outcome
}

func (e *FailureError) Error() string {
	if len(e.Outcome.Detail) == 0 {
		return e.Outcome.String()
	}
	return fmt.Sprintf("%s: %s", e.Outcome.String(), string(e.Outcome.Detail))
}

// Err returns a *FailureError for failure outcomes and nil otherwise.
func (o Outcome) Err() error {
	if o.Kind != KindFailure {
		return nil
	}
	return &FailureError{Outcome: o}
}
