package events

import "strings"

type Signal int

const (
	SignalNone Signal = iota
	SignalSuccess
	SignalFailure
	SignalCanceled
)

func (s Signal) String() string {
	switch s {
	case SignalSuccess:
		return "success"
	case SignalFailure:
		return "failure"
	case SignalCanceled:
		return "canceled"
	default:
		return "none"
	}
}

// Update-level phrases as they appear in the message of update_progress
// events, e.g. "Update 175b9d is FAILED.".
var (
	failurePhrases  = []string{"is FAILED", "has failed"}
	canceledPhrases = []string{"is CANCELED"}
	successPhrases  = []string{"is COMPLETED"}
)

// TerminalSignal reports whether an event ends the update it belongs to. A
// populated error payload is always a failure, whatever the event type.
func TerminalSignal(e Event) Signal {
	if e.HasError() {
		return SignalFailure
	}
	if up, ok := Classify(e).(UpdateProgress); ok {
		switch up.State {
		case "FAILED":
			return SignalFailure
		case "CANCELED":
			return SignalCanceled
		case "COMPLETED":
			return SignalSuccess
		}
	}
	switch {
	case containsAny(e.Message, failurePhrases):
		return SignalFailure
	case containsAny(e.Message, canceledPhrases):
		return SignalCanceled
	case e.Type == TypeUpdateProgress && containsAny(e.Message, successPhrases):
		return SignalSuccess
	}
	return SignalNone
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
