package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRunPollInterval = 5 * time.Second
	DefaultRunMaxAttempts  = 60
)

type RunSource interface {
	GetRunState(ctx context.Context, runID int64) (api.RunState, error)
}

// RunFailedError means the run reached a state it will not recover from.
type RunFailedError struct {
	RunID       int64
	State       api.LifeCycleState
	ResultState string
	Message     string
}

func (e *RunFailedError) Error() string {
	s := fmt.Sprintf("run %d failed to start: %s", e.RunID, e.State)
	if e.ResultState != "" {
		s += "/" + e.ResultState
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

// RunStartTimeoutError means the run was still waiting when attempts ran out.
type RunStartTimeoutError struct {
	RunID    int64
	Attempts int
	State    api.LifeCycleState
}

func (e *RunStartTimeoutError) Error() string {
	return fmt.Sprintf("run %d still %s after %d polls", e.RunID, e.State, e.Attempts)
}

type phase int

const (
	phaseWaiting phase = iota
	phaseRunning
	phaseFinished
	phaseFailed
)

var failedResults = map[string]bool{
	"FAILED":         true,
	"TIMEDOUT":       true,
	"CANCELED":       true,
	"INTERNAL_ERROR": true,
}

func classifyRun(st api.RunState) phase {
	switch st.LifeCycleState {
	case api.StatePending, api.StateQueued, api.StateBlocked, api.StateWaitingForRetry:
		return phaseWaiting
	case api.StateRunning:
		return phaseRunning
	case api.StateTerminating, api.StateTerminated:
		if failedResults[st.ResultState] {
			return phaseFailed
		}
		return phaseFinished
	default:
		// FAILED, INTERNAL_ERROR, SKIPPED and anything unrecognized
		return phaseFailed
	}
}

// Verifier confirms that a freshly triggered run actually got going.
type Verifier struct {
	Runs         RunSource
	PollInterval time.Duration
	MaxAttempts  int
}

// EnsureRunStarted polls the run until it has been seen RUNNING on two
// consecutive polls. Waiting states are polled up to MaxAttempts times; any
// failed or unknown state ends the check immediately.
func (v *Verifier) EnsureRunStarted(ctx context.Context, runID int64) error {
	if v.Runs == nil {
		return errors.New("verifier has no run source")
	}
	maxAttempts := v.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRunMaxAttempts
	}

	sawRunning := false
	waiting := 0
	for poll := 1; ; poll++ {
		st, err := v.Runs.GetRunState(ctx, runID)
		if err != nil {
			return errors.Wrapf(err, "get state of run %d", runID)
		}
		log.Debug().Int64("run", runID).Int("poll", poll).
			Str("state", string(st.LifeCycleState)).Str("message", st.StateMessage).
			Msg("run state")

		switch classifyRun(st) {
		case phaseFailed:
			return &RunFailedError{RunID: runID, State: st.LifeCycleState, ResultState: st.ResultState, Message: st.StateMessage}
		case phaseFinished:
			return nil
		case phaseRunning:
			if sawRunning {
				return nil
			}
			sawRunning = true
		case phaseWaiting:
			sawRunning = false
			waiting++
			if waiting >= maxAttempts {
				return &RunStartTimeoutError{RunID: runID, Attempts: poll, State: st.LifeCycleState}
			}
		}

		if err := sleep(ctx, v.PollInterval); err != nil {
			return err
		}
	}
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
