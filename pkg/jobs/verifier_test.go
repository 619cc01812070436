package jobs

import (
	"context"
	"testing"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type scriptedRuns struct {
	states []api.RunState
	err    error
	calls  int
}

var _ RunSource = (*scriptedRuns)(nil)

func (s *scriptedRuns) GetRunState(_ context.Context, _ int64) (api.RunState, error) {
	s.calls++
	if s.err != nil {
		return api.RunState{}, s.err
	}
	if len(s.states) == 0 {
		return api.RunState{LifeCycleState: api.StatePending}, nil
	}
	st := s.states[0]
	s.states = s.states[1:]
	return st, nil
}

func runStates(states ...api.LifeCycleState) *scriptedRuns {
	out := &scriptedRuns{}
	for _, s := range states {
		out.states = append(out.states, api.RunState{LifeCycleState: s, StateMessage: "scripted"})
	}
	return out
}

func TestEnsureRunStarted_QuickStart(t *testing.T) {
	runs := runStates(api.StateRunning, api.StateRunning)
	v := &Verifier{Runs: runs, MaxAttempts: 5}

	require.NoError(t, v.EnsureRunStarted(context.Background(), 123))
	require.Equal(t, 2, runs.calls)
}

func TestEnsureRunStarted_SlowStart(t *testing.T) {
	runs := runStates(api.StatePending, api.StatePending, api.StateRunning, api.StateRunning)
	v := &Verifier{Runs: runs, MaxAttempts: 5}

	require.NoError(t, v.EnsureRunStarted(context.Background(), 123))
	require.Equal(t, 4, runs.calls)
}

func TestEnsureRunStarted_FailsAfterRunning(t *testing.T) {
	for _, final := range []api.LifeCycleState{api.StateFailed, "ERROR", api.StateSkipped, api.StateInternalError} {
		t.Run(string(final), func(t *testing.T) {
			runs := runStates(api.StatePending, api.StatePending, api.StateRunning, final)
			v := &Verifier{Runs: runs, MaxAttempts: 5}

			err := v.EnsureRunStarted(context.Background(), 123)
			var rf *RunFailedError
			require.True(t, errors.As(err, &rf))
			require.Equal(t, final, rf.State)
			require.Equal(t, int64(123), rf.RunID)
			require.Equal(t, "scripted", rf.Message)
			require.Equal(t, 4, runs.calls)
		})
	}
}

func TestEnsureRunStarted_FailureIsNotRetried(t *testing.T) {
	runs := runStates(api.StateFailed, api.StateRunning, api.StateRunning)
	v := &Verifier{Runs: runs, MaxAttempts: 5}

	require.Error(t, v.EnsureRunStarted(context.Background(), 1))
	require.Equal(t, 1, runs.calls)
}

func TestEnsureRunStarted_TimeoutIsDistinctFromFailure(t *testing.T) {
	runs := runStates()
	v := &Verifier{Runs: runs, MaxAttempts: 3}

	err := v.EnsureRunStarted(context.Background(), 7)
	var timeout *RunStartTimeoutError
	require.True(t, errors.As(err, &timeout))
	require.Equal(t, api.StatePending, timeout.State)
	require.Equal(t, 3, runs.calls)

	var rf *RunFailedError
	require.False(t, errors.As(err, &rf))
}

func TestEnsureRunStarted_TerminatedBetweenPolls(t *testing.T) {
	runs := &scriptedRuns{states: []api.RunState{
		{LifeCycleState: api.StatePending},
		{LifeCycleState: api.StateTerminated, ResultState: "SUCCESS"},
	}}
	v := &Verifier{Runs: runs, MaxAttempts: 5}
	require.NoError(t, v.EnsureRunStarted(context.Background(), 1))
	require.Equal(t, 2, runs.calls)

	runs = &scriptedRuns{states: []api.RunState{
		{LifeCycleState: api.StateTerminated, ResultState: "FAILED", StateMessage: "pipeline failed"},
	}}
	v = &Verifier{Runs: runs, MaxAttempts: 5}
	err := v.EnsureRunStarted(context.Background(), 1)
	var rf *RunFailedError
	require.True(t, errors.As(err, &rf))
	require.Equal(t, "FAILED", rf.ResultState)
	require.Contains(t, err.Error(), "pipeline failed")
}

func TestEnsureRunStarted_QueuedCountsAsWaiting(t *testing.T) {
	runs := runStates(api.StateQueued, api.StateBlocked, api.StateRunning, api.StateRunning)
	v := &Verifier{Runs: runs, MaxAttempts: 5}
	require.NoError(t, v.EnsureRunStarted(context.Background(), 1))
	require.Equal(t, 4, runs.calls)
}

func TestEnsureRunStarted_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	v := &Verifier{Runs: &scriptedRuns{err: boom}, MaxAttempts: 5}

	err := v.EnsureRunStarted(context.Background(), 1)
	require.Equal(t, boom, errors.Cause(err))
}

func TestEnsureRunStarted_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := &Verifier{Runs: runStates(api.StatePending), MaxAttempts: 5}

	require.ErrorIs(t, v.EnsureRunStarted(ctx, 1), context.Canceled)
}
