package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type LifeCycleState string

const (
	StatePending         LifeCycleState = "PENDING"
	StateQueued          LifeCycleState = "QUEUED"
	StateBlocked         LifeCycleState = "BLOCKED"
	StateWaitingForRetry LifeCycleState = "WAITING_FOR_RETRY"
	StateRunning         LifeCycleState = "RUNNING"
	StateTerminating     LifeCycleState = "TERMINATING"
	StateTerminated      LifeCycleState = "TERMINATED"
	StateSkipped         LifeCycleState = "SKIPPED"
	StateInternalError   LifeCycleState = "INTERNAL_ERROR"
	StateFailed          LifeCycleState = "FAILED"
)

type RunState struct {
	LifeCycleState LifeCycleState `json:"life_cycle_state"`
	ResultState    string         `json:"result_state,omitempty"`
	StateMessage   string         `json:"state_message,omitempty"`
}

type PipelineTask struct {
	PipelineID  string `json:"pipeline_id"`
	FullRefresh bool   `json:"full_refresh,omitempty"`
}

type JobTask struct {
	TaskKey      string        `json:"task_key"`
	PipelineTask *PipelineTask `json:"pipeline_task,omitempty"`
}

type JobSettings struct {
	Name              string    `json:"name"`
	Tasks             []JobTask `json:"tasks"`
	MaxConcurrentRuns int       `json:"max_concurrent_runs,omitempty"`
}

// PipelineJob is the single-task job that runs one pipeline.
func PipelineJob(name, pipelineID string, fullRefresh bool) JobSettings {
	return JobSettings{
		Name: name,
		Tasks: []JobTask{{
			TaskKey:      "pipeline",
			PipelineTask: &PipelineTask{PipelineID: pipelineID, FullRefresh: fullRefresh},
		}},
		MaxConcurrentRuns: 1,
	}
}

// jobIDValue sends numeric ids as JSON numbers and anything else verbatim.
func jobIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func idString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		return unq
	}
	return s
}

func (c *Client) CreateJob(ctx context.Context, js JobSettings) (string, error) {
	var resp struct {
		JobID json.RawMessage `json:"job_id"`
	}
	if err := c.post(ctx, "/api/2.1/jobs/create", js, &resp); err != nil {
		return "", err
	}
	id := idString(resp.JobID)
	if id == "" || id == "null" {
		return "", errors.New("create job: response has no job_id")
	}
	return id, nil
}

// RunNow triggers a run of the job. The token makes retries of the same
// request idempotent on the server side.
func (c *Client) RunNow(ctx context.Context, jobID string, fullRefresh bool, idempotencyToken string) (int64, error) {
	body := map[string]any{
		"job_id":          jobIDValue(jobID),
		"pipeline_params": map[string]any{"full_refresh": fullRefresh},
	}
	if idempotencyToken != "" {
		body["idempotency_token"] = idempotencyToken
	}
	var resp struct {
		RunID int64 `json:"run_id"`
	}
	if err := c.post(ctx, "/api/2.1/jobs/run-now", body, &resp); err != nil {
		return 0, err
	}
	return resp.RunID, nil
}

func (c *Client) GetRunState(ctx context.Context, runID int64) (RunState, error) {
	q := url.Values{}
	q.Set("run_id", strconv.FormatInt(runID, 10))
	var resp struct {
		State RunState `json:"state"`
	}
	if err := c.get(ctx, "/api/2.1/jobs/runs/get", q, &resp); err != nil {
		return RunState{}, err
	}
	return resp.State, nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.post(ctx, "/api/2.1/jobs/delete", map[string]any{"job_id": jobIDValue(jobID)}, nil)
}
