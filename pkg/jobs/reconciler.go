package jobs

import (
	"context"
	"fmt"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type JobsAPI interface {
	CreateJob(ctx context.Context, js api.JobSettings) (string, error)
	RunNow(ctx context.Context, jobID string, fullRefresh bool, idempotencyToken string) (int64, error)
}

type PipelineEditor interface {
	EditPipeline(ctx context.Context, id string, spec api.PipelineSpec) error
}

type SettingsStore interface {
	Save(s *settings.PipelineSettings) error
}

// StatusFunc receives the user-facing progress lines.
type StatusFunc func(msg string)

// Reconciler keeps the job bound in the pipeline settings alive and runs the
// pipeline through it.
type Reconciler struct {
	Jobs      JobsAPI
	Pipelines PipelineEditor
	Store     SettingsStore
	Verifier  *Verifier
	Status    StatusFunc
	// NewToken makes idempotency tokens for run-now; defaults to uuid.
	NewToken func() string
}

type RunResult struct {
	JobID      string
	RunID      int64
	CreatedJob bool
	// Recreated is set when the bound job had vanished and was replaced.
	Recreated bool
	StaleJob  string
}

func (r *Reconciler) status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.Status != nil {
		r.Status(msg)
		return
	}
	log.Info().Msg(msg)
}

func (r *Reconciler) token() string {
	if r.NewToken != nil {
		return r.NewToken()
	}
	return uuid.NewString()
}

// EnsureJob creates and binds a job running the pipeline with the given
// refresh mode when the settings have none. An existing binding is trusted as
// is; RunAsJob deals with bindings that went stale.
func (r *Reconciler) EnsureJob(ctx context.Context, s *settings.PipelineSettings, fullRefresh bool) (bool, error) {
	if s == nil || s.ID == "" {
		return false, errors.New("pipeline has no id, create it before running it as a job")
	}
	if s.HasJob() {
		return false, nil
	}

	r.status("Detected first time running as job. Creating job")
	name := s.Name
	if name == "" {
		name = s.ID
	}
	jobID, err := r.Jobs.CreateJob(ctx, api.PipelineJob(name, s.ID, fullRefresh))
	if err != nil {
		return false, errors.Wrap(err, "create job")
	}
	s.SetJobID(jobID)
	if err := r.Store.Save(s); err != nil {
		return true, errors.Wrap(err, "save job binding")
	}
	r.status("Created job %s", jobID)

	if err := r.Pipelines.EditPipeline(ctx, s.ID, s.Spec()); err != nil {
		return true, errors.Wrapf(err, "record job %s on pipeline %s", jobID, s.ID)
	}
	return true, nil
}

// RunAsJob triggers the bound job, replacing it once if it no longer exists,
// and waits until the run is confirmed started.
func (r *Reconciler) RunAsJob(ctx context.Context, s *settings.PipelineSettings, fullRefresh bool) (RunResult, error) {
	r.status("Running non-interactively as a job")

	var res RunResult
	const maxTriggers = 2
	for attempt := 1; ; attempt++ {
		created, err := r.EnsureJob(ctx, s, fullRefresh)
		if err != nil {
			return res, err
		}
		res.CreatedJob = res.CreatedJob || created

		r.status("Starting job %s", s.JobID)
		runID, err := r.Jobs.RunNow(ctx, s.JobID, fullRefresh, r.token())
		if err != nil {
			if api.IsNotFound(err) && attempt < maxTriggers {
				r.status("Job %s from settings does not exist. Creating a new job", s.JobID)
				res.Recreated = true
				res.StaleJob = s.JobID
				s.ClearJobID()
				if err := r.Store.Save(s); err != nil {
					return res, errors.Wrap(err, "clear stale job binding")
				}
				continue
			}
			return res, errors.Wrapf(err, "run job %s", s.JobID)
		}

		res.JobID = s.JobID
		res.RunID = runID
		break
	}

	if r.Verifier != nil {
		r.status("Watching run id: %d to ensure no immediate failures", res.RunID)
		if err := r.Verifier.EnsureRunStarted(ctx, res.RunID); err != nil {
			return res, err
		}
	}
	r.status("Run started. Job ID: %s, Run ID: %d", res.JobID, res.RunID)
	return res, nil
}
