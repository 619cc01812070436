package cmds

import (
	"context"

	"github.com/go-go-golems/dltctl/pkg/jobs"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (w *workspace) reconciler() *jobs.Reconciler {
	return &jobs.Reconciler{
		Jobs:      w.client,
		Pipelines: w.client,
		Store:     w.store(),
		Verifier: &jobs.Verifier{
			Runs:         w.client,
			PollInterval: w.profile.RunPollInterval,
			MaxAttempts:  w.profile.RunMaxAttempts,
		},
		Status: w.printer.Status,
	}
}

// startAndWatch starts an update and streams its events until it ends.
// Continuous pipelines never end, so they are watched only briefly.
func (w *workspace) startAndWatch(ctx context.Context, s *settings.PipelineSettings, fullRefresh, verbose bool) error {
	c, err := w.cursor(ctx, s.ID)
	if err != nil {
		return err
	}
	updateID, err := w.client.StartUpdate(ctx, s.ID, fullRefresh)
	if err != nil {
		return errors.Wrapf(err, "start pipeline %s", s.ID)
	}
	w.printer.Statusf("Started update %s of pipeline %s", updateID, s.ID)

	wo := watchOptions{Verbose: verbose}
	if s.Continuous {
		wo.MaxPolls = continuousMaxPolls
	}
	return w.watch(ctx, s.ID, c, wo)
}

func newStartCmd() *cobra.Command {
	var fullRefresh bool
	var asJob bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an update of the pipeline and watch its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			s, err := w.loadCreated()
			if err != nil {
				return err
			}

			if asJob {
				_, err := w.reconciler().RunAsJob(ctx, s, fullRefresh)
				return err
			}
			return w.startAndWatch(ctx, s, fullRefresh, verbose)
		},
	}

	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Reset and recompute all tables")
	cmd.Flags().BoolVar(&asJob, "as-job", false, "Run non-interactively through the job bound in pipeline.json")
	cmd.Flags().BoolVarP(&verbose, "verbose-events", "v", false, "Print every field of each event")
	return cmd
}
