package cmds

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// stopAndWatch stops the pipeline and waits for its update to be canceled.
func (w *workspace) stopAndWatch(ctx context.Context, pipelineID string, verbose bool) error {
	c, err := w.cursor(ctx, pipelineID)
	if err != nil {
		return err
	}
	if err := w.client.StopPipeline(ctx, pipelineID); err != nil {
		return errors.Wrapf(err, "stop pipeline %s", pipelineID)
	}
	w.printer.Statusf("Stopping pipeline %s", pipelineID)
	return w.watch(ctx, pipelineID, c, watchOptions{
		MaxPolls:        stopMaxPolls,
		CancelIsSuccess: true,
		Verbose:         verbose,
	})
}

func newStopCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running pipeline",
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
			p, err := w.client.GetPipeline(ctx, s.ID)
			if err != nil {
				return errors.Wrapf(err, "get pipeline %s", s.ID)
			}
			if !p.IsRunning() {
				w.printer.Statusf("Pipeline %s is not running", s.ID)
				return nil
			}
			return w.stopAndWatch(ctx, s.ID, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose-events", "v", false, "Print every field of each event")
	return cmd
}
