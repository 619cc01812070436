package cmds

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var fullRefresh bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Stage sources, create or update the pipeline, start it and watch its events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			s, err := w.loadSettings()
			if err != nil {
				return err
			}
			if err := w.stage(ctx, s); err != nil {
				return err
			}

			if s.ID == "" {
				if err := w.createPipeline(ctx, s); err != nil {
					return err
				}
			} else {
				p, err := w.client.GetPipeline(ctx, s.ID)
				if err != nil {
					return errors.Wrapf(err, "get pipeline %s", s.ID)
				}
				if p.IsRunning() {
					w.printer.Statusf("Stopping running pipeline %s before editing it", s.ID)
					if err := w.stopAndWatch(ctx, s.ID, false); err != nil {
						return err
					}
				}
				if err := w.client.EditPipeline(ctx, s.ID, s.Spec()); err != nil {
					return errors.Wrapf(err, "edit pipeline %s", s.ID)
				}
				w.printer.Statusf("Updated pipeline %s", s.ID)
			}

			return w.startAndWatch(ctx, s, fullRefresh, verbose)
		},
	}

	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Reset and recompute all tables")
	cmd.Flags().BoolVarP(&verbose, "verbose-events", "v", false, "Print every field of each event")
	return cmd
}
