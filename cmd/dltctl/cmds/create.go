package cmds

import (
	"context"

	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// createPipeline creates the remote pipeline for s and records its id.
func (w *workspace) createPipeline(ctx context.Context, s *settings.PipelineSettings) error {
	if s.ID != "" {
		return errors.Errorf("pipeline already created with id %s", s.ID)
	}
	if s.Name == "" {
		return errors.New("pipeline settings have no name")
	}
	existing, err := w.client.FindPipelineByName(ctx, s.Name)
	if err != nil {
		return err
	}
	if existing != "" {
		return errors.Errorf("a pipeline named %q already exists with id %s", s.Name, existing)
	}

	if len(s.Libraries) == 0 && len(s.PipelineFiles) == 0 {
		if err := w.stage(ctx, s); err != nil {
			return err
		}
	}

	id, err := w.client.CreatePipeline(ctx, s.Spec())
	if err != nil {
		return errors.Wrap(err, "create pipeline")
	}
	s.ID = id
	if err := w.store().Save(s); err != nil {
		return err
	}
	w.printer.Statusf("Created pipeline %s with id %s", s.Name, id)

	// a continuous pipeline starts on its own once created
	if s.Continuous {
		if err := w.client.StopPipeline(ctx, id); err != nil {
			return errors.Wrapf(err, "stop continuous pipeline %s", id)
		}
		w.printer.Statusf("Stopped continuous pipeline %s, start it with `dltctl start`", id)
	}
	return nil
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the pipeline described by pipeline.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			s, err := w.loadSettings()
			if err != nil {
				return err
			}
			return w.createPipeline(cmd.Context(), s)
		},
	}
}
