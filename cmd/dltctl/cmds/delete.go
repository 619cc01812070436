package cmds

import (
	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var keepJob bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the pipeline and forget its id",
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

			if err := w.client.DeletePipeline(ctx, s.ID); err != nil && !api.IsNotFound(err) {
				return errors.Wrapf(err, "delete pipeline %s", s.ID)
			}
			w.printer.Statusf("Deleted pipeline %s", s.ID)

			if s.HasJob() && !keepJob {
				if err := w.client.DeleteJob(ctx, s.JobID); err != nil && !api.IsNotFound(err) {
					return errors.Wrapf(err, "delete job %s", s.JobID)
				}
				w.printer.Statusf("Deleted job %s", s.JobID)
				s.ClearJobID()
			}

			s.ID = ""
			return w.store().Save(s)
		},
	}

	cmd.Flags().BoolVar(&keepJob, "keep-job", false, "Keep the job bound to the pipeline")
	return cmd
}
