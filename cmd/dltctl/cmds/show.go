package cmds

import (
	"time"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type pipelineView struct {
	Pipeline api.Pipeline  `json:"pipeline" yaml:"pipeline"`
	Graph    *events.Graph `json:"graph,omitempty" yaml:"graph,omitempty"`
}

func newShowCmd() *cobra.Command {
	var output outputFormat
	var pipelineID string
	var noGraph bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the pipeline and its dataflow graph as the control plane sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			id := pipelineID
			if id == "" {
				s, err := w.loadCreated()
				if err != nil {
					return err
				}
				id = s.ID
			}
			p, err := w.client.GetPipeline(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "get pipeline %s", id)
			}

			view := pipelineView{Pipeline: *p}
			if !noGraph {
				evs, err := events.NewFetcher(w.client).FetchSince(ctx, id, time.Time{})
				if err != nil {
					return errors.Wrapf(err, "read graph of pipeline %s", id)
				}
				g := events.BuildGraph(evs)
				view.Graph = &g
			}
			return writeOutput(cmd.OutOrStdout(), output, view)
		},
	}

	addOutputFlag(cmd.Flags(), &output)
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Pipeline id (defaults to the id in pipeline.json)")
	cmd.Flags().BoolVar(&noGraph, "no-graph", false, "Skip reading the dataflow graph from the event log")
	return cmd
}
