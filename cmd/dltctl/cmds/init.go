package cmds

import (
	"encoding/json"
	"os"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/display"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type initOptions struct {
	Name          string
	Edition       string
	Channel       string
	Continuous    bool
	Development   bool
	Photon        bool
	Storage       string
	Target        string
	Configuration string
	Clusters      []string
	Force         bool
	OutputDir     string
}

func (o initOptions) build() (*settings.PipelineSettings, error) {
	s := settings.New(o.Name)
	s.Edition = o.Edition
	s.Channel = o.Channel
	s.Continuous = o.Continuous
	s.Development = o.Development
	s.Photon = o.Photon
	s.Storage = o.Storage
	s.Target = o.Target

	if o.Configuration != "" {
		if err := json.Unmarshal([]byte(o.Configuration), &s.Configuration); err != nil {
			return nil, errors.Wrap(err, "parse --configuration as a JSON object of strings")
		}
	}
	for _, raw := range o.Clusters {
		var c api.Cluster
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, errors.Wrapf(err, "parse --cluster %s", raw)
		}
		s.Clusters = append(s.Clusters, c)
	}
	if err := settings.ValidateClusters(s.Clusters); err != nil {
		return nil, err
	}
	return s, nil
}

func newInitCmd() *cobra.Command {
	var o initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a pipeline.json for a new pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := o.OutputDir
			if dir == "" {
				opts, err := getRootOptions(cmd)
				if err != nil {
					return err
				}
				dir = opts.PipelineDir
			}

			if !o.Force {
				if _, err := os.Stat(settings.Path(dir)); err == nil {
					return errors.Errorf("%s already exists, use --force to overwrite", settings.Path(dir))
				}
			}

			s, err := o.build()
			if err != nil {
				return err
			}
			if err := settings.Save(dir, s); err != nil {
				return err
			}
			display.NewPrinter(cmd.OutOrStdout()).Statusf("Wrote %s", settings.Path(dir))
			return nil
		},
	}

	cmd.Flags().StringVar(&o.Name, "name", "", "Pipeline name")
	cmd.Flags().StringVar(&o.Edition, "edition", settings.DefaultEdition, "Product edition (core|pro|advanced)")
	cmd.Flags().StringVar(&o.Channel, "channel", settings.DefaultChannel, "Runtime channel (CURRENT|PREVIEW)")
	cmd.Flags().BoolVar(&o.Continuous, "continuous", false, "Run the pipeline continuously")
	cmd.Flags().BoolVar(&o.Development, "development", true, "Run in development mode")
	cmd.Flags().BoolVar(&o.Photon, "photon", false, "Use the Photon runtime")
	cmd.Flags().StringVar(&o.Storage, "storage", "", "Storage location for pipeline output")
	cmd.Flags().StringVar(&o.Target, "target", "", "Target schema for published tables")
	cmd.Flags().StringVar(&o.Configuration, "configuration", "", "Pipeline configuration as a JSON object")
	cmd.Flags().StringArrayVar(&o.Clusters, "cluster", nil, "Cluster spec as JSON (repeatable, labels must be unique)")
	cmd.Flags().BoolVar(&o.Force, "force", false, "Overwrite an existing pipeline.json")
	cmd.Flags().StringVar(&o.OutputDir, "output-dir", "", "Directory to write pipeline.json to (defaults to --pipeline-config)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
