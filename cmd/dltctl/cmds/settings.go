package cmds

import (
	"github.com/go-go-golems/dltctl/pkg/display"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit pipeline.json",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsUnsetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	var output outputFormat

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the local pipeline settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			s, err := settings.Load(opts.PipelineDir)
			if err != nil {
				return err
			}
			if output == outputYAML {
				return writeOutput(cmd.OutOrStdout(), output, s)
			}
			b, err := settings.Encode(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	addOutputFlag(cmd.Flags(), &output)
	return cmd
}

func patchSettings(cmd *cobra.Command, p settings.Patch) error {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return err
	}
	s, err := settings.Load(opts.PipelineDir)
	if err != nil {
		return err
	}
	next, err := settings.Apply(s, p)
	if err != nil {
		return err
	}
	if err := settings.ValidateClusters(next.Clusters); err != nil {
		return err
	}
	if err := settings.Save(opts.PipelineDir, next); err != nil {
		return err
	}
	display.NewPrinter(cmd.OutOrStdout()).Statusf("Updated %s", settings.Path(opts.PipelineDir))
	return nil
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Set values by dotted key, e.g. development=false or configuration.mode=dev",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := settings.Patch{Set: map[string]any{}}
			for _, a := range args {
				k, v, err := settings.ParseAssignment(a)
				if err != nil {
					return err
				}
				p.Set[k] = v
			}
			return patchSettings(cmd, p)
		},
	}
}

func newSettingsUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset key [key...]",
		Short: "Remove values by dotted key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchSettings(cmd, settings.Patch{Unset: args})
		},
	}
}
