package cmds

import (
	"github.com/spf13/cobra"
)

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newInitCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newStageCmd())
	root.AddCommand(newDeployCmd())

	root.AddCommand(newStartCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newSettingsCmd())
	return nil
}
