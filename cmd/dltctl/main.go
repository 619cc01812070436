package main

import (
	"github.com/go-go-golems/dltctl/cmd/dltctl/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "dltctl",
	Short:        "dltctl deploys, runs and watches Delta Live Tables pipelines",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromCobra(cmd)
	},
}

func main() {
	// a local .env may carry DATABRICKS_HOST / DATABRICKS_TOKEN
	_ = godotenv.Load()

	cobra.CheckErr(logging.AddLoggingLayerToRootCommand(rootCmd, "dltctl"))
	cmds.AddRootFlags(rootCmd)
	cobra.CheckErr(cmds.AddCommands(rootCmd))
	cobra.CheckErr(rootCmd.Execute())
}
