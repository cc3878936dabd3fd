package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version number",
	Long:              `Display the current version of the positions CLI.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "positions version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "FIFO position reconstruction for trade journals")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
