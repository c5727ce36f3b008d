package cmd

import (
	"fmt"

	"github.com/VoxDroid/pyship/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pyship %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
