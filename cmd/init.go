package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/config"
	"github.com/VoxDroid/pyship/internal/workflow"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default workflow file",
	Long:  "Write the default release workflow to .pyship.yaml in the project directory.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dirFlag, _ := cmd.Flags().GetString("dir")
		force, _ := cmd.Flags().GetBool("force")
		dir, err := projectDir(dirFlag)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, config.WorkflowFile)
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		data, err := workflow.Marshal(workflow.Default())
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("dir", "d", "", "Project directory (default current directory)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing workflow file")
	rootCmd.AddCommand(initCmd)
}
