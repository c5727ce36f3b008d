package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/project"
	"github.com/VoxDroid/pyship/internal/provision"
	"github.com/VoxDroid/pyship/internal/release"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workflow file and project metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		wfFlag, _ := cmd.Flags().GetString("workflow")
		dirFlag, _ := cmd.Flags().GetString("dir")
		dir, err := projectDir(dirFlag)
		if err != nil {
			return err
		}
		wf, path, err := loadWorkflow(dir, wfFlag)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if path == "" {
			_, _ = fmt.Fprintln(out, "workflow: defaults (no .pyship.yaml)")
		} else {
			_, _ = fmt.Fprintf(out, "workflow: %s\n", path)
		}
		if err := release.CheckCommands(wf); err != nil {
			return err
		}

		meta, err := project.ReadMetadata(dir)
		switch {
		case errors.Is(err, project.ErrNoMetadata):
			return err
		case err != nil:
			return fmt.Errorf("project metadata: %w", err)
		}
		name, version := meta.Name, meta.Version
		if name == "" {
			name = "(from " + meta.Source + ")"
		}
		if meta.DynamicVersion {
			version = "dynamic"
		} else if version == "" {
			version = "(unknown until built)"
		}
		_, _ = fmt.Fprintf(out, "package: %s %s\n", name, version)
		if expected := project.ExpectedNames(meta); expected != nil {
			_, _ = fmt.Fprintf(out, "expected artifacts: %s\n", strings.Join(expected, ", "))
		}
		sel, err := provision.ParseSelector(wf.Runtime.Python)
		if err != nil {
			return err
		}
		if sel.Exact() {
			_, _ = fmt.Fprintf(out, "python: %s\n", wf.Runtime.Python)
		} else {
			_, _ = fmt.Fprintf(out, "python: %s (newest match; the resolved version is recorded on each run)\n", wf.Runtime.Python)
		}
		_, _ = fmt.Fprintf(out, "token secret: %s\n", wf.Publish.TokenSecret)
		_, _ = fmt.Fprintln(out, "ok")
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("workflow", "w", "", "Workflow file (default <dir>/.pyship.yaml)")
	validateCmd.Flags().StringP("dir", "d", "", "Project directory (default current directory)")
	rootCmd.AddCommand(validateCmd)
}
