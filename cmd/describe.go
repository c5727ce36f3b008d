package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/ui"
)

var describeCmd = &cobra.Command{
	Use:   "describe <run-id>",
	Short: "Show details for a release run",
	Long:  "Show a run's stages and artifacts. The id may be any unique prefix.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		r := history.NewRepository(dbConn)
		defer func() { _ = r.Close() }()

		run, err := r.GetRun(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
		_, _ = fmt.Fprintf(out, "Workflow: %s\n", run.Workflow)
		_, _ = fmt.Fprintf(out, "Status: %s\n", run.Status)
		if run.DryRun {
			_, _ = fmt.Fprintln(out, "Dry run: yes")
		}
		_, _ = fmt.Fprintf(out, "Trigger: %s by %s\n", run.Source, dash(run.Actor))
		_, _ = fmt.Fprintf(out, "Started: %s (%s)\n", run.StartedAt, ui.Ago(run.Started()))
		if d := run.Duration(); d > 0 {
			_, _ = fmt.Fprintf(out, "Duration: %s\n", d.Round(time.Millisecond))
		}
		if run.Revision != "" {
			_, _ = fmt.Fprintf(out, "Revision: %s\n", run.Revision)
		}
		if run.Runtime != "" {
			_, _ = fmt.Fprintf(out, "Python: %s\n", run.Runtime)
		}
		if run.Package != "" {
			_, _ = fmt.Fprintf(out, "Package: %s %s\n", run.Package, dash(run.Version))
		}
		if run.IndexURL != "" {
			_, _ = fmt.Fprintf(out, "Index: %s\n", run.IndexURL)
		}
		if run.Error != "" {
			_, _ = fmt.Fprintf(out, "Error: %s\n", run.Error)
		}

		_, _ = fmt.Fprintln(out, "Stages:")
		for _, s := range run.Stages {
			line := fmt.Sprintf("  %d: %-8s %s", s.Position+1, s.Name, s.Status)
			if s.Error != "" {
				line += ": " + s.Error
			}
			_, _ = fmt.Fprintln(out, line)
		}
		if len(run.Artifacts) > 0 {
			_, _ = fmt.Fprintln(out, "Artifacts:")
			for _, a := range run.Artifacts {
				up := ""
				if a.Uploaded {
					up = " uploaded"
				}
				_, _ = fmt.Fprintf(out, "  %s %s %s sha256:%s%s\n", a.Name, a.Kind, ui.FormatSize(a.Size), a.SHA256, up)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
