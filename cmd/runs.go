package cmd

import (
	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/trigger"
	"github.com/VoxDroid/pyship/internal/ui"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent release runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		r := history.NewRepository(dbConn)
		defer func() { _ = r.Close() }()

		runs, err := r.ListRuns(limit)
		if err != nil {
			return err
		}
		p := ui.New(cmd.OutOrStdout())
		if len(runs) == 0 {
			p.Faint("no runs recorded")
			return nil
		}
		rows := [][]string{{"ID", "STATUS", "PACKAGE", "VERSION", "ACTOR", "STARTED"}}
		for _, run := range runs {
			status := run.Status
			if run.DryRun {
				status += " (dry)"
			}
			rows = append(rows, []string{
				trigger.ShortID(run.ID),
				status,
				dash(run.Package),
				dash(run.Version),
				dash(run.Actor),
				ui.Ago(run.Started()),
			})
		}
		p.Table(rows)
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 for all)")
	rootCmd.AddCommand(runsCmd)
}
