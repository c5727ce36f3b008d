package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/exporter"
)

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export run history to a portable SQLite file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		dst := ""
		if len(args) == 1 {
			dst = args[0]
		} else {
			dst = defaultExportPath(runID)
		}
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%s already exists", dst)
		}

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		if runID == "" {
			if err := exporter.ExportDatabase(dst); err != nil {
				return err
			}
			cmd.Printf("exported history to %s\n", dst)
			return nil
		}
		run, err := exporter.ExportRun(dbConn, runID, dst)
		if err != nil {
			return err
		}
		cmd.Printf("exported run %s to %s\n", run.ID, dst)
		return nil
	},
}

func defaultExportPath(runID string) string {
	date := time.Now().UTC().Format("2006-01-02")
	base := "pyship-" + date
	if runID != "" {
		base += "-" + runID
	}
	dst := filepath.Join(".", base+".db")
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			return dst
		}
		dst = filepath.Join(".", fmt.Sprintf("%s-%d.db", base, i))
	}
}

func init() {
	exportCmd.Flags().String("run", "", "Export only this run (id or unique prefix)")
	rootCmd.AddCommand(exportCmd)
}
