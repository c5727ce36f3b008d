package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/logging"
	"github.com/VoxDroid/pyship/internal/release"
	"github.com/VoxDroid/pyship/internal/server"
	"github.com/VoxDroid/pyship/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept manual dispatches over HTTP",
	Long: "Serve POST /dispatch, GET /runs, GET /runs/{id}, GET /healthz and\n" +
		"GET /metrics. Runs execute one at a time; a dispatch while a run is\n" +
		"active is answered with 409.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		wfFlag, _ := cmd.Flags().GetString("workflow")
		dirFlag, _ := cmd.Flags().GetString("dir")
		force, _ := cmd.Flags().GetBool("force")
		verbose, _ := cmd.Flags().GetBool("verbose")

		dir, err := projectDir(dirFlag)
		if err != nil {
			return err
		}
		// fail fast on a broken workflow; it is reloaded on every dispatch
		if _, _, err := loadWorkflow(dir, wfFlag); err != nil {
			return err
		}
		store, err := openSecrets()
		if err != nil {
			return err
		}
		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		repo := history.NewRepository(dbConn)
		defer func() { _ = repo.Close() }()

		log := logging.L()
		if n, err := repo.AbandonRunning("interrupted: pyship exited during the run", time.Now()); err != nil {
			log.Warn().Err(err).Msg("could not clean up stale runs")
		} else if n > 0 {
			log.Warn().Int64("runs", n).Msg("marked stale runs as failed")
		}

		runner, err := release.NewRunner(release.Options{
			Exec:    newExecutor(false, verbose),
			DryExec: newExecutor(true, true),
			Inspect: newExecutor(false, verbose),
			Secrets: store,
			History: repo,
			Log:     log,
		})
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Runner:  runner,
			History: repo,
			LoadWorkflow: func() (*workflow.Workflow, error) {
				wf, _, err := loadWorkflow(dir, wfFlag)
				return wf, err
			},
			Dir:    dir,
			Force:  force,
			Log:    log,
			Output: cmd.OutOrStdout(),
		})

		ctx, cancel := signalContext(cmd)
		defer cancel()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringP("workflow", "w", "", "Workflow file (default <dir>/.pyship.yaml)")
	serveCmd.Flags().StringP("dir", "d", "", "Project directory (default current directory)")
	serveCmd.Flags().Bool("force", false, "Override safety checks on workflow commands")
	rootCmd.AddCommand(serveCmd)
}
