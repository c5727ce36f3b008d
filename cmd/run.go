package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/db"
	"github.com/VoxDroid/pyship/internal/history"
	"github.com/VoxDroid/pyship/internal/logging"
	"github.com/VoxDroid/pyship/internal/release"
	"github.com/VoxDroid/pyship/internal/trigger"
	"github.com/VoxDroid/pyship/internal/user"
	"github.com/VoxDroid/pyship/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the package and publish it",
	Long: "Run the release pipeline once: checkout, setup, install, build, publish.\n" +
		"The success message is printed only when every stage succeeded.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		wfFlag, _ := cmd.Flags().GetString("workflow")
		dirFlag, _ := cmd.Flags().GetString("dir")
		ref, _ := cmd.Flags().GetString("ref")
		dry, _ := cmd.Flags().GetBool("dry-run")
		confirmFlag, _ := cmd.Flags().GetBool("confirm")
		force, _ := cmd.Flags().GetBool("force")
		verbose, _ := cmd.Flags().GetBool("verbose")

		dir, err := projectDir(dirFlag)
		if err != nil {
			return err
		}
		wf, _, err := loadWorkflow(dir, wfFlag)
		if err != nil {
			return err
		}
		store, err := openSecrets()
		if err != nil {
			return err
		}

		log := logging.L()
		var repo *history.Repository
		if dbConn, err := db.InitDB(); err != nil {
			log.Warn().Err(err).Msg("run history unavailable")
		} else {
			repo = history.NewRepository(dbConn)
			defer func() { _ = repo.Close() }()
		}

		opts := release.Options{
			Exec:    newExecutor(false, verbose),
			DryExec: newExecutor(true, true),
			Inspect: newExecutor(false, verbose),
			Secrets: store,
			History: repo,
			Log:     log,
		}
		if confirmFlag {
			opts.Confirm = func(p release.Plan) (bool, error) {
				target := p.IndexURL
				if target == "" {
					target = "the default index"
				}
				msg := fmt.Sprintf("Upload %s %s (%s) to %s?", p.Package, p.Version, strings.Join(p.Files, ", "), target)
				return utils.ConfirmReader(msg, cmd.InOrStdin(), cmd.OutOrStdout()), nil
			}
		}
		runner, err := release.NewRunner(opts)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd)
		defer cancel()

		d := trigger.NewGate().Open(trigger.SourceCLI, user.Actor())
		res, err := runner.Run(ctx, release.Request{
			Dispatch: d,
			Workflow: wf,
			Dir:      dir,
			Ref:      ref,
			DryRun:   dry,
			Force:    force,
			Stdout:   cmd.OutOrStdout(),
			Stderr:   cmd.ErrOrStderr(),
		})
		if res != nil {
			status := res.Status
			if res.FailedStage != "" {
				status += " at " + res.FailedStage
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "run %s %s\n", trigger.ShortID(res.RunID), status)
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringP("workflow", "w", "", "Workflow file (default <dir>/.pyship.yaml)")
	runCmd.Flags().StringP("dir", "d", "", "Project directory (default current directory)")
	runCmd.Flags().String("ref", "", "Git ref to check out into a temporary workspace")
	runCmd.Flags().Bool("dry-run", false, "Print commands instead of executing them")
	runCmd.Flags().Bool("confirm", false, "Ask for confirmation before uploading")
	runCmd.Flags().Bool("force", false, "Override safety checks on workflow commands")
	rootCmd.AddCommand(runCmd)
}
