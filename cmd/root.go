package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/executor"
	"github.com/VoxDroid/pyship/internal/logging"
	"github.com/VoxDroid/pyship/internal/secrets"
)

var rootCmd = &cobra.Command{
	Use:   "pyship",
	Short: "pyship builds a Python package and publishes it to a package index",
	Long: "pyship runs a manually triggered release pipeline: check out the source,\n" +
		"provision a Python interpreter, install the build tools, build the\n" +
		"distributions and upload every one of them with a stored API token.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logging.ConfigureRuntime()
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			logging.EnableDebug()
		}
	},
}

// newExecutor builds the command executor. Tests replace it.
var newExecutor = func(dry, verbose bool) executor.Runner {
	return executor.New(dry, verbose)
}

// openSecrets returns the secret store. Tests replace it.
var openSecrets = func() (secrets.Store, error) {
	return secrets.Default()
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (debug logging)")
}

// Execute executes the root command. A failed tool command's exit status
// becomes pyship's own.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitStatus(err))
	}
}

func exitStatus(err error) int {
	if code := executor.ExitCode(err); code > 0 {
		return code
	}
	return 1
}
