package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/pyship/internal/user"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show or manage the identity recorded on runs",
	Long: "Every run records an actor. It is taken from $PYSHIP_ACTOR, then the identity " +
		"stored with `pyship whoami set`, then the OS account name.",
	Args: cobra.NoArgs,
	RunE: showIdentity,
}

var whoamiSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the identity recorded on runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		if name == "" {
			return fmt.Errorf("--name is required")
		}
		p := user.Profile{Name: name, Email: email}
		if err := user.SetProfile(p); err != nil {
			return err
		}
		cmd.Printf("runs will be recorded as %s\n", p)
		return nil
	},
}

var whoamiClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := user.ClearProfile(); err != nil {
			return err
		}
		actor, _ := user.Resolve()
		cmd.Printf("cleared stored identity, runs will be recorded as %s\n", actor)
		return nil
	},
}

var whoamiShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the identity runs are recorded under",
	Args:  cobra.NoArgs,
	RunE:  showIdentity,
}

func showIdentity(cmd *cobra.Command, _ []string) error {
	if _, _, err := user.GetProfile(); err != nil {
		return fmt.Errorf("read stored identity: %w", err)
	}
	actor, origin := user.Resolve()
	switch origin {
	case user.OriginProfile:
		cmd.Println(actor)
	case user.OriginEnv:
		cmd.Printf("%s (from $%s)\n", actor, user.EnvActor)
	default:
		cmd.Printf("no stored identity, runs are recorded as %s\n", actor)
	}
	return nil
}

func init() {
	whoamiSetCmd.Flags().StringP("name", "n", "", "Name (required)")
	whoamiSetCmd.Flags().StringP("email", "e", "", "Email (optional)")
	whoamiCmd.AddCommand(whoamiSetCmd, whoamiClearCmd, whoamiShowCmd)
	rootCmd.AddCommand(whoamiCmd)
}
