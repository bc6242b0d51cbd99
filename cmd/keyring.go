package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"

	"github.com/AlfredBerg/green-scraper/internal/auth"
	"github.com/AlfredBerg/green-scraper/internal/credentials"
)

func init() {
	keyringCmd.PersistentFlags().StringP("strategy", "s", "direct", "Login strategy the password belongs to: direct or google")
	keyringCmd.PersistentFlags().String("email", "", "Login email")
	_ = keyringCmd.MarkPersistentFlagRequired("email")

	keyringCmd.AddCommand(keyringSetCmd, keyringDeleteCmd)
	rootCmd.AddCommand(keyringCmd)
}

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage login passwords stored in the OS keychain",
}

var keyringSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a password, read from the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, email, err := keyringTarget(cmd)
		if err != nil {
			return err
		}
		pw, err := input.DefaultUI().Ask(fmt.Sprintf("password for %s:", email), &input.Options{Required: true, Loop: true, Mask: true})
		if err != nil {
			return err
		}
		if err := credentials.SetPassword(strategy, email, pw); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored password for %s\n", credentials.KeyringAccount(strategy, email))
		return nil
	},
}

var keyringDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, email, err := keyringTarget(cmd)
		if err != nil {
			return err
		}
		return credentials.DeletePassword(strategy, email)
	},
}

func keyringTarget(cmd *cobra.Command) (auth.Strategy, string, error) {
	s, _ := cmd.Flags().GetString("strategy")
	email, _ := cmd.Flags().GetString("email")
	strategy, err := auth.ParseStrategy(s)
	return strategy, email, err
}
