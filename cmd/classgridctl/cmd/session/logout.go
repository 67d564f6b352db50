package session

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Reconciler.Logout(cmd.Context()); err != nil {
			return err
		}
		pterm.Success.Println("Signed out")
		return nil
	},
}
