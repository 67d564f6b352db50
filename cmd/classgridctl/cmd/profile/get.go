package profile

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/session"
)

var getCmd = &cobra.Command{
	Use:   "get <identity-id>",
	Short: "Show one profile document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(db)

		p, err := store.Fetch(cmd.Context(), args[0])
		if errors.Is(err, session.ErrProfileNotFound) {
			pterm.Info.Printf("No profile for %s\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}

		pterm.Printf("Identity: %s\n", p.IdentityID)
		pterm.Printf("Name: %s\n", p.DisplayName)
		pterm.Printf("Role: %s\n", p.Role)
		return nil
	},
}
