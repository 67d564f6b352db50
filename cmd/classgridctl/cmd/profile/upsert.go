package profile

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/session"
)

var (
	upsertName string
	upsertRole string
)

var upsertCmd = &cobra.Command{
	Use:   "upsert <identity-id>",
	Short: "Create or merge a profile document",
	Long: `Creates the profile document for an identity or merges into an existing one.
Fields left empty keep their stored values.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if upsertName == "" && upsertRole == "" {
			return errors.New("nothing to write: pass --name and/or --role")
		}
		store, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(db)

		fields := session.ProfileFields{DisplayName: upsertName, Role: upsertRole}
		if err := store.Upsert(cmd.Context(), args[0], fields); err != nil {
			return err
		}
		pterm.Success.Printf("Profile %s saved\n", args[0])
		return nil
	},
}

func init() {
	upsertCmd.Flags().StringVar(&upsertName, "name", "", "Display name")
	upsertCmd.Flags().StringVar(&upsertRole, "role", "", "Role (admin, faculty or coordinator)")
}
