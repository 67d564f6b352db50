package profile

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profile documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB(db)

		profiles, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			pterm.Info.Println("No profiles found.")
			return nil
		}

		table := pterm.TableData{{"IDENTITY", "NAME", "ROLE"}}
		for _, p := range profiles {
			table = append(table, []string{p.IdentityID, p.DisplayName, p.Role})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}
