package session

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := settled(cmd.Context(), a.Reconciler)
		if err != nil {
			pterm.Warning.Println(err)
		}
		printSnapshot(snap)

		if snap.Authenticated() {
			actions := a.Gate.Actions(snap.Session)
			pterm.DefaultSection.Println("Allowed Actions")
			if len(actions) == 0 {
				pterm.Info.Println("none")
			}
			for _, act := range actions {
				pterm.Printf("  %s\n", act)
			}
		}
		return nil
	},
}
