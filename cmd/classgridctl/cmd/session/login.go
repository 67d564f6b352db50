package session

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/session"
)

var (
	credential string
	name       string
	role       string
	identityID string
	register   bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Signs in and prints the resolved session.

With an OIDC issuer configured and no --credential, the device authorization
flow is started and the signed-in identity is resolved against its profile.

With --credential the given session is installed directly. Add --register to
create or merge the profile document for --identity-id first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		switch {
		case credential != "":
			s := session.Session{
				Credential:  credential,
				DisplayName: name,
				Role:        role,
				IdentityID:  identityID,
			}
			if register {
				if identityID == "" {
					return errors.New("--register requires --identity-id")
				}
				err = a.Registrar.Register(ctx, s)
			} else {
				err = a.Reconciler.Login(ctx, s)
			}
			if err != nil {
				return err
			}
			printSnapshot(a.Reconciler.Current())
			return nil
		case a.OIDC != nil:
			creds, err := a.OIDC.Login(ctx)
			if err != nil {
				return err
			}
			pterm.Success.Printf("Authenticated as %s\n", firstNonEmpty(creds.Name, creds.Email, creds.Subject))
		default:
			return fmt.Errorf("no interactive identity provider configured; pass --credential or set oidc.issuer")
		}

		snap, err := settled(ctx, a.Reconciler)
		if err != nil {
			return err
		}
		printSnapshot(snap)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&credential, "credential", "", "Install a session with this credential instead of signing in")
	loginCmd.Flags().StringVar(&name, "name", "", "Display name of the installed session")
	loginCmd.Flags().StringVar(&role, "role", "", "Role of the installed session (admin, faculty or coordinator)")
	loginCmd.Flags().StringVar(&identityID, "identity-id", "", "Identity id of the installed session")
	loginCmd.Flags().BoolVar(&register, "register", false, "Merge the profile document before installing the session")
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
