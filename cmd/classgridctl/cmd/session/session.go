package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/app"
	"github.com/terraconstructs/classgrid/internal/config"
	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

var (
	cfg         *config.Config
	settleAfter time.Duration
)

// SessionCmd groups the commands that inspect and change the signed-in session.
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and change the current session",
}

// SetConfig hands the loaded configuration to the session commands.
func SetConfig(c *config.Config) {
	cfg = c
}

func init() {
	SessionCmd.PersistentFlags().DurationVar(&settleAfter, "wait", 15*time.Second, "How long to wait for the session to settle")
	SessionCmd.AddCommand(loginCmd)
	SessionCmd.AddCommand(logoutCmd)
	SessionCmd.AddCommand(statusCmd)
	SessionCmd.AddCommand(watchCmd)
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, app.WithDevicePrompt(showDeviceCode))
}

func showDeviceCode(resp *oidc.DeviceAuthorizationResponse) {
	pterm.DefaultSection.Println("Device Authorization")
	pterm.Info.Printf("Visit: %s\n", resp.VerificationURI)
	pterm.Info.Printf("Enter code: %s\n", resp.UserCode)
}

// settled waits until the reconciler has applied at least one provider
// event, so the result is not just the cached provisional session.
func settled(ctx context.Context, r *session.Reconciler) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, settleAfter)
	defer cancel()

	last := r.Current()
	for snap := range r.Watch(ctx) {
		last = snap
		if snap.State != session.StateBootstrapping && !snap.Provisional {
			return snap, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return last, fmt.Errorf("session did not settle within %s", settleAfter)
	}
	return last, session.ErrClosed
}

func printSnapshot(snap session.Snapshot) {
	pterm.DefaultSection.Println("Session")
	if !snap.Authenticated() {
		pterm.Info.Printf("State: %s\n", snap.State)
		return
	}
	s := snap.Session
	pterm.Info.Printf("State: %s\n", snap.State)
	pterm.Info.Printf("Name: %s\n", s.DisplayName)
	if s.RoleResolved() {
		pterm.Info.Printf("Role: %s\n", s.Role)
	} else {
		pterm.Warning.Println("Role: unresolved (role-gated actions are denied)")
	}
	if s.IdentityID != "" {
		pterm.Info.Printf("Identity: %s\n", s.IdentityID)
	}
	if snap.Provisional {
		pterm.Warning.Println("Showing the cached session; the identity provider has not answered yet")
	}
}
