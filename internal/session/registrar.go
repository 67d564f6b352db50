package session

import (
	"context"
	"fmt"
)

// Registrar is the registration flow: it writes the new identity's profile
// document and then installs the session it already holds.
type Registrar struct {
	profiles   ProfileStore
	reconciler *Reconciler
}

// NewRegistrar returns a Registrar writing to profiles.
func NewRegistrar(profiles ProfileStore, reconciler *Reconciler) *Registrar {
	return &Registrar{profiles: profiles, reconciler: reconciler}
}

// Register upserts the profile for s.IdentityID with s's role and name and
// logs s in. Nothing is installed if the profile write fails.
func (g *Registrar) Register(ctx context.Context, s Session) error {
	if err := s.ValidateComplete(); err != nil {
		return err
	}
	if s.IdentityID == "" {
		return fmt.Errorf("%w: registration requires an identity id", ErrInvalidSession)
	}
	fields := ProfileFields{Role: s.Role, DisplayName: s.DisplayName}
	if err := g.profiles.Upsert(ctx, s.IdentityID, fields); err != nil {
		return fmt.Errorf("register profile %s: %w", s.IdentityID, err)
	}
	return g.reconciler.Login(ctx, s)
}
