package session

import "context"

// Event is emitted by an IdentityProvider. It is either SignedIn or SignedOut.
type Event interface {
	isEvent()
}

// Defaults are the identity provider's own values for a signed-in identity,
// used when neither the profile document nor the cache supplies a field.
type Defaults struct {
	DisplayName string
	Role        string
}

// SignedIn reports a signed-in identity. Mint issues a fresh, time-bounded
// credential for it.
type SignedIn struct {
	IdentityID string
	Defaults   Defaults
	Mint       func(ctx context.Context) (string, error)
}

// SignedOut reports that the provider no longer holds a signed-in identity.
type SignedOut struct{}

func (SignedIn) isEvent()  {}
func (SignedOut) isEvent() {}

// IdentityProvider is the push-based remote identity source. Subscribe must
// hand the provider's state at subscribe time to onEvent before it returns.
// Later events may arrive at any time but one at a time and in order.
type IdentityProvider interface {
	Subscribe(onEvent func(Event)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// ProfileFields are the profile document fields the reconciler reads.
type ProfileFields struct {
	Role        string `json:"role,omitempty" mapstructure:"role"`
	DisplayName string `json:"displayName,omitempty" mapstructure:"display_name"`
}

// Profile is the remote profile document keyed by identity id.
type Profile struct {
	IdentityID string
	ProfileFields
}

// ProfileStore fetches and upserts profile documents. Fetch returns an error
// wrapping ErrProfileNotFound when no document exists, and one wrapping
// ErrProfileUnreachable when the store cannot answer. Upsert merges: empty
// fields never overwrite stored values.
type ProfileStore interface {
	Fetch(ctx context.Context, identityID string) (*Profile, error)
	Upsert(ctx context.Context, identityID string, fields ProfileFields) error
}
