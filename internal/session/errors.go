package session

import "errors"

var (
	// ErrCredential means the identity provider could not mint a credential.
	// The reconciler treats it as a forced sign-out.
	ErrCredential = errors.New("credential error")

	// ErrProfileUnreachable means the profile store could not be reached.
	// Reconciliation falls back to cached role and name.
	ErrProfileUnreachable = errors.New("profile store unreachable")

	// ErrProfileNotFound is returned by profile stores for identities that have
	// no profile document yet. It is a normal outcome, not a failure.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrCacheWrite wraps failures of the local session cache.
	ErrCacheWrite = errors.New("session cache write failed")

	// ErrProviderSignOut wraps failures of the provider-side sign-out.
	ErrProviderSignOut = errors.New("provider sign-out failed")

	ErrInvalidSession = errors.New("invalid session")
	ErrClosed         = errors.New("reconciler closed")
)
