package session

import (
	"fmt"
	"strings"
)

// Session is the canonical, application-visible identity record.
//
// A published Session always carries a credential and a display name. Role
// is either a resolved role or the empty string, which means "unresolved":
// role-gated consumers must refuse access rather than assume a default.
type Session struct {
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Credential  string `json:"-"`

	// IdentityID is the provider-assigned user id the session was resolved
	// for. Empty for sessions installed through Login without one.
	IdentityID string `json:"identityId,omitempty"`
}

// Validate reports whether s may be published. A nil session is valid and
// means unauthenticated.
func (s *Session) Validate() error {
	if s == nil {
		return nil
	}
	var missing []string
	if strings.TrimSpace(s.Credential) == "" {
		missing = append(missing, "credential")
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		missing = append(missing, "displayName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSession, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateComplete is the check for sessions installed by Login or
// registration. Unlike Validate it also requires a role: only sessions
// resolved from provider events may carry an unresolved role.
func (s *Session) ValidateComplete() error {
	if s == nil {
		return fmt.Errorf("%w: no session", ErrInvalidSession)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Role) == "" {
		return fmt.Errorf("%w: missing role", ErrInvalidSession)
	}
	return nil
}

// RoleResolved is false when no source could supply a role.
func (s *Session) RoleResolved() bool {
	return s != nil && s.Role != ""
}

// Clone returns a copy so published values are never patched in place.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Equal compares all fields, including the credential.
func (s *Session) Equal(o *Session) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return *s == *o
}

// State is the reconciler lifecycle state.
type State int

const (
	StateBootstrapping State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is one published value. Consumers treat it as immutable and
// replace it wholesale on every publish.
type Snapshot struct {
	Session *Session
	State   State

	// Provisional is set while the session was read from the local cache
	// and no provider event has been applied yet.
	Provisional bool

	// Seq increases with every publish.
	Seq uint64
}

// Authenticated reports whether the snapshot carries a session.
func (s Snapshot) Authenticated() bool {
	return s.Session != nil
}
