package session

import "strings"

// DefaultDisplayName is used when no source has a name for the identity.
const DefaultDisplayName = "User"

// Source names where a resolved field came from.
type Source string

const (
	SourceProfile  Source = "profile"
	SourceCache    Source = "cache"
	SourceProvider Source = "provider"
	SourceNone     Source = "none"
)

// ResolveInput carries everything known about a signed-in identity.
type ResolveInput struct {
	IdentityID string
	Credential string

	// Profile is nil when the document does not exist or the store was
	// unreachable.
	Profile *Profile

	// Cached holds previously reconciled values for the same identity id.
	Cached *ProfileFields

	Defaults Defaults
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Session    Session
	RoleSource Source
	NameSource Source
}

// Resolve merges the sources field by field. A non-empty profile field wins,
// then the cached value for the same identity, then the provider default.
// Role may stay empty; the display name never does.
func Resolve(in ResolveInput) Resolution {
	var profile, cached ProfileFields
	if in.Profile != nil {
		profile = in.Profile.ProfileFields
	}
	if in.Cached != nil {
		cached = *in.Cached
	}

	role, roleSrc := pick(
		candidate{profile.Role, SourceProfile},
		candidate{cached.Role, SourceCache},
		candidate{in.Defaults.Role, SourceProvider},
	)
	name, nameSrc := pick(
		candidate{profile.DisplayName, SourceProfile},
		candidate{cached.DisplayName, SourceCache},
		candidate{in.Defaults.DisplayName, SourceProvider},
	)
	if name == "" {
		name = DefaultDisplayName
		nameSrc = SourceProvider
	}

	return Resolution{
		Session: Session{
			DisplayName: name,
			Role:        role,
			Credential:  in.Credential,
			IdentityID:  in.IdentityID,
		},
		RoleSource: roleSrc,
		NameSource: nameSrc,
	}
}

type candidate struct {
	value  string
	source Source
}

func pick(cs ...candidate) (string, Source) {
	for _, c := range cs {
		if v := strings.TrimSpace(c.value); v != "" {
			return v, c.source
		}
	}
	return "", SourceNone
}
