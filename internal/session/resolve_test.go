package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		in       ResolveInput
		want     Session
		roleFrom Source
		nameFrom Source
	}{
		{
			name: "profile document wins",
			in: ResolveInput{
				IdentityID: "u1", Credential: "c",
				Profile:  &Profile{IdentityID: "u1", ProfileFields: ProfileFields{Role: "faculty", DisplayName: "Dana"}},
				Cached:   &ProfileFields{Role: "admin", DisplayName: "Old Dana"},
				Defaults: Defaults{DisplayName: "dana@example.edu", Role: "coordinator"},
			},
			want:     Session{DisplayName: "Dana", Role: "faculty", Credential: "c", IdentityID: "u1"},
			roleFrom: SourceProfile,
			nameFrom: SourceProfile,
		},
		{
			name: "empty profile fields fall through to cache",
			in: ResolveInput{
				IdentityID: "u1", Credential: "c",
				Profile: &Profile{IdentityID: "u1", ProfileFields: ProfileFields{Role: " "}},
				Cached:  &ProfileFields{Role: "admin", DisplayName: "Lee"},
			},
			want:     Session{DisplayName: "Lee", Role: "admin", Credential: "c", IdentityID: "u1"},
			roleFrom: SourceCache,
			nameFrom: SourceCache,
		},
		{
			name: "provider defaults when nothing else",
			in: ResolveInput{
				IdentityID: "u1", Credential: "c",
				Defaults: Defaults{DisplayName: "dana@example.edu", Role: "coordinator"},
			},
			want:     Session{DisplayName: "dana@example.edu", Role: "coordinator", Credential: "c", IdentityID: "u1"},
			roleFrom: SourceProvider,
			nameFrom: SourceProvider,
		},
		{
			name:     "unresolved role and generic name",
			in:       ResolveInput{IdentityID: "u2", Credential: "c"},
			want:     Session{DisplayName: DefaultDisplayName, Role: "", Credential: "c", IdentityID: "u2"},
			roleFrom: SourceNone,
			nameFrom: SourceProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.in)
			assert.Equal(t, tt.want, got.Session)
			assert.Equal(t, tt.roleFrom, got.RoleSource)
			assert.Equal(t, tt.nameFrom, got.NameSource)
		})
	}
}

func genField() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Just(""),
		rapid.SampledFrom([]string{"admin", "faculty", "coordinator", "Dana", "Lee"}),
	)
}

func genFields(label string) *rapid.Generator[*ProfileFields] {
	return rapid.Custom(func(t *rapid.T) *ProfileFields {
		if !rapid.Bool().Draw(t, label+"_present") {
			return nil
		}
		return &ProfileFields{
			Role:        genField().Draw(t, label+"_role"),
			DisplayName: genField().Draw(t, label+"_name"),
		}
	})
}

// TestResolve_PriorityProperty checks that a field comes from the first
// source, in priority order, that has a non-empty value for it.
func TestResolve_PriorityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		profile := genFields("profile").Draw(t, "profile")
		cached := genFields("cached").Draw(t, "cached")
		defaults := Defaults{
			Role:        genField().Draw(t, "default_role"),
			DisplayName: genField().Draw(t, "default_name"),
		}
		in := ResolveInput{IdentityID: "u", Credential: "c", Cached: cached, Defaults: defaults}
		if profile != nil {
			in.Profile = &Profile{IdentityID: "u", ProfileFields: *profile}
		}

		got := Resolve(in).Session

		var p, c ProfileFields
		if profile != nil {
			p = *profile
		}
		if cached != nil {
			c = *cached
		}
		wantRole := firstNonEmpty(p.Role, c.Role, defaults.Role)
		wantName := firstNonEmpty(p.DisplayName, c.DisplayName, defaults.DisplayName, DefaultDisplayName)

		if got.Role != wantRole {
			t.Fatalf("role = %q, want %q", got.Role, wantRole)
		}
		if got.DisplayName != wantName {
			t.Fatalf("name = %q, want %q", got.DisplayName, wantName)
		}
		if err := got.Validate(); err != nil {
			t.Fatalf("resolved session invalid: %v", err)
		}
	})
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
