package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/cachestore"
	"github.com/terraconstructs/classgrid/internal/session"
)

type noProfiles struct{}

func (noProfiles) Fetch(ctx context.Context, id string) (*session.Profile, error) {
	return nil, session.ErrProfileNotFound
}

func (noProfiles) Upsert(ctx context.Context, id string, fields session.ProfileFields) error {
	return nil
}

func newReconciler(t *testing.T, p session.IdentityProvider) (*session.Reconciler, *session.Cache) {
	t.Helper()
	cache := session.NewCache(cachestore.NewMemoryStore())
	r, err := session.New(p, noProfiles{}, cache)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, cache
}

var faculty = session.Session{DisplayName: "Dana", Role: "faculty", Credential: "tok", IdentityID: "u9"}

func TestReconciler_LoginRightAfterNewOutlivesInitialSignedOut(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := newTestOIDC(t, &memoryCredentials{}, "http://unused")
		r, cache := newReconciler(t, p)

		require.NoError(t, r.Login(context.Background(), faculty))
		time.Sleep(2 * time.Millisecond)

		require.Equal(t, &faculty, r.Session(), "run %d", i)
		assert.Equal(t, &faculty, cache.Read(), "run %d", i)
	}
}

func TestReconciler_LoginRightAfterNewOutlivesInitialSignedIn(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u1", "email": "lee@example.edu", "role": "admin"})
	for i := 0; i < 50; i++ {
		p, err := NewStaticProvider(token)
		require.NoError(t, err)
		r, _ := newReconciler(t, p)

		require.NoError(t, r.Login(context.Background(), faculty))
		time.Sleep(2 * time.Millisecond)

		require.Equal(t, &faculty, r.Session(), "run %d", i)
		assert.Equal(t, session.StateAuthenticated, r.State())
	}
}
