package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/session"
	"golang.org/x/oauth2"
)

type memoryCredentials struct {
	mu    sync.Mutex
	creds *Credentials
}

func (m *memoryCredentials) SaveCredentials(c *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds = &cp
	return nil
}

func (m *memoryCredentials) LoadCredentials() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, ErrNotSignedIn
	}
	cp := *m.creds
	return &cp, nil
}

func (m *memoryCredentials) DeleteCredentials() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

func tokenServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"r2"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestOIDC(t *testing.T, store CredentialStore, tokenURL string) *OIDCProvider {
	t.Helper()
	return newOIDCProvider(OIDCConfig{Issuer: "https://idp.example.edu", ClientID: "classgrid"}, store, &oauth2.Config{
		ClientID: "classgrid",
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	})
}

func TestOIDCProvider_SubscribeWithoutCredentialsIsSignedOut(t *testing.T) {
	p := newTestOIDC(t, &memoryCredentials{}, "http://unused")
	rec := &recorder{}
	defer p.Subscribe(rec.record)()

	assert.Equal(t, session.SignedOut{}, rec.waitLen(t, 1)[0])
}

func TestOIDCProvider_StoredCredentialsSignIn(t *testing.T) {
	store := &memoryCredentials{}
	require.NoError(t, store.SaveCredentials(&Credentials{
		AccessToken: "still-valid",
		ExpiresAt:   time.Now().Add(time.Hour),
		Subject:     "u1",
		Name:        "Ada",
		Role:        "faculty",
	}))
	srv, calls := tokenServer(t, http.StatusOK)
	p := newTestOIDC(t, store, srv.URL)

	rec := &recorder{}
	defer p.Subscribe(rec.record)()
	ev := rec.waitLen(t, 1)[0].(session.SignedIn)

	assert.Equal(t, "u1", ev.IdentityID)
	assert.Equal(t, session.Defaults{DisplayName: "Ada", Role: "faculty"}, ev.Defaults)
	credential, err := ev.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-valid", credential)
	assert.Zero(t, calls.Load())
}

func TestOIDCProvider_MintRefreshesExpiredToken(t *testing.T) {
	store := &memoryCredentials{}
	require.NoError(t, store.SaveCredentials(&Credentials{
		AccessToken:  "stale",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		Subject:      "u1",
		Email:        "u1@example.edu",
	}))
	srv, calls := tokenServer(t, http.StatusOK)
	p := newTestOIDC(t, store, srv.URL)
	rec := &recorder{}
	defer p.Subscribe(rec.record)()
	ev := rec.waitLen(t, 1)[0].(session.SignedIn)

	credential, err := ev.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", credential)
	assert.Equal(t, int32(1), calls.Load())

	saved, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "r2", saved.RefreshToken)
	assert.Equal(t, "u1@example.edu", saved.Email)

	_, err = ev.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOIDCProvider_RefreshFailureIsCredentialError(t *testing.T) {
	store := &memoryCredentials{}
	require.NoError(t, store.SaveCredentials(&Credentials{RefreshToken: "revoked", Subject: "u1"}))
	srv, _ := tokenServer(t, http.StatusBadRequest)
	p := newTestOIDC(t, store, srv.URL)
	rec := &recorder{}
	defer p.Subscribe(rec.record)()
	ev := rec.waitLen(t, 1)[0].(session.SignedIn)

	_, err := ev.Mint(context.Background())
	assert.ErrorIs(t, err, session.ErrCredential)
}

func TestOIDCProvider_SetCredentialsAnnouncesIdentity(t *testing.T) {
	p := newTestOIDC(t, &memoryCredentials{}, "http://unused")
	rec := &recorder{}
	defer p.Subscribe(rec.record)()

	require.NoError(t, p.SetCredentials(&Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour), Subject: "u2"}))
	assert.Error(t, p.SetCredentials(&Credentials{AccessToken: "a"}))

	events := rec.waitLen(t, 2)
	assert.Equal(t, "u2", events[1].(session.SignedIn).IdentityID)
}

func TestOIDCProvider_SignOutClearsLocallyEvenWhenRevokeFails(t *testing.T) {
	store := &memoryCredentials{}
	require.NoError(t, store.SaveCredentials(&Credentials{RefreshToken: "r1", Subject: "u1"}))
	p := newTestOIDC(t, store, "http://unused")
	var revoked string
	p.revoke = func(ctx context.Context, token string) error {
		revoked = token
		return errors.New("revocation endpoint down")
	}
	rec := &recorder{}
	defer p.Subscribe(rec.record)()
	ev := rec.waitLen(t, 1)[0].(session.SignedIn)

	err := p.SignOut(context.Background())

	assert.Error(t, err)
	assert.Equal(t, "r1", revoked)
	assert.Equal(t, session.SignedOut{}, rec.waitLen(t, 2)[1])
	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNotSignedIn)
	_, err = ev.Mint(context.Background())
	assert.ErrorIs(t, err, session.ErrCredential)
}

func TestOIDCProvider_MintRejectsSwitchedIdentity(t *testing.T) {
	store := &memoryCredentials{}
	require.NoError(t, store.SaveCredentials(&Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour), Subject: "u1"}))
	p := newTestOIDC(t, store, "http://unused")
	rec := &recorder{}
	defer p.Subscribe(rec.record)()
	first := rec.waitLen(t, 1)[0].(session.SignedIn)

	require.NoError(t, p.SetCredentials(&Credentials{AccessToken: "b", ExpiresAt: time.Now().Add(time.Hour), Subject: "u2"}))

	_, err := first.Mint(context.Background())
	assert.ErrorIs(t, err, session.ErrCredential)
}

func TestFileCredentialStore(t *testing.T) {
	store, err := NewFileCredentialStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, store.SaveCredentials(&Credentials{AccessToken: "a", Subject: "u1"}))
	got, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "u1", got.Subject)

	require.NoError(t, store.DeleteCredentials())
	require.NoError(t, store.DeleteCredentials())
	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
