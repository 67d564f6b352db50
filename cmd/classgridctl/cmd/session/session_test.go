package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/app"
	"github.com/terraconstructs/classgrid/internal/config"
	"github.com/terraconstructs/classgrid/internal/session"
)

func TestSettled_WaitsForProviderEvent(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u1",
		"name": "Dana",
		"role": "faculty",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	SetConfig(&config.Config{
		ProfileDatabaseURL: filepath.Join(t.TempDir(), "profiles.db"),
		BearerToken:        token,
		ProfileMemoSize:    4,
		Cache:              config.CacheConfig{Backend: config.CacheBackendMemory},
	})
	settleAfter = 2 * time.Second

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.WithAutoMigrate())
	require.NoError(t, err)
	defer a.Close()

	snap, err := settled(ctx, a.Reconciler)
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.False(t, snap.Provisional)
	assert.Equal(t, "faculty", snap.Session.Role)
	assert.Equal(t, "Dana", snap.Session.DisplayName)
}

func TestSettled_ClosedReconciler(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)

	SetConfig(&config.Config{
		ProfileDatabaseURL: filepath.Join(t.TempDir(), "profiles.db"),
		BearerToken:        token,
		ProfileMemoSize:    4,
		Cache:              config.CacheConfig{Backend: config.CacheBackendMemory},
	})
	settleAfter = time.Second

	a, err := app.New(context.Background(), cfg, app.WithAutoMigrate())
	require.NoError(t, err)
	require.NoError(t, a.Reconciler.Close())
	defer a.Close()

	_, err = settled(context.Background(), a.Reconciler)
	assert.ErrorIs(t, err, session.ErrClosed)
}
