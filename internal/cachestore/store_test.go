package cachestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/db/bunx"
	"github.com/terraconstructs/classgrid/internal/migrations"
	"github.com/terraconstructs/classgrid/internal/session"
)

func newSQLiteStore(t *testing.T, namespace string) *SQLStore {
	t.Helper()
	db, err := bunx.NewDB(context.Background(), ":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)
	return NewSQLStore(db, namespace)
}

// Each backend must satisfy the same contract.
func stores(t *testing.T) map[string]session.Store {
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]session.Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sql":    newSQLiteStore(t, "test"),
	}
}

func TestStores_ReplaceLoadDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Replace(map[string]string{"a": "1", "b": "2"}))

			got, err := store.Load("a", "b", "missing")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)

			require.NoError(t, store.Replace(map[string]string{"a": "3"}, "b"))
			got, err = store.Load("a", "b")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "3"}, got)

			require.NoError(t, store.Delete("a", "b"))
			got, err = store.Load("a", "b")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStores_BackSessionCache(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cache := session.NewCache(store)
			s := session.Session{DisplayName: "Dana", Role: "coordinator", Credential: "tok", IdentityID: "u1"}

			require.NoError(t, cache.Write(s))
			assert.Equal(t, &s, cache.Read())

			require.NoError(t, cache.Clear())
			assert.Nil(t, cache.Read())
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Replace(map[string]string{session.KeyCredential: "tok"}))

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Load(session.KeyCredential)
	require.NoError(t, err)
	assert.Equal(t, "tok", got[session.KeyCredential])

	info, err := os.Stat(filepath.Join(dir, sessionFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_DeleteRemovesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Replace(map[string]string{"k": "v"}))

	require.NoError(t, store.Delete("k"))
	require.NoError(t, store.Delete("k"))

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	_, err = store.Load("k")
	assert.Error(t, err)
	assert.Nil(t, session.NewCache(store).Read())
}

func TestSQLStore_NamespacesAreIsolated(t *testing.T) {
	a := newSQLiteStore(t, "a")
	b := NewSQLStore(a.db, "b")

	require.NoError(t, a.Replace(map[string]string{"k": "from-a"}))
	require.NoError(t, b.Replace(map[string]string{"k": "from-b"}))
	require.NoError(t, b.Delete("k"))

	got, err := a.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", got["k"])
}
