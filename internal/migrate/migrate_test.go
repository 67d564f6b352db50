package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terraconstructs/classgrid/internal/db/bunx"
	"github.com/terraconstructs/classgrid/internal/migrations"
	"github.com/terraconstructs/classgrid/internal/profilestore"
	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/uptrace/bun"
)

type sliceSource struct {
	rows []map[string]any
	err  error
}

func (s sliceSource) Name() string { return "user_profiles" }

func (s sliceSource) Rows(context.Context) ([]map[string]any, error) {
	return s.rows, s.err
}

type recordingUpserter struct {
	failFor map[string]bool
	writes  map[string]session.ProfileFields
}

func (u *recordingUpserter) Upsert(ctx context.Context, id string, fields session.ProfileFields) error {
	if u.failFor[id] {
		return errors.New("write refused")
	}
	if u.writes == nil {
		u.writes = make(map[string]session.ProfileFields)
	}
	u.writes[id] = fields
	return nil
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "7", DocID(map[string]any{"id": 7, "uid": "x"}))
	assert.Equal(t, "x", DocID(map[string]any{"id": "", "uid": "x", "uuid": "y"}))
	assert.Equal(t, "y", DocID(map[string]any{"uuid": []byte("y")}))

	generated := DocID(map[string]any{"name": "no id"})
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestRun_CountsFailuresWithoutStopping(t *testing.T) {
	src := sliceSource{rows: []map[string]any{
		{"id": "u1", "role": "faculty", "display_name": "Lee"},
		{"uid": "u2", "role": "admin", "name": "Ana"},
		{"id": "u3", "role": "coordinator", "username": "dana"},
		{"id": "u4"},
	}}
	dst := &recordingUpserter{failFor: map[string]bool{"u2": true}}

	report, err := Run(context.Background(), src, dst, Options{})

	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, "Migrated 2/4 rows from user_profiles", report.String())
	assert.Equal(t, session.ProfileFields{Role: "faculty", DisplayName: "Lee"}, dst.writes["u1"])
	assert.Equal(t, session.ProfileFields{Role: "coordinator", DisplayName: "dana"}, dst.writes["u3"])
}

func TestRun_Filter(t *testing.T) {
	src := sliceSource{rows: []map[string]any{
		{"id": "u1", "role": "faculty", "display_name": "Lee"},
		{"id": "u2", "role": "admin", "display_name": "Ana"},
	}}
	dst := &recordingUpserter{}

	report, err := Run(context.Background(), src, dst, Options{Filter: `role == "admin"`})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, dst.writes, "u2")

	_, err = Run(context.Background(), src, dst, Options{Filter: `role ==`})
	assert.Error(t, err)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	src := sliceSource{rows: []map[string]any{{"id": "u1", "role": "faculty"}}}
	dst := &recordingUpserter{}

	report, err := Run(context.Background(), src, dst, Options{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Empty(t, dst.writes)
}

func TestRun_SourceFailure(t *testing.T) {
	_, err := Run(context.Background(), sliceSource{err: errors.New("boom")}, &recordingUpserter{}, Options{})
	assert.Error(t, err)
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := bunx.NewDB(context.Background(), ":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)
	return db
}

func TestRun_BunSourceIntoProfileStoreIsIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `CREATE TABLE user_profiles (id TEXT, role TEXT, display_name TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO user_profiles VALUES ('u1', 'faculty', 'Lee'), ('u2', 'coordinator', 'Dana')`)
	require.NoError(t, err)

	store := profilestore.NewBunStore(db)
	for i := 0; i < 2; i++ {
		report, err := Run(ctx, NewBunSource(db, "user_profiles"), store, Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Migrated)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	got, err := store.Fetch(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "coordinator", got.Role)
	assert.Equal(t, "Dana", got.DisplayName)
}
