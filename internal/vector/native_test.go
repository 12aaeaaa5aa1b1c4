//go:build !portable

package vector

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec(model.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertBarePackage(t *testing.T, db *sql.DB, id int64, name string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO packages (pkg_id, name, version, release, arch, summary, description, repo)
		VALUES (?, ?, '1', '1', 'x86_64', '', '', 'repo')
	`, id, name)
	require.NoError(t, err)
}

func TestNativeBackendUpsertAndSearch(t *testing.T) {
	db := openTestDB(t)
	backend := NewNativeBackend(db)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 3))

	require.NoError(t, backend.Upsert(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, backend.Upsert(ctx, 2, []float32{0, 1, 0}))

	results, err := backend.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].PkgID)
}

func TestNativeBackendIDsWithoutVector(t *testing.T) {
	db := openTestDB(t)
	insertBarePackage(t, db, 1, "a")
	insertBarePackage(t, db, 2, "b")

	backend := NewNativeBackend(db)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 2))
	require.NoError(t, backend.Upsert(ctx, 1, []float32{1, 1}))

	ids, err := backend.IDsWithoutVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}

func TestNativeBackendWipeAll(t *testing.T) {
	db := openTestDB(t)
	backend := NewNativeBackend(db)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 2))
	require.NoError(t, backend.Upsert(ctx, 1, []float32{1, 1}))
	require.NoError(t, backend.WipeAll(ctx))

	results, err := backend.SimilaritySearch(ctx, []float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestModelIdentityGuard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, CheckModelIdentity(ctx, db, ModelInfo{Name: "e5-small", Dim: 384}))
	require.NoError(t, CheckModelIdentity(ctx, db, ModelInfo{Name: "e5-small", Dim: 384}))

	err := CheckModelIdentity(ctx, db, ModelInfo{Name: "e5-large", Dim: 1024})
	require.Error(t, err)
}
