//go:build portable

package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortableBackendUpsertAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(model.Schema)
	require.NoError(t, err)

	backend := NewPortableBackend(db)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 3))

	require.NoError(t, backend.Upsert(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, backend.Upsert(ctx, 2, []float32{0, 1, 0}))

	results, err := backend.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].PkgID)
}

func TestPortableBackendFilteredSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(model.Schema)
	require.NoError(t, err)

	backend := NewPortableBackend(db)
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 2))
	require.NoError(t, backend.Upsert(ctx, 1, []float32{1, 0}))
	require.NoError(t, backend.Upsert(ctx, 2, []float32{0, 1}))

	results, err := backend.FilteredSimilaritySearch(ctx, []float32{1, 0}, []int64{2}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].PkgID)
}
