package embedding

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	name string
	dim  int
	fail bool
}

func (f *fakeEmbedder) Name() string { return f.name }
func (f *fakeEmbedder) Dim() int     { return f.dim }
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embed failed")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fakeBackend struct {
	vectors map[int64][]float32
	dim     int
}

func newFakeBackend() *fakeBackend { return &fakeBackend{vectors: map[int64][]float32{}} }

func (b *fakeBackend) Initialize(ctx context.Context, dim int) error { b.dim = dim; return nil }
func (b *fakeBackend) Upsert(ctx context.Context, pkgID int64, vec []float32) error {
	b.vectors[pkgID] = vec
	return nil
}
func (b *fakeBackend) Delete(ctx context.Context, pkgID int64) error {
	delete(b.vectors, pkgID)
	return nil
}
func (b *fakeBackend) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]vector.SearchResult, error) {
	return nil, nil
}
func (b *fakeBackend) FilteredSimilaritySearch(ctx context.Context, query []float32, candidateIDs []int64, topK int) ([]vector.SearchResult, error) {
	return nil, nil
}
func (b *fakeBackend) IDsWithoutVector(ctx context.Context) ([]int64, error) { return nil, nil }
func (b *fakeBackend) WipeAll(ctx context.Context) error                    { b.vectors = map[int64][]float32{}; return nil }
func (b *fakeBackend) Dim() int                                             { return b.dim }

type fakeSource struct {
	packages []model.Package
}

func (s *fakeSource) PackagesWithoutEmbedding(ctx context.Context) ([]model.Package, error) {
	return s.packages, nil
}
func (s *fakeSource) AllPackages(ctx context.Context) ([]model.Package, error) {
	return s.packages, nil
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := vector.Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	_, err = db.Exec(model.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuildIncrementalEmbedsAll(t *testing.T) {
	db := testDB(t)
	backend := newFakeBackend()
	source := &fakeSource{packages: []model.Package{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}}
	builder := NewBuilder(db, &fakeEmbedder{name: "e5-small", dim: 4}, backend, source, nil)

	n, err := builder.Build(context.Background(), false, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, backend.vectors, 2)
}

func TestBuildRebuildWipesFirst(t *testing.T) {
	db := testDB(t)
	backend := newFakeBackend()
	backend.vectors[99] = []float32{1, 2, 3, 4}
	source := &fakeSource{packages: []model.Package{{ID: 1, Name: "a"}}}
	builder := NewBuilder(db, &fakeEmbedder{name: "e5-small", dim: 4}, backend, source, nil)

	_, err := builder.Build(context.Background(), true, false, nil)
	require.NoError(t, err)
	assert.NotContains(t, backend.vectors, int64(99))
	assert.Contains(t, backend.vectors, int64(1))
}

func TestBuildSkipsFailedBatch(t *testing.T) {
	db := testDB(t)
	backend := newFakeBackend()
	source := &fakeSource{packages: []model.Package{{ID: 1, Name: "a"}}}
	builder := NewBuilder(db, &fakeEmbedder{name: "e5-small", dim: 4, fail: true}, backend, source, nil)

	n, err := builder.Build(context.Background(), false, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, backend.vectors)
}

func TestBuildRejectsMismatchedModel(t *testing.T) {
	db := testDB(t)
	backend := newFakeBackend()
	source := &fakeSource{}
	first := NewBuilder(db, &fakeEmbedder{name: "e5-small", dim: 4}, backend, source, nil)
	_, err := first.Build(context.Background(), false, false, nil)
	require.NoError(t, err)

	second := NewBuilder(db, &fakeEmbedder{name: "e5-large", dim: 8}, backend, source, nil)
	_, err = second.Build(context.Background(), false, false, nil)
	require.Error(t, err)
}
