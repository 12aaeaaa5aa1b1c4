//go:build portable

package rpmvec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nn1a/rpm-vec/internal/ingest"
	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/repomd"
	"github.com/nn1a/rpm-vec/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string { return "fake-embedder" }
func (fakeEmbedder) Dim() int     { return 4 }
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := vector.Open(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backend := vector.NewPortableBackend(db)
	fetcher := repomd.NewFetcher(0)
	engine, err := New(db, backend, fakeEmbedder{}, fetcher, nil)
	require.NoError(t, err)
	return engine
}

const testPrimaryXML = `<?xml version="1.0"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="1">
  <package type="rpm">
    <name>bash</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="5.2" rel="1.el9"/>
    <summary>The GNU Bourne Again shell</summary>
    <description>Bash is the shell for Linux.</description>
    <location href="Packages/b/bash-5.2-1.el9.x86_64.rpm"/>
  </package>
</metadata>`

func TestIndexThenListAndStatsAndDelete(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "primary.xml")
	require.NoError(t, os.WriteFile(path, []byte(testPrimaryXML), 0644))

	stats, err := engine.Index(ctx, path, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)

	repos, err := engine.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "baseos", repos[0].Name)
	assert.Equal(t, 1, repos[0].Count)

	count, err := engine.RepoStats(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err := engine.DeleteRepository(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err = engine.RepoStats(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSearchFileResolvesPackagesAfterFilelistsApply(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "primary.xml")
	require.NoError(t, os.WriteFile(path, []byte(testPrimaryXML), 0644))
	_, err := engine.Index(ctx, path, "baseos")
	require.NoError(t, err)

	err = engine.ingester.ApplyFilelists(ctx, "baseos", []ingest.FilelistsPackage{
		{Name: "bash", Arch: "x86_64", Files: []model.FileEntry{{Path: "/usr/bin/bash"}}},
	})
	require.NoError(t, err)

	found, err := engine.SearchFile(ctx, "/usr/bin/bash")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bash", found[0].Name)
}

func TestCompareVersions(t *testing.T) {
	engine := newTestEngine(t)
	assert.Equal(t, VersionLess, engine.CompareVersions("1:2.34-1.el9", "1:2.35-1.el9"))
	assert.Equal(t, VersionGreater, engine.CompareVersions("2.35", "2.34"))
	assert.Equal(t, VersionEqual, engine.CompareVersions("2.34-1", "2.34-1"))
}
