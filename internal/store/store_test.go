package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := New(db, nil)
	require.NoError(t, err)
	return s
}

func samplePackage() model.Package {
	return model.Package{
		Name: "bash", Version: "5.2", Release: "1.el9", Arch: "x86_64",
		Summary: "shell", Description: "GNU Bourne Again shell", Repo: "baseos",
		Requires: []model.Dependency{{Name: "libc.so.6", Flag: model.FlagGE, Version: "2.28"}},
		Provides: []model.Dependency{{Name: "bash", Flag: model.FlagEQ, Version: "5.2-1.el9"}},
	}
}

func TestInsertAndFindPackage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)
	require.NotZero(t, id)

	found, err := s.FindPackage(ctx, "bash", "x86_64", "baseos")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "5.2", found.Version)
	require.Len(t, found.Requires, 1)
	assert.Equal(t, "libc.so.6", found.Requires[0].Name)
	require.Len(t, found.Provides, 1)
}

func TestInsertDuplicateFailsUniqueViolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)

	_, err = s.InsertPackage(ctx, samplePackage())
	require.Error(t, err)
	assert.True(t, rpmerr.Is(err, rpmerr.UniqueViolation))
}

func TestUpdatePackageRewritesDependencies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)

	updated := samplePackage()
	updated.Version = "5.3"
	updated.Requires = []model.Dependency{{Name: "glibc", Flag: model.FlagUnspecified}}

	require.NoError(t, s.UpdatePackage(ctx, id, updated))

	found, err := s.FindPackage(ctx, "bash", "x86_64", "baseos")
	require.NoError(t, err)
	assert.Equal(t, "5.3", found.Version)
	require.Len(t, found.Requires, 1)
	assert.Equal(t, "glibc", found.Requires[0].Name)
}

func TestDeletePackageCascadesDependencies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)
	deletedID, err := s.DeletePackage(ctx, "bash", "x86_64", "baseos")
	require.NoError(t, err)
	assert.Equal(t, id, deletedID)

	found, err := s.FindPackage(ctx, "bash", "x86_64", "baseos")
	require.NoError(t, err)
	assert.Nil(t, found)

	var depCount int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dependencies WHERE pkg_id = ?`, id).Scan(&depCount))
	assert.Equal(t, 0, depCount)
}

func TestPackagesInRepo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p1 := samplePackage()
	p2 := samplePackage()
	p2.Name = "zsh"
	_, err := s.InsertPackage(ctx, p1)
	require.NoError(t, err)
	_, err = s.InsertPackage(ctx, p2)
	require.NoError(t, err)

	keys, err := s.PackagesInRepo(ctx, "baseos")
	require.NoError(t, err)
	require.Len(t, keys, 2)
}

func TestApplyDependencyFiltersExcludesRequiresAboveBound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := samplePackage()
	a.Name = "a"
	a.Requires = []model.Dependency{{Name: "foo", Version: "2.40"}}
	b := samplePackage()
	b.Name = "b"
	b.Requires = []model.Dependency{{Name: "foo", Version: "2.10"}}
	c := samplePackage()
	c.Name = "c"
	c.Requires = nil

	idA, err := s.InsertPackage(ctx, a)
	require.NoError(t, err)
	idB, err := s.InsertPackage(ctx, b)
	require.NoError(t, err)
	idC, err := s.InsertPackage(ctx, c)
	require.NoError(t, err)

	bound := &DependencyBound{Name: "foo", Flag: model.FlagGE, Version: "2.34"}
	out, err := s.ApplyDependencyFilters(ctx, []int64{idA, idB, idC}, bound, nil)
	require.NoError(t, err)
	assert.NotContains(t, out, idA)
	assert.Contains(t, out, idB)
	assert.Contains(t, out, idC)
}

func TestApplyDependencyFiltersProvidesRequired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := samplePackage()
	a.Name = "a"
	a.Provides = []model.Dependency{{Name: "webserver"}}
	b := samplePackage()
	b.Name = "b"
	b.Provides = nil

	idA, err := s.InsertPackage(ctx, a)
	require.NoError(t, err)
	idB, err := s.InsertPackage(ctx, b)
	require.NoError(t, err)

	out, err := s.ApplyDependencyFilters(ctx, []int64{idA, idB}, nil, &DependencyBound{Name: "webserver"})
	require.NoError(t, err)
	assert.Contains(t, out, idA)
	assert.NotContains(t, out, idB)
}

func TestUpsertAndFindFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)

	files := []model.FileEntry{
		{Path: "/usr/bin/bash", Type: model.FileTypeFile},
		{Path: "/etc/bash", Type: model.FileTypeDir},
	}
	require.NoError(t, s.UpsertFiles(ctx, id, files))

	found, err := s.FindFiles(ctx, id)
	require.NoError(t, err)
	require.Len(t, found, 2)

	byPath, err := s.FindPackagesByFile(ctx, "/usr/bin/bash")
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, id, byPath[0].ID)

	none, err := s.FindPackagesByFile(ctx, "/no/such/path")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListRepositoriesAndRepoStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)
	other := samplePackage()
	other.Name = "zsh"
	other.Repo = "extras"
	_, err = s.InsertPackage(ctx, other)
	require.NoError(t, err)

	repos, err := s.ListRepositories(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)

	count, err := s.RepoStats(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteRepositoryRemovesAllOwnedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)
	require.NoError(t, s.UpsertFiles(ctx, id, []model.FileEntry{{Path: "/usr/bin/bash"}}))

	removed, err := s.DeleteRepository(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, removed)

	count, err := s.RepoStats(ctx, "baseos")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	found, err := s.FindPackagesByFile(ctx, "/usr/bin/bash")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestAllPackagesLoadsDependencies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertPackage(ctx, samplePackage())
	require.NoError(t, err)

	all, err := s.AllPackages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Requires, 1)
	assert.Len(t, all[0].Provides, 1)
}
