// Package store is the metadata store: relational persistence of
// packages and their dependency facts, plus the structured predicates
// the query planner pre-filters on. It speaks plain database/sql
// against whatever *sql.DB it's handed — the concrete driver (and
// therefore which vector backend shares the connection) is fixed at
// compile time by the "portable" build tag through vector.Open, not here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
	"github.com/nn1a/rpm-vec/internal/version"
	"go.uber.org/zap"
)

// Store is the metadata store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New wraps an already-open *sql.DB, ensures the schema exists, and
// records model.SchemaVersion in the metadata table.
func New(db *sql.DB, logger *zap.Logger) (*Store, error) {
	if _, err := db.Exec(model.Schema); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", fmt.Errorf("initialize schema: %w", err))
	}
	if _, err := db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fmt.Sprintf("%d", model.SchemaVersion)); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", fmt.Errorf("record schema version: %w", err))
	}
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying connection so other components (the vector
// store) can share it.
func (s *Store) DB() *sql.DB { return s.db }

// InsertPackage persists a new package plus its dependency facts in one
// transaction. Fails with UniqueViolation if (name, arch, repo) already
// exists.
func (s *Store) InsertPackage(ctx context.Context, pkg model.Package) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO packages (name, epoch, version, release, arch, summary, description, license, vcs, repo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pkg.Name, pkg.Epoch, pkg.Version, pkg.Release, pkg.Arch, pkg.Summary, pkg.Description, nullable(pkg.License), nullable(pkg.VCS), pkg.Repo)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, rpmerr.New(rpmerr.UniqueViolation, pkg.Name, err)
		}
		return 0, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}

	if err := insertDependencies(ctx, tx, id, pkg.Requires, pkg.Provides); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	return id, nil
}

// UpdatePackage replaces version/release/summary/description (and
// license/vcs/epoch) on an existing package, and rewrites its dependency
// rows, atomically.
func (s *Store) UpdatePackage(ctx context.Context, oldID int64, pkg model.Package) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE packages SET epoch = ?, version = ?, release = ?, summary = ?, description = ?, license = ?, vcs = ?
		WHERE pkg_id = ?
	`, pkg.Epoch, pkg.Version, pkg.Release, pkg.Summary, pkg.Description, nullable(pkg.License), nullable(pkg.VCS), oldID)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE pkg_id = ?`, oldID); err != nil {
		return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	if err := insertDependencies(ctx, tx, oldID, pkg.Requires, pkg.Provides); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	return nil
}

// DeletePackage removes a package by (name, arch, repo) along with its
// dependency and file rows, atomically. The caller is responsible for
// also deleting the package's embedding from the vector store — that
// cascade crosses stores and can't be expressed as a single SQL FK.
func (s *Store) DeletePackage(ctx context.Context, name, arch, repo string) (int64, error) {
	pkg, err := s.FindPackage(ctx, name, arch, repo)
	if err != nil {
		return 0, err
	}
	if pkg == nil {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE pkg_id = ?`, pkg.ID); err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE pkg_id = ?`, pkg.ID); err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE pkg_id = ?`, pkg.ID); err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, name, err)
	}
	return pkg.ID, nil
}

// RepoDiffUpdate pairs the id of a previously stored package with the
// freshly parsed record it should be replaced by.
type RepoDiffUpdate struct {
	OldID int64
	New   model.Package
}

// RepoDiffResult carries the ids of the removed packages, whose
// vector-store embeddings the caller must also drop — removal crosses the metadata
// store / vector store boundary, so the caller applies it after this
// transaction commits (delete_repository and incremental ingest both
// need this).
type RepoDiffResult struct {
	RemovedIDs []int64
}

// ApplyRepoDiff commits an add/update/remove diff for one repository in
// a single transaction: either every insert, update, and delete lands,
// or none does. removeNames/removeArches are paired by index.
func (s *Store) ApplyRepoDiff(ctx context.Context, inserts []model.Package, updates []RepoDiffUpdate, removeIDs []int64, removeNames, removeArches, removeRepos []string) (RepoDiffResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer tx.Rollback()

	for _, pkg := range inserts {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO packages (name, epoch, version, release, arch, summary, description, license, vcs, repo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, pkg.Name, pkg.Epoch, pkg.Version, pkg.Release, pkg.Arch, pkg.Summary, pkg.Description, nullable(pkg.License), nullable(pkg.VCS), pkg.Repo)
		if err != nil {
			if isUniqueViolation(err) {
				return RepoDiffResult{}, rpmerr.New(rpmerr.UniqueViolation, pkg.Name, err)
			}
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, pkg.Name, err)
		}
		if err := insertDependencies(ctx, tx, id, pkg.Requires, pkg.Provides); err != nil {
			return RepoDiffResult{}, err
		}
	}

	for _, u := range updates {
		_, err := tx.ExecContext(ctx, `
			UPDATE packages SET epoch = ?, version = ?, release = ?, summary = ?, description = ?, license = ?, vcs = ?
			WHERE pkg_id = ?
		`, u.New.Epoch, u.New.Version, u.New.Release, u.New.Summary, u.New.Description, nullable(u.New.License), nullable(u.New.VCS), u.OldID)
		if err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, u.New.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE pkg_id = ?`, u.OldID); err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, u.New.Name, err)
		}
		if err := insertDependencies(ctx, tx, u.OldID, u.New.Requires, u.New.Provides); err != nil {
			return RepoDiffResult{}, err
		}
	}

	for i, id := range removeIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE pkg_id = ?`, id); err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, removeNames[i], err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE pkg_id = ?`, id); err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, removeNames[i], err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE name = ? AND arch = ? AND repo = ?`,
			removeNames[i], removeArches[i], removeRepos[i]); err != nil {
			return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, removeNames[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RepoDiffResult{}, rpmerr.New(rpmerr.StorageError, "", err)
	}
	return RepoDiffResult{RemovedIDs: removeIDs}, nil
}

// FindPackage does an exact (name, arch, repo) lookup, returning
// (nil, nil) if absent.
func (s *Store) FindPackage(ctx context.Context, name, arch, repo string) (*model.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pkg_id, name, epoch, version, release, arch, summary, description, license, vcs, repo
		FROM packages WHERE name = ? AND arch = ? AND repo = ?
	`, name, arch, repo)

	pkg, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, name, err)
	}
	if err := s.loadDependencies(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// PackageKey is the (id, name, arch, epoch, version, release) tuple
// packages_in_repo returns for incremental diffing.
type PackageKey struct {
	ID      int64
	Name    string
	Arch    string
	Epoch   *int64
	Version string
	Release string
}

// PackagesInRepo lists every stored package key for repo R.
func (s *Store) PackagesInRepo(ctx context.Context, repo string) ([]PackageKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pkg_id, name, arch, epoch, version, release FROM packages WHERE repo = ?
	`, repo)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	defer rows.Close()

	var keys []PackageKey
	for rows.Next() {
		var k PackageKey
		if err := rows.Scan(&k.ID, &k.Name, &k.Arch, &k.Epoch, &k.Version, &k.Release); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, repo, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// AllPackages returns every stored package with its dependencies
// loaded, used by the embedding builder's rebuild mode.
func (s *Store) AllPackages(ctx context.Context) ([]model.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pkg_id, name, epoch, version, release, arch, summary, description, license, vcs, repo
		FROM packages
	`)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var packages []model.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		packages = append(packages, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	for i := range packages {
		if err := s.loadDependencies(ctx, &packages[i]); err != nil {
			return nil, err
		}
	}
	return packages, nil
}

// RepoCount is one (repository name, package count) pair, used by
// list_repositories.
type RepoCount struct {
	Name  string
	Count int
}

// ListRepositories returns the distinct repositories currently stored
// and how many packages each owns.
func (s *Store) ListRepositories(ctx context.Context) ([]RepoCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo, COUNT(*) FROM packages GROUP BY repo ORDER BY repo
	`)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var out []RepoCount
	for rows.Next() {
		var rc RepoCount
		if err := rows.Scan(&rc.Name, &rc.Count); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// RepoStats returns the package count for one repository.
func (s *Store) RepoStats(ctx context.Context, repo string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages WHERE repo = ?`, repo).Scan(&count)
	if err != nil {
		return 0, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	return count, nil
}

// DeleteRepository removes every package (and, by ownership chain,
// dependency/file row) belonging to repo, returning the removed ids.
// Embedding deletion for the removed ids is the caller's responsibility,
// mirroring ApplyRepoDiff's best-effort-after-commit cascade (see
// DESIGN.md).
func (s *Store) DeleteRepository(ctx context.Context, repo string) ([]int64, error) {
	keys, err := s.PackagesInRepo(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM dependencies WHERE pkg_id IN (%s)`, inClause), args...); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM files WHERE pkg_id IN (%s)`, inClause), args...); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE repo = ?`, repo); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	return ids, nil
}

// CandidateFilter is the set of structured predicates
// filtered_candidate_ids accepts; a zero-value field means "unfiltered".
type CandidateFilter struct {
	Arch string
	Repo string
}

// FilteredCandidateIDs returns every package id matching the supplied
// structured predicates.
func (s *Store) FilteredCandidateIDs(ctx context.Context, filter CandidateFilter) ([]int64, error) {
	query := "SELECT pkg_id FROM packages WHERE 1=1"
	var args []any
	if filter.Arch != "" {
		query += " AND arch = ?"
		args = append(args, filter.Arch)
	}
	if filter.Repo != "" {
		query += " AND repo = ?"
		args = append(args, filter.Repo)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DependencyBound is a (name, flag, version) filter argument:
// not-requiring "foo >= 2.34" or providing "foo".
type DependencyBound struct {
	Name    string
	Flag    model.DepFlag
	Version string
}

// ApplyDependencyFilters reduces a candidate id set: packages with a
// requires-row matching requiresExcluded (name + rpmvercmp-aware version
// bound) are dropped; when providesRequired is set, only packages with a
// matching provides-row survive. Absence of the excluded dependency does
// not exclude a package.
func (s *Store) ApplyDependencyFilters(ctx context.Context, candidates []int64, requiresExcluded, providesRequired *DependencyBound) ([]int64, error) {
	if len(candidates) == 0 || (requiresExcluded == nil && providesRequired == nil) {
		return candidates, nil
	}

	excluded := make(map[int64]bool)
	allowed := make(map[int64]bool)

	if requiresExcluded != nil {
		ids, err := s.depMatchingIDs(ctx, candidates, model.Requires, requiresExcluded.Name)
		if err != nil {
			return nil, err
		}
		for id, deps := range ids {
			for _, d := range deps {
				if requiresExcluded.Version == "" || compareBound(d.Version, requiresExcluded.Flag, requiresExcluded.Version) {
					excluded[id] = true
					break
				}
			}
		}
	}

	if providesRequired != nil {
		ids, err := s.depMatchingIDs(ctx, candidates, model.Provides, providesRequired.Name)
		if err != nil {
			return nil, err
		}
		for id := range ids {
			allowed[id] = true
		}
	}

	out := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if excluded[id] {
			continue
		}
		if providesRequired != nil && !allowed[id] {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// compareBound reports whether a dependency's bare version satisfies
// "flag bound" (e.g. version >= bound) under rpmvercmp.
func compareBound(depVersion string, flag model.DepFlag, bound string) bool {
	o := version.CompareSegments(version.BareVersion(depVersion), version.BareVersion(bound))
	switch flag {
	case model.FlagEQ:
		return o == version.Equal
	case model.FlagLT:
		return o == version.Less
	case model.FlagLE:
		return o == version.Less || o == version.Equal
	case model.FlagGT:
		return o == version.Greater
	case model.FlagGE:
		return o == version.Greater || o == version.Equal
	default:
		return true
	}
}

func (s *Store) depMatchingIDs(ctx context.Context, candidates []int64, kind model.DepKind, name string) (map[int64][]model.Dependency, error) {
	placeholders := make([]string, len(candidates))
	args := make([]any, 0, len(candidates)+2)
	args = append(args, string(kind), name)
	for i, id := range candidates {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT pkg_id, flag, version FROM dependencies
		WHERE kind = ? AND name = ? AND pkg_id IN (%s)
	`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, name, err)
	}
	defer rows.Close()

	out := make(map[int64][]model.Dependency)
	for rows.Next() {
		var pkgID int64
		var flag, ver string
		if err := rows.Scan(&pkgID, &flag, &ver); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, name, err)
		}
		out[pkgID] = append(out[pkgID], model.Dependency{PkgID: pkgID, Kind: kind, Name: name, Flag: model.DepFlag(flag), Version: ver})
	}
	return out, rows.Err()
}

// PackagesByIDs resolves full Package records (with dependencies) for a
// set of ids, in no particular order — callers that need a specific
// order (e.g. the structured search path) sort afterward.
func (s *Store) PackagesByIDs(ctx context.Context, ids []int64) ([]model.Package, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT pkg_id, name, epoch, version, release, arch, summary, description, license, vcs, repo
		FROM packages WHERE pkg_id IN (%s)
	`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var packages []model.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		packages = append(packages, *pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	for i := range packages {
		if err := s.loadDependencies(ctx, &packages[i]); err != nil {
			return nil, err
		}
	}
	return packages, nil
}

// UpsertFiles replaces the file list owned by a package (used by the
// filelists.xml supplement).
func (s *Store) UpsertFiles(ctx context.Context, pkgID int64, files []model.FileEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE pkg_id = ?`, pkgID); err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	for _, f := range files {
		if _, err := tx.ExecContext(ctx, `INSERT INTO files (pkg_id, path, file_type) VALUES (?, ?, ?)`, pkgID, f.Path, f.Type); err != nil {
			return rpmerr.New(rpmerr.StorageError, f.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

// FindPackagesByFile resolves every package that ships an exact file
// path, for the file→package direction of `find` queries (§4.2/§4.4
// supplement). Wildcard/substring matching is the caller's job:
// search_file only ever does the exact lookup the path index supports.
func (s *Store) FindPackagesByFile(ctx context.Context, path string) ([]model.Package, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT pkg_id FROM files WHERE path = ?`, path)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, rpmerr.New(rpmerr.StorageError, path, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	rows.Close()
	return s.PackagesByIDs(ctx, ids)
}

// FindFiles resolves one package's file listing, for `find` queries.
func (s *Store) FindFiles(ctx context.Context, pkgID int64) ([]model.FileEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, file_type FROM files WHERE pkg_id = ?`, pkgID)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var files []model.FileEntry
	for rows.Next() {
		var f model.FileEntry
		if err := rows.Scan(&f.Path, &f.Type); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func insertDependencies(ctx context.Context, tx *sql.Tx, pkgID int64, requires, provides []model.Dependency) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dependencies (pkg_id, kind, name, flag, version) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer stmt.Close()

	for _, d := range requires {
		if _, err := stmt.ExecContext(ctx, pkgID, string(model.Requires), d.Name, string(d.Flag), d.Version); err != nil {
			return rpmerr.New(rpmerr.StorageError, d.Name, err)
		}
	}
	for _, d := range provides {
		if _, err := stmt.ExecContext(ctx, pkgID, string(model.Provides), d.Name, string(d.Flag), d.Version); err != nil {
			return rpmerr.New(rpmerr.StorageError, d.Name, err)
		}
	}
	return nil
}

func (s *Store) loadDependencies(ctx context.Context, pkg *model.Package) error {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, name, flag, version FROM dependencies WHERE pkg_id = ?`, pkg.ID)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, name, flag, ver string
		if err := rows.Scan(&kind, &name, &flag, &ver); err != nil {
			return rpmerr.New(rpmerr.StorageError, pkg.Name, err)
		}
		d := model.Dependency{PkgID: pkg.ID, Kind: model.DepKind(kind), Name: name, Flag: model.DepFlag(flag), Version: ver}
		if d.Kind == model.Requires {
			pkg.Requires = append(pkg.Requires, d)
		} else {
			pkg.Provides = append(pkg.Provides, d)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(row scanner) (*model.Package, error) {
	var pkg model.Package
	var license, vcs sql.NullString
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Epoch, &pkg.Version, &pkg.Release, &pkg.Arch, &pkg.Summary, &pkg.Description, &license, &vcs, &pkg.Repo); err != nil {
		return nil, err
	}
	pkg.License = license.String
	pkg.VCS = vcs.String
	return &pkg, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation recognizes both sqlite drivers' constraint-violation
// errors by substring, since mattn/go-sqlite3 and ncruces/go-sqlite3
// surface distinct error types for the same SQLITE_CONSTRAINT condition.
func isUniqueViolation(err error) bool {
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "UNIQUE CONSTRAINT")
}
