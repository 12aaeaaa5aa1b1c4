// Package rpmvec is the upward-facing facade named in spec.md §6: it
// wires the metadata store, vector backend, embedding builder, query
// planner, ingest, and sync components behind the small set of
// operations a CLI or MCP adapter calls (index, build_embeddings,
// search, list_repositories, repo_stats, delete_repository,
// compare_versions, sync_once, sync_daemon, sync_status).
package rpmvec

import (
	"bytes"
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/nn1a/rpm-vec/internal/embedding"
	"github.com/nn1a/rpm-vec/internal/ingest"
	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/normalize"
	"github.com/nn1a/rpm-vec/internal/repomd"
	"github.com/nn1a/rpm-vec/internal/search"
	"github.com/nn1a/rpm-vec/internal/store"
	"github.com/nn1a/rpm-vec/internal/sync"
	"github.com/nn1a/rpm-vec/internal/version"
	"github.com/nn1a/rpm-vec/internal/vector"
	"go.uber.org/zap"
)

// Engine is the single entry point the admin surface and any future
// CLI/MCP adapter call into.
type Engine struct {
	store    *store.Store
	backend  vector.Backend
	ingester *ingest.Ingester
	builder  *embedding.Builder
	planner  *search.Planner
	states   *sync.StateStore
	syncer   *sync.Syncer
	sched    *sync.Scheduler
}

// packageSource adapts Store and the vector backend to
// embedding.PackageSource.
type packageSource struct {
	store   *store.Store
	backend vector.Backend
}

func (a packageSource) AllPackages(ctx context.Context) ([]model.Package, error) {
	return a.store.AllPackages(ctx)
}

func (a packageSource) PackagesWithoutEmbedding(ctx context.Context) ([]model.Package, error) {
	ids, err := a.backend.IDsWithoutVector(ctx)
	if err != nil {
		return nil, err
	}
	return a.store.PackagesByIDs(ctx, ids)
}

// New wires every component together. backend and embedder are
// supplied by the caller (cmd/server) since the backend's concrete
// type depends on the build tag in force and the embedder depends on
// which model loader was configured; neither is this package's
// concern.
func New(db *sql.DB, backend vector.Backend, embedder embedding.Embedder, fetcher *repomd.Fetcher, logger *zap.Logger) (*Engine, error) {
	st, err := store.New(db, logger)
	if err != nil {
		return nil, err
	}

	ing := ingest.New(st, backend)
	builder := embedding.NewBuilder(db, embedder, backend, packageSource{store: st, backend: backend}, logger)
	planner := search.New(st, backend, embedder)
	states := sync.NewStateStore(db)
	syncer := sync.NewSyncer(fetcher, states, ing, logger)
	sched := sync.NewScheduler(syncer, logger)

	return &Engine{
		store:    st,
		backend:  backend,
		ingester: ing,
		builder:  builder,
		planner:  planner,
		states:   states,
		syncer:   syncer,
		sched:    sched,
	}, nil
}

// IndexStats mirrors ingest.Stats for callers outside the ingest
// package.
type IndexStats = ingest.Stats

// Index parses a local primary.xml (optionally gzip/zstd-compressed,
// dispatched by file extension) and applies it as repoName's catalog.
func (e *Engine) Index(ctx context.Context, filePath, repoName string) (IndexStats, error) {
	raw, err := repomd.FetchLocal(filePath)
	if err != nil {
		return IndexStats{}, err
	}
	decompressed, err := repomd.Decompress(filePath, raw)
	if err != nil {
		return IndexStats{}, err
	}

	var packages []model.Package
	err = repomd.ParsePrimary(bytes.NewReader(decompressed), func(p repomd.RawPackage) error {
		packages = append(packages, normalize.Package(p, repoName))
		return nil
	})
	if err != nil {
		return IndexStats{}, err
	}

	return e.ingester.Apply(ctx, repoName, packages)
}

// BuildEmbeddings runs one embedding pass; see embedding.Builder.Build.
func (e *Engine) BuildEmbeddings(ctx context.Context, rebuild, verbose bool, onProgress func(embedding.Progress)) (int, error) {
	return e.builder.Build(ctx, rebuild, verbose, onProgress)
}

// Search runs one query through the hybrid planner.
func (e *Engine) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	return e.planner.Search(ctx, q)
}

// ListRepositories returns every repository currently holding packages
// and how many each has.
func (e *Engine) ListRepositories(ctx context.Context) ([]store.RepoCount, error) {
	return e.store.ListRepositories(ctx)
}

// RepoStats returns the package count for one repository.
func (e *Engine) RepoStats(ctx context.Context, repo string) (int, error) {
	return e.store.RepoStats(ctx, repo)
}

// DeleteRepository removes every package owned by repo (and its
// dependencies/files), then best-effort deletes each package's
// embedding, and finally clears the repo's sync state.
func (e *Engine) DeleteRepository(ctx context.Context, repo string) (int, error) {
	ids, err := e.store.DeleteRepository(ctx, repo)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		_ = e.backend.Delete(ctx, id)
	}
	if err := e.states.Delete(ctx, repo); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DeletePackage removes one package (by name, arch, repo) and its
// embedding, without touching the rest of its repository's catalog or
// the repository's sync state. Returns 0 if no such package exists.
func (e *Engine) DeletePackage(ctx context.Context, name, arch, repo string) (int64, error) {
	id, err := e.store.DeletePackage(ctx, name, arch, repo)
	if err != nil || id == 0 {
		return 0, err
	}
	_ = e.backend.Delete(ctx, id)
	return id, nil
}

// SearchFile resolves every package that ships the exact file path,
// the file-owner direction of `find` (§4.2/§4.4 supplement). Stays
// empty for repositories that never published filelists.xml or whose
// filelists sync failed; that's a data-availability gap, not an error.
func (e *Engine) SearchFile(ctx context.Context, path string) ([]model.Package, error) {
	return e.store.FindPackagesByFile(ctx, path)
}

// VersionComparison is the three-way outcome compare_versions reports.
type VersionComparison string

const (
	VersionLess    VersionComparison = "less"
	VersionEqual   VersionComparison = "equal"
	VersionGreater VersionComparison = "greater"
)

// CompareVersions compares two composed NEVRA version strings
// ("epoch:version-release", or any subset of those three parts) using
// rpmvercmp semantics.
func (e *Engine) CompareVersions(a, b string) VersionComparison {
	switch version.Compare(tripleFromComposed(a), tripleFromComposed(b)) {
	case version.Less:
		return VersionLess
	case version.Greater:
		return VersionGreater
	default:
		return VersionEqual
	}
}

func tripleFromComposed(composed string) version.Triple {
	var epoch int64
	rest := composed
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		if n, err := strconv.ParseInt(rest[:i], 10, 64); err == nil {
			epoch = n
		}
		rest = rest[i+1:]
	}
	ver := rest
	release := ""
	if i := strings.LastIndexByte(rest, '-'); i >= 0 {
		ver = rest[:i]
		release = rest[i+1:]
	}
	return version.Triple{Epoch: epoch, Version: ver, Release: release}
}

// SyncOnce runs one sync pass for a single configured repository.
func (e *Engine) SyncOnce(ctx context.Context, repo sync.RepoConfig) (sync.Result, error) {
	return e.syncer.SyncOnce(ctx, repo)
}

// SyncDaemon blocks, ticking each enabled repo at its own interval,
// until ctx is cancelled.
func (e *Engine) SyncDaemon(ctx context.Context, repos []sync.RepoConfig) {
	e.sched.RunDaemon(ctx, repos)
}

// StopDaemon requests cooperative shutdown of a running SyncDaemon call.
func (e *Engine) StopDaemon() {
	e.sched.Stop()
}

// SyncStatus reports the last recorded sync outcome for every
// repository that has ever been synced.
func (e *Engine) SyncStatus(ctx context.Context) ([]model.SyncState, error) {
	return e.states.List(ctx)
}
