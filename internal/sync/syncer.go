package sync

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nn1a/rpm-vec/internal/ingest"
	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/normalize"
	"github.com/nn1a/rpm-vec/internal/repomd"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
	"go.uber.org/zap"
)

// RepoConfig is one configured remote repository.
type RepoConfig struct {
	Name            string
	BaseURL         string
	Arch            string
	IntervalSeconds int
	enabled         bool
}

// NewRepoConfig builds a RepoConfig from the enabled/disabled flag
// config.Repository exposes via EnabledOrDefault.
func NewRepoConfig(name, baseURL, arch string, intervalSeconds int, enabled bool) RepoConfig {
	return RepoConfig{Name: name, BaseURL: baseURL, Arch: arch, IntervalSeconds: intervalSeconds, enabled: enabled}
}

// Enabled reports whether the scheduler should run this repository.
func (r RepoConfig) Enabled() bool {
	return r.enabled
}

// Result reports the outcome of a single sync_once pass over one
// repository.
type Result struct {
	Repo     string
	Changed  bool
	Stats    ingest.Stats
	SyncedAt time.Time
}

// Syncer drives the per-repository sync state machine described in
// §4.9: fetch repomd, compare checksums, fetch+ingest primary.xml on
// change, record the outcome.
type Syncer struct {
	fetcher *repomd.Fetcher
	states  *StateStore
	ingest  *ingest.Ingester
	logger  *zap.Logger
}

// NewSyncer constructs a Syncer.
func NewSyncer(fetcher *repomd.Fetcher, states *StateStore, ing *ingest.Ingester, logger *zap.Logger) *Syncer {
	return &Syncer{fetcher: fetcher, states: states, ingest: ing, logger: logger}
}

// SyncOnce runs one sync pass for repo.
func (s *Syncer) SyncOnce(ctx context.Context, repo RepoConfig) (Result, error) {
	if err := s.states.markInProgress(ctx, repo.Name); err != nil {
		return Result{}, err
	}

	result, err := s.doSync(ctx, repo)
	if err != nil {
		prev, getErr := s.states.Get(ctx, repo.Name)
		checksum := ""
		if getErr == nil {
			checksum = prev.LastChecksum
		}
		if markErr := s.states.markFailed(ctx, repo.Name, checksum, err); markErr != nil && s.logger != nil {
			s.logger.Error("failed to record sync failure", zap.String("repo", repo.Name), zap.Error(markErr))
		}
		return Result{}, err
	}
	return result, nil
}

func (s *Syncer) doSync(ctx context.Context, repo RepoConfig) (Result, error) {
	indexURL, err := joinURL(repo.BaseURL, "repodata/repomd.xml")
	if err != nil {
		return Result{}, rpmerr.New(rpmerr.ConfigError, repo.Name, err)
	}
	indexBytes, err := s.fetcher.Get(ctx, indexURL)
	if err != nil {
		return Result{}, err
	}

	entries, err := repomd.ParseIndex(strings.NewReader(string(indexBytes)))
	if err != nil {
		return Result{}, err
	}
	primaryEntry, ok := repomd.PrimaryEntryOf(entries)
	if !ok {
		return Result{}, rpmerr.New(rpmerr.ParseError, repo.Name, fmt.Errorf("repomd.xml has no primary entry"))
	}

	prevState, err := s.states.Get(ctx, repo.Name)
	if err != nil {
		return Result{}, err
	}
	if primaryEntry.ChecksumValue != "" && primaryEntry.ChecksumValue == prevState.LastChecksum {
		if err := s.states.markSuccess(ctx, repo.Name, primaryEntry.ChecksumValue); err != nil {
			return Result{}, err
		}
		return Result{Repo: repo.Name, Changed: false, SyncedAt: time.Now()}, nil
	}

	primaryURL, err := joinURL(repo.BaseURL, primaryEntry.LocationHref)
	if err != nil {
		return Result{}, rpmerr.New(rpmerr.ConfigError, repo.Name, err)
	}
	primaryBytes, err := s.fetcher.Get(ctx, primaryURL)
	if err != nil {
		return Result{}, err
	}
	decompressed, err := repomd.Decompress(primaryEntry.LocationHref, primaryBytes)
	if err != nil {
		return Result{}, err
	}

	var packages []model.Package
	err = repomd.ParsePrimary(strings.NewReader(string(decompressed)), func(raw repomd.RawPackage) error {
		packages = append(packages, normalize.Package(raw, repo.Name))
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	stats, err := s.ingest.Apply(ctx, repo.Name, packages)
	if err != nil {
		return Result{}, err
	}

	s.syncFilelists(ctx, repo, entries)

	if err := s.states.markSuccess(ctx, repo.Name, primaryEntry.ChecksumValue); err != nil {
		return Result{}, err
	}

	return Result{Repo: repo.Name, Changed: true, Stats: stats, SyncedAt: time.Now()}, nil
}

// syncFilelists fetches and applies filelists.xml when the repository
// publishes one. It's a best-effort supplement to the primary.xml
// ingest, not part of the sync contract: a repository with no
// filelists entry, or one that fails to fetch or parse, still counts
// as a successful sync — file-path search just stays empty for it.
func (s *Syncer) syncFilelists(ctx context.Context, repo RepoConfig, entries []repomd.PrimaryEntry) {
	entry, ok := repomd.FilelistsEntryOf(entries)
	if !ok {
		return
	}
	fileURL, err := joinURL(repo.BaseURL, entry.LocationHref)
	if err != nil {
		s.logFilelistsError(repo.Name, err)
		return
	}
	raw, err := s.fetcher.Get(ctx, fileURL)
	if err != nil {
		s.logFilelistsError(repo.Name, err)
		return
	}
	decompressed, err := repomd.Decompress(entry.LocationHref, raw)
	if err != nil {
		s.logFilelistsError(repo.Name, err)
		return
	}

	var lists []ingest.FilelistsPackage
	err = repomd.ParseFilelists(strings.NewReader(string(decompressed)), func(p repomd.RawFilelistsPackage) error {
		lists = append(lists, ingest.FilelistsPackage{Name: p.Name, Arch: p.Arch, Files: normalize.Files(p)})
		return nil
	})
	if err != nil {
		s.logFilelistsError(repo.Name, err)
		return
	}

	if err := s.ingest.ApplyFilelists(ctx, repo.Name, lists); err != nil {
		s.logFilelistsError(repo.Name, err)
	}
}

func (s *Syncer) logFilelistsError(repo string, err error) {
	if s.logger != nil {
		s.logger.Warn("filelists sync failed, file-path search stays stale for this repo", zap.String("repo", repo), zap.Error(err))
	}
}

func joinURL(base, relative string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(r).String(), nil
}
