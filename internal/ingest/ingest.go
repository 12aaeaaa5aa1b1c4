// Package ingest applies a freshly parsed repository catalog against the
// currently stored package set, producing and committing a three-way
// add/update/remove diff in one transactional boundary.
package ingest

import (
	"context"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/store"
	"github.com/nn1a/rpm-vec/internal/vector"
)

// Stats reports the outcome of one Apply call.
type Stats struct {
	Added   int
	Updated int
	Removed int
}

// Ingester owns the store and vector backend a catalog is applied
// against.
type Ingester struct {
	store   *store.Store
	backend vector.Backend
}

// New constructs an Ingester.
func New(s *store.Store, backend vector.Backend) *Ingester {
	return &Ingester{store: s, backend: backend}
}

// Apply diffs freshPackages (the just-parsed catalog for repo) against
// the currently stored package set for repo and applies add/update/
// remove. Per §4.8: add when (name, arch) is absent; update when present
// but (epoch, version, release) differs under strict equality; remove
// when a stored (name, arch) is absent from freshPackages. The direction
// of a version change on update is not checked — downstream catalogs may
// roll back a package, and that's not this layer's concern.
//
// The metadata-store side of the diff (inserts, updates, deletes) commits
// as one transaction. Embedding deletion for removed packages happens
// immediately afterward: it crosses into the vector store, which the
// metadata store's transaction can't see past its own driver boundary.
func (ing *Ingester) Apply(ctx context.Context, repo string, freshPackages []model.Package) (Stats, error) {
	existing, err := ing.store.PackagesInRepo(ctx, repo)
	if err != nil {
		return Stats{}, err
	}

	type key struct{ name, arch string }
	existingByKey := make(map[key]store.PackageKey, len(existing))
	for _, k := range existing {
		existingByKey[key{k.Name, k.Arch}] = k
	}

	freshKeys := make(map[key]bool, len(freshPackages))
	var inserts []model.Package
	var updates []store.RepoDiffUpdate

	for _, pkg := range freshPackages {
		k := key{pkg.Name, pkg.Arch}
		freshKeys[k] = true

		if old, ok := existingByKey[k]; ok {
			if versionsEqual(old, pkg) {
				continue
			}
			updates = append(updates, store.RepoDiffUpdate{OldID: old.ID, New: pkg})
			continue
		}
		inserts = append(inserts, pkg)
	}

	var removeIDs []int64
	var removeNames, removeArches, removeRepos []string
	for k, old := range existingByKey {
		if freshKeys[k] {
			continue
		}
		removeIDs = append(removeIDs, old.ID)
		removeNames = append(removeNames, old.Name)
		removeArches = append(removeArches, old.Arch)
		removeRepos = append(removeRepos, repo)
	}

	result, err := ing.store.ApplyRepoDiff(ctx, inserts, updates, removeIDs, removeNames, removeArches, removeRepos)
	if err != nil {
		return Stats{}, err
	}

	if ing.backend != nil {
		for _, id := range result.RemovedIDs {
			if err := ing.backend.Delete(ctx, id); err != nil {
				return Stats{}, err
			}
		}
	}

	return Stats{Added: len(inserts), Updated: len(updates), Removed: len(removeIDs)}, nil
}

// FilelistsPackage is one filelists.xml package record, matched to a
// stored package by (name, arch) within repo.
type FilelistsPackage struct {
	Name  string
	Arch  string
	Files []model.FileEntry
}

// ApplyFilelists replaces the file manifest for every package named in
// lists that is currently stored under repo. Packages filelists.xml
// mentions but primary.xml doesn't (or vice versa) are silently
// skipped — NEVRA mismatches between the two catalogs are a malformed
// upstream repository, not this layer's concern.
func (ing *Ingester) ApplyFilelists(ctx context.Context, repo string, lists []FilelistsPackage) error {
	existing, err := ing.store.PackagesInRepo(ctx, repo)
	if err != nil {
		return err
	}
	type key struct{ name, arch string }
	idByKey := make(map[key]int64, len(existing))
	for _, k := range existing {
		idByKey[key{k.Name, k.Arch}] = k.ID
	}

	for _, l := range lists {
		id, ok := idByKey[key{l.Name, l.Arch}]
		if !ok {
			continue
		}
		if err := ing.store.UpsertFiles(ctx, id, l.Files); err != nil {
			return err
		}
	}
	return nil
}

func versionsEqual(old store.PackageKey, fresh model.Package) bool {
	oldEpoch := int64(0)
	if old.Epoch != nil {
		oldEpoch = *old.Epoch
	}
	return oldEpoch == fresh.EpochOrZero() && old.Version == fresh.Version && old.Release == fresh.Release
}
