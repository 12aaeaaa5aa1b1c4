// Package vector is the vector store: a pluggable cosine-similarity
// index over package embeddings, backed by the same SQLite file the
// metadata store lives in. The portable backend's embeddings table
// cascades from packages, so its rows go in the same transaction that
// deletes a package; the native vec0 table has no such link, and its
// rows are deleted by the caller after the metadata transaction commits.
//
// Two backends exist (see native.go and portable.go), selected at
// compile time via the "portable" build tag rather than at runtime,
// because the native backend's driver (ncruces/go-sqlite3) and the
// portable backend's driver (mattn/go-sqlite3) both register themselves
// under the database/sql driver name "sqlite3" — importing both into one
// binary panics at init time with "sql: Register called twice". Building
// with -tags portable swaps the driver and the backend together; the
// default build always uses the native vec0 virtual table, and its Open
// fails if vec0 is unavailable (there is no runtime fallback).
package vector

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// SearchResult is one hit from a similarity search: a package id and its
// cosine similarity to the query vector: in [0, 1] from the native
// backend, in [-1, 1] from the portable one.
type SearchResult struct {
	PkgID      int64
	Similarity float64
}

// Backend is the vector store contract both implementations satisfy.
type Backend interface {
	// Initialize fixes the embedding dimension for the corpus. Idempotent.
	Initialize(ctx context.Context, dim int) error
	// Upsert stores or replaces pkgID's embedding. len(vec) must equal dim.
	Upsert(ctx context.Context, pkgID int64, vec []float32) error
	// Delete removes pkgID's embedding; silent if absent.
	Delete(ctx context.Context, pkgID int64) error
	// SimilaritySearch returns the top-k most similar packages across the
	// whole corpus, descending by similarity.
	SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
	// FilteredSimilaritySearch is SimilaritySearch restricted to candidateIDs.
	FilteredSimilaritySearch(ctx context.Context, query []float32, candidateIDs []int64, topK int) ([]SearchResult, error)
	// IDsWithoutVector lists package ids with no stored embedding.
	IDsWithoutVector(ctx context.Context) ([]int64, error)
	// WipeAll removes every stored embedding, for rebuild mode.
	WipeAll(ctx context.Context) error
	// Dim reports the dimension Initialize fixed, or 0 if not yet initialized.
	Dim() int
}

// ModelInfo records which embedding model populated the corpus, so an
// incremental embedding build with a different model can be caught
// rather than silently mixing incompatible vector spaces.
type ModelInfo struct {
	Name string
	Dim  int
}

const (
	metaModelNameKey = "embedding_model_name"
	metaModelDimKey  = "embedding_model_dim"
)

// SetModelInfo records the active embedding model's identity in the
// shared metadata table, replacing any earlier identity. The embedding
// builder calls it on a rebuild; incremental builds go through
// CheckModelIdentity instead, which fails on a different model.
func SetModelInfo(ctx context.Context, db *sql.DB, info ModelInfo) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaModelNameKey, info.Name)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaModelDimKey, fmt.Sprintf("%d", info.Dim))
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

// GetModelInfo returns the recorded embedding model identity, if any.
func GetModelInfo(ctx context.Context, db *sql.DB) (ModelInfo, bool, error) {
	var name, dimStr string
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, metaModelNameKey).Scan(&name)
	if err == sql.ErrNoRows {
		return ModelInfo{}, false, nil
	}
	if err != nil {
		return ModelInfo{}, false, rpmerr.New(rpmerr.StorageError, "", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, metaModelDimKey).Scan(&dimStr); err != nil {
		return ModelInfo{}, false, rpmerr.New(rpmerr.StorageError, "", err)
	}
	var dim int
	if _, err := fmt.Sscanf(dimStr, "%d", &dim); err != nil {
		return ModelInfo{}, false, rpmerr.New(rpmerr.StorageError, "", err)
	}
	return ModelInfo{Name: name, Dim: dim}, true, nil
}

// CheckModelIdentity fails with EmbedError if a different embedding
// model already populated the corpus, per §4.6's mismatch guard.
func CheckModelIdentity(ctx context.Context, db *sql.DB, want ModelInfo) error {
	got, ok, err := GetModelInfo(ctx, db)
	if err != nil {
		return err
	}
	if !ok {
		return SetModelInfo(ctx, db, want)
	}
	if got.Name != want.Name || got.Dim != want.Dim {
		return rpmerr.New(rpmerr.EmbedError, want.Name, fmt.Errorf(
			"corpus was embedded with model %q (dim %d); rebuild required to switch to %q (dim %d)",
			got.Name, got.Dim, want.Name, want.Dim))
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < -1 {
		sim = -1
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
