//go:build !portable

package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// DriverName is the database/sql driver name this build registers under.
const DriverName = "sqlite3"

func init() {
	// The sqlite-vec-go-bindings wasm build uses shared-memory atomics, so
	// the wazero runtime backing ncruces/go-sqlite3 must have the threads
	// feature enabled or module compilation fails outright.
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().
		WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
}

// Open opens (creating if absent) the SQLite database at path using the
// pure-Go ncruces/go-sqlite3 driver, and probes whether the sqlite-vec
// extension's vec0 virtual table is usable. If the probe fails (the
// extension wasn't linked in, or the build was produced without it) the
// caller should fall back to the portable build.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	// PRAGMAs below are per-connection; pin the pool to a single
	// connection so they apply to every statement this process runs,
	// matching §5's "single shared mutable resource" model.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	if err := probeVec0(db); err != nil {
		db.Close()
		return nil, rpmerr.New(rpmerr.StorageError, path, fmt.Errorf("vec0 unavailable: %w", err))
	}
	return db, nil
}

func probeVec0(db *sql.DB) error {
	_, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(v FLOAT[1])`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`DROP TABLE vec_probe`)
	return err
}

// NativeBackend stores embeddings in a vec0 virtual table and leaves
// nearest-neighbor search to the sqlite-vec extension.
type NativeBackend struct {
	db  *sql.DB
	dim int
}

// NewNativeBackend wraps db, which must already hold the metadata
// store's schema.
func NewNativeBackend(db *sql.DB) *NativeBackend {
	return &NativeBackend{db: db}
}

// NewBackend builds the Backend this build tag selects, so callers
// (cmd/server) don't need their own build tags to pick one.
func NewBackend(db *sql.DB) Backend {
	return NewNativeBackend(db)
}

func (b *NativeBackend) Dim() int { return b.dim }

func (b *NativeBackend) Initialize(ctx context.Context, dim int) error {
	ddl := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
		    pkg_id INTEGER PRIMARY KEY,
		    embedding FLOAT[%d] distance_metric=cosine
		)
	`, dim)
	if _, err := b.db.ExecContext(ctx, ddl); err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	b.dim = dim
	return nil
}

func (b *NativeBackend) Upsert(ctx context.Context, pkgID int64, vec []float32) error {
	if b.dim != 0 && len(vec) != b.dim {
		return rpmerr.New(rpmerr.VectorDimMismatch, "", fmt.Errorf("vector has %d dims, corpus expects %d", len(vec), b.dim))
	}
	blob, err := sqlitevec.SerializeFloat32(vec)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	if _, err := b.db.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE pkg_id = ?`, pkgID); err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	if _, err := b.db.ExecContext(ctx, `INSERT INTO vec_embeddings (pkg_id, embedding) VALUES (?, ?)`, pkgID, blob); err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func (b *NativeBackend) Delete(ctx context.Context, pkgID int64) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE pkg_id = ?`, pkgID)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func (b *NativeBackend) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	blob, err := sqlitevec.SerializeFloat32(query)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT pkg_id, distance FROM vec_embeddings WHERE embedding MATCH ? AND k = ? ORDER BY distance
	`, blob, topK)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	return scanDistances(rows)
}

func (b *NativeBackend) FilteredSimilaritySearch(ctx context.Context, query []float32, candidateIDs []int64, topK int) ([]SearchResult, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	blob, err := sqlitevec.SerializeFloat32(query)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	placeholders := make([]string, len(candidateIDs))
	args := make([]any, 0, len(candidateIDs)+2)
	args = append(args, blob, topK)
	for i, id := range candidateIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	sqlQuery := fmt.Sprintf(`
		SELECT pkg_id, distance FROM vec_embeddings
		WHERE embedding MATCH ? AND k = ? AND pkg_id IN (%s)
		ORDER BY distance
	`, strings.Join(placeholders, ","))
	rows, err := b.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	return scanDistances(rows)
}

func (b *NativeBackend) IDsWithoutVector(ctx context.Context) ([]int64, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT pkg_id FROM packages WHERE pkg_id NOT IN (SELECT pkg_id FROM vec_embeddings)
	`)
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

func (b *NativeBackend) WipeAll(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM vec_embeddings`)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func scanDistances(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var results []SearchResult
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		sim := 1 - distance
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		results = append(results, SearchResult{PkgID: id, Similarity: sim})
	}
	return results, rows.Err()
}
