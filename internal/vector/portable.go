//go:build portable

package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// DriverName is the database/sql driver name this build registers under.
const DriverName = "sqlite3"

// Open opens (creating if absent) the SQLite database at path using the
// cgo mattn/go-sqlite3 driver.
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
	return db, nil
}

// PortableBackend stores vectors as opaque blobs and computes cosine
// similarity in application code, scanning every candidate row. It
// trades query latency for the absence of a native vector-search
// extension; combined with pre-filtering it stays interactive up to
// corpora around 10^5 packages, per §4.5.
type PortableBackend struct {
	db  *sql.DB
	dim int
}

// NewPortableBackend wraps db, which must already hold the metadata
// store's schema (and therefore the `packages` table this backend joins
// against for IDsWithoutVector).
func NewPortableBackend(db *sql.DB) *PortableBackend {
	return &PortableBackend{db: db}
}

// NewBackend builds the Backend this build tag selects, so callers
// (cmd/server) don't need their own build tags to pick one.
func NewBackend(db *sql.DB) Backend {
	return NewPortableBackend(db)
}

func (b *PortableBackend) Dim() int { return b.dim }

func (b *PortableBackend) Initialize(ctx context.Context, dim int) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS embeddings (
		    pkg_id INTEGER PRIMARY KEY,
		    vector BLOB NOT NULL,
		    FOREIGN KEY(pkg_id) REFERENCES packages(pkg_id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	b.dim = dim
	return nil
}

func (b *PortableBackend) Upsert(ctx context.Context, pkgID int64, vec []float32) error {
	if b.dim != 0 && len(vec) != b.dim {
		return rpmerr.New(rpmerr.VectorDimMismatch, "", fmt.Errorf("vector has %d dims, corpus expects %d", len(vec), b.dim))
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO embeddings (pkg_id, vector) VALUES (?, ?)
		ON CONFLICT(pkg_id) DO UPDATE SET vector = excluded.vector
	`, pkgID, encodeVector(vec))
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func (b *PortableBackend) Delete(ctx context.Context, pkgID int64) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM embeddings WHERE pkg_id = ?`, pkgID)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func (b *PortableBackend) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	return b.search(ctx, query, nil, topK)
}

func (b *PortableBackend) FilteredSimilaritySearch(ctx context.Context, query []float32, candidateIDs []int64, topK int) ([]SearchResult, error) {
	return b.search(ctx, query, candidateIDs, topK)
}

func (b *PortableBackend) search(ctx context.Context, query []float32, candidateIDs []int64, topK int) ([]SearchResult, error) {
	var candidates map[int64]bool
	if candidateIDs != nil {
		candidates = make(map[int64]bool, len(candidateIDs))
		for _, id := range candidateIDs {
			candidates[id] = true
		}
	}

	rows, err := b.db.QueryContext(ctx, `SELECT pkg_id, vector FROM embeddings`)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		if candidates != nil && !candidates[id] {
			continue
		}
		results = append(results, SearchResult{PkgID: id, Similarity: cosine(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (b *PortableBackend) WipeAll(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM embeddings`)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, "", err)
	}
	return nil
}

func (b *PortableBackend) IDsWithoutVector(ctx context.Context) ([]int64, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT pkg_id FROM packages WHERE pkg_id NOT IN (SELECT pkg_id FROM embeddings)
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

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
