// Package embedding builds vector embeddings for packages lacking one
// and writes them into the vector store. The embedding model itself —
// loading, forward pass, device selection — is an external collaborator;
// this package only owns batching, progress reporting, and the
// incremental/rebuild mode split.
package embedding

import (
	"context"
	"database/sql"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/normalize"
	"github.com/nn1a/rpm-vec/internal/vector"
	"go.uber.org/zap"
)

// DefaultBatchSize matches §4.6's reference batch size.
const DefaultBatchSize = 32

// Embedder is the external collaborator: model loading, forward pass,
// and device selection live outside this package.
type Embedder interface {
	// Name identifies the model, used for the model-identity mismatch guard.
	Name() string
	// Dim is the model's output vector dimension.
	Dim() int
	// EmbedBatch embeds a batch of texts, one vector per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PackageSource resolves the ids+documents a build needs: all packages
// (rebuild mode) or just those without an embedding (incremental mode).
type PackageSource interface {
	PackagesWithoutEmbedding(ctx context.Context) ([]model.Package, error)
	AllPackages(ctx context.Context) ([]model.Package, error)
}

// Builder drives the embedding build loop.
type Builder struct {
	db        *sql.DB
	embedder  Embedder
	backend   vector.Backend
	source    PackageSource
	batchSize int
	logger    *zap.Logger
}

// NewBuilder constructs a Builder with the default batch size. db must
// be the same connection the backend and metadata store were built on,
// since model-identity bookkeeping lives in the shared metadata table.
func NewBuilder(db *sql.DB, embedder Embedder, backend vector.Backend, source PackageSource, logger *zap.Logger) *Builder {
	return &Builder{db: db, embedder: embedder, backend: backend, source: source, batchSize: DefaultBatchSize, logger: logger}
}

// Progress is reported once per batch when a build is verbose, and once
// at completion in every case.
type Progress struct {
	Embedded int
	Failed   int
	Total    int
}

// Build runs one embedding pass. Incremental mode (rebuild=false) only
// embeds packages lacking a vector; rebuild mode wipes and reinserts
// every package's embedding. verbose requests a progress callback per
// batch rather than only at completion.
func (b *Builder) Build(ctx context.Context, rebuild bool, verbose bool, onProgress func(Progress)) (int, error) {
	info := vector.ModelInfo{Name: b.embedder.Name(), Dim: b.embedder.Dim()}
	if !rebuild {
		if err := vector.CheckModelIdentity(ctx, b.db, info); err != nil {
			return 0, err
		}
	}
	if err := b.backend.Initialize(ctx, b.embedder.Dim()); err != nil {
		return 0, err
	}

	var packages []model.Package
	var err error
	if rebuild {
		if err := b.backend.WipeAll(ctx); err != nil {
			return 0, err
		}
		if err := vector.SetModelInfo(ctx, b.db, info); err != nil {
			return 0, err
		}
		packages, err = b.source.AllPackages(ctx)
	} else {
		packages, err = b.source.PackagesWithoutEmbedding(ctx)
	}
	if err != nil {
		return 0, err
	}

	progress := Progress{Total: len(packages)}
	for start := 0; start < len(packages); start += b.batchSize {
		end := start + b.batchSize
		if end > len(packages) {
			end = len(packages)
		}
		batch := packages[start:end]

		texts := make([]string, len(batch))
		for i, pkg := range batch {
			texts[i] = normalize.BuildEmbeddingText(pkg)
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			progress.Failed += len(batch)
			if b.logger != nil {
				b.logger.Warn("embedding batch failed, skipping", zap.Int("batch_start", start), zap.Error(err))
			}
			if verbose && onProgress != nil {
				onProgress(progress)
			}
			continue
		}
		if len(vectors) != len(batch) {
			progress.Failed += len(batch)
			if b.logger != nil {
				b.logger.Warn("embedding batch returned wrong count, skipping",
					zap.Int("expected", len(batch)), zap.Int("got", len(vectors)))
			}
			if verbose && onProgress != nil {
				onProgress(progress)
			}
			continue
		}

		for i, pkg := range batch {
			if err := b.backend.Upsert(ctx, pkg.ID, vectors[i]); err != nil {
				progress.Failed++
				if b.logger != nil {
					b.logger.Warn("failed to store embedding", zap.Int64("pkg_id", pkg.ID), zap.Error(err))
				}
				continue
			}
			progress.Embedded++
		}

		if verbose && onProgress != nil {
			onProgress(progress)
		}
	}

	if onProgress != nil {
		onProgress(progress)
	}
	return progress.Embedded, nil
}
