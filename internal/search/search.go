// Package search implements the hybrid query planner: classifying a
// query as structured or semantic, pre-filtering the vector scan with
// structured predicates when possible, and applying dependency filters
// to the result set.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/store"
	"github.com/nn1a/rpm-vec/internal/version"
	"github.com/nn1a/rpm-vec/internal/vector"
)

// PullbackFactor is the reference multiplier §4.7 names: the planner
// over-fetches top_k*PullbackFactor candidates from the vector store so
// a subsequent dependency-filter pass is unlikely to leave an empty
// result.
const PullbackFactor = 5

// Embedder is the subset of embedding.Embedder the planner needs to turn
// query text into a vector.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Filters are the optional structured predicates a query may carry.
type Filters struct {
	Arch         string
	Repo         string
	NotRequiring *store.DependencyBound
	Providing    *store.DependencyBound
}

// Query is one search request.
type Query struct {
	Text    string
	Filters Filters
	TopK    int
}

// Result pairs a matched package with its similarity score (1.0 for
// structured-only matches, which carry no vector distance).
type Result struct {
	Package    model.Package
	Similarity float64
}

// Planner wires the metadata store, the vector backend, and the query
// embedder together.
type Planner struct {
	store    *store.Store
	backend  vector.Backend
	embedder Embedder
}

// New constructs a Planner.
func New(s *store.Store, backend vector.Backend, embedder Embedder) *Planner {
	return &Planner{store: s, backend: backend, embedder: embedder}
}

// Search classifies and executes a query per §4.7.
func (p *Planner) Search(ctx context.Context, q Query) ([]Result, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	if isStructuredOnly(q.Text) {
		return p.searchStructured(ctx, q, topK)
	}
	return p.searchSemantic(ctx, q, topK)
}

// isStructuredOnly reports whether q should route as a structured-only
// query: empty text, or text that is a single bare token (no whitespace).
// Punctuation is not inspected.
func isStructuredOnly(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	return !strings.ContainsAny(text, " \t\n")
}

func (p *Planner) searchStructured(ctx context.Context, q Query, topK int) ([]Result, error) {
	ids, err := p.store.FilteredCandidateIDs(ctx, store.CandidateFilter{Arch: q.Filters.Arch, Repo: q.Filters.Repo})
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(q.Text)
	if name != "" {
		filtered := ids[:0]
		packages, err := p.store.PackagesByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]model.Package, len(packages))
		for _, pkg := range packages {
			byID[pkg.ID] = pkg
		}
		for _, id := range ids {
			if pkg, ok := byID[id]; ok && pkg.Name == name {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	ids, err = p.store.ApplyDependencyFilters(ctx, ids, q.Filters.NotRequiring, q.Filters.Providing)
	if err != nil {
		return nil, err
	}

	packages, err := p.store.PackagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(packages, func(i, j int) bool {
		if packages[i].Name != packages[j].Name {
			return packages[i].Name < packages[j].Name
		}
		return version.Compare(tripleOf(packages[i]), tripleOf(packages[j])) == version.Greater
	})

	if len(packages) > topK {
		packages = packages[:topK]
	}
	results := make([]Result, len(packages))
	for i, pkg := range packages {
		results[i] = Result{Package: pkg, Similarity: 1.0}
	}
	return results, nil
}

func (p *Planner) searchSemantic(ctx context.Context, q Query, topK int) ([]Result, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, []string{"query: " + q.Text})
	if err != nil {
		return nil, err
	}
	queryVec := vecs[0]

	pullback := topK * PullbackFactor
	usePrefilter := q.Filters.Arch != "" || q.Filters.Repo != ""

	var hits []vector.SearchResult
	if usePrefilter {
		candidates, err := p.store.FilteredCandidateIDs(ctx, store.CandidateFilter{Arch: q.Filters.Arch, Repo: q.Filters.Repo})
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		hits, err = p.backend.FilteredSimilaritySearch(ctx, queryVec, candidates, pullback)
		if err != nil {
			return nil, err
		}
	} else {
		hits, err = p.backend.SimilaritySearch(ctx, queryVec, pullback)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]int64, len(hits))
	scoreByID := make(map[int64]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.PkgID
		scoreByID[h.PkgID] = h.Similarity
	}

	ids, err = p.store.ApplyDependencyFilters(ctx, ids, q.Filters.NotRequiring, q.Filters.Providing)
	if err != nil {
		return nil, err
	}

	packages, err := p.store.PackagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(packages))
	for i, pkg := range packages {
		results[i] = Result{Package: pkg, Similarity: scoreByID[pkg.ID]}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func tripleOf(pkg model.Package) version.Triple {
	return version.Triple{Epoch: pkg.EpochOrZero(), Version: pkg.Version, Release: pkg.Release}
}
