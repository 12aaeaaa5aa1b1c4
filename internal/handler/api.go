package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nn1a/rpm-vec/internal/config"
	"github.com/nn1a/rpm-vec/internal/rpmvec"
	"github.com/nn1a/rpm-vec/internal/sync"
	"go.uber.org/zap"
)

// API is the narrow local admin/status surface named in SPEC_FULL.md's
// domain stack: repository sync status and a manual sync trigger. It is
// not a client-facing package mirror — package/version data is
// consumed by a CLI or MCP adapter directly through rpmvec.Engine, not
// over HTTP.
type API struct {
	logger      *zap.Logger
	engine      *rpmvec.Engine
	repos       []sync.RepoConfig
	rateLimiter *RateLimiter
}

// NewAPI creates a new API instance around an already-wired engine.
func NewAPI(cfg *config.Config, logger *zap.Logger, engine *rpmvec.Engine, repos []sync.RepoConfig) *API {
	return &API{
		logger:      logger,
		engine:      engine,
		repos:       repos,
		rateLimiter: NewRateLimiter(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
	}
}

// Close releases the API's own resources (not the engine's).
func (a *API) Close() error {
	a.rateLimiter.Close()
	return nil
}

// RegisterRoutes registers the admin routes, all restricted to
// localhost per the teacher's LocalOnly convention.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Route("/admin", func(r chi.Router) {
		r.Use(LocalOnly)
		r.Use(a.rateLimiter.RateLimit)
		r.Get("/sync/status", a.syncStatus)
		r.Post("/sync/{repo}", a.triggerSync)
		r.Get("/repositories", a.listRepositories)
		r.Get("/repositories/{name}/stats", a.repoStats)
		r.Delete("/repositories/{name}", a.deleteRepository)
		r.Delete("/repositories/{name}/packages/{pkg}", a.deletePackage)
		r.Post("/embeddings/build", a.buildEmbeddings)
		r.Get("/files", a.searchFile)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && a.logger != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}

// syncStatus reports the last recorded sync outcome for every
// repository that has ever been synced.
func (a *API) syncStatus(w http.ResponseWriter, r *http.Request) {
	states, err := a.engine.SyncStatus(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, states)
}

// triggerSync runs sync_once for one configured repository in the
// background and returns immediately.
func (a *API) triggerSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "repo")
	var repo sync.RepoConfig
	found := false
	for _, rc := range a.repos {
		if rc.Name == name {
			repo = rc
			found = true
			break
		}
	}
	if !found {
		http.Error(w, "unknown repository", http.StatusNotFound)
		return
	}

	go func() {
		if _, err := a.engine.SyncOnce(context.Background(), repo); err != nil && a.logger != nil {
			a.logger.Error("manual sync failed", zap.String("repo", name), zap.Error(err))
		}
	}()

	a.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "sync started",
		"repo":   name,
	})
}

func (a *API) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := a.engine.ListRepositories(r.Context())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, repos)
}

func (a *API) repoStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	count, err := a.engine.RepoStats(r.Context(), name)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (a *API) deleteRepository(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	removed, err := a.engine.DeleteRepository(r.Context(), name)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// deletePackage removes a single package by (name, arch, repo), e.g.
// DELETE /admin/repositories/baseos/packages/bash?arch=x86_64.
func (a *API) deletePackage(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "name")
	name := chi.URLParam(r, "pkg")
	arch := r.URL.Query().Get("arch")
	if arch == "" {
		http.Error(w, "missing arch query parameter", http.StatusBadRequest)
		return
	}
	id, err := a.engine.DeletePackage(r.Context(), name, arch, repo)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if id == 0 {
		http.Error(w, "package not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int64{"deleted_id": id})
}

// searchFile resolves every package that ships an exact file path,
// e.g. GET /admin/files?path=/usr/bin/bash.
func (a *API) searchFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path query parameter", http.StatusBadRequest)
		return
	}
	packages, err := a.engine.SearchFile(r.Context(), path)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, packages)
}

func (a *API) buildEmbeddings(w http.ResponseWriter, r *http.Request) {
	rebuild := r.URL.Query().Get("rebuild") == "true"

	go func() {
		count, err := a.engine.BuildEmbeddings(context.Background(), rebuild, false, nil)
		if err != nil && a.logger != nil {
			a.logger.Error("embedding build failed", zap.Error(err))
			return
		}
		if a.logger != nil {
			a.logger.Info("embedding build completed", zap.Int("embedded", count))
		}
	}()

	a.writeJSON(w, http.StatusAccepted, map[string]string{"status": "embedding build started"})
}
