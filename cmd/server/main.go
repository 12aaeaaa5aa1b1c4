package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nn1a/rpm-vec/internal/config"
	"github.com/nn1a/rpm-vec/internal/embedclient"
	"github.com/nn1a/rpm-vec/internal/handler"
	"github.com/nn1a/rpm-vec/internal/logger"
	"github.com/nn1a/rpm-vec/internal/repomd"
	"github.com/nn1a/rpm-vec/internal/rpmvec"
	"github.com/nn1a/rpm-vec/internal/sync"
	"github.com/nn1a/rpm-vec/internal/vector"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.InitLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := vector.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	backend := vector.NewBackend(db)
	embedder := embedclient.New(cfg.Embedding.Endpoint, cfg.Embedding.ModelName, cfg.Embedding.Dim)
	fetcher := repomd.NewFetcher(30 * time.Second)

	engine, err := rpmvec.New(db, backend, embedder, fetcher, log)
	if err != nil {
		log.Fatal("failed to wire engine", zap.Error(err))
	}

	repos := make([]sync.RepoConfig, 0, len(cfg.Repositories))
	for _, r := range cfg.Repositories {
		repos = append(repos, sync.NewRepoConfig(r.Name, r.BaseURL, r.ArchOrDefault(), r.IntervalSeconds, r.EnabledOrDefault()))
	}

	api := handler.NewAPI(cfg, log, engine, repos)
	defer api.Close()

	r := chi.NewRouter()
	api.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: r,
	}

	go func() {
		log.Info("starting admin server", zap.Int("port", cfg.Admin.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start admin server", zap.Error(err))
		}
	}()

	daemonCtx, cancelDaemon := context.WithCancel(context.Background())
	go engine.SyncDaemon(daemonCtx, repos)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	cancelDaemon()
	engine.StopDaemon()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited properly")
}
