package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs one independent ticking goroutine per enabled
// repository, per §4.9/§5: each repo is a separate failure domain,
// strictly serialized against itself, free to interleave with every
// other repo. A repository whose sync fails is logged and retried on
// its own next tick; it never blocks or cancels any other repository.
type Scheduler struct {
	syncer *Syncer
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler constructs a Scheduler around an already-built Syncer.
func NewScheduler(syncer *Syncer, logger *zap.Logger) *Scheduler {
	return &Scheduler{syncer: syncer, logger: logger}
}

// RunDaemon starts one goroutine per repo in repos and blocks until ctx
// is cancelled. Cancellation is cooperative: no repo begins a new tick
// once ctx is done. An in-flight SyncOnce call runs under the same ctx,
// so an ingest transaction it has open at that moment is rolled back
// rather than committed.
func (s *Scheduler) RunDaemon(ctx context.Context, repos []RepoConfig) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, repo := range repos {
		if !repo.Enabled() {
			continue
		}
		wg.Add(1)
		go func(repo RepoConfig) {
			defer wg.Done()
			s.runRepoLoop(ctx, repo)
		}(repo)
	}

	wg.Wait()
	close(s.done)
}

// Stop requests cooperative shutdown of a running daemon and blocks
// until every repo goroutine has exited its loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) runRepoLoop(ctx context.Context, repo RepoConfig) {
	interval := time.Duration(repo.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.syncRepoOnce(ctx, repo)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncRepoOnce(ctx, repo)
		}
	}
}

func (s *Scheduler) syncRepoOnce(ctx context.Context, repo RepoConfig) {
	result, err := s.syncer.SyncOnce(ctx, repo)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("repository sync failed", zap.String("repo", repo.Name), zap.Error(err))
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("repository sync completed",
			zap.String("repo", repo.Name),
			zap.Bool("changed", result.Changed),
			zap.Int("added", result.Stats.Added),
			zap.Int("updated", result.Stats.Updated),
			zap.Int("removed", result.Stats.Removed),
		)
	}
}
