package sync

import (
	"context"
	"database/sql"
	"time"

	"github.com/nn1a/rpm-vec/internal/model"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// StateStore persists one sync-state row per configured repository.
type StateStore struct {
	db *sql.DB
}

// NewStateStore wraps an already-schema-initialized *sql.DB.
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// Get returns the sync state for repo, or the zero (never-synced) state
// if no row exists yet.
func (s *StateStore) Get(ctx context.Context, repo string) (model.SyncState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT repo_name, last_sync, last_checksum, last_status, last_error FROM repo_sync_state WHERE repo_name = ?
	`, repo)

	var state model.SyncState
	var lastSync sql.NullTime
	var checksum, status, lastErr sql.NullString
	err := row.Scan(&state.RepoName, &lastSync, &checksum, &status, &lastErr)
	if err == sql.ErrNoRows {
		return model.SyncState{RepoName: repo, LastStatus: model.SyncNever}, nil
	}
	if err != nil {
		return model.SyncState{}, rpmerr.New(rpmerr.StorageError, repo, err)
	}
	if lastSync.Valid {
		t := lastSync.Time
		state.LastSync = &t
	}
	state.LastChecksum = checksum.String
	state.LastStatus = model.SyncStatus(status.String)
	state.LastError = lastErr.String
	return state, nil
}

// Update writes (or replaces) repo's sync state.
func (s *StateStore) Update(ctx context.Context, state model.SyncState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repo_sync_state (repo_name, last_sync, last_checksum, last_status, last_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo_name) DO UPDATE SET
		    last_sync = excluded.last_sync,
		    last_checksum = excluded.last_checksum,
		    last_status = excluded.last_status,
		    last_error = excluded.last_error
	`, state.RepoName, state.LastSync, state.LastChecksum, string(state.LastStatus), state.LastError)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, state.RepoName, err)
	}
	return nil
}

// List returns every recorded sync state, for sync_status().
func (s *StateStore) List(ctx context.Context) ([]model.SyncState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT repo_name, last_sync, last_checksum, last_status, last_error FROM repo_sync_state`)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, "", err)
	}
	defer rows.Close()

	var states []model.SyncState
	for rows.Next() {
		var state model.SyncState
		var lastSync sql.NullTime
		var checksum, status, lastErr sql.NullString
		if err := rows.Scan(&state.RepoName, &lastSync, &checksum, &status, &lastErr); err != nil {
			return nil, rpmerr.New(rpmerr.StorageError, "", err)
		}
		if lastSync.Valid {
			t := lastSync.Time
			state.LastSync = &t
		}
		state.LastChecksum = checksum.String
		state.LastStatus = model.SyncStatus(status.String)
		state.LastError = lastErr.String
		states = append(states, state)
	}
	return states, rows.Err()
}

// Delete removes repo's sync state row, used by delete_repository.
func (s *StateStore) Delete(ctx context.Context, repo string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repo_sync_state WHERE repo_name = ?`, repo)
	if err != nil {
		return rpmerr.New(rpmerr.StorageError, repo, err)
	}
	return nil
}

// markInProgress/markSuccess/markFailed are small helpers Syncer uses to keep state
// transitions in one place.
func (s *StateStore) markInProgress(ctx context.Context, repo string) error {
	prev, err := s.Get(ctx, repo)
	if err != nil {
		return err
	}
	prev.LastStatus = model.SyncInProgress
	return s.Update(ctx, prev)
}

func (s *StateStore) markSuccess(ctx context.Context, repo, checksum string) error {
	now := time.Now()
	return s.Update(ctx, model.SyncState{RepoName: repo, LastSync: &now, LastChecksum: checksum, LastStatus: model.SyncSuccess})
}

func (s *StateStore) markFailed(ctx context.Context, repo, lastChecksum string, syncErr error) error {
	return s.Update(ctx, model.SyncState{RepoName: repo, LastChecksum: lastChecksum, LastStatus: model.SyncFailed, LastError: syncErr.Error()})
}
