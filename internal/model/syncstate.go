package model

import "time"

// SyncStatus mirrors the sync state machine's observable outcomes.
type SyncStatus string

const (
	SyncNever      SyncStatus = "never"
	SyncSuccess    SyncStatus = "success"
	SyncFailed     SyncStatus = "failed"
	SyncInProgress SyncStatus = "in-progress"
)

// SyncState is one row per configured remote repository.
type SyncState struct {
	RepoName      string
	LastSync      *time.Time
	LastChecksum  string
	LastStatus    SyncStatus
	LastError     string
}
