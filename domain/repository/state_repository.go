package repository

import (
	"time"
)

// PipelineState is the persisted state shown to operators
type PipelineState struct {
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
	JobName      string     `json:"job_name,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastRunError string     `json:"last_run_error,omitempty"`
}

// StateRepository persists PipelineState
type StateRepository interface {
	// Load returns the stored state, or an empty state when none exists
	Load() (*PipelineState, error)

	// Update loads the state, applies fn and stores the result atomically
	Update(fn func(state *PipelineState)) error
}
