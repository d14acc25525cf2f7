package usecase

import (
	"context"
	"time"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
)

// NeverSynced is shown when no push has succeeded yet
const NeverSynced = "Never"

// StatusInfo represents the current status of the application
type StatusInfo struct {
	// Snapshot is nil when the store could not be read
	Snapshot *entity.MetricsSnapshot

	// CollectError is the collection failure message, if any
	CollectError string

	// TotalSize is the total size rendered as "X.XX KB"
	TotalSize string

	// LastSync is the last successful push in the site timezone, or NeverSynced
	LastSync   string
	LastSyncAt *time.Time

	// LastError is the last pipeline error (if any)
	LastError   string
	LastErrorAt *time.Time

	// NextRun is the next scheduled run in the site timezone, empty when unscheduled
	NextRun   string
	NextRunAt *time.Time
	JobName   string

	Timezone repository.TimezoneInfo

	// MissingConfig lists absent warehouse settings; empty when pushes can run
	MissingConfig []string
}

// StatusService provides status information about the application
type StatusService interface {
	// GetStatus collects a live snapshot and combines it with persisted state.
	// A store failure is reported in CollectError rather than returned.
	GetStatus(ctx context.Context) (*StatusInfo, error)
}
