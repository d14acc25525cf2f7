package usecase

import (
	"context"
	"time"
)

// SchedulerService owns the daily collection job
type SchedulerService interface {
	// NextRunAt returns the next configured local wall-clock time strictly after now
	NextRunAt(now time.Time) time.Time

	// Activate clears any stale schedule and registers the job at the next run time
	Activate(ctx context.Context) (time.Time, error)

	// Deactivate clears the schedule
	Deactivate(ctx context.Context) error

	// EnsureScheduled registers the job only when no schedule exists.
	// The boolean reports whether a new schedule was created.
	EnsureScheduled(ctx context.Context) (time.Time, bool, error)

	// Start runs the job loop until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop halts the job loop and waits for an in-flight run to finish
	Stop()

	// IsRunning reports whether the job loop is active
	IsRunning() bool
}
