package usecase

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// CollectorService computes autoload statistics from the options store
type CollectorService interface {
	// Collect returns a fresh snapshot. Failures are StoreUnavailable errors.
	Collect(ctx context.Context) (*entity.MetricsSnapshot, error)
}
