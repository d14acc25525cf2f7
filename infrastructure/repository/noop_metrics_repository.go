package repository

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
)

// NoOpMetricsRepository is a no-op implementation of MetricsRepository.
// Used when no secondary sink is configured.
type NoOpMetricsRepository struct{}

// NewNoOpMetricsRepository creates a new no-op metrics repository
func NewNoOpMetricsRepository() repository.MetricsRepository {
	return &NoOpMetricsRepository{}
}

// Name implements repository.MetricsRepository
func (r *NoOpMetricsRepository) Name() string { return "noop" }

// SendMetrics does nothing
func (r *NoOpMetricsRepository) SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error {
	return nil
}

// Close does nothing
func (r *NoOpMetricsRepository) Close() error {
	return nil
}
