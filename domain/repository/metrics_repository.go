package repository

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// MetricsRepository defines the interface for sending metrics to secondary sinks
type MetricsRepository interface {
	// Name identifies the sink in logs
	Name() string

	// SendMetrics sends a batch of gauge samples
	SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error

	// Close cleans up any resources used by the metrics repository
	Close() error
}

// MetricsRepositoryError represents errors from the metrics repository
type MetricsRepositoryError struct {
	Operation string
	Err       error
}

func (e *MetricsRepositoryError) Error() string {
	if e.Err != nil {
		return "metrics repository error in " + e.Operation + ": " + e.Err.Error()
	}
	return "metrics repository error in " + e.Operation
}

func (e *MetricsRepositoryError) Unwrap() error {
	return e.Err
}

// NewMetricsRepositoryError creates a new metrics repository error
func NewMetricsRepositoryError(operation string, err error) error {
	return &MetricsRepositoryError{
		Operation: operation,
		Err:       err,
	}
}
