package impl

import (
	"context"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// DefaultTopN is the number of largest options kept in a snapshot
const DefaultTopN = 10

// CollectorServiceImpl implements the CollectorService interface
type CollectorServiceImpl struct {
	options repository.OptionsRepository
	topN    int
	logger  domain.Logger
	now     func() time.Time
}

// NewCollectorService creates a collector reading from options
func NewCollectorService(options repository.OptionsRepository, topN int, logger domain.Logger) *CollectorServiceImpl {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &CollectorServiceImpl{
		options: options,
		topN:    topN,
		logger:  logger,
		now:     time.Now,
	}
}

var _ usecase.CollectorService = (*CollectorServiceImpl)(nil)

// Collect runs the count, size and top-N queries. They are not wrapped in a
// transaction, so concurrent writes between them can make the figures
// disagree slightly.
func (s *CollectorServiceImpl) Collect(ctx context.Context) (*entity.MetricsSnapshot, error) {
	collectedAt := s.now()

	count, err := s.options.CountAutoloaded(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	total, err := s.options.TotalAutoloadedBytes(ctx)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	top, err := s.options.TopAutoloaded(ctx, s.topN)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	snapshot := entity.NewMetricsSnapshot(count, total, top, s.topN, collectedAt)

	s.logger.Debug(ctx, "Collected autoload snapshot",
		domain.NewField("count", snapshot.Count),
		domain.NewField("total_bytes", snapshot.TotalSizeBytes),
		domain.NewField("top_keys", len(snapshot.TopKeys)))

	return snapshot, nil
}

func (s *CollectorServiceImpl) fail(ctx context.Context, err error) error {
	classified := domain.ClassifyPipelineError(err, domain.ErrCodeStoreUnavailable)
	s.logger.Error(ctx, "Failed to collect autoload snapshot",
		domain.NewField("error", classified.Error()))
	return classified
}
