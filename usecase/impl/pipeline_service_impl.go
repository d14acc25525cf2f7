package impl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// PipelineServiceImpl implements the PipelineService interface
type PipelineServiceImpl struct {
	collector usecase.CollectorService
	client    usecase.WarehouseClient
	sinks     []repository.MetricsRepository
	state     repository.StateRepository
	siteURL   string
	logger    domain.Logger
	now       func() time.Time
}

// NewPipelineService creates a pipeline. sinks and state may be empty.
func NewPipelineService(
	collector usecase.CollectorService,
	client usecase.WarehouseClient,
	sinks []repository.MetricsRepository,
	state repository.StateRepository,
	siteURL string,
	logger domain.Logger,
) *PipelineServiceImpl {
	return &PipelineServiceImpl{
		collector: collector,
		client:    client,
		sinks:     sinks,
		state:     state,
		siteURL:   siteURL,
		logger:    logger,
		now:       time.Now,
	}
}

var _ usecase.PipelineService = (*PipelineServiceImpl)(nil)

// Run collects a snapshot, records it to the secondary sinks and pushes it
// to the warehouse. Sink failures never change the result.
func (s *PipelineServiceImpl) Run(ctx context.Context, trigger usecase.Trigger) (result *usecase.PipelineResult) {
	result = &usecase.PipelineResult{
		Trigger:   trigger,
		StartedAt: s.now().UTC(),
	}
	stage := domain.ErrCodeStoreUnavailable

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "Recovered from panic in pipeline", domain.NewField("panic", fmt.Sprint(r)))
			s.fail(result, domain.ClassifyPipelineError(fmt.Errorf("panic: %v", r), stage))
		}
		result.FinishedAt = s.now().UTC()
		s.recordRun(ctx, result)
	}()

	logger := s.logger.WithFields(domain.NewField("trigger", string(trigger)))
	logger.Info(ctx, "Pipeline run started")

	snapshot, err := s.collector.Collect(ctx)
	if err != nil {
		s.fail(result, domain.ClassifyPipelineError(err, domain.ErrCodeStoreUnavailable))
		logger.Error(ctx, "Pipeline run failed during collection", domain.NewField("error", result.Error))
		return result
	}
	result.Snapshot = snapshot
	stage = domain.ErrCodeUpload

	sinks := s.recordToSinks(ctx, snapshot)

	if s.client.Push(ctx, snapshot) {
		result.Success = true
	} else {
		result.Error = s.client.LastError()
		result.ErrorCode = s.client.LastErrorCode()
	}

	if err := sinks.Wait(); err != nil {
		logger.Warn(ctx, "Secondary metric sink failed", domain.NewField("error", err.Error()))
	}

	if result.Success {
		logger.Info(ctx, "Pipeline run finished",
			domain.NewField("count", snapshot.Count),
			domain.NewField("total_bytes", snapshot.TotalSizeBytes))
	} else {
		logger.Error(ctx, "Pipeline run failed during push",
			domain.NewField("code", string(result.ErrorCode)),
			domain.NewField("error", result.Error))
	}
	return result
}

// recordToSinks starts one goroutine per sink. The returned group reports
// the first sink error; a failing sink does not cancel the others.
func (s *PipelineServiceImpl) recordToSinks(ctx context.Context, snapshot *entity.MetricsSnapshot) *errgroup.Group {
	g := &errgroup.Group{}
	if len(s.sinks) == 0 {
		return g
	}

	points := entity.DataPointsFromSnapshot(snapshot, s.siteURL)
	for _, sink := range s.sinks {
		sink := sink
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: panic: %v", sink.Name(), r)
				}
			}()
			if err := sink.SendMetrics(ctx, points); err != nil {
				s.logger.Warn(ctx, "Failed to record metrics",
					domain.NewField("sink", sink.Name()),
					domain.NewField("error", err.Error()))
				return fmt.Errorf("%s: %w", sink.Name(), err)
			}
			s.logger.Debug(ctx, "Recorded metrics", domain.NewField("sink", sink.Name()), domain.NewField("points", len(points)))
			return nil
		})
	}
	return g
}

func (s *PipelineServiceImpl) fail(result *usecase.PipelineResult, err *domain.DomainError) {
	result.Success = false
	result.Error = err.Error()
	result.ErrorCode = err.Code
}

func (s *PipelineServiceImpl) recordRun(ctx context.Context, result *usecase.PipelineResult) {
	if s.state == nil {
		return
	}
	finished := result.FinishedAt
	if err := s.state.Update(func(st *repository.PipelineState) {
		st.LastRunAt = &finished
		st.LastRunError = result.Error
		// push failures are recorded by the warehouse client
		if result.ErrorCode == domain.ErrCodeStoreUnavailable {
			st.LastError = result.Error
			st.LastErrorAt = &finished
		}
	}); err != nil {
		s.logger.Warn(ctx, "Failed to persist pipeline run", domain.NewField("error", err.Error()))
	}
}
