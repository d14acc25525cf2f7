package impl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

func newTestPipeline(collector *stubCollector, client *stubWarehouseClient, sinks []repository.MetricsRepository, state *memoryStateRepository) *PipelineServiceImpl {
	var st repository.StateRepository
	if state != nil {
		st = state
	}
	p := NewPipelineService(collector, client, sinks, st, "https://example.com", &MockLogger{})
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	return p
}

func TestPipelineService_Success(t *testing.T) {
	snapshot := testSnapshot()
	collector := &stubCollector{snapshot: snapshot}
	client := &stubWarehouseClient{ok: true}
	prom := &stubSink{name: "prometheus"}
	cw := &stubSink{name: "cloudwatch"}
	state := &memoryStateRepository{}

	p := newTestPipeline(collector, client, []repository.MetricsRepository{prom, cw}, state)
	result := p.Run(context.Background(), usecase.TriggerManual)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, usecase.TriggerManual, result.Trigger)
	assert.Same(t, snapshot, result.Snapshot)
	assert.Equal(t, []*entity.MetricsSnapshot{snapshot}, client.pushed)

	// count, total size and one point per key
	assert.Len(t, prom.points, 5)
	assert.Len(t, cw.points, 5)
	assert.Equal(t, "https://example.com", prom.points[0].Labels["site"])

	st := state.snapshot()
	require.NotNil(t, st.LastRunAt)
	assert.Empty(t, st.LastRunError)
}

func TestPipelineService_SinkFailureDoesNotAffectPush(t *testing.T) {
	collector := &stubCollector{snapshot: testSnapshot()}
	client := &stubWarehouseClient{ok: true}
	failing := &stubSink{name: "prometheus", err: errors.New("remote write: 500")}
	panicking := &stubSink{name: "cloudwatch", panic: true}
	healthy := &stubSink{name: "cloud_monitoring"}

	p := newTestPipeline(collector, client, []repository.MetricsRepository{failing, panicking, healthy}, nil)

	var result *usecase.PipelineResult
	assert.NotPanics(t, func() {
		result = p.Run(context.Background(), usecase.TriggerSchedule)
	})
	assert.True(t, result.Success)
	assert.Len(t, client.pushed, 1)
	assert.Equal(t, 1, failing.sentCount())
	assert.Equal(t, 1, healthy.sentCount())
}

func TestPipelineService_CollectFailure(t *testing.T) {
	collector := &stubCollector{err: domain.ErrStoreUnavailable("count", errors.New("connection refused"))}
	client := &stubWarehouseClient{ok: true}
	sink := &stubSink{name: "prometheus"}
	state := &memoryStateRepository{}

	p := newTestPipeline(collector, client, []repository.MetricsRepository{sink}, state)
	result := p.Run(context.Background(), usecase.TriggerCLI)

	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeStoreUnavailable, result.ErrorCode)
	assert.Contains(t, result.Error, "connection refused")
	assert.Nil(t, result.Snapshot)
	assert.Empty(t, client.pushed, "nothing is pushed without a snapshot")
	assert.Zero(t, sink.sentCount())

	st := state.snapshot()
	assert.Equal(t, result.Error, st.LastRunError)
	assert.Equal(t, result.Error, st.LastError)
	require.NotNil(t, st.LastErrorAt)
}

func TestPipelineService_PushFailure(t *testing.T) {
	collector := &stubCollector{snapshot: testSnapshot()}
	client := &stubWarehouseClient{
		ok:        false,
		lastError: "[UPLOAD_ERROR] warehouse API error (HTTP 403): Access Denied",
		code:      domain.ErrCodeUpload,
	}
	state := &memoryStateRepository{}

	p := newTestPipeline(collector, client, nil, state)
	result := p.Run(context.Background(), usecase.TriggerManual)

	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeUpload, result.ErrorCode)
	assert.Equal(t, client.lastError, result.Error)
	assert.NotNil(t, result.Snapshot)

	st := state.snapshot()
	assert.Equal(t, client.lastError, st.LastRunError)
	assert.Empty(t, st.LastError, "push errors are persisted by the warehouse client")
}

type panickingCollector struct{}

func (panickingCollector) Collect(ctx context.Context) (*entity.MetricsSnapshot, error) {
	panic("collector bug")
}

func TestPipelineService_RecoversFromPanic(t *testing.T) {
	p := NewPipelineService(panickingCollector{}, &stubWarehouseClient{}, nil, nil, "", &MockLogger{})

	var result *usecase.PipelineResult
	assert.NotPanics(t, func() {
		result = p.Run(context.Background(), usecase.TriggerManual)
	})
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeStoreUnavailable, result.ErrorCode)
	assert.Contains(t, result.Error, "collector bug")
	assert.False(t, result.FinishedAt.IsZero())
}
