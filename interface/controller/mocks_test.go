package controller

import (
	"context"
	"sync"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// mockLogger is a test logger that does nothing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...domain.Field)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...domain.Field)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {}
func (m *mockLogger) WithFields(fields ...domain.Field) domain.Logger               { return m }

// mockPipeline returns a canned result and counts runs
type mockPipeline struct {
	mu       sync.Mutex
	result   *usecase.PipelineResult
	triggers []usecase.Trigger
}

func (m *mockPipeline) Run(ctx context.Context, trigger usecase.Trigger) *usecase.PipelineResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, trigger)

	res := *m.result
	res.Trigger = trigger
	return &res
}

func (m *mockPipeline) runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}

// mockStatusService returns a canned status
type mockStatusService struct {
	info *usecase.StatusInfo
	err  error
}

func (m *mockStatusService) GetStatus(ctx context.Context) (*usecase.StatusInfo, error) {
	return m.info, m.err
}

// mockScheduler records lifecycle calls
type mockScheduler struct {
	mu       sync.Mutex
	startErr error
	started  int
	stopped  int
	running  bool
	ctx      context.Context
}

func (m *mockScheduler) NextRunAt(now time.Time) time.Time { return now.Add(time.Hour) }

func (m *mockScheduler) Activate(ctx context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func (m *mockScheduler) Deactivate(ctx context.Context) error { return nil }

func (m *mockScheduler) EnsureScheduled(ctx context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	m.running = true
	m.ctx = ctx
	return nil
}

func (m *mockScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	m.running = false
}

func (m *mockScheduler) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// mockServer records Start/Shutdown calls
type mockServer struct {
	mu       sync.Mutex
	startErr error
	started  int
	shutdown int
}

func (m *mockServer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	return nil
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown++
	return nil
}
