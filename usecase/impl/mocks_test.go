package impl

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// Mock implementations

type stubOptionsRepository struct {
	count    uint64
	total    uint64
	keys     []entity.KeySize
	countErr error
	totalErr error
	topErr   error

	mu        sync.Mutex
	lastLimit int
	calls     []string
}

func (m *stubOptionsRepository) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *stubOptionsRepository) CountAutoloaded(ctx context.Context) (uint64, error) {
	m.record("count")
	return m.count, m.countErr
}

func (m *stubOptionsRepository) TotalAutoloadedBytes(ctx context.Context) (uint64, error) {
	m.record("total")
	return m.total, m.totalErr
}

func (m *stubOptionsRepository) TopAutoloaded(ctx context.Context, limit int) ([]entity.KeySize, error) {
	m.record("top")
	m.mu.Lock()
	m.lastLimit = limit
	m.mu.Unlock()
	if m.topErr != nil {
		return nil, m.topErr
	}
	keys := m.keys
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (m *stubOptionsRepository) Ping(ctx context.Context) error { return nil }
func (m *stubOptionsRepository) Close() error                   { return nil }

// memoryStateRepository keeps PipelineState in memory
type memoryStateRepository struct {
	mu        sync.Mutex
	state     repository.PipelineState
	loadErr   error
	updateErr error
	updates   int
}

func (m *memoryStateRepository) Load() (*repository.PipelineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	st := m.state
	return &st, nil
}

func (m *memoryStateRepository) Update(fn func(state *repository.PipelineState)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	fn(&m.state)
	m.updates++
	return nil
}

func (m *memoryStateRepository) snapshot() repository.PipelineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// stubTimezone is a TimezoneService fixed to one location
type stubTimezone struct {
	loc *time.Location
}

func newStubTimezone(name string) *stubTimezone {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return &stubTimezone{loc: loc}
}

func (m *stubTimezone) GetSiteLocation() *time.Location { return m.loc }

func (m *stubTimezone) ConvertToSiteTime(t time.Time) time.Time { return t.In(m.loc) }

func (m *stubTimezone) FormatTimeForSite(t time.Time, layout string) string {
	return t.In(m.loc).Format(layout)
}

func (m *stubTimezone) GetTimezoneInfo() repository.TimezoneInfo {
	_, offset := time.Now().In(m.loc).Zone()
	return repository.TimezoneInfo{Name: m.loc.String(), OffsetSeconds: offset, DetectionMethod: "config"}
}

type stubCredentials struct {
	creds *entity.ServiceCredentials
	err   error
}

func (m *stubCredentials) Name() string { return "stub" }

func (m *stubCredentials) Credentials() (*entity.ServiceCredentials, error) {
	if m.err != nil {
		return nil, m.err
	}
	c := *m.creds
	return &c, nil
}

// testKeyPEM is generated once per test binary
var testKeyPEM = sync.OnceValue(func() string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		panic(err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
})

func completeCredentials() *entity.ServiceCredentials {
	return &entity.ServiceCredentials{
		ProjectID:   "proj",
		DatasetID:   "ds",
		TableID:     "tbl",
		ClientEmail: "svc@proj.iam.gserviceaccount.com",
		PrivateKey:  testKeyPEM(),
		TokenURI:    "https://oauth2.googleapis.com/token",
	}
}

type stubTokenProvider struct {
	token string
	err   error

	mu          sync.Mutex
	calls       int
	invalidated int
}

func (m *stubTokenProvider) AccessToken(ctx context.Context, creds *entity.ServiceCredentials) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.token, m.err
}

func (m *stubTokenProvider) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
}

type stubWarehouse struct {
	insertFunc func(ctx context.Context, token string, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error

	mu      sync.Mutex
	tokens  []string
	targets []repository.WarehouseTarget
	rows    []*entity.WarehouseRow
}

func (m *stubWarehouse) InsertRows(ctx context.Context, token string, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error {
	m.mu.Lock()
	m.tokens = append(m.tokens, token)
	m.targets = append(m.targets, target)
	m.rows = append(m.rows, rows...)
	m.mu.Unlock()
	if m.insertFunc != nil {
		return m.insertFunc(ctx, token, target, rows)
	}
	return nil
}

type stubLock struct {
	mu        sync.Mutex
	held      map[string]string
	acquired  int
	released  int
	refreshed int
	seq       int
}

func newStubLock() *stubLock {
	return &stubLock{held: map[string]string{}}
}

func (m *stubLock) TryAcquire(name string, ttl time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[name]; ok {
		return "", false
	}
	m.seq++
	owner := fmt.Sprintf("owner-%d", m.seq)
	m.held[name] = owner
	m.acquired++
	return owner, true
}

func (m *stubLock) Refresh(name, owner string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] != owner {
		return false
	}
	m.refreshed++
	return true
}

func (m *stubLock) Release(name, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] == owner {
		delete(m.held, name)
	}
	m.released++
}

type stubSink struct {
	name  string
	err   error
	panic bool

	mu     sync.Mutex
	points []*entity.MetricDataPoint
	sent   int
}

func (m *stubSink) Name() string { return m.name }

func (m *stubSink) SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error {
	if m.panic {
		panic("sink exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	m.points = append(m.points, points...)
	return m.err
}

func (m *stubSink) Close() error { return nil }

func (m *stubSink) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type stubCollector struct {
	snapshot *entity.MetricsSnapshot
	err      error
	calls    int
}

func (m *stubCollector) Collect(ctx context.Context) (*entity.MetricsSnapshot, error) {
	m.calls++
	return m.snapshot, m.err
}

type stubWarehouseClient struct {
	ok        bool
	lastError string
	code      domain.ErrorCode
	pushed    []*entity.MetricsSnapshot
}

func (m *stubWarehouseClient) Push(ctx context.Context, snapshot *entity.MetricsSnapshot) bool {
	m.pushed = append(m.pushed, snapshot)
	return m.ok
}

func (m *stubWarehouseClient) LastError() string { return m.lastError }

func (m *stubWarehouseClient) LastErrorCode() domain.ErrorCode { return m.code }

func (m *stubWarehouseClient) GetAccessToken(ctx context.Context) (string, error) {
	return "", errors.New("not implemented")
}

// stubPipeline counts runs and signals each one on runs
type stubPipeline struct {
	mu       sync.Mutex
	triggers []usecase.Trigger
	runs     chan struct{}
	success  bool
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{runs: make(chan struct{}, 10), success: true}
}

func (m *stubPipeline) Run(ctx context.Context, trigger usecase.Trigger) *usecase.PipelineResult {
	m.mu.Lock()
	m.triggers = append(m.triggers, trigger)
	m.mu.Unlock()
	m.runs <- struct{}{}
	return &usecase.PipelineResult{Trigger: trigger, Success: m.success}
}

func (m *stubPipeline) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}
