package di

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	"github.com/ca-srg/autoloadwatch/usecase/impl"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

type recordingWarehouse struct {
	mu   sync.Mutex
	rows []*entity.WarehouseRow
}

func (w *recordingWarehouse) InsertRows(ctx context.Context, accessToken string, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, rows...)
	return nil
}

type staticTokenProvider struct{}

func (staticTokenProvider) AccessToken(ctx context.Context, creds *entity.ServiceCredentials) (string, error) {
	return "test-token", nil
}

func (staticTokenProvider) Invalidate() {}

type recordingSink struct {
	mu     sync.Mutex
	points []*entity.MetricDataPoint
	closed bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

// newSQLiteOptionsStore creates a WordPress style options table on disk
func newSQLiteOptionsStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordpress.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE wp_options (
		option_id INTEGER PRIMARY KEY AUTOINCREMENT,
		option_name TEXT NOT NULL UNIQUE,
		option_value TEXT NOT NULL,
		autoload TEXT NOT NULL DEFAULT 'yes'
	)`)
	require.NoError(t, err)

	rows := []struct {
		name, value, autoload string
	}{
		{"siteurl", "https://example.com", "yes"},
		{"Widget_Cache", strings.Repeat("x", 3000), "on"},
		{"cron", strings.Repeat("c", 500), "auto"},
		{"big_report", strings.Repeat("r", 9000), "no"},
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO wp_options (option_name, option_value, autoload) VALUES (?, ?, ?)`, r.name, r.value, r.autoload)
		require.NoError(t, err)
	}
	return path
}

func generateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func testContainerConfig(t *testing.T, dsn string) *config.AppConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "sqlite3"
	cfg.Store.DSN = dsn
	cfg.Warehouse.ProjectID = "proj"
	cfg.Warehouse.DatasetID = "ds"
	cfg.Warehouse.TableID = "tbl"
	cfg.Warehouse.ClientEmail = "svc@proj.iam.gserviceaccount.com"
	cfg.Warehouse.PrivateKey = generateKeyPEM(t)
	cfg.Site.URL = "https://example.com"
	cfg.Site.Timezone = "UTC"
	cfg.State.Path = filepath.Join(t.TempDir(), "state.json")
	cfg.Daemon.PidFile = filepath.Join(t.TempDir(), "autoloadwatch.pid")
	cfg.Logging.Promtail = nil
	return cfg
}

func TestCollector_RepeatedCollectIsStable(t *testing.T) {
	cfg := testContainerConfig(t, newSQLiteOptionsStore(t))

	c, err := NewContainerBuilder().
		WithConfig(cfg).
		WithConfigPath(filepath.Join(t.TempDir(), "config.json")).
		WithWarehouseRepository(&recordingWarehouse{}).
		WithTokenProvider(staticTokenProvider{}).
		WithMetricsRepositories(&recordingSink{}).
		Build()
	require.NoError(t, err)
	defer c.Close()

	collector := impl.NewCollectorService(c.GetOptionsRepository(), cfg.Store.TopN, c.GetLogger())

	first, err := collector.Collect(context.Background())
	require.NoError(t, err)
	second, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(3), first.Count)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, first.TotalSizeBytes, second.TotalSizeBytes)
	assert.Equal(t, []entity.KeySize{
		{Name: "widget_cache", SizeBytes: 3000},
		{Name: "cron", SizeBytes: 500},
		{Name: "siteurl", SizeBytes: uint64(len("https://example.com"))},
	}, first.TopKeys)
	assert.Equal(t, first.TopKeys, second.TopKeys)
}

func TestContainerBuilder_PipelineEndToEnd(t *testing.T) {
	cfg := testContainerConfig(t, newSQLiteOptionsStore(t))
	warehouse := &recordingWarehouse{}
	sink := &recordingSink{}

	c, err := NewContainerBuilder().
		WithConfig(cfg).
		WithConfigPath(filepath.Join(t.TempDir(), "config.json")).
		WithWarehouseRepository(warehouse).
		WithTokenProvider(staticTokenProvider{}).
		WithMetricsRepositories(sink).
		Build()
	require.NoError(t, err)
	defer c.Close()

	result := c.GetPipelineService().Run(context.Background(), usecase.TriggerManual)
	require.True(t, result.Success, result.Error)

	require.NotNil(t, result.Snapshot)
	assert.Equal(t, uint64(3), result.Snapshot.Count)
	assert.Equal(t, uint64(3000+500+len("https://example.com")), result.Snapshot.TotalSizeBytes)
	assert.Equal(t, "widget_cache", result.Snapshot.TopKeys[0].Name)

	require.Len(t, warehouse.rows, 1)
	assert.Equal(t, "3", warehouse.rows[0].MetricCount)
	assert.Equal(t, "https://example.com", warehouse.rows[0].SiteURL)
	assert.NotEmpty(t, sink.points)

	info, err := c.GetStatusService().GetStatus(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, usecase.NeverSynced, info.LastSync)
	assert.Empty(t, info.MissingConfig)

	c.Close()
	assert.True(t, sink.closed)
}

func TestContainerBuilder_MissingWarehouseConfig(t *testing.T) {
	cfg := testContainerConfig(t, newSQLiteOptionsStore(t))
	cfg.Warehouse.DatasetID = ""

	c, err := NewContainerBuilder().
		WithConfig(cfg).
		WithConfigPath(filepath.Join(t.TempDir(), "config.json")).
		WithWarehouseRepository(&recordingWarehouse{}).
		WithMetricsRepositories(&recordingSink{}).
		Build()
	require.NoError(t, err)
	defer c.Close()

	result := c.GetPipelineService().Run(context.Background(), usecase.TriggerCLI)
	assert.False(t, result.Success)
	assert.Equal(t, domain.ErrCodeConfigMissing, result.ErrorCode)
	assert.Contains(t, result.Error, "dataset_id")
}

func TestContainerBuilder_DefaultSinks(t *testing.T) {
	cfg := testContainerConfig(t, newSQLiteOptionsStore(t))

	c, err := NewContainerBuilder().
		WithConfig(cfg).
		WithConfigPath(filepath.Join(t.TempDir(), "config.json")).
		Build()
	require.NoError(t, err)
	defer c.Close()

	sinks := c.GetMetricsRepositories()
	require.Len(t, sinks, 1)
	assert.Equal(t, "noop", sinks[0].Name())
	assert.NotNil(t, c.GetCLIController())
	assert.NotNil(t, c.GetAdminController())
	assert.Nil(t, c.GetDaemonController())
}

func TestContainer_InitDaemonComponents(t *testing.T) {
	cfg := testContainerConfig(t, newSQLiteOptionsStore(t))

	c, err := NewContainerBuilder().
		WithConfig(cfg).
		WithConfigPath(filepath.Join(t.TempDir(), "config.json")).
		WithMetricsRepositories(&recordingSink{}).
		Build()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.InitDaemonComponents(DaemonModeScheduler))
	assert.NotNil(t, c.GetDaemonController())

	require.NoError(t, c.InitDaemonComponents(DaemonModeServe))
	assert.NotNil(t, c.GetDaemonController())

	assert.Error(t, c.InitDaemonComponents(DaemonMode(42)))
}

func TestNewContainer_UsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	c, err := NewContainer(WithConfigPath(path), WithDebugMode(true), WithJSONOutput(true))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, path, c.GetConfigService().GetConfigPath())
	assert.True(t, c.GetConfig().Logging.Debug)
	assert.Equal(t, "debug", c.GetConfig().Logging.Level)
}
