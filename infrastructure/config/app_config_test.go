package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"yes", "on", "auto", "auto-on"}, cfg.Store.AutoloadValues)
	assert.Equal(t, 10, cfg.Store.TopN)
	assert.Equal(t, DefaultTokenURI, cfg.Warehouse.TokenURI)
	assert.Equal(t, DefaultWarehouseScope, cfg.Warehouse.Scope)
	assert.Equal(t, UploadModeLoad, cfg.Warehouse.UploadMode)
	assert.Equal(t, 17, cfg.Schedule.Hour)
	assert.Equal(t, "collect-metrics", cfg.Schedule.JobName)
	assert.True(t, cfg.Schedule.IsEnabled())

	// the defaults slice must not alias the package-level vocabulary
	cfg.Store.AutoloadValues[0] = "changed"
	assert.Equal(t, "yes", DefaultAutoloadValues[0])
}

func TestMergeJSONConfig(t *testing.T) {
	raw := `{
		"version": 1,
		"store": {"driver": "sqlite3", "dsn": "/tmp/wp.db"},
		"warehouse": {"project_id": "p", "private_key": "line1\\nline2"},
		"schedule": {"hour": 9},
		"logging": {"level": "warn", "promtail": {"url": "http://loki"}}
	}`
	var jsonConfig AppConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &jsonConfig))

	cfg := DefaultConfig()
	cfg.MarkDefaults()
	cfg.MergeJSONConfig(&jsonConfig)

	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "/tmp/wp.db", cfg.Store.DSN)
	assert.Equal(t, "wp_", cfg.Store.TablePrefix)
	assert.Equal(t, 10, cfg.Store.TopN)
	assert.Equal(t, "p", cfg.Warehouse.ProjectID)
	assert.Equal(t, "line1\nline2", cfg.Warehouse.PrivateKey)
	assert.Equal(t, DefaultTokenURI, cfg.Warehouse.TokenURI)
	assert.Equal(t, 9, cfg.Schedule.Hour)
	assert.True(t, cfg.Schedule.IsEnabled(), "omitted enabled keeps the default")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "http://loki", cfg.Logging.Promtail.URL)
	assert.Equal(t, 100, cfg.Logging.Promtail.BatchCapacity)

	assert.Equal(t, SourceJSONFile, cfg.ConfigSources["Store.Driver"])
	assert.Equal(t, SourceDefault, cfg.ConfigSources["Store.TablePrefix"])
	assert.Equal(t, SourceJSONFile, cfg.ConfigSources["Promtail.URL"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{"default is valid", func(c *AppConfig) {}, ""},
		{"unknown driver", func(c *AppConfig) { c.Store.Driver = "oracle" }, "invalid store driver"},
		{"empty autoload vocabulary", func(c *AppConfig) { c.Store.AutoloadValues = nil }, "autoload values"},
		{"top n too large", func(c *AppConfig) { c.Store.TopN = 1000 }, "top_n"},
		{"unsafe table prefix", func(c *AppConfig) { c.Store.TablePrefix = "wp_; DROP" }, "table prefix"},
		{"unknown upload mode", func(c *AppConfig) { c.Warehouse.UploadMode = "copy" }, "upload mode"},
		{"token ttl not below lifetime", func(c *AppConfig) { c.Warehouse.TokenCacheTTLSec = 3600 }, "token cache TTL"},
		{"bad timezone", func(c *AppConfig) { c.Site.Timezone = "Mars/Olympus" }, "invalid site timezone"},
		{"bad hour", func(c *AppConfig) { c.Schedule.Hour = 24 }, "schedule hour"},
		{"bad log level", func(c *AppConfig) { c.Logging.Level = "trace" }, "invalid log level"},
		{"cloud monitoring without project", func(c *AppConfig) { c.CloudMonitoring.Enabled = true }, "project ID"},
		{"prometheus url scheme", func(c *AppConfig) { c.Prometheus.RemoteWriteURL = "ftp://x" }, "remote write URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizePrivateKey(t *testing.T) {
	assert.Equal(t, "", NormalizePrivateKey(""))
	assert.Equal(t, "a\nb", NormalizePrivateKey(`a\nb`))
	assert.Equal(t, "a\nb\\nc", NormalizePrivateKey("a\nb\\nc"), "keys with real newlines are left alone")
}

func TestMinimalDefaultConfig(t *testing.T) {
	cfg := MinimalDefaultConfig()

	require.NoError(t, cfg.Validate(), "the first-run template must be savable")
	assert.Equal(t, 1, cfg.Version)
	assert.Nil(t, cfg.Schedule)
	assert.Nil(t, cfg.Logging)
}
