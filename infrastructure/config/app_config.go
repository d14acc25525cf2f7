package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// DefaultAutoloadValues is the autoload flag vocabulary treated as "enabled".
// WordPress 6.6 added "on", "auto" and "auto-on" next to the historical "yes".
var DefaultAutoloadValues = []string{"yes", "on", "auto", "auto-on"}

const (
	// DefaultTokenURI is the OAuth2 token endpoint for service accounts
	DefaultTokenURI = "https://oauth2.googleapis.com/token"

	// DefaultWarehouseScope is the OAuth2 scope for BigQuery
	DefaultWarehouseScope = "https://www.googleapis.com/auth/bigquery"

	// UploadModeLoad uploads rows with a load job
	UploadModeLoad = "load"

	// UploadModeStream uploads rows with tabledata.insertAll
	UploadModeStream = "stream"
)

// StoreConfig holds options store configuration
type StoreConfig struct {
	// Driver is the database/sql driver name (mysql or sqlite3)
	Driver string `json:"driver,omitempty" env:"AUTOLOADWATCH_STORE_DRIVER"`

	// DSN is the data source name passed to the driver
	DSN string `json:"dsn,omitempty" env:"AUTOLOADWATCH_STORE_DSN"`

	// TablePrefix is the WordPress table prefix
	TablePrefix string `json:"table_prefix,omitempty" env:"AUTOLOADWATCH_STORE_TABLE_PREFIX"`

	// AutoloadValues is the autoload flag vocabulary counted as enabled.
	// Read from AUTOLOADWATCH_STORE_AUTOLOAD_VALUES as a comma-separated list.
	AutoloadValues []string `json:"autoload_values,omitempty"`

	// TopN is the number of largest options reported
	TopN int `json:"top_n,omitempty" env:"AUTOLOADWATCH_STORE_TOP_N"`

	// QueryTimeoutSec bounds each query
	QueryTimeoutSec int `json:"query_timeout_seconds,omitempty" env:"AUTOLOADWATCH_STORE_QUERY_TIMEOUT_SECONDS"`
}

// OptionsTable returns the prefixed options table name
func (s *StoreConfig) OptionsTable() string {
	return s.TablePrefix + "options"
}

// QueryTimeout returns the query timeout
func (s *StoreConfig) QueryTimeout() time.Duration {
	return time.Duration(s.QueryTimeoutSec) * time.Second
}

// WarehouseConfig holds BigQuery warehouse configuration
type WarehouseConfig struct {
	// ProjectID is the Google Cloud project that owns the dataset
	ProjectID string `json:"project_id,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_PROJECT_ID"`

	// DatasetID is the BigQuery dataset
	DatasetID string `json:"dataset_id,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_DATASET_ID"`

	// TableID is the BigQuery table
	TableID string `json:"table_id,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_TABLE_ID"`

	// ClientEmail is the service account email
	ClientEmail string `json:"client_email,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_CLIENT_EMAIL"`

	// PrivateKey is the PEM encoded service account private key
	PrivateKey string `json:"private_key,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_PRIVATE_KEY"`

	// PrivateKeyID is the optional key id hint
	PrivateKeyID string `json:"private_key_id,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_PRIVATE_KEY_ID"`

	// CredentialsFile is the path to a service account key JSON file
	CredentialsFile string `json:"credentials_file,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_CREDENTIALS_FILE"`

	// CredentialsJSON is an inline service account key.
	// AUTOLOADWATCH_WAREHOUSE_CREDENTIALS_JSON is base64 encoded.
	CredentialsJSON string `json:"credentials_json,omitempty"`

	// TokenURI is the OAuth2 token endpoint
	TokenURI string `json:"token_uri,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_TOKEN_URI"`

	// Scope is the OAuth2 scope requested for the token
	Scope string `json:"scope,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_SCOPE"`

	// Endpoint overrides the BigQuery API base URL
	Endpoint string `json:"endpoint,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_ENDPOINT"`

	// UploadMode is load or stream
	UploadMode string `json:"upload_mode,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_UPLOAD_MODE"`

	// TimeoutSec bounds every network call
	TimeoutSec int `json:"timeout_seconds,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_TIMEOUT_SECONDS"`

	// TokenCacheTTLSec is how long an access token is reused
	TokenCacheTTLSec int `json:"token_cache_ttl_seconds,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_TOKEN_CACHE_TTL_SECONDS"`

	// PushLockTTLSec is the lifetime of the push lock, 0 disables the lock
	PushLockTTLSec int `json:"push_lock_ttl_seconds,omitempty" env:"AUTOLOADWATCH_WAREHOUSE_PUSH_LOCK_TTL_SECONDS"`
}

// Timeout returns the network timeout
func (w *WarehouseConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

// TokenCacheTTL returns the token cache TTL
func (w *WarehouseConfig) TokenCacheTTL() time.Duration {
	return time.Duration(w.TokenCacheTTLSec) * time.Second
}

// PushLockTTL returns the push lock TTL
func (w *WarehouseConfig) PushLockTTL() time.Duration {
	return time.Duration(w.PushLockTTLSec) * time.Second
}

// SiteConfig describes the monitored site
type SiteConfig struct {
	// URL identifies the site in warehouse rows
	URL string `json:"url,omitempty" env:"AUTOLOADWATCH_SITE_URL"`

	// Platform is the source system identifier
	Platform string `json:"platform,omitempty" env:"AUTOLOADWATCH_SITE_PLATFORM"`

	// Timezone is the IANA timezone name of the site
	Timezone string `json:"timezone,omitempty" env:"AUTOLOADWATCH_SITE_TIMEZONE"`

	// GMTOffset is the UTC offset in hours, used when Timezone is empty
	GMTOffset float64 `json:"gmt_offset,omitempty" env:"AUTOLOADWATCH_SITE_GMT_OFFSET"`
}

// ScheduleConfig holds daily schedule configuration
type ScheduleConfig struct {
	// Enabled turns the daily job on
	Enabled *bool `json:"enabled,omitempty" env:"AUTOLOADWATCH_SCHEDULE_ENABLED"`

	// Hour is the local hour of the daily run
	Hour int `json:"hour,omitempty" env:"AUTOLOADWATCH_SCHEDULE_HOUR"`

	// Minute is the local minute of the daily run
	Minute int `json:"minute,omitempty" env:"AUTOLOADWATCH_SCHEDULE_MINUTE"`

	// JobName names the recurring job
	JobName string `json:"job_name,omitempty" env:"AUTOLOADWATCH_SCHEDULE_JOB_NAME"`
}

// IsEnabled reports whether the daily job is enabled
func (s *ScheduleConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// StateConfig holds persisted state configuration
type StateConfig struct {
	// Path is the state file path
	Path string `json:"path,omitempty" env:"AUTOLOADWATCH_STATE_PATH"`
}

// PrometheusConfig holds Prometheus remote write configuration
type PrometheusConfig struct {
	// RemoteWriteURL is the Prometheus Remote Write endpoint URL
	RemoteWriteURL string `json:"remote_write_url,omitempty" env:"AUTOLOADWATCH_PROMETHEUS_REMOTE_WRITE_URL"`

	// RemoteWriteUsername is the username for Remote Write authentication
	RemoteWriteUsername string `json:"remote_write_username,omitempty" env:"AUTOLOADWATCH_PROMETHEUS_REMOTE_WRITE_USERNAME"`

	// RemoteWritePassword is the password for Remote Write authentication
	RemoteWritePassword string `json:"remote_write_password,omitempty" env:"AUTOLOADWATCH_PROMETHEUS_REMOTE_WRITE_PASSWORD"`

	// HostLabel is the host label value for metrics
	HostLabel string `json:"host_label,omitempty" env:"AUTOLOADWATCH_PROMETHEUS_HOST_LABEL"`

	// TimeoutSec is the timeout in seconds for metric pushes
	TimeoutSec int `json:"timeout_seconds,omitempty" env:"AUTOLOADWATCH_PROMETHEUS_TIMEOUT_SECONDS"`
}

// CloudMonitoringConfig holds Google Cloud Monitoring configuration
type CloudMonitoringConfig struct {
	// Enabled turns the sink on
	Enabled bool `json:"enabled,omitempty" env:"AUTOLOADWATCH_CLOUD_MONITORING_ENABLED"`

	// ProjectID is the monitored project
	ProjectID string `json:"project_id,omitempty" env:"AUTOLOADWATCH_CLOUD_MONITORING_PROJECT_ID"`

	// CredentialsFile is a service account key file; empty uses application default credentials
	CredentialsFile string `json:"credentials_file,omitempty" env:"AUTOLOADWATCH_CLOUD_MONITORING_CREDENTIALS_FILE"`

	// MetricPrefix is prepended to metric names
	MetricPrefix string `json:"metric_prefix,omitempty" env:"AUTOLOADWATCH_CLOUD_MONITORING_METRIC_PREFIX"`
}

// CloudWatchConfig holds AWS CloudWatch configuration
type CloudWatchConfig struct {
	// Enabled turns the sink on
	Enabled bool `json:"enabled,omitempty" env:"AUTOLOADWATCH_CLOUDWATCH_ENABLED"`

	// Region is the AWS region
	Region string `json:"region,omitempty" env:"AUTOLOADWATCH_CLOUDWATCH_REGION"`

	// Namespace is the CloudWatch namespace
	Namespace string `json:"namespace,omitempty" env:"AUTOLOADWATCH_CLOUDWATCH_NAMESPACE"`

	// AWSProfile is the shared config profile, empty uses the default chain
	AWSProfile string `json:"aws_profile,omitempty" env:"AUTOLOADWATCH_CLOUDWATCH_AWS_PROFILE"`
}

// PromtailConfig holds Promtail logging configuration
type PromtailConfig struct {
	// URL is the Promtail push endpoint URL
	URL string `json:"url,omitempty" env:"AUTOLOADWATCH_LOKI_URL"`

	// Username is the username for basic authentication
	Username string `json:"username,omitempty" env:"AUTOLOADWATCH_LOKI_USERNAME"`

	// Password is the password for basic authentication
	Password string `json:"password,omitempty" env:"AUTOLOADWATCH_LOKI_PASSWORD"`

	// BatchWaitSeconds is the time to wait before sending a batch
	BatchWaitSeconds int `json:"batch_wait_seconds,omitempty" env:"AUTOLOADWATCH_LOKI_BATCH_WAIT_SECONDS"`

	// BatchCapacity is the maximum number of log entries in a batch
	BatchCapacity int `json:"batch_capacity,omitempty" env:"AUTOLOADWATCH_LOKI_BATCH_CAPACITY"`

	// TimeoutSeconds is the timeout for sending logs
	TimeoutSeconds int `json:"timeout_seconds,omitempty" env:"AUTOLOADWATCH_LOKI_TIMEOUT_SECONDS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" env:"AUTOLOADWATCH_LOG_LEVEL"`

	// Debug enables debug mode with console logging
	Debug bool `json:"debug,omitempty" env:"AUTOLOADWATCH_LOG_DEBUG"`

	// Promtail holds Promtail configuration
	Promtail *PromtailConfig `json:"promtail,omitempty"`
}

// AdminConfig holds the admin HTTP server configuration
type AdminConfig struct {
	// ListenAddr is the address the admin server binds to
	ListenAddr string `json:"listen_addr,omitempty" env:"AUTOLOADWATCH_ADMIN_LISTEN_ADDR"`

	// Token is the bearer token required by state-changing endpoints
	Token string `json:"token,omitempty" env:"AUTOLOADWATCH_ADMIN_TOKEN"`

	// NonceSecret signs action nonces
	NonceSecret string `json:"nonce_secret,omitempty" env:"AUTOLOADWATCH_ADMIN_NONCE_SECRET"`

	// NonceTTLSec is how long an issued nonce stays valid
	NonceTTLSec int `json:"nonce_ttl_seconds,omitempty" env:"AUTOLOADWATCH_ADMIN_NONCE_TTL_SECONDS"`
}

// NonceTTL returns the nonce lifetime
func (a *AdminConfig) NonceTTL() time.Duration {
	return time.Duration(a.NonceTTLSec) * time.Second
}

// DaemonConfig holds daemon mode configuration
type DaemonConfig struct {
	// PidFile is the path for the daemon PID file
	PidFile string `json:"pid_file,omitempty" env:"AUTOLOADWATCH_DAEMON_PID_FILE"`
}

// ConfigSource represents the source of a configuration value
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceJSONFile    ConfigSource = "json"
	SourceEnvironment ConfigSource = "env"
)

// ConfigSourceMap tracks the source of each configuration field
type ConfigSourceMap map[string]ConfigSource

// AppConfig holds application configuration
type AppConfig struct {
	// Version is the configuration schema version
	Version int `json:"version,omitempty"`

	Store           *StoreConfig           `json:"store,omitempty"`
	Warehouse       *WarehouseConfig       `json:"warehouse,omitempty"`
	Site            *SiteConfig            `json:"site,omitempty"`
	Schedule        *ScheduleConfig        `json:"schedule,omitempty"`
	State           *StateConfig           `json:"state,omitempty"`
	Prometheus      *PrometheusConfig      `json:"prometheus,omitempty"`
	CloudMonitoring *CloudMonitoringConfig `json:"cloud_monitoring,omitempty"`
	CloudWatch      *CloudWatchConfig      `json:"cloudwatch,omitempty"`
	Logging         *LoggingConfig         `json:"logging,omitempty"`
	Admin           *AdminConfig           `json:"admin,omitempty"`
	Daemon          *DaemonConfig          `json:"daemon,omitempty"`

	// ConfigSources tracks the source of each configuration field
	ConfigSources ConfigSourceMap `json:"-"`
}

func boolPtr(b bool) *bool { return &b }

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Version: 1,
		Store: &StoreConfig{
			Driver:          "mysql",
			TablePrefix:     "wp_",
			AutoloadValues:  append([]string(nil), DefaultAutoloadValues...),
			TopN:            10,
			QueryTimeoutSec: 30,
		},
		Warehouse: &WarehouseConfig{
			TokenURI:         DefaultTokenURI,
			Scope:            DefaultWarehouseScope,
			UploadMode:       UploadModeLoad,
			TimeoutSec:       30,
			TokenCacheTTLSec: 50 * 60, // tokens live one hour
			PushLockTTLSec:   10,
		},
		Site: &SiteConfig{
			Platform: "wordpress",
		},
		Schedule: &ScheduleConfig{
			Enabled: boolPtr(true),
			Hour:    17,
			Minute:  0,
			JobName: "collect-metrics",
		},
		State: &StateConfig{},
		Prometheus: &PrometheusConfig{
			TimeoutSec: 30,
		},
		CloudMonitoring: &CloudMonitoringConfig{
			MetricPrefix: "custom.googleapis.com/autoloadwatch",
		},
		CloudWatch: &CloudWatchConfig{
			Region:    "us-east-1",
			Namespace: "AutoloadWatch",
		},
		Logging: &LoggingConfig{
			Level: "info",
			Promtail: &PromtailConfig{
				BatchWaitSeconds: 1,
				BatchCapacity:    100,
				TimeoutSeconds:   5,
			},
		},
		Admin: &AdminConfig{
			ListenAddr:  "127.0.0.1:8787",
			NonceTTLSec: 12 * 60 * 60,
		},
		Daemon: &DaemonConfig{
			PidFile: "/tmp/autoloadwatch.pid",
		},
		ConfigSources: make(ConfigSourceMap),
	}
}

// MinimalDefaultConfig returns the configuration template written on first run
func MinimalDefaultConfig() *AppConfig {
	return &AppConfig{
		Version: 1,
		Store: &StoreConfig{
			Driver:          "mysql",
			DSN:             "",
			TablePrefix:     "wp_",
			AutoloadValues:  append([]string(nil), DefaultAutoloadValues...),
			TopN:            10,
			QueryTimeoutSec: 30,
		},
		Warehouse: &WarehouseConfig{
			ProjectID:        "",
			DatasetID:        "",
			TableID:          "",
			CredentialsFile:  "",
			UploadMode:       UploadModeLoad,
			TimeoutSec:       30,
			TokenCacheTTLSec: 50 * 60,
		},
		Site: &SiteConfig{
			URL:      "",
			Timezone: "",
		},
		ConfigSources: make(ConfigSourceMap),
	}
}

// sections returns every non-nil section keyed by its source-map prefix
func (c *AppConfig) sections() map[string]interface{} {
	all := map[string]interface{}{
		"Store":           c.Store,
		"Warehouse":       c.Warehouse,
		"Site":            c.Site,
		"Schedule":        c.Schedule,
		"State":           c.State,
		"Prometheus":      c.Prometheus,
		"CloudMonitoring": c.CloudMonitoring,
		"CloudWatch":      c.CloudWatch,
		"Logging":         c.Logging,
		"Admin":           c.Admin,
		"Daemon":          c.Daemon,
	}
	if c.Logging != nil && c.Logging.Promtail != nil {
		all["Promtail"] = c.Logging.Promtail
	}
	for k, v := range all {
		if reflect.ValueOf(v).IsNil() {
			delete(all, k)
		}
	}
	return all
}

// LoadFromEnv overrides configuration with environment variables using Netflix/go-env.
// Only variables that are set change the configuration.
func (c *AppConfig) LoadFromEnv() error {
	if c.ConfigSources == nil {
		c.ConfigSources = make(ConfigSourceMap)
	}

	for name, section := range c.sections() {
		if _, err := env.UnmarshalFromEnviron(section); err != nil {
			return fmt.Errorf("failed to unmarshal %s environment variables: %w", name, err)
		}
		c.trackEnvOverrides(name, section)
	}

	if c.Store != nil {
		if values := os.Getenv("AUTOLOADWATCH_STORE_AUTOLOAD_VALUES"); values != "" {
			c.Store.AutoloadValues = splitCommaSeparated(values)
			c.ConfigSources["Store.AutoloadValues"] = SourceEnvironment
		}
	}

	if c.Warehouse != nil {
		// inline key JSON is base64 encoded to survive shells and .env files
		if encoded := os.Getenv("AUTOLOADWATCH_WAREHOUSE_CREDENTIALS_JSON"); encoded != "" {
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return fmt.Errorf("failed to decode base64 service account key: %w", err)
			}
			c.Warehouse.CredentialsJSON = string(decoded)
			c.ConfigSources["Warehouse.CredentialsJSON"] = SourceEnvironment
		}
		c.Warehouse.PrivateKey = NormalizePrivateKey(c.Warehouse.PrivateKey)
	}

	return nil
}

// trackEnvOverrides marks every field of section whose environment variable is set
func (c *AppConfig) trackEnvOverrides(name string, section interface{}) {
	t := reflect.TypeOf(section).Elem()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("env")
		if tag == "" {
			continue
		}
		key := strings.Split(tag, ",")[0]
		if _, ok := os.LookupEnv(key); ok {
			c.ConfigSources[name+"."+field.Name] = SourceEnvironment
		}
	}
}

// MarkDefaults marks all configuration fields as coming from defaults
func (c *AppConfig) MarkDefaults() {
	if c.ConfigSources == nil {
		c.ConfigSources = make(ConfigSourceMap)
	}
	c.ConfigSources["Version"] = SourceDefault
	for name, section := range c.sections() {
		t := reflect.TypeOf(section).Elem()
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).Tag.Get("json") == "" {
				continue
			}
			c.ConfigSources[name+"."+t.Field(i).Name] = SourceDefault
		}
	}
}

// MergeJSONConfig merges JSON configuration into the current configuration.
// Zero values in the JSON configuration leave the current value untouched.
func (c *AppConfig) MergeJSONConfig(jsonConfig *AppConfig) {
	if c.ConfigSources == nil {
		c.ConfigSources = make(ConfigSourceMap)
	}

	// Always merge version from JSON, even if it's 0 (legacy config)
	c.Version = jsonConfig.Version
	c.ConfigSources["Version"] = SourceJSONFile

	if jsonConfig.Store != nil {
		if c.Store == nil {
			c.Store = &StoreConfig{}
		}
		c.mergeSection("Store", c.Store, jsonConfig.Store)
	}
	if jsonConfig.Warehouse != nil {
		if c.Warehouse == nil {
			c.Warehouse = &WarehouseConfig{}
		}
		c.mergeSection("Warehouse", c.Warehouse, jsonConfig.Warehouse)
		c.Warehouse.PrivateKey = NormalizePrivateKey(c.Warehouse.PrivateKey)
	}
	if jsonConfig.Site != nil {
		if c.Site == nil {
			c.Site = &SiteConfig{}
		}
		c.mergeSection("Site", c.Site, jsonConfig.Site)
	}
	if jsonConfig.Schedule != nil {
		if c.Schedule == nil {
			c.Schedule = &ScheduleConfig{}
		}
		c.mergeSection("Schedule", c.Schedule, jsonConfig.Schedule)
	}
	if jsonConfig.State != nil {
		if c.State == nil {
			c.State = &StateConfig{}
		}
		c.mergeSection("State", c.State, jsonConfig.State)
	}
	if jsonConfig.Prometheus != nil {
		if c.Prometheus == nil {
			c.Prometheus = &PrometheusConfig{}
		}
		c.mergeSection("Prometheus", c.Prometheus, jsonConfig.Prometheus)
	}
	if jsonConfig.CloudMonitoring != nil {
		if c.CloudMonitoring == nil {
			c.CloudMonitoring = &CloudMonitoringConfig{}
		}
		c.mergeSection("CloudMonitoring", c.CloudMonitoring, jsonConfig.CloudMonitoring)
	}
	if jsonConfig.CloudWatch != nil {
		if c.CloudWatch == nil {
			c.CloudWatch = &CloudWatchConfig{}
		}
		c.mergeSection("CloudWatch", c.CloudWatch, jsonConfig.CloudWatch)
	}
	if jsonConfig.Logging != nil {
		if c.Logging == nil {
			c.Logging = &LoggingConfig{}
		}
		c.mergeLoggingConfig(jsonConfig.Logging)
	}
	if jsonConfig.Admin != nil {
		if c.Admin == nil {
			c.Admin = &AdminConfig{}
		}
		c.mergeSection("Admin", c.Admin, jsonConfig.Admin)
	}
	if jsonConfig.Daemon != nil {
		if c.Daemon == nil {
			c.Daemon = &DaemonConfig{}
		}
		c.mergeSection("Daemon", c.Daemon, jsonConfig.Daemon)
	}
}

// mergeLoggingConfig merges Logging configuration from JSON
func (c *AppConfig) mergeLoggingConfig(jsonConfig *LoggingConfig) {
	if jsonConfig.Level != "" {
		c.Logging.Level = jsonConfig.Level
		c.ConfigSources["Logging.Level"] = SourceJSONFile
	}

	// Note: bool field
	c.Logging.Debug = jsonConfig.Debug
	c.ConfigSources["Logging.Debug"] = SourceJSONFile

	if jsonConfig.Promtail != nil {
		if c.Logging.Promtail == nil {
			c.Logging.Promtail = &PromtailConfig{}
		}
		c.mergeSection("Promtail", c.Logging.Promtail, jsonConfig.Promtail)
	}
}

// mergeSection copies every non-zero scalar field of src into dst
func (c *AppConfig) mergeSection(name string, dst, src interface{}) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	t := sv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := sv.Field(i)
		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			continue
		}
		if field.IsZero() {
			continue
		}
		dv.Field(i).Set(field)
		c.ConfigSources[name+"."+t.Field(i).Name] = SourceJSONFile
	}
}

// Validate validates the configuration
func (c *AppConfig) Validate() error {
	validators := []func() error{
		c.validateStore,
		c.validateWarehouse,
		c.validateSite,
		c.validateSchedule,
		c.validatePrometheus,
		c.validateCloudMonitoring,
		c.validateLogging,
		c.validateAdmin,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *AppConfig) validateStore() error {
	if c.Store == nil {
		return nil
	}

	switch c.Store.Driver {
	case "mysql", "sqlite3":
	default:
		return fmt.Errorf("invalid store driver: %s (must be mysql or sqlite3)", c.Store.Driver)
	}

	if len(c.Store.AutoloadValues) == 0 {
		return fmt.Errorf("store autoload values cannot be empty")
	}

	if c.Store.TopN < 1 || c.Store.TopN > 100 {
		return fmt.Errorf("store top_n must be between 1 and 100")
	}

	for _, r := range c.Store.TablePrefix {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("invalid store table prefix: %q", c.Store.TablePrefix)
		}
	}

	if c.Store.QueryTimeoutSec < 1 {
		return fmt.Errorf("store query timeout must be at least 1 second")
	}

	return nil
}

func (c *AppConfig) validateWarehouse() error {
	if c.Warehouse == nil {
		return nil
	}

	switch c.Warehouse.UploadMode {
	case UploadModeLoad, UploadModeStream:
	default:
		return fmt.Errorf("invalid warehouse upload mode: %s (must be load or stream)", c.Warehouse.UploadMode)
	}

	if c.Warehouse.TimeoutSec < 1 || c.Warehouse.TimeoutSec > 300 {
		return fmt.Errorf("warehouse timeout must be between 1 and 300 seconds")
	}

	// tokens are issued for one hour; a cached token must expire before that
	if c.Warehouse.TokenCacheTTLSec < 60 || c.Warehouse.TokenCacheTTLSec >= 3600 {
		return fmt.Errorf("warehouse token cache TTL must be at least 60 and less than 3600 seconds")
	}

	if c.Warehouse.PushLockTTLSec < 0 {
		return fmt.Errorf("warehouse push lock TTL cannot be negative")
	}

	if c.Warehouse.TokenURI != "" && !strings.HasPrefix(c.Warehouse.TokenURI, "http://") && !strings.HasPrefix(c.Warehouse.TokenURI, "https://") {
		return fmt.Errorf("warehouse token URI must start with http:// or https://")
	}

	return nil
}

func (c *AppConfig) validateSite() error {
	if c.Site == nil {
		return nil
	}

	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			return fmt.Errorf("invalid site timezone %s: %w", c.Site.Timezone, err)
		}
	}

	if c.Site.GMTOffset < -12 || c.Site.GMTOffset > 14 {
		return fmt.Errorf("site gmt_offset must be between -12 and 14 hours")
	}

	return nil
}

func (c *AppConfig) validateSchedule() error {
	if c.Schedule == nil {
		return nil
	}

	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("schedule hour must be between 0 and 23")
	}

	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("schedule minute must be between 0 and 59")
	}

	if c.Schedule.IsEnabled() && c.Schedule.JobName == "" {
		return fmt.Errorf("schedule job name cannot be empty when the schedule is enabled")
	}

	return nil
}

func (c *AppConfig) validatePrometheus() error {
	if c.Prometheus == nil || c.Prometheus.RemoteWriteURL == "" {
		return nil
	}

	if !strings.HasPrefix(c.Prometheus.RemoteWriteURL, "http://") && !strings.HasPrefix(c.Prometheus.RemoteWriteURL, "https://") {
		return fmt.Errorf("prometheus remote write URL must start with http:// or https://")
	}

	if c.Prometheus.TimeoutSec < 1 || c.Prometheus.TimeoutSec > 300 {
		return fmt.Errorf("prometheus timeout must be between 1 and 300 seconds")
	}

	return nil
}

func (c *AppConfig) validateCloudMonitoring() error {
	if c.CloudMonitoring == nil || !c.CloudMonitoring.Enabled {
		return nil
	}

	if c.CloudMonitoring.ProjectID == "" {
		return fmt.Errorf("cloud monitoring project ID is required when cloud monitoring is enabled")
	}

	return nil
}

func (c *AppConfig) validateLogging() error {
	if c.Logging == nil {
		return nil
	}

	// Validate log level only if specified
	if c.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[c.Logging.Level] {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
		}
	}

	if c.Logging.Promtail != nil && c.Logging.Promtail.URL != "" {
		if c.Logging.Promtail.BatchWaitSeconds < 1 {
			return fmt.Errorf("promtail batch wait must be at least 1 second")
		}

		if c.Logging.Promtail.BatchCapacity < 1 {
			return fmt.Errorf("promtail batch capacity must be at least 1")
		}

		if c.Logging.Promtail.TimeoutSeconds < 1 {
			return fmt.Errorf("promtail timeout must be at least 1 second")
		}
	}

	return nil
}

func (c *AppConfig) validateAdmin() error {
	if c.Admin == nil {
		return nil
	}

	if c.Admin.NonceTTLSec < 60 {
		return fmt.Errorf("admin nonce TTL must be at least 60 seconds")
	}

	return nil
}

// NormalizePrivateKey turns escaped "\n" sequences into newlines so keys
// copied from a JSON key file into a single-line variable still parse.
func NormalizePrivateKey(key string) string {
	if key == "" || strings.Contains(key, "\n") {
		return key
	}
	return strings.ReplaceAll(key, `\n`, "\n")
}

// splitCommaSeparated splits a comma-separated string into a slice of strings
// It also trims whitespace from each element
func splitCommaSeparated(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
