package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/auth"
	"github.com/ca-srg/autoloadwatch/infrastructure/cache"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	"github.com/ca-srg/autoloadwatch/infrastructure/logging"
	infraRepo "github.com/ca-srg/autoloadwatch/infrastructure/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/service"
	"github.com/ca-srg/autoloadwatch/interface/cli"
	"github.com/ca-srg/autoloadwatch/interface/controller"
	"github.com/ca-srg/autoloadwatch/interface/presenter"
	"github.com/ca-srg/autoloadwatch/usecase/impl"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// cacheCleanupInterval is how often expired tokens and locks are purged
const cacheCleanupInterval = time.Minute

// DaemonMode selects what a daemon process runs
type DaemonMode int

const (
	// DaemonModeScheduler runs the daily job, plus the admin API when a token is configured
	DaemonModeScheduler DaemonMode = iota
	// DaemonModeServe runs only the admin API
	DaemonModeServe
)

// Container is the dependency injection container
type Container struct {
	// Configuration
	config        *config.AppConfig
	configRepo    repository.ConfigRepository
	configService usecase.ConfigService

	// Repositories
	memoryCache   *cache.MemoryCache
	credentials   repository.CredentialsProvider
	tokenProvider repository.AccessTokenProvider
	optionsRepo   repository.OptionsRepository
	warehouseRepo repository.WarehouseRepository
	stateRepo     repository.StateRepository
	sinks         []repository.MetricsRepository

	// Services
	timezoneService repository.TimezoneService
	nonceSigner     *auth.NonceSigner

	// Use Cases
	collectorService usecase.CollectorService
	warehouseClient  usecase.WarehouseClient
	pipelineService  usecase.PipelineService
	schedulerService usecase.SchedulerService
	statusService    usecase.StatusService

	// Presenters
	consolePresenter presenter.Presenter
	jsonPresenter    presenter.Presenter

	// Controllers
	cliController    *cli.CLIController
	adminController  *controller.AdminController
	daemonController *controller.DaemonController

	// Logging
	loggerFactory *logging.LoggerFactoryImpl
	logger        domain.Logger

	// Options
	debugMode  bool
	jsonOutput bool
	configPath string
}

// ContainerOption is a function that configures the container
type ContainerOption func(*Container)

// WithDebugMode sets the debug mode
func WithDebugMode(debug bool) ContainerOption {
	return func(c *Container) {
		c.debugMode = debug
	}
}

// WithJSONOutput selects the JSON presenter for CLI output
func WithJSONOutput(enabled bool) ContainerOption {
	return func(c *Container) {
		c.jsonOutput = enabled
	}
}

// WithConfigPath overrides the config file location
func WithConfigPath(path string) ContainerOption {
	return func(c *Container) {
		c.configPath = path
	}
}

// NewContainer creates a new DI container
func NewContainer(opts ...ContainerOption) (*Container, error) {
	container := &Container{}

	// Apply options
	for _, opt := range opts {
		opt(container)
	}

	// Load configuration
	if err := container.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	return container.initAll()
}

func (c *Container) initAll() (*Container, error) {
	// Initialize logging
	if err := c.initLogging(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Initialize repositories
	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Initialize domain services
	if err := c.initDomainServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize domain services: %w", err)
	}

	// Initialize use cases
	c.initUseCases()

	// Initialize presenters
	c.initPresenters()

	// Initialize controllers
	c.initControllers()

	return c, nil
}

// initConfig initializes configuration
func (c *Container) initConfig() error {
	// Create config repository
	c.configRepo = infraRepo.NewJSONConfigRepository(c.configPath)

	// Create temporary NoOpLogger for initial configuration loading
	tempLogger := &logging.NoOpLogger{}

	configService, err := impl.NewConfigService(c.configRepo, impl.NewConfigMigrationService(tempLogger), tempLogger)
	if err != nil {
		// ConfigServiceがないとシステムが動作しないので、エラーを返す
		return fmt.Errorf("failed to create config service: %w", err)
	}
	c.configService = configService

	// Get configuration from service (with fallback to defaults)
	c.config = configService.GetConfig()
	return nil
}

// initLogging initializes logging components
func (c *Container) initLogging() error {
	// Ensure logging configuration exists
	if c.config.Logging == nil {
		c.config.Logging = &config.LoggingConfig{Level: "info"}
	}

	// Override debug mode if set via command line
	if c.debugMode {
		c.config.Logging.Debug = true
		c.config.Logging.Level = "debug"
	}

	c.loggerFactory = logging.NewLoggerFactory(c.config.Logging)
	c.logger = c.loggerFactory.CreateLogger("autoloadwatch")
	return nil
}

// initRepositories initializes repository implementations. Components
// already injected through the builder are kept.
func (c *Container) initRepositories() error {
	c.ensureSections()

	if c.memoryCache == nil {
		c.memoryCache = cache.NewMemoryCache(cacheCleanupInterval)
	}

	if c.credentials == nil {
		c.credentials = auth.NewWarehouseCredentialsProvider(c.config.Warehouse)
	}

	if c.tokenProvider == nil {
		c.tokenProvider = auth.NewTokenProvider(c.memoryCache, c.config.Warehouse, c.CreateLogger("auth"))
	}

	if c.optionsRepo == nil {
		optionsRepo, err := infraRepo.NewOptionsDBRepository(c.config.Store)
		if err != nil {
			return fmt.Errorf("failed to open options store: %w", err)
		}
		c.optionsRepo = optionsRepo
	}

	if c.warehouseRepo == nil {
		c.warehouseRepo = infraRepo.NewBigQueryWarehouseRepository(c.config.Warehouse, c.CreateLogger("bigquery"))
	}

	if c.stateRepo == nil {
		c.stateRepo = infraRepo.NewJSONStateRepository(c.config.State.Path)
	}

	if c.sinks == nil {
		c.sinks = c.buildSinks()
	}

	return nil
}

// ensureSections fills the sections every component depends on
func (c *Container) ensureSections() {
	defaults := config.DefaultConfig()
	if c.config.Store == nil {
		c.config.Store = defaults.Store
	}
	if c.config.Warehouse == nil {
		c.config.Warehouse = defaults.Warehouse
	}
	if c.config.Site == nil {
		c.config.Site = defaults.Site
	}
	if c.config.Schedule == nil {
		c.config.Schedule = defaults.Schedule
	}
	if c.config.State == nil {
		c.config.State = defaults.State
	}
	if c.config.Admin == nil {
		c.config.Admin = defaults.Admin
	}
}

// buildSinks creates every enabled secondary sink. A sink that cannot be
// created is logged and skipped.
func (c *Container) buildSinks() []repository.MetricsRepository {
	logger := c.CreateLogger("sinks")
	ctx := context.Background()
	sinks := []repository.MetricsRepository{}

	if c.config.Prometheus != nil && c.config.Prometheus.RemoteWriteURL != "" {
		if sink, err := infraRepo.NewPrometheusMetricsRepository(c.config.Prometheus); err != nil {
			logger.Warn(ctx, "Prometheus sink disabled", domain.NewField("error", err.Error()))
		} else {
			sinks = append(sinks, sink)
		}
	}

	if c.config.CloudMonitoring != nil && c.config.CloudMonitoring.Enabled {
		if sink, err := infraRepo.NewCloudMonitoringMetricsRepository(ctx, c.config.CloudMonitoring); err != nil {
			logger.Warn(ctx, "Cloud Monitoring sink disabled", domain.NewField("error", err.Error()))
		} else {
			sinks = append(sinks, sink)
		}
	}

	if c.config.CloudWatch != nil && c.config.CloudWatch.Enabled {
		if sink, err := infraRepo.NewCloudWatchMetricsRepository(c.config.CloudWatch); err != nil {
			logger.Warn(ctx, "CloudWatch sink disabled", domain.NewField("error", err.Error()))
		} else {
			sinks = append(sinks, sink)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, infraRepo.NewNoOpMetricsRepository())
	}
	return sinks
}

// initDomainServices initializes domain services
func (c *Container) initDomainServices() error {
	c.timezoneService = service.NewTimezoneServiceImpl(c.config.Site, c.CreateLogger("timezone"))

	nonceSigner, err := auth.NewNonceSigner(c.config.Admin.NonceSecret, c.config.Admin.NonceTTL())
	if err != nil {
		return fmt.Errorf("failed to create nonce signer: %w", err)
	}
	c.nonceSigner = nonceSigner
	return nil
}

// initUseCases initializes use case implementations
func (c *Container) initUseCases() {
	c.collectorService = impl.NewCollectorService(c.optionsRepo, c.config.Store.TopN, c.CreateLogger("collector"))

	c.warehouseClient = impl.NewWarehouseClient(impl.WarehouseClientDeps{
		Credentials: c.credentials,
		Tokens:      c.tokenProvider,
		Warehouse:   c.warehouseRepo,
		Lock:        c.memoryCache,
		State:       c.stateRepo,
		Site:        c.config.Site,
		LockTTL:     c.config.Warehouse.PushLockTTL(),
		Logger:      c.CreateLogger("warehouse"),
	})

	c.pipelineService = impl.NewPipelineService(
		c.collectorService,
		c.warehouseClient,
		c.sinks,
		c.stateRepo,
		c.config.Site.URL,
		c.CreateLogger("pipeline"),
	)

	c.schedulerService = impl.NewSchedulerService(
		c.config.Schedule,
		c.timezoneService,
		c.stateRepo,
		c.pipelineService,
		c.CreateLogger("scheduler"),
	)

	c.statusService = impl.NewStatusService(
		c.collectorService,
		c.stateRepo,
		c.timezoneService,
		c.credentials,
		c.CreateLogger("status"),
	)
}

// initPresenters initializes presenter implementations
func (c *Container) initPresenters() {
	c.consolePresenter = presenter.NewConsolePresenter()
	c.jsonPresenter = presenter.NewJSONPresenter()
}

// initControllers initializes controller implementations
func (c *Container) initControllers() {
	c.cliController = newCLIController(
		c.statusService,
		c.pipelineService,
		c.schedulerService,
		c.configService,
		c.timezoneService,
		c.consolePresenter,
		c.jsonPresenter,
		c.jsonOutput,
	)

	c.adminController = controller.NewAdminController(
		c.config.Admin,
		c.pipelineService,
		c.statusService,
		c.nonceSigner,
		c.CreateLogger("admin"),
		c.loggerFactory.Console().Named("http"),
	)
}

// InitDaemonComponents initializes daemon components on demand
func (c *Container) InitDaemonComponents(mode DaemonMode) error {
	var scheduler usecase.SchedulerService
	var server controller.Server

	switch mode {
	case DaemonModeServe:
		server = c.adminController
	case DaemonModeScheduler:
		scheduler = c.schedulerService
		if c.config.Admin.Token != "" {
			server = c.adminController
		}
	default:
		return fmt.Errorf("unknown daemon mode: %d", mode)
	}

	c.daemonController = controller.NewDaemonController(c.config, scheduler, server, c.CreateLogger("daemon"))
	return nil
}

// Close releases sinks, the options store and flushes loggers
func (c *Container) Close() {
	ctx := context.Background()
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil {
			c.logger.Warn(ctx, "Failed to close sink", domain.NewField("sink", sink.Name()), domain.NewField("error", err.Error()))
		}
	}
	if c.optionsRepo != nil {
		if err := c.optionsRepo.Close(); err != nil {
			c.logger.Warn(ctx, "Failed to close options store", domain.NewField("error", err.Error()))
		}
	}
	if c.loggerFactory != nil {
		c.loggerFactory.Shutdown()
	}
}

// GetConfig returns the application configuration
func (c *Container) GetConfig() *config.AppConfig {
	return c.config
}

// GetConfigService returns the config service
func (c *Container) GetConfigService() usecase.ConfigService {
	return c.configService
}

// GetConfigRepository returns the config repository
func (c *Container) GetConfigRepository() repository.ConfigRepository {
	return c.configRepo
}

// GetOptionsRepository returns the options store
func (c *Container) GetOptionsRepository() repository.OptionsRepository {
	return c.optionsRepo
}

// GetMetricsRepositories returns the secondary sinks
func (c *Container) GetMetricsRepositories() []repository.MetricsRepository {
	return c.sinks
}

// GetTimezoneService returns the timezone service
func (c *Container) GetTimezoneService() repository.TimezoneService {
	return c.timezoneService
}

// GetPipelineService returns the pipeline service
func (c *Container) GetPipelineService() usecase.PipelineService {
	return c.pipelineService
}

// GetSchedulerService returns the scheduler service
func (c *Container) GetSchedulerService() usecase.SchedulerService {
	return c.schedulerService
}

// GetStatusService returns the status service
func (c *Container) GetStatusService() usecase.StatusService {
	return c.statusService
}

// GetWarehouseClient returns the warehouse client
func (c *Container) GetWarehouseClient() usecase.WarehouseClient {
	return c.warehouseClient
}

// GetCLIController returns the CLI controller
func (c *Container) GetCLIController() *cli.CLIController {
	return c.cliController
}

// GetAdminController returns the admin controller
func (c *Container) GetAdminController() *controller.AdminController {
	return c.adminController
}

// GetDaemonController returns the daemon controller
func (c *Container) GetDaemonController() *controller.DaemonController {
	return c.daemonController
}

// GetLoggerFactory returns the logger factory
func (c *Container) GetLoggerFactory() domain.LoggerFactory {
	return c.loggerFactory
}

// GetLogger returns the main logger
func (c *Container) GetLogger() domain.Logger {
	return c.logger
}

// CreateLogger creates a new logger for a specific component
func (c *Container) CreateLogger(component string) domain.Logger {
	if c.loggerFactory == nil {
		return &logging.NoOpLogger{}
	}
	return c.loggerFactory.CreateLogger(component)
}

// Builder pattern for custom container configuration

// ContainerBuilder builds a container with injected components
type ContainerBuilder struct {
	config        *config.AppConfig
	configPath    string
	optionsRepo   repository.OptionsRepository
	warehouseRepo repository.WarehouseRepository
	stateRepo     repository.StateRepository
	tokenProvider repository.AccessTokenProvider
	sinks         []repository.MetricsRepository
}

// NewContainerBuilder creates a new container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{}
}

// WithConfig sets a custom configuration
func (b *ContainerBuilder) WithConfig(cfg *config.AppConfig) *ContainerBuilder {
	b.config = cfg
	return b
}

// WithConfigPath sets the config file used by the config service
func (b *ContainerBuilder) WithConfigPath(path string) *ContainerBuilder {
	b.configPath = path
	return b
}

// WithOptionsRepository sets a custom options store
func (b *ContainerBuilder) WithOptionsRepository(repo repository.OptionsRepository) *ContainerBuilder {
	b.optionsRepo = repo
	return b
}

// WithWarehouseRepository sets a custom warehouse repository
func (b *ContainerBuilder) WithWarehouseRepository(repo repository.WarehouseRepository) *ContainerBuilder {
	b.warehouseRepo = repo
	return b
}

// WithStateRepository sets a custom state repository
func (b *ContainerBuilder) WithStateRepository(repo repository.StateRepository) *ContainerBuilder {
	b.stateRepo = repo
	return b
}

// WithTokenProvider sets a custom access token provider
func (b *ContainerBuilder) WithTokenProvider(p repository.AccessTokenProvider) *ContainerBuilder {
	b.tokenProvider = p
	return b
}

// WithMetricsRepositories sets the secondary sinks
func (b *ContainerBuilder) WithMetricsRepositories(sinks ...repository.MetricsRepository) *ContainerBuilder {
	b.sinks = sinks
	return b
}

// Build builds the container with custom components
func (b *ContainerBuilder) Build() (*Container, error) {
	container := &Container{
		configPath:    b.configPath,
		optionsRepo:   b.optionsRepo,
		warehouseRepo: b.warehouseRepo,
		stateRepo:     b.stateRepo,
		tokenProvider: b.tokenProvider,
		sinks:         b.sinks,
	}

	if b.config != nil {
		container.configRepo = infraRepo.NewJSONConfigRepository(b.configPath)
		tempLogger := &logging.NoOpLogger{}
		configService, err := impl.NewConfigService(container.configRepo, impl.NewConfigMigrationService(tempLogger), tempLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create config service: %w", err)
		}
		container.configService = configService
		container.config = b.config
	} else if err := container.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	return container.initAll()
}

// EnsureConfigFile creates a template config file when none exists and
// reports a failure on stderr without stopping the command
func (c *Container) EnsureConfigFile() {
	if err := c.configService.EnsureConfigExists(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to create config file: %v\n", err)
	}
}
