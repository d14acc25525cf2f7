package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/interface/presenter"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// CLIController handles command-line interface operations
type CLIController struct {
	statusService    usecase.StatusService
	pipelineService  usecase.PipelineService
	schedulerService usecase.SchedulerService
	configService    usecase.ConfigService
	timezoneService  repository.TimezoneService
	presenter        presenter.Presenter
	now              func() time.Time
}

// NewCLIController creates a new CLI controller
func NewCLIController(
	statusService usecase.StatusService,
	pipelineService usecase.PipelineService,
	schedulerService usecase.SchedulerService,
	configService usecase.ConfigService,
	timezoneService repository.TimezoneService,
	p presenter.Presenter,
) *CLIController {
	return &CLIController{
		statusService:    statusService,
		pipelineService:  pipelineService,
		schedulerService: schedulerService,
		configService:    configService,
		timezoneService:  timezoneService,
		presenter:        p,
		now:              time.Now,
	}
}

// SetPresenter switches the output format
func (c *CLIController) SetPresenter(p presenter.Presenter) {
	c.presenter = p
}

// Status prints the live snapshot and the sync state
func (c *CLIController) Status(ctx context.Context) error {
	info, err := c.statusService.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return c.presenter.PrintStatus(info)
}

// Push runs collect -> push once. A failed push is returned as an error
// after the result has been printed.
func (c *CLIController) Push(ctx context.Context) error {
	result := c.pipelineService.Run(ctx, usecase.TriggerCLI)
	if err := c.presenter.PrintPipelineResult(result); err != nil {
		return err
	}
	if !result.Success {
		return domain.NewDomainError(result.ErrorCode, "push failed")
	}
	return nil
}

// NextRun prints the next run time computed from the schedule
func (c *CLIController) NextRun(ctx context.Context) error {
	next := c.schedulerService.NextRunAt(c.now())
	return c.presenter.PrintNextRun(c.timezoneService.ConvertToSiteTime(next), c.timezoneService.GetTimezoneInfo(), false)
}

// EnsureScheduled registers the daily job when no schedule exists
func (c *CLIController) EnsureScheduled(ctx context.Context) error {
	next, created, err := c.schedulerService.EnsureScheduled(ctx)
	if err != nil {
		return err
	}
	return c.presenter.PrintNextRun(c.timezoneService.ConvertToSiteTime(next), c.timezoneService.GetTimezoneInfo(), created)
}

// Activate replaces any existing schedule with a fresh one
func (c *CLIController) Activate(ctx context.Context) error {
	next, err := c.schedulerService.Activate(ctx)
	if err != nil {
		return err
	}
	return c.presenter.PrintNextRun(c.timezoneService.ConvertToSiteTime(next), c.timezoneService.GetTimezoneInfo(), true)
}

// Deactivate clears the schedule
func (c *CLIController) Deactivate(ctx context.Context) error {
	return c.schedulerService.Deactivate(ctx)
}

// ShowConfig prints the effective configuration with secrets masked
func (c *CLIController) ShowConfig() error {
	return c.presenter.PrintConfig(c.configService.ExportConfig(), c.configService.GetConfigPath())
}

// InitConfig writes a default configuration file
func (c *CLIController) InitConfig() error {
	if err := c.configService.CreateDefaultConfig(); err != nil {
		return err
	}
	return c.ShowConfig()
}

// PrintVersion prints the version
func (c *CLIController) PrintVersion(version string) {
	c.presenter.PrintVersion(version)
}

// PrintError prints an error through the selected presenter
func (c *CLIController) PrintError(err error) {
	c.presenter.PrintError(err)
}
