package di

import (
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/interface/cli"
	"github.com/ca-srg/autoloadwatch/interface/presenter"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// newCLIController creates a new CLI controller. JSON output replaces the
// console presenter when jsonOutput is set.
func newCLIController(
	statusService usecase.StatusService,
	pipelineService usecase.PipelineService,
	schedulerService usecase.SchedulerService,
	configService usecase.ConfigService,
	timezoneService repository.TimezoneService,
	consolePresenter presenter.Presenter,
	jsonPresenter presenter.Presenter,
	jsonOutput bool,
) *cli.CLIController {
	p := consolePresenter
	if jsonOutput {
		p = jsonPresenter
	}
	return cli.NewCLIController(
		statusService,
		pipelineService,
		schedulerService,
		configService,
		timezoneService,
		p,
	)
}
