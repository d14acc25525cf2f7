package impl

import (
	"context"
	"sync"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// SchedulerServiceImpl implements the SchedulerService interface.
// The schedule lives in the state repository so that it survives restarts;
// the job loop arms a timer for the stored next run.
type SchedulerServiceImpl struct {
	cfg      *config.ScheduleConfig
	timezone repository.TimezoneService
	state    repository.StateRepository
	pipeline usecase.PipelineService
	logger   domain.Logger
	now      func() time.Time

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	rearm     chan struct{}
	wg        sync.WaitGroup
}

// NewSchedulerService creates a scheduler for the daily job
func NewSchedulerService(
	cfg *config.ScheduleConfig,
	timezone repository.TimezoneService,
	state repository.StateRepository,
	pipeline usecase.PipelineService,
	logger domain.Logger,
) *SchedulerServiceImpl {
	if cfg == nil {
		cfg = config.DefaultConfig().Schedule
	}
	return &SchedulerServiceImpl{
		cfg:      cfg,
		timezone: timezone,
		state:    state,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
		rearm:    make(chan struct{}, 1),
	}
}

var _ usecase.SchedulerService = (*SchedulerServiceImpl)(nil)

// NextRunAt returns today's run time in the site timezone if it is still
// ahead of now, otherwise the same wall-clock time tomorrow.
func (s *SchedulerServiceImpl) NextRunAt(now time.Time) time.Time {
	loc := s.timezone.GetSiteLocation()
	local := now.In(loc)

	year, month, day := local.Date()
	next := time.Date(year, month, day, s.cfg.Hour, s.cfg.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(year, month, day+1, s.cfg.Hour, s.cfg.Minute, 0, 0, loc)
	}
	return next
}

// Activate clears any stale schedule and registers the job
func (s *SchedulerServiceImpl) Activate(ctx context.Context) (time.Time, error) {
	now := s.now()
	next := s.NextRunAt(now)
	scheduledAt := now.UTC()
	nextUTC := next.UTC()

	if err := s.state.Update(func(st *repository.PipelineState) {
		clearSchedule(st)
		st.JobName = s.cfg.JobName
		st.NextRunAt = &nextUTC
		st.ScheduledAt = &scheduledAt
	}); err != nil {
		return time.Time{}, domain.NewDomainErrorWithCause(domain.ErrCodeScheduler, "failed to store schedule", err)
	}

	s.logger.Info(ctx, "Scheduled daily job",
		domain.NewField("job", s.cfg.JobName),
		domain.NewField("next_run", next.Format(time.RFC3339)))
	s.signalRearm()
	return next, nil
}

// Deactivate clears the schedule
func (s *SchedulerServiceImpl) Deactivate(ctx context.Context) error {
	if err := s.state.Update(clearSchedule); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeScheduler, "failed to clear schedule", err)
	}
	s.logger.Info(ctx, "Cleared daily job", domain.NewField("job", s.cfg.JobName))
	s.signalRearm()
	return nil
}

// EnsureScheduled registers the job when no schedule for it exists
func (s *SchedulerServiceImpl) EnsureScheduled(ctx context.Context) (time.Time, bool, error) {
	st, err := s.state.Load()
	if err != nil {
		return time.Time{}, false, domain.NewDomainErrorWithCause(domain.ErrCodeScheduler, "failed to load schedule", err)
	}
	if st.JobName == s.cfg.JobName && st.NextRunAt != nil {
		return *st.NextRunAt, false, nil
	}

	next, err := s.Activate(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	return next, true, nil
}

// Start begins the job loop
func (s *SchedulerServiceImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return domain.ErrScheduler("start", "scheduler is already running")
	}

	if !s.cfg.IsEnabled() {
		s.logger.Info(ctx, "Daily schedule is disabled")
		return nil
	}

	if _, _, err := s.EnsureScheduled(ctx); err != nil {
		return err
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)
	return nil
}

// Stop halts the job loop
func (s *SchedulerServiceImpl) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
}

// IsRunning reports whether the job loop is active
func (s *SchedulerServiceImpl) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

type wakeAction int

const (
	wakeIdle wakeAction = iota
	wakeRun
	wakeRetry
)

func (s *SchedulerServiceImpl) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		wait, action := s.untilNextRun(ctx)

		var fire <-chan time.Time
		var timer *time.Timer
		if action != wakeIdle {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-stop:
			stopTimer(timer)
			return
		case <-s.rearm:
			stopTimer(timer)
		case <-fire:
			if action == wakeRun {
				s.runJob(ctx)
			}
		}
	}
}

// untilNextRun reads the stored next run. An overdue run fires immediately.
func (s *SchedulerServiceImpl) untilNextRun(ctx context.Context) (time.Duration, wakeAction) {
	st, err := s.state.Load()
	if err != nil {
		s.logger.Error(ctx, "Failed to load schedule", domain.NewField("error", err.Error()))
		return time.Minute, wakeRetry
	}
	if st.NextRunAt == nil || st.JobName != s.cfg.JobName {
		return 0, wakeIdle
	}
	wait := st.NextRunAt.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	s.logger.Debug(ctx, "Waiting for next run",
		domain.NewField("next_run", st.NextRunAt.Format(time.RFC3339)),
		domain.NewField("wait", wait.String()))
	return wait, wakeRun
}

func (s *SchedulerServiceImpl) runJob(ctx context.Context) {
	s.logger.Info(ctx, "Running scheduled job", domain.NewField("job", s.cfg.JobName))

	result := s.pipeline.Run(ctx, usecase.TriggerSchedule)
	if !result.Success {
		s.logger.Warn(ctx, "Scheduled run failed, retrying at the next scheduled time",
			domain.NewField("error", result.Error))
	}

	// computed after the run so the next slot is tomorrow and follows DST changes
	next := s.NextRunAt(s.now()).UTC()
	if err := s.state.Update(func(st *repository.PipelineState) {
		st.JobName = s.cfg.JobName
		st.NextRunAt = &next
	}); err != nil {
		s.logger.Error(ctx, "Failed to store next run", domain.NewField("error", err.Error()))
	}
}

func (s *SchedulerServiceImpl) signalRearm() {
	select {
	case s.rearm <- struct{}{}:
	default:
	}
}

func clearSchedule(st *repository.PipelineState) {
	st.JobName = ""
	st.NextRunAt = nil
	st.ScheduledAt = nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
