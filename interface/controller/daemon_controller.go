package controller

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// shutdownTimeout bounds the graceful stop of the admin server
const shutdownTimeout = 5 * time.Second

// Server is a background server the daemon owns, such as the admin API
type Server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// DaemonController manages the daemon lifecycle: the PID file, the daily
// scheduler loop, the optional admin server and signal handling.
type DaemonController struct {
	config    *config.AppConfig
	scheduler usecase.SchedulerService
	server    Server
	logger    domain.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	pidFile  string
	done     chan struct{}
	stopOnce sync.Once
}

// NewDaemonController creates a new daemon controller.
// scheduler and server may be nil; at least one of them should be set.
func NewDaemonController(
	cfg *config.AppConfig,
	scheduler usecase.SchedulerService,
	server Server,
	logger domain.Logger,
) *DaemonController {
	return &DaemonController{
		config:    cfg,
		scheduler: scheduler,
		server:    server,
		logger:    logger,
		ctx:       context.Background(),
		done:      make(chan struct{}),
	}
}

// Start starts the daemon without blocking
func (d *DaemonController) Start() error {
	d.logger.Info(d.ctx, "Starting autoloadwatch daemon...")

	d.ctx, d.cancel = context.WithCancel(context.Background())

	if err := d.writePIDFile(); err != nil {
		d.cancel()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if d.scheduler != nil {
		if err := d.scheduler.Start(d.ctx); err != nil {
			d.cleanup()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if d.server != nil {
		if err := d.server.Start(d.ctx); err != nil {
			d.cleanup()
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	d.setupSignalHandlers()

	d.logger.Info(d.ctx, "Daemon started successfully")
	return nil
}

// Stop stops the daemon gracefully. It is safe to call more than once.
func (d *DaemonController) Stop() error {
	d.stopOnce.Do(func() {
		d.logger.Info(d.ctx, "Stopping autoloadwatch daemon...")

		if d.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := d.server.Shutdown(ctx); err != nil {
				d.logger.Error(d.ctx, "Failed to stop admin server", domain.NewField("error", err.Error()))
			}
			cancel()
		}

		d.cleanup()
		close(d.done)

		d.logger.Info(d.ctx, "Daemon stopped successfully")
	})
	return nil
}

// Run starts the daemon and blocks until it is stopped by a signal or Stop
func (d *DaemonController) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	<-d.done
	return nil
}

// Done is closed once the daemon has stopped
func (d *DaemonController) Done() <-chan struct{} {
	return d.done
}

// cleanup cancels the run context, waits for the scheduler and removes the PID file
func (d *DaemonController) cleanup() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	if err := d.removePIDFile(); err != nil {
		d.logger.Error(d.ctx, "Failed to remove PID file", domain.NewField("error", err.Error()))
	}
}

// setupSignalHandlers sets up signal handlers for graceful shutdown
func (d *DaemonController) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			d.logger.Info(d.ctx, "Received signal", domain.NewField("signal", sig.String()))
			_ = d.Stop()
		case <-d.done:
		}
	}()
}

// writePIDFile writes the process ID to a file. A PID file left by a live
// process is an error; a stale one is replaced.
func (d *DaemonController) writePIDFile() error {
	if d.config.Daemon == nil || d.config.Daemon.PidFile == "" {
		return nil
	}
	path := d.config.Daemon.PidFile

	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() && processAlive(pid) {
			return fmt.Errorf("daemon already running with PID %d", pid)
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.pidFile = path
	return nil
}

// removePIDFile removes the PID file
func (d *DaemonController) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	d.pidFile = ""
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
