package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/username/attendance-bot/internal/ledger"
	"github.com/username/attendance-bot/internal/timemanager"
	"go.uber.org/zap"
)

const (
	notWorkdayWait = time.Hour
	retryWait      = 60 * time.Second
	checkOutPoll   = 60 * time.Second
	dayWait        = 24 * time.Hour
)

// Executor performs the attendance actions on the portal
type Executor interface {
	CheckIn(ctx context.Context) error
	CheckOut(ctx context.Context) error
}

// Recorder persists completed attendance actions
type Recorder interface {
	Record(ctx context.Context, kind ledger.Kind, at time.Time) error
}

// Daemon runs the attendance control loop
type Daemon struct {
	manager    *timemanager.Manager
	executor   Executor
	recorder   Recorder
	systemTray bool
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	trayApp    *TrayApp

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     timemanager.State
	decision  *timemanager.Decision
	checkInAt time.Time
}

// NewDaemon creates a new daemon instance
func NewDaemon(manager *timemanager.Manager, executor Executor, recorder Recorder, systemTray bool, logger *zap.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		manager:    manager,
		executor:   executor,
		recorder:   recorder,
		systemTray: systemTray,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		now:        time.Now,
		sleep:      sleepContext,
		state:      timemanager.CheckingDay,
	}
}

// Start runs the control loop until SIGINT/SIGTERM or Stop. With the
// system tray enabled the loop runs behind the tray icon.
func (d *Daemon) Start() error {
	if d.systemTray {
		d.logger.Info("Initializing system tray")
		trayApp, err := NewTrayApp(d, d.logger)
		if err != nil {
			d.logger.Warn("Failed to initialize system tray", zap.Error(err))
		} else {
			d.trayApp = trayApp
		}
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			d.logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			if d.trayApp != nil {
				d.trayApp.Stop()
			}
			d.Stop()
		case <-d.ctx.Done():
		}
	}()

	if d.trayApp != nil {
		// Run tray (blocks until Quit)
		d.trayApp.Run()
		return nil
	}

	d.logger.Info("Running without system tray")
	return d.Run(d.ctx)
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	d.cancel()
}

// Run executes the state machine from CheckingDay until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	settings := d.manager.Settings()
	d.logger.Info("Attendance loop started",
		zap.Int("check_in_hour", settings.CheckInHour),
		zap.Int("daily_work_hours", settings.DailyWorkHours),
		zap.Int("monthly_required_hours", settings.MonthlyRequiredHours),
		zap.Int("monthly_start_day", settings.MonthlyStartDay),
		zap.String("timezone", settings.Location.String()))

	state := timemanager.CheckingDay
	for {
		if ctx.Err() != nil {
			d.logger.Info("Attendance loop stopped")
			return nil
		}

		next, err := d.step(ctx, state)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.logger.Info("Attendance loop stopped", zap.String("state", string(state)))
				return nil
			}
			return err
		}

		if next != state {
			d.logger.Debug("State transition",
				zap.String("from", string(state)),
				zap.String("to", string(next)))
		}
		d.setState(next)
		state = next
	}
}

// step performs the action of one state and returns the next state.
// Errors are only returned when ctx ends during a wait.
func (d *Daemon) step(ctx context.Context, state timemanager.State) (timemanager.State, error) {
	switch state {
	case timemanager.CheckingDay:
		decision, err := d.manager.Evaluate(ctx, d.now())
		if err != nil {
			d.logger.Error("Failed to evaluate today, retrying",
				zap.Duration("retry_in", retryWait),
				zap.Error(err))
			return timemanager.CheckingDay, d.sleep(ctx, retryWait)
		}
		d.mu.Lock()
		d.decision = decision
		d.mu.Unlock()
		return decision.State, nil

	case timemanager.NotAWorkday:
		return timemanager.CheckingDay, d.sleep(ctx, notWorkdayWait)

	case timemanager.WindowPending, timemanager.MonthlyQuotaMet:
		return timemanager.CheckingDay, d.sleepUntil(ctx, d.pendingUntil())

	case timemanager.DailyQuotaMet:
		return timemanager.CheckingDay, d.sleep(ctx, dayWait)

	case timemanager.AwaitingCheckIn:
		return timemanager.PerformingCheckIn, d.sleepUntil(ctx, d.pendingUntil())

	case timemanager.PerformingCheckIn:
		return d.performCheckIn(ctx)

	case timemanager.AwaitingCheckOut:
		deadline := d.manager.CheckOutTime(d.checkInTime())
		now := d.now()
		if !now.Before(deadline) {
			return timemanager.PerformingCheckOut, nil
		}
		remaining := deadline.Sub(now)
		d.logger.Debug("Waiting for check-out",
			zap.Time("check_out_at", deadline),
			zap.Duration("remaining", remaining))
		return timemanager.AwaitingCheckOut, d.sleep(ctx, min(checkOutPoll, remaining))

	case timemanager.PerformingCheckOut:
		return d.performCheckOut(ctx)
	}

	return timemanager.CheckingDay, fmt.Errorf("unknown state %q", state)
}

func (d *Daemon) performCheckIn(ctx context.Context) (timemanager.State, error) {
	if err := d.executor.CheckIn(ctx); err != nil {
		if ctx.Err() != nil {
			return timemanager.PerformingCheckIn, ctx.Err()
		}
		d.logger.Error("Check-in failed, retrying",
			zap.Duration("retry_in", retryWait),
			zap.Error(err))
		d.notify("Check-in Failed", fmt.Sprintf("Error: %v", err))
		return timemanager.PerformingCheckIn, d.sleep(ctx, retryWait)
	}

	at := d.now()
	d.mu.Lock()
	d.checkInAt = at
	d.mu.Unlock()

	if err := d.recorder.Record(ctx, ledger.CheckIn, at); err != nil {
		d.logger.Error("Checked in but failed to record it", zap.Time("at", at), zap.Error(err))
	}

	d.logger.Info("Checked in",
		zap.Time("at", at),
		zap.Time("check_out_at", d.manager.CheckOutTime(at)))
	d.notify("Checked In", at.Format("15:04"))
	return timemanager.AwaitingCheckOut, nil
}

func (d *Daemon) performCheckOut(ctx context.Context) (timemanager.State, error) {
	if err := d.executor.CheckOut(ctx); err != nil {
		if ctx.Err() != nil {
			return timemanager.PerformingCheckOut, ctx.Err()
		}
		d.logger.Error("Check-out failed, retrying",
			zap.Duration("retry_in", retryWait),
			zap.Error(err))
		d.notify("Check-out Failed", fmt.Sprintf("Error: %v", err))
		return timemanager.PerformingCheckOut, d.sleep(ctx, retryWait)
	}

	at := d.now()
	if err := d.recorder.Record(ctx, ledger.CheckOut, at); err != nil {
		d.logger.Error("Checked out but failed to record it", zap.Time("at", at), zap.Error(err))
	}

	worked := at.Sub(d.checkInTime())
	d.logger.Info("Checked out",
		zap.Time("at", at),
		zap.Int("worked_hours", int(worked/time.Hour)))
	d.notify("Checked Out", fmt.Sprintf("Worked %d hours", int(worked/time.Hour)))

	return timemanager.CheckingDay, d.sleep(ctx, dayWait)
}

func (d *Daemon) sleepUntil(ctx context.Context, t time.Time) error {
	wait := t.Sub(d.now())
	if wait <= 0 {
		return ctx.Err()
	}
	d.logger.Info("Sleeping", zap.Time("until", t), zap.Duration("duration", wait))
	return d.sleep(ctx, wait)
}

func (d *Daemon) pendingUntil() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decision == nil {
		return time.Time{}
	}
	return d.decision.Until
}

func (d *Daemon) checkInTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkInAt
}

func (d *Daemon) setState(state timemanager.State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

// State returns the current state of the loop and the last check-in time
func (d *Daemon) State() (timemanager.State, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.checkInAt
}

// GetStatus returns daemon status
func (d *Daemon) GetStatus() (*timemanager.Status, error) {
	status, err := d.manager.Status(d.ctx, d.now())
	if err != nil {
		return nil, err
	}
	state, _ := d.State()
	status.State = state
	return status, nil
}

func (d *Daemon) notify(title, message string) {
	if d.trayApp != nil {
		d.trayApp.ShowNotification(title, message)
	}
}

// sleepContext blocks for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
