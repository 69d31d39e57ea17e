package timemanager

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/username/attendance-bot/internal/calendar"
	"github.com/username/attendance-bot/pkg/dateutil"
	"go.uber.org/zap"
)

// State is a step of the attendance control loop
type State string

const (
	CheckingDay        State = "CheckingDay"
	NotAWorkday        State = "NotAWorkday"
	WindowPending      State = "WindowPending"
	MonthlyQuotaMet    State = "MonthlyQuotaMet"
	DailyQuotaMet      State = "DailyQuotaMet"
	AwaitingCheckIn    State = "AwaitingCheckIn"
	PerformingCheckIn  State = "PerformingCheckIn"
	AwaitingCheckOut   State = "AwaitingCheckOut"
	PerformingCheckOut State = "PerformingCheckOut"
)

// Settings is the immutable scheduling configuration
type Settings struct {
	CheckInHour          int
	DailyWorkHours       int
	MonthlyRequiredHours int
	MonthlyStartDay      int
	Location             *time.Location
}

// Ledger is the part of the attendance ledger the manager reads
type Ledger interface {
	TotalHoursSince(ctx context.Context, windowStart time.Time) (int, error)
	HoursLoggedToday(ctx context.Context, day time.Time) (int, error)
}

// Decision is the outcome of evaluating a moment in time
type Decision struct {
	State State
	// Until is the instant the loop should sleep to, when the state has one
	Until       time.Time
	WindowStart time.Time
	TotalHours  int
	TodayHours  int
}

// Manager decides whether an attendance action is due
type Manager struct {
	settings Settings
	checkIn  cron.Schedule
	holidays calendar.HolidayResolver
	ledger   Ledger
	logger   *zap.Logger
}

// NewManager creates a new Manager
func NewManager(settings Settings, holidays calendar.HolidayResolver, ledger Ledger, logger *zap.Logger) (*Manager, error) {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.CheckInHour < 0 || settings.CheckInHour > 23 {
		return nil, fmt.Errorf("check-in hour must be 0-23, got %d", settings.CheckInHour)
	}
	if settings.DailyWorkHours <= 0 {
		return nil, fmt.Errorf("daily work hours must be positive, got %d", settings.DailyWorkHours)
	}

	schedule, err := cron.ParseStandard(fmt.Sprintf("0 %d * * *", settings.CheckInHour))
	if err != nil {
		return nil, fmt.Errorf("failed to build check-in schedule: %w", err)
	}

	return &Manager{
		settings: settings,
		checkIn:  schedule,
		holidays: holidays,
		ledger:   ledger,
		logger:   logger,
	}, nil
}

// Settings returns the scheduling configuration
func (m *Manager) Settings() Settings {
	return m.settings
}

// IsWorkday reports whether day is neither a weekend nor a holiday.
// Weekends are decided without consulting the holiday resolver.
func (m *Manager) IsWorkday(ctx context.Context, day time.Time) bool {
	day = day.In(m.settings.Location)
	if dateutil.IsWeekend(day) {
		return false
	}
	holidays := m.holidays.ResolveHolidays(ctx, day.Year(), day.Month())
	return !holidays.Contains(day)
}

// CheckInTime returns the scheduled check-in instant of day
func (m *Manager) CheckInTime(day time.Time) time.Time {
	start := dateutil.StartOfDay(day.In(m.settings.Location))
	return m.checkIn.Next(start.Add(-time.Second))
}

// CheckOutTime returns the instant a session started at checkIn ends
func (m *Manager) CheckOutTime(checkIn time.Time) time.Time {
	return checkIn.Add(time.Duration(m.settings.DailyWorkHours) * time.Hour)
}

// Evaluate runs the day, window and quota checks for now and returns the
// state the control loop should move to
func (m *Manager) Evaluate(ctx context.Context, now time.Time) (*Decision, error) {
	now = now.In(m.settings.Location)
	today := dateutil.StartOfDay(now)

	if !m.IsWorkday(ctx, today) {
		m.logger.Info("Not a workday",
			zap.String("date", today.Format(dateutil.DateLayout)),
			zap.String("weekday", today.Weekday().String()))
		return &Decision{State: NotAWorkday}, nil
	}

	windowStart := dateutil.WindowStart(today, m.settings.MonthlyStartDay)
	decision := &Decision{WindowStart: windowStart}

	if dateutil.BeforeDay(today, windowStart) {
		m.logger.Info("Monthly window has not started",
			zap.String("window_start", windowStart.Format(dateutil.DateLayout)))
		decision.State = WindowPending
		decision.Until = windowStart
		return decision, nil
	}

	total, err := m.ledger.TotalHoursSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly hours: %w", err)
	}
	decision.TotalHours = total

	if total >= m.settings.MonthlyRequiredHours {
		next := dateutil.NextWindowStart(today, m.settings.MonthlyStartDay)
		m.logger.Info("Monthly quota met",
			zap.String("window_start", windowStart.Format(dateutil.DateLayout)),
			zap.Int("total_hours", total),
			zap.Int("required_hours", m.settings.MonthlyRequiredHours),
			zap.String("next_window", next.Format(dateutil.DateLayout)))
		decision.State = MonthlyQuotaMet
		decision.Until = next
		return decision, nil
	}

	todayHours, err := m.ledger.HoursLoggedToday(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily hours: %w", err)
	}
	decision.TodayHours = todayHours

	if todayHours >= m.settings.DailyWorkHours {
		m.logger.Info("Daily quota met",
			zap.Int("today_hours", todayHours),
			zap.Int("daily_hours", m.settings.DailyWorkHours))
		decision.State = DailyQuotaMet
		return decision, nil
	}

	checkIn := m.CheckInTime(today)
	if now.Before(checkIn) {
		m.logger.Info("Waiting for check-in time",
			zap.Time("check_in_at", checkIn),
			zap.Duration("remaining", checkIn.Sub(now)))
		decision.State = AwaitingCheckIn
		decision.Until = checkIn
		return decision, nil
	}

	decision.State = PerformingCheckIn
	return decision, nil
}

// Status is a snapshot of the accounting state
type Status struct {
	Date          string `yaml:"date"`
	Workday       bool   `yaml:"workday"`
	State         State  `yaml:"state"`
	WindowStart   string `yaml:"window_start"`
	TotalHours    int    `yaml:"total_hours"`
	RequiredHours int    `yaml:"required_hours"`
	TodayHours    int    `yaml:"today_hours"`
	DailyHours    int    `yaml:"daily_hours"`
	CheckInAt     string `yaml:"check_in_at"`
}

// Status evaluates now and fills in the totals even when the decision did
// not need them
func (m *Manager) Status(ctx context.Context, now time.Time) (*Status, error) {
	now = now.In(m.settings.Location)
	today := dateutil.StartOfDay(now)

	decision, err := m.Evaluate(ctx, now)
	if err != nil {
		return nil, err
	}

	windowStart := dateutil.WindowStart(today, m.settings.MonthlyStartDay)
	total, err := m.ledger.TotalHoursSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly hours: %w", err)
	}
	todayHours, err := m.ledger.HoursLoggedToday(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily hours: %w", err)
	}

	return &Status{
		Date:          today.Format(dateutil.DateLayout),
		Workday:       decision.State != NotAWorkday,
		State:         decision.State,
		WindowStart:   windowStart.Format(dateutil.DateLayout),
		TotalHours:    total,
		RequiredHours: m.settings.MonthlyRequiredHours,
		TodayHours:    todayHours,
		DailyHours:    m.settings.DailyWorkHours,
		CheckInAt:     m.CheckInTime(today).Format("15:04"),
	}, nil
}
