package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/username/attendance-bot/pkg/dateutil"
	"go.uber.org/zap"
)

// Ledger appends attendance events and derives worked hours from them.
// Totals are recomputed from the full month log on every call.
type Ledger struct {
	store    Store
	location *time.Location
	logger   *zap.Logger
}

// New creates a new Ledger. Record timestamps are written and read in loc.
func New(store Store, loc *time.Location, logger *zap.Logger) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		store:    store,
		location: loc,
		logger:   logger,
	}
}

// Append records one event in the log of the event's month
func (l *Ledger) Append(ctx context.Context, ev Event) error {
	ev.Timestamp = ev.Timestamp.In(l.location)

	if err := l.store.Append(ctx, ev.Timestamp.Year(), ev.Timestamp.Month(), ev.Line()); err != nil {
		return fmt.Errorf("failed to append %s: %w", ev.Kind, err)
	}

	l.logger.Info("Attendance recorded",
		zap.String("kind", string(ev.Kind)),
		zap.Time("at", ev.Timestamp))
	return nil
}

// Record is a shorthand for Append(ctx, Event{Timestamp: at, Kind: kind})
func (l *Ledger) Record(ctx context.Context, kind Kind, at time.Time) error {
	return l.Append(ctx, Event{Timestamp: at, Kind: kind})
}

// Events returns the decodable events of a month in file order
func (l *Ledger) Events(ctx context.Context, year int, month time.Month) ([]Event, error) {
	lines, err := l.store.Lines(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to read records for %d-%02d: %w", year, month, err)
	}

	events := make([]Event, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := ParseLine(line, l.location)
		if err != nil {
			l.logger.Debug("Skipping record line",
				zap.Int("line", i+1),
				zap.String("content", line),
				zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// TotalHoursSince sums the sessions of windowStart's month whose check-in
// falls on or after windowStart
func (l *Ledger) TotalHoursSince(ctx context.Context, windowStart time.Time) (int, error) {
	events, err := l.Events(ctx, windowStart.Year(), windowStart.Month())
	if err != nil {
		return 0, err
	}

	return sumSessions(events, func(checkIn time.Time) bool {
		return !dateutil.BeforeDay(checkIn, windowStart)
	}), nil
}

// HoursLoggedToday sums the sessions built only from events dated day
func (l *Ledger) HoursLoggedToday(ctx context.Context, day time.Time) (int, error) {
	events, err := l.Events(ctx, day.Year(), day.Month())
	if err != nil {
		return 0, err
	}

	sameDay := events[:0]
	for _, ev := range events {
		if dateutil.IsSameDay(ev.Timestamp, day) {
			sameDay = append(sameDay, ev)
		}
	}

	return sumSessions(sameDay, func(time.Time) bool { return true }), nil
}

// sumSessions pairs each CheckOut with the open CheckIn before it and adds
// the whole hours of every pair accepted by include. A CheckIn replaces an
// open one; a CheckOut with nothing open is ignored.
func sumSessions(events []Event, include func(checkIn time.Time) bool) int {
	total := 0
	var open *Event

	for i := range events {
		ev := events[i]
		switch ev.Kind {
		case CheckIn:
			open = &events[i]
		case CheckOut:
			if open == nil {
				continue
			}
			if include(open.Timestamp) {
				total += wholeHours(ev.Timestamp.Sub(open.Timestamp))
			}
			open = nil
		}
	}
	return total
}

func wholeHours(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Hour)
}
