package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/username/attendance-bot/pkg/dateutil"
)

// HolidayEvent is a raw calendar event as delivered by a Feed
type HolidayEvent struct {
	Summary string
	Start   time.Time
	End     time.Time // zero when the event has no end
	AllDay  bool
}

// HasEnd reports whether the event carries an explicit end
func (e HolidayEvent) HasEnd() bool {
	return !e.End.IsZero()
}

// HolidaySet is a sorted list of non-working dates within one month
type HolidaySet []time.Time

// Contains checks whether the given day is in the set (calendar date only)
func (hs HolidaySet) Contains(day time.Time) bool {
	for _, d := range hs {
		if dateutil.IsSameDay(d, day) {
			return true
		}
	}
	return false
}

// Strings returns the dates formatted as YYYY-MM-DD
func (hs HolidaySet) Strings() []string {
	out := make([]string, len(hs))
	for i, d := range hs {
		out[i] = d.Format(dateutil.DateLayout)
	}
	return out
}

// Feed is a read-only source of calendar events
type Feed interface {
	// Events returns every event relevant to the requested month. Feeds are
	// not required to filter by date; the resolver filters client side.
	Events(ctx context.Context, year int, month time.Month) ([]HolidayEvent, error)
}

// HolidayResolver turns a month into its set of holiday dates
type HolidayResolver interface {
	ResolveHolidays(ctx context.Context, year int, month time.Month) HolidaySet
}

func sortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}
