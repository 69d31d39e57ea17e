package calendar

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/username/attendance-bot/pkg/dateutil"
	"go.uber.org/zap"
)

const (
	// DefaultLeaveMarker flags a single day off in the academic calendar
	DefaultLeaveMarker = "(放假)"
	// DefaultConsecutiveMarker flags a consecutive holiday
	DefaultConsecutiveMarker = "連假"

	maxDayOfMonth = 31
)

// dayRangePattern matches summaries such as "國慶日連假10日-13日"
var dayRangePattern = regexp.MustCompile(`(\d+)日-(\d+)日`)

// Markers are the summary substrings that identify holiday events
type Markers struct {
	Leave       string
	Consecutive string
}

// DefaultMarkers returns the markers used by the university calendar
func DefaultMarkers() Markers {
	return Markers{
		Leave:       DefaultLeaveMarker,
		Consecutive: DefaultConsecutiveMarker,
	}
}

func (m Markers) isHoliday(summary string) bool {
	return m.hasLeave(summary) || m.isConsecutive(summary)
}

func (m Markers) hasLeave(summary string) bool {
	return m.Leave != "" && strings.Contains(summary, m.Leave)
}

func (m Markers) isConsecutive(summary string) bool {
	return m.Consecutive != "" && strings.Contains(summary, m.Consecutive)
}

// Resolver resolves holiday dates from a Feed.
// Feed failures are never returned: the month is treated as having no
// holidays (fail-open) and the failure is logged.
type Resolver struct {
	feed     Feed
	markers  Markers
	cacheTTL time.Duration
	logger   *zap.Logger
	cache    map[string]*cachedMonth
	cacheMu  sync.RWMutex
}

type cachedMonth struct {
	data      HolidaySet
	fetchedAt time.Time
}

// NewResolver creates a new Resolver. A zero cacheTTL disables caching so
// that every query re-fetches the feed.
func NewResolver(feed Feed, markers Markers, cacheTTL time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		feed:     feed,
		markers:  markers,
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]*cachedMonth),
	}
}

// ResolveHolidays returns the holiday dates of the given month
func (r *Resolver) ResolveHolidays(ctx context.Context, year int, month time.Month) HolidaySet {
	cacheKey := fmt.Sprintf("%d-%02d", year, month)

	if r.cacheTTL > 0 {
		r.cacheMu.RLock()
		if cached, ok := r.cache[cacheKey]; ok && time.Since(cached.fetchedAt) < r.cacheTTL {
			r.cacheMu.RUnlock()
			r.logger.Debug("Using cached holidays", zap.String("month", cacheKey))
			return cached.data
		}
		r.cacheMu.RUnlock()
	}

	events, err := r.feed.Events(ctx, year, month)
	if err != nil {
		r.logger.Warn("Holiday feed unavailable, treating month as having no holidays",
			zap.Int("year", year),
			zap.Int("month", int(month)),
			zap.Error(err))
		return HolidaySet{}
	}

	holidays := ExpandHolidays(events, year, month, r.markers)

	r.logger.Info("Holidays resolved",
		zap.String("month", cacheKey),
		zap.Int("events", len(events)),
		zap.Strings("holidays", holidays.Strings()))

	if r.cacheTTL > 0 {
		r.cacheMu.Lock()
		r.cache[cacheKey] = &cachedMonth{
			data:      holidays,
			fetchedAt: time.Now(),
		}
		r.cacheMu.Unlock()
	}

	return holidays
}

// ClearCache clears the cache
func (r *Resolver) ClearCache() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*cachedMonth)
	r.logger.Info("Holiday cache cleared")
}

// ExpandHolidays interprets raw events and returns the holiday dates that
// fall inside year/month, deduplicated and sorted. Dates are civil dates at
// midnight UTC.
//
// Two independent expansions contribute to the result:
//   - the summary: a consecutive-holiday event with "N日-M日" covers N..M of
//     the event's month (N is replaced by the event's own start day), any
//     other marked event covers its start date only;
//   - the event's own span: every day in [start, end) when end is after start.
func ExpandHolidays(events []HolidayEvent, year int, month time.Month, markers Markers) HolidaySet {
	seen := make(map[string]time.Time)
	add := func(d time.Time) {
		if d.Year() != year || d.Month() != month {
			return
		}
		seen[d.Format(dateutil.DateLayout)] = d
	}

	for _, ev := range events {
		if !markers.isHoliday(ev.Summary) {
			continue
		}
		start := civilDate(ev.Start)

		if endDay, ok := rangeEndDay(ev.Summary); ok && markers.isConsecutive(ev.Summary) {
			// The event's date wins over the start day written in the text.
			for day := start.Day(); day <= endDay && day <= maxDayOfMonth; day++ {
				d := time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, time.UTC)
				if d.Day() != day {
					continue // e.g. February 30
				}
				add(d)
			}
		} else {
			add(start)
		}

		if !ev.HasEnd() {
			continue
		}
		end := civilDate(ev.End)
		if !end.After(start) {
			continue
		}

		from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		if start.After(from) {
			from = start
		}
		if end.Before(to) {
			to = end
		}
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			add(d)
		}
	}

	holidays := make(HolidaySet, 0, len(seen))
	for _, d := range seen {
		holidays = append(holidays, d)
	}
	sortDates(holidays)
	return holidays
}

// rangeEndDay extracts the end day of a "N日-M日" summary
func rangeEndDay(summary string) (int, bool) {
	match := dayRangePattern.FindStringSubmatch(summary)
	if match == nil {
		return 0, false
	}
	endDay, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, false
	}
	return endDay, true
}

// civilDate truncates t to its calendar date in its own location
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
