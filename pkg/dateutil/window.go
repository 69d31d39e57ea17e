package dateutil

import "time"

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WindowStart returns the first day of the monthly accounting window that
// begins in today's month. startDay is clamped to the last day of the month,
// so 31 in April yields April 30. The result is returned even when today is
// before it; callers decide whether the window has begun.
func WindowStart(today time.Time, startDay int) time.Time {
	return clampedDate(today.Year(), today.Month(), startDay, today.Location())
}

// NextWindowStart returns the window start of the month following today's
func NextWindowStart(today time.Time, startDay int) time.Time {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	next := first.AddDate(0, 1, 0)
	return clampedDate(next.Year(), next.Month(), startDay, today.Location())
}

func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
