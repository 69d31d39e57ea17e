package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// maxOccurrencesPerEvent caps RRULE expansion for a single event
const maxOccurrencesPerEvent = 400

// icsParser converts an iCalendar payload into HolidayEvents
type icsParser struct {
	location *time.Location
	logger   *zap.Logger
}

func newICSParser(loc *time.Location, logger *zap.Logger) *icsParser {
	if loc == nil {
		loc = time.Local
	}
	return &icsParser{
		location: loc,
		logger:   logger,
	}
}

// parse returns every VEVENT in body. Recurring events are expanded into
// the instances that can touch year/month (starting from the previous
// month so that spans crossing into the month are kept).
func (p *icsParser) parse(body []byte, year int, month time.Month) ([]HolidayEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICS: %w", err)
	}

	rangeStart := time.Date(year, month-1, 1, 0, 0, 0, 0, p.location)
	rangeEnd := time.Date(year, month+1, 1, 0, 0, 0, 0, p.location)

	events := make([]HolidayEvent, 0)
	skipped := 0

	for _, ve := range cal.Events() {
		ev, err := p.parseVEvent(ve)
		if err != nil {
			skipped++
			p.logger.Debug("Skipping unparseable VEVENT", zap.Error(err))
			continue
		}

		rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
		if rruleProp == nil || rruleProp.Value == "" {
			events = append(events, ev)
			continue
		}

		instances, err := p.expandRecurring(ev, rruleProp.Value, p.exDates(ve), rangeStart, rangeEnd)
		if err != nil {
			p.logger.Debug("Failed to expand RRULE, keeping first instance",
				zap.String("summary", ev.Summary),
				zap.String("rrule", rruleProp.Value),
				zap.Error(err))
			events = append(events, ev)
			continue
		}
		events = append(events, instances...)
	}

	p.logger.Debug("ICS parsed",
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped))

	return events, nil
}

func (p *icsParser) parseVEvent(ve *ical.VEvent) (HolidayEvent, error) {
	var ev HolidayEvent

	if prop := ve.GetProperty(ical.ComponentPropertySummary); prop != nil {
		ev.Summary = prop.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateOnly(startProp)

	start, err := p.eventTime(ve, startProp, ev.AllDay, true)
	if err != nil {
		return ev, fmt.Errorf("invalid DTSTART %q: %w", startProp.Value, err)
	}
	ev.Start = start

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, err := p.eventTime(ve, endProp, isDateOnly(endProp), false)
		if err != nil {
			return ev, fmt.Errorf("invalid DTEND %q: %w", endProp.Value, err)
		}
		ev.End = end
	}

	return ev, nil
}

// eventTime reads DTSTART/DTEND through the library and falls back to a
// plain parse of the raw value. Date-only values keep their calendar date
// in the configured location; date-times are converted into it.
func (p *icsParser) eventTime(ve *ical.VEvent, prop *ical.IANAProperty, allDay, isStart bool) (time.Time, error) {
	var t time.Time
	var err error
	switch {
	case allDay && isStart:
		t, err = ve.GetAllDayStartAt()
	case allDay:
		t, err = ve.GetAllDayEndAt()
	case isStart:
		t, err = ve.GetStartAt()
	default:
		t, err = ve.GetEndAt()
	}
	if err != nil {
		t, err = parseICSTime(prop.Value, p.location)
		if err != nil {
			return time.Time{}, err
		}
	}

	if allDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.location), nil
	}
	return t.In(p.location), nil
}

func (p *icsParser) exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, p.location); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func (p *icsParser) expandRecurring(ev HolidayEvent, rawRule string, exDates []time.Time, from, to time.Time) ([]HolidayEvent, error) {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	occurrences := set.Between(from, to, true)
	if len(occurrences) > maxOccurrencesPerEvent {
		occurrences = occurrences[:maxOccurrencesPerEvent]
	}

	instances := make([]HolidayEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		instance := ev
		instance.Start = occ
		if ev.HasEnd() {
			instance.End = occ.Add(ev.End.Sub(ev.Start))
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// isDateOnly detects VALUE=DATE properties or values without a time part
func isDateOnly(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// parseICSTime parses a basic ICS date or date-time value
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g. 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Floating date-time, e.g. 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date only, e.g. 20250101
	return time.ParseInLocation("20060102", v, loc)
}
