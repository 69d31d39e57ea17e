package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the timestamp format of a record line
const TimestampLayout = "2006-01-02 15:04:05"

// ErrMalformedLine is returned for record lines that cannot be decoded
var ErrMalformedLine = errors.New("malformed record line")

// Kind is the attendance action recorded by an Event
type Kind string

const (
	CheckIn  Kind = "CheckIn"
	CheckOut Kind = "CheckOut"
)

// Older record directories used the portal's button labels
var legacyKinds = map[string]Kind{
	"SignIn":  CheckIn,
	"SignOut": CheckOut,
}

func parseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case CheckIn, CheckOut:
		return Kind(s), true
	}
	k, ok := legacyKinds[s]
	return k, ok
}

// Event is one persisted attendance action
type Event struct {
	Timestamp time.Time
	Kind      Kind
}

// Line encodes the event as "2006-01-02 15:04:05 CheckIn"
func (e Event) Line() string {
	return fmt.Sprintf("%s %s", e.Timestamp.Format(TimestampLayout), e.Kind)
}

// ParseLine decodes a record line. Timestamps carry no zone and are read
// in loc.
func ParseLine(line string, loc *time.Location) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Event{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedLine, len(fields))
	}

	ts, err := time.ParseInLocation(TimestampLayout, fields[0]+" "+fields[1], loc)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	kind, ok := parseKind(fields[2])
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedLine, fields[2])
	}

	return Event{Timestamp: ts, Kind: kind}, nil
}
