package domain

import (
	"fmt"
	"strings"
	"time"
)

// momentLayout is the canonical text form of a Moment.
const momentLayout = "2006-01-02 15:04:05"

// momentLayouts lists the accepted input forms, most specific first.
var momentLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Moment is a wall-clock reading with no zone attached. Whether it is a local
// or a UTC reading is decided by whoever holds it; the zone name travels next
// to it (see ConversionResult.Timezone), never inside it.
type Moment struct {
	// wall holds the calendar fields in a UTC-located time.Time so no zone
	// rules ever touch them.
	wall time.Time
}

// NewMoment builds a Moment from calendar fields. Out-of-range fields are
// normalized the same way time.Date normalizes them.
func NewMoment(year int, month time.Month, day, hour, minute, sec, nsec int) Moment {
	return Moment{wall: time.Date(year, month, day, hour, minute, sec, nsec, time.UTC)}
}

// MomentOf keeps the wall clock of t and drops its zone.
func MomentOf(t time.Time) Moment {
	return NewMoment(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond())
}

// ParseMoment parses "YYYY-MM-DD HH:MM" with optional seconds (and fractional
// seconds), a "T" separator, or a bare date meaning midnight.
func ParseMoment(s string) (Moment, error) {
	s = strings.TrimSpace(s)
	for _, layout := range momentLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Moment{wall: t}, nil
		}
	}
	return Moment{}, fmt.Errorf("%w: %q is not YYYY-MM-DD HH:MM[:SS]", ErrParse, s)
}

// Time returns the wall clock as a UTC-located time. It is only meaningful as
// an instant when the Moment is a UTC reading.
func (m Moment) Time() time.Time { return m.wall }

// Date returns the calendar date of the reading.
func (m Moment) Date() (int, time.Month, int) { return m.wall.Date() }

// Hour returns the hour of the day.
func (m Moment) Hour() int { return m.wall.Hour() }

// Midnight returns the start of the reading's calendar day.
func (m Moment) Midnight() Moment {
	y, mo, d := m.wall.Date()
	return NewMoment(y, mo, d, 0, 0, 0, 0)
}

// Add shifts the wall clock by d without consulting any zone.
func (m Moment) Add(d time.Duration) Moment { return Moment{wall: m.wall.Add(d)} }

// Truncate rounds the wall clock down to a multiple of d.
func (m Moment) Truncate(d time.Duration) Moment { return Moment{wall: m.wall.Truncate(d)} }

func (m Moment) Equal(o Moment) bool  { return m.wall.Equal(o.wall) }
func (m Moment) Before(o Moment) bool { return m.wall.Before(o.wall) }
func (m Moment) IsZero() bool         { return m.wall.IsZero() }

// Format formats the wall clock with a time layout.
func (m Moment) Format(layout string) string { return m.wall.Format(layout) }

func (m Moment) String() string { return m.wall.Format(momentLayout) }

// DateString returns the calendar date as YYYY-MM-DD.
func (m Moment) DateString() string { return m.wall.Format(time.DateOnly) }

func (m Moment) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Moment) UnmarshalText(b []byte) error {
	parsed, err := ParseMoment(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
