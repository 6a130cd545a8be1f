package domain

import (
	"fmt"
	"strings"
	"time"
)

// Disambiguation decides which instant a repeated or skipped wall-clock
// reading denotes.
//
// A repeated reading (fall-back) has two valid instants; a skipped reading
// (spring-forward) has none, and the two candidates are the reading taken at
// the offset before and after the transition. Earliest picks the earlier
// candidate instant, Latest the later one. Strict refuses both cases.
//
// Latest is the zero value and the default: it reads the wall clock at the
// standard-time offset, which is the second occurrence of a repeated hour and
// a forward shift across a gap (02:30 becomes 03:30 on a spring-forward day).
type Disambiguation int

const (
	Latest Disambiguation = iota
	Earliest
	Strict
)

// ParseDisambiguation maps "earliest", "latest", "strict" (or "raise") to a policy.
func ParseDisambiguation(s string) (Disambiguation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest":
		return Latest, nil
	case "earliest":
		return Earliest, nil
	case "strict", "raise":
		return Strict, nil
	default:
		return Latest, fmt.Errorf("unknown disambiguation policy %q", s)
	}
}

func (d Disambiguation) String() string {
	switch d {
	case Earliest:
		return "earliest"
	case Strict:
		return "strict"
	default:
		return "latest"
	}
}

// Transition tags a calendar day by its daylight-saving change.
type Transition string

const (
	TransitionNone Transition = "none"
	SpringForward  Transition = "spring-forward" // 23-hour day
	FallBack       Transition = "fall-back"      // 25-hour day
)

// WallStatus reports how the local-side wall reading mapped to instants.
type WallStatus string

const (
	WallRegular  WallStatus = "regular"
	WallRepeated WallStatus = "repeated" // two instants carry this reading
	WallSkipped  WallStatus = "skipped"  // no instant carries this reading
)

// ConversionResult is the outcome of one conversion. Converted is the UTC
// reading when converting from local time and the local reading otherwise.
// IsDST reports summer time: an offset ahead of the zone's lower of its
// January and July offsets that year. It is not the tzdata isdst flag, which
// Europe/Dublin sets in winter.
type ConversionResult struct {
	Input      Moment     `json:"input"`
	Timezone   string     `json:"timezone"`
	Converted  Moment     `json:"converted"`
	IsDST      bool       `json:"is_dst"`
	Transition Transition `json:"dst_transition"`
	Wall       WallStatus `json:"wall"`
}

// Converter converts wall-clock readings between a named zone and UTC and
// classifies calendar days by their DST transition. It holds no city table;
// callers pass zone names. Safe for concurrent use.
type Converter struct {
	zones  ZoneSource
	policy Disambiguation
}

// NewConverter creates a Converter. A nil zones uses a fresh ZoneCache.
func NewConverter(zones ZoneSource, policy Disambiguation) *Converter {
	if zones == nil {
		zones = NewZoneCache(defaultZoneCacheSize)
	}
	return &Converter{zones: zones, policy: policy}
}

// Policy returns the disambiguation policy in use.
func (c *Converter) Policy() Disambiguation { return c.policy }

// LocalToUTC reads local in zone and returns the UTC reading. The transition
// tag describes the local calendar day of the input.
func (c *Converter) LocalToUTC(local Moment, zone string) (ConversionResult, error) {
	loc, err := c.zones.Location(zone)
	if err != nil {
		return ConversionResult{}, err
	}

	instant, status, err := resolveWall(local, loc, c.policy)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("%s in %s: %w", local, zone, err)
	}

	transition, err := localDayTransition(local, loc, zone)
	if err != nil {
		return ConversionResult{}, err
	}

	return ConversionResult{
		Input:      local,
		Timezone:   zone,
		Converted:  MomentOf(instant.UTC()),
		IsDST:      daylightSaving(instant, loc),
		Transition: transition,
		Wall:       status,
	}, nil
}

// ParseLocalToUTC parses s with ParseMoment and calls LocalToUTC.
func (c *Converter) ParseLocalToUTC(s, zone string) (ConversionResult, error) {
	m, err := ParseMoment(s)
	if err != nil {
		return ConversionResult{}, err
	}
	return c.LocalToUTC(m, zone)
}

// UTCToLocal reads utc as a UTC wall clock and returns the reading in zone.
// The transition tag describes the UTC calendar day of the input, which is
// the day whose source files a caller would load.
func (c *Converter) UTCToLocal(utc Moment, zone string) (ConversionResult, error) {
	loc, err := c.zones.Location(zone)
	if err != nil {
		return ConversionResult{}, err
	}

	local := utc.Time().In(loc)
	localWall := MomentOf(local)

	status := WallRegular
	if cands := wallCandidates(localWall, loc); cands.status == WallRepeated {
		status = WallRepeated
	}

	transition, err := utcDayTransition(utc, loc, zone)
	if err != nil {
		return ConversionResult{}, err
	}

	return ConversionResult{
		Input:      utc,
		Timezone:   zone,
		Converted:  localWall,
		IsDST:      daylightSaving(local, loc),
		Transition: transition,
		Wall:       status,
	}, nil
}

// ParseUTCToLocal parses s with ParseMoment and calls UTCToLocal.
func (c *Converter) ParseUTCToLocal(s, zone string) (ConversionResult, error) {
	m, err := ParseMoment(s)
	if err != nil {
		return ConversionResult{}, err
	}
	return c.UTCToLocal(m, zone)
}

// HourSlot is one hourly instant of a local calendar day.
type HourSlot struct {
	Local    Moment `json:"local"`
	UTC      Moment `json:"utc"`
	IsDST    bool   `json:"is_dst"`
	Repeated bool   `json:"repeated"`
}

// LocalDay describes one calendar day in a zone, hour by hour.
type LocalDay struct {
	Date       Moment     `json:"date"`
	Timezone   string     `json:"timezone"`
	Transition Transition `json:"dst_transition"`
	Hours      []HourSlot `json:"hours"`
}

// Day enumerates the hourly instants of the local calendar day containing
// date. Spring-forward days have 23 slots, fall-back days 25, with both
// occurrences of the repeated wall hour marked Repeated.
func (c *Converter) Day(date Moment, zone string) (LocalDay, error) {
	loc, err := c.zones.Location(zone)
	if err != nil {
		return LocalDay{}, err
	}

	transition, err := localDayTransition(date, loc, zone)
	if err != nil {
		return LocalDay{}, err
	}

	midnight := date.Midnight()
	start := dayStart(midnight, loc)
	next := dayStart(midnight.Add(24*time.Hour), loc)

	var slots []HourSlot
	seen := make(map[Moment]int)
	for i := start; i.Before(next); i = i.Add(time.Hour) {
		local := i.In(loc)
		wall := MomentOf(local)
		if prev, ok := seen[wall]; ok {
			slots[prev].Repeated = true
			slots = append(slots, HourSlot{Local: wall, UTC: MomentOf(i.UTC()), IsDST: daylightSaving(i, loc), Repeated: true})
			continue
		}
		seen[wall] = len(slots)
		slots = append(slots, HourSlot{Local: wall, UTC: MomentOf(i.UTC()), IsDST: daylightSaving(i, loc)})
	}

	return LocalDay{Date: midnight, Timezone: zone, Transition: transition, Hours: slots}, nil
}

// offsetWindow bounds the distance between a wall reading and any instant that
// can carry it: UTC offsets range from -12h to +14h.
const offsetWindow = 15 * time.Hour

type candidates struct {
	earliest time.Time
	latest   time.Time
	status   WallStatus
}

// wallCandidates finds the instants that carry the reading wall in loc, or the
// two offset readings bracketing it when it falls in a gap.
func wallCandidates(wall Moment, loc *time.Location) candidates {
	w := wall.Time()
	before := offsetAt(w.Add(-offsetWindow), loc)
	after := offsetAt(w.Add(offsetWindow), loc)

	var valid []time.Time
	for _, off := range []time.Duration{before, after} {
		i := w.Add(-off)
		if offsetAt(i, loc) != off {
			continue
		}
		if len(valid) == 1 && valid[0].Equal(i) {
			continue
		}
		valid = append(valid, i)
	}

	switch len(valid) {
	case 1:
		return candidates{earliest: valid[0], latest: valid[0], status: WallRegular}
	case 2:
		a, b := orderInstants(valid[0], valid[1])
		return candidates{earliest: a, latest: b, status: WallRepeated}
	default:
		a, b := orderInstants(w.Add(-before), w.Add(-after))
		return candidates{earliest: a, latest: b, status: WallSkipped}
	}
}

// resolveWall applies policy to the candidates of wall.
func resolveWall(wall Moment, loc *time.Location, policy Disambiguation) (time.Time, WallStatus, error) {
	c := wallCandidates(wall, loc)
	if c.status == WallRegular {
		return c.earliest, c.status, nil
	}

	switch policy {
	case Strict:
		if c.status == WallRepeated {
			return time.Time{}, c.status, ErrAmbiguousTime
		}
		return time.Time{}, c.status, ErrNonExistentTime
	case Earliest:
		return c.earliest, c.status, nil
	default:
		return c.latest, c.status, nil
	}
}

// dayStart returns the first instant of the local day beginning at midnight:
// the first occurrence when midnight repeats, the transition instant when
// midnight is skipped.
func dayStart(midnight Moment, loc *time.Location) time.Time {
	c := wallCandidates(midnight, loc)
	if c.status == WallSkipped {
		return c.latest
	}
	return c.earliest
}

// localDayTransition classifies the local calendar day containing m.
func localDayTransition(m Moment, loc *time.Location, zone string) (Transition, error) {
	midnight := m.Midnight()
	start := dayStart(midnight, loc)
	next := dayStart(midnight.Add(24*time.Hour), loc)
	return classifyDay(next.Sub(start), zone, midnight)
}

// utcDayTransition classifies the UTC calendar day containing m by the offset
// change across it: the local day it maps to is 24h minus that change long.
func utcDayTransition(m Moment, loc *time.Location, zone string) (Transition, error) {
	midnight := m.Midnight()
	start := midnight.Time()
	shift := offsetAt(start.Add(24*time.Hour), loc) - offsetAt(start, loc)
	return classifyDay(24*time.Hour-shift, zone, midnight)
}

// classifyDay counts the hourly instants from the start of a day of the given
// length up to its last microsecond, inclusive of both ends.
func classifyDay(length time.Duration, zone string, date Moment) (Transition, error) {
	hours := 0
	if length > 0 {
		hours = int((length + time.Hour - 1) / time.Hour)
	}

	switch hours {
	case 24:
		return TransitionNone, nil
	case 23:
		return SpringForward, nil
	case 25:
		return FallBack, nil
	default:
		return "", fmt.Errorf("%w: %s on %s has %d hours", ErrDSTAnomaly, zone, date.DateString(), hours)
	}
}

// daylightSaving reports whether t is ahead of the standard offset of loc,
// taken as the lower of the January and July offsets of t's local year.
func daylightSaving(t time.Time, loc *time.Location) bool {
	y := t.In(loc).Year()
	jan := offsetAt(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), loc)
	jul := offsetAt(time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC), loc)
	return offsetAt(t, loc) > min(jan, jul)
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

func orderInstants(a, b time.Time) (time.Time, time.Time) {
	if b.Before(a) {
		return b, a
	}
	return a, b
}
