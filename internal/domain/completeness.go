package domain

import (
	"fmt"
	"slices"
	"time"
)

// MissingHour is an expected local hour with no readings, together with the
// UTC reading and ERA5 file that would cover it.
type MissingHour struct {
	Local    Moment `json:"local"`
	UTC      Moment `json:"utc"`
	GribFile string `json:"grib_file"`
}

// DayReport compares the hours observed on one local date with the hours the
// zone actually has on that date.
type DayReport struct {
	Date       Moment        `json:"date"`
	Transition Transition    `json:"dst_transition"`
	Expected   int           `json:"expected_hours"`
	Observed   int           `json:"observed_hours"`
	Missing    []MissingHour `json:"missing,omitempty"`
	Unexpected []Moment      `json:"unexpected,omitempty"` // observed hours the zone skipped
	Repeated   []Moment      `json:"repeated,omitempty"`   // wall hours that occur twice; one hourly bin holds both
}

// Complete reports whether every expected hour was observed and nothing else.
func (r DayReport) Complete() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// CompletenessReport collects the day reports of one city.
type CompletenessReport struct {
	City              string      `json:"city"`
	Timezone          string      `json:"timezone"`
	GeneratedAt       time.Time   `json:"generated_at"`
	Days              []DayReport `json:"days"`
	IncompleteDays    int         `json:"incomplete_days"`
	RequiredGribFiles []string    `json:"required_grib_files,omitempty"`
}

// GribFileName names the ERA5 rainfall file holding a UTC date.
func GribFileName(utcDate Moment) string {
	return fmt.Sprintf("era5_rainfall_%s.grib", utcDate.DateString())
}

// CheckDay builds the report for the local date of date. Observed hours on
// other dates are ignored.
func CheckDay(conv *Converter, date Moment, zone string, observed []Moment) (DayReport, error) {
	day, err := conv.Day(date, zone)
	if err != nil {
		return DayReport{}, err
	}

	present := make(map[Moment]bool)
	for _, h := range observed {
		h = h.Truncate(time.Hour)
		if h.Midnight().Equal(day.Date) {
			present[h] = true
		}
	}

	report := DayReport{Date: day.Date, Transition: day.Transition, Observed: len(present)}

	expected := make(map[Moment]bool)
	for _, slot := range day.Hours {
		if expected[slot.Local] {
			report.Repeated = append(report.Repeated, slot.Local)
			continue
		}
		expected[slot.Local] = true

		if present[slot.Local] {
			continue
		}
		res, err := conv.LocalToUTC(slot.Local, zone)
		if err != nil {
			return DayReport{}, fmt.Errorf("locate missing hour %s: %w", slot.Local, err)
		}
		report.Missing = append(report.Missing, MissingHour{
			Local:    slot.Local,
			UTC:      res.Converted,
			GribFile: GribFileName(res.Converted),
		})
	}
	report.Expected = len(expected)

	for h := range present {
		if !expected[h] {
			report.Unexpected = append(report.Unexpected, h)
		}
	}
	slices.SortFunc(report.Unexpected, func(a, b Moment) int { return a.Time().Compare(b.Time()) })

	return report, nil
}

// CheckCompleteness reports every local date that appears in hourly.
func CheckCompleteness(conv *Converter, city, zone string, hourly []HourlyReading) (CompletenessReport, error) {
	byDate := ObservedHours(hourly)

	dates := make([]Moment, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b Moment) int { return a.Time().Compare(b.Time()) })

	report := CompletenessReport{City: city, Timezone: zone, GeneratedAt: clock.Now().UTC()}
	files := make(map[string]bool)
	for _, d := range dates {
		day, err := CheckDay(conv, d, zone, byDate[d])
		if err != nil {
			return CompletenessReport{}, err
		}
		if !day.Complete() {
			report.IncompleteDays++
		}
		for _, m := range day.Missing {
			files[m.GribFile] = true
		}
		report.Days = append(report.Days, day)
	}

	for f := range files {
		report.RequiredGribFiles = append(report.RequiredGribFiles, f)
	}
	slices.Sort(report.RequiredGribFiles)
	return report, nil
}
