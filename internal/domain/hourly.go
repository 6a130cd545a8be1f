package domain

import (
	"cmp"
	"slices"
	"time"
)

// hourlyLabelLayout matches the datetime column of the published hourly files.
const hourlyLabelLayout = "02/01/2006 15:04:05"

type hourKey struct {
	hour  Moment
	detID string
	city  string
}

type hourAcc struct {
	samples   int
	flowSum   float64
	occSum    float64
	occN      int
	speedSum  float64
	speedN    int
	weighted  float64
	speedFlow float64
	errorSum  float64
	errorN    int
}

// AggregateHourly groups 5-minute readings by local hour, detector and city.
//
// Per group: samples counts every row; flow_sum skips missing flows and
// flow_mean_5min divides it by samples. Occupancy and error are means over
// the samples that carry them. speed_mean is the plain mean over samples with
// a speed, and speed_weight the flow-weighted mean over samples with both a
// speed and a flow, absent when that flow sums to zero. Output is sorted by
// hour, then city, then detector.
func AggregateHourly(readings []SensorReading) []HourlyReading {
	groups := make(map[hourKey]*hourAcc)
	for _, r := range readings {
		key := hourKey{hour: r.Time().Truncate(time.Hour), detID: r.DetID, city: r.City}
		acc, ok := groups[key]
		if !ok {
			acc = &hourAcc{}
			groups[key] = acc
		}

		acc.samples++
		if r.Flow != nil {
			acc.flowSum += *r.Flow
		}
		if r.Occ != nil {
			acc.occSum += *r.Occ
			acc.occN++
		}
		if r.Speed != nil {
			acc.speedSum += *r.Speed
			acc.speedN++
			if r.Flow != nil {
				acc.weighted += *r.Speed * *r.Flow
				acc.speedFlow += *r.Flow
			}
		}
		if r.Error != nil {
			acc.errorSum += *r.Error
			acc.errorN++
		}
	}

	out := make([]HourlyReading, 0, len(groups))
	for key, acc := range groups {
		h := HourlyReading{
			Hour:         key.hour,
			Datetime:     key.hour.Format(hourlyLabelLayout),
			DetID:        key.detID,
			City:         key.city,
			Samples:      acc.samples,
			FlowSum:      acc.flowSum,
			FlowMean5Min: acc.flowSum / float64(acc.samples),
			OccMean:      meanOrNil(acc.occSum, acc.occN),
			SpeedMean:    meanOrNil(acc.speedSum, acc.speedN),
			ErrorMean:    meanOrNil(acc.errorSum, acc.errorN),
		}
		if acc.speedN > 0 && acc.speedFlow > 0 {
			w := acc.weighted / acc.speedFlow
			h.SpeedWeight = &w
		}
		out = append(out, h)
	}

	slices.SortFunc(out, func(a, b HourlyReading) int {
		if c := a.Hour.Time().Compare(b.Hour.Time()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.City, b.City); c != 0 {
			return c
		}
		return cmp.Compare(a.DetID, b.DetID)
	})
	return out
}

func meanOrNil(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

// ObservedHours returns the distinct local hours present in hourly readings,
// grouped by local calendar date.
func ObservedHours(hourly []HourlyReading) map[Moment][]Moment {
	seen := make(map[Moment]struct{})
	byDate := make(map[Moment][]Moment)
	for _, h := range hourly {
		if _, ok := seen[h.Hour]; ok {
			continue
		}
		seen[h.Hour] = struct{}{}
		date := h.Hour.Midnight()
		byDate[date] = append(byDate[date], h.Hour)
	}
	for date := range byDate {
		slices.SortFunc(byDate[date], func(a, b Moment) int { return a.Time().Compare(b.Time()) })
	}
	return byDate
}
