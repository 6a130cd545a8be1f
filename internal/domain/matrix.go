package domain

import (
	"math"
	"slices"
)

// Metric names one measurement of a SensorReading.
type Metric string

const (
	MetricFlow  Metric = "flow"
	MetricOcc   Metric = "occ"
	MetricSpeed Metric = "speed"
)

// MatrixMetrics are the measurements exported as sensor matrices.
var MatrixMetrics = []Metric{MetricFlow, MetricOcc, MetricSpeed}

// Of returns the measurement of r, nil when absent.
func (m Metric) Of(r SensorReading) *float64 {
	switch m {
	case MetricFlow:
		return r.Flow
	case MetricOcc:
		return r.Occ
	case MetricSpeed:
		return r.Speed
	default:
		return nil
	}
}

// SensorMatrix holds one metric as a time × sensor-road grid. Columns are
// detector ids in sensor-road order; Values[t][c] is NaN where detector c
// has no sample at Times[t].
type SensorMatrix struct {
	Metric  Metric
	Times   []Moment
	Columns []string
	Values  [][]float64
}

// NewSensorMatrices lays the readings out as one matrix per metric. The time
// axis holds every distinct sample time in chronological order, including
// times where none of columns reported. Readings of detectors outside columns
// are ignored; a later duplicate sample overwrites an earlier one.
func NewSensorMatrices(readings []SensorReading, columns []string, metrics ...Metric) []SensorMatrix {
	seen := make(map[Moment]struct{})
	var times []Moment
	for _, r := range readings {
		t := r.Time()
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		times = append(times, t)
	}
	slices.SortFunc(times, func(a, b Moment) int { return a.Time().Compare(b.Time()) })

	row := make(map[Moment]int, len(times))
	for i, t := range times {
		row[t] = i
	}
	col := make(map[string]int, len(columns))
	for i, id := range columns {
		col[id] = i
	}

	out := make([]SensorMatrix, len(metrics))
	for i, m := range metrics {
		values := make([][]float64, len(times))
		for t := range values {
			values[t] = make([]float64, len(columns))
			for c := range values[t] {
				values[t][c] = math.NaN()
			}
		}
		out[i] = SensorMatrix{Metric: m, Times: times, Columns: columns, Values: values}
	}

	for _, r := range readings {
		c, ok := col[r.DetID]
		if !ok {
			continue
		}
		t := row[r.Time()]
		for i, m := range metrics {
			if v := m.Of(r); v != nil {
				out[i].Values[t][c] = *v
			}
		}
	}
	return out
}

// Coverage is the share of cells holding a value.
func (m SensorMatrix) Coverage() float64 {
	var total, filled int
	for _, row := range m.Values {
		for _, v := range row {
			total++
			if !math.IsNaN(v) {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

// Label formats a sample time the way the published 5-minute files do.
func Label(m Moment) string { return m.Format(hourlyLabelLayout) }
