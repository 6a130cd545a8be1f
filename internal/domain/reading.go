package domain

import "time"

// SensorReading is one 5-minute loop-detector sample. Day is the local
// calendar date of the sample and Interval the seconds elapsed since its
// local midnight, as published in the UTD19 files. Flow, Occ, Speed and Error
// are nil when the cell is empty or NaN.
type SensorReading struct {
	Day      Moment
	Interval int
	DetID    string
	City     string
	Flow     *float64
	Occ      *float64
	Speed    *float64
	Error    *float64
}

// Time returns the local wall-clock reading of the sample.
func (r SensorReading) Time() Moment {
	return r.Day.Add(time.Duration(r.Interval) * time.Second)
}

// HourlyReading aggregates the samples of one detector over one local hour.
type HourlyReading struct {
	Hour         Moment   `json:"hour"`
	Datetime     string   `json:"datetime"` // DD/MM/YYYY HH:MM:SS
	DetID        string   `json:"detid"`
	City         string   `json:"city"`
	Samples      int      `json:"samples"`
	FlowSum      float64  `json:"flow_sum"`
	FlowMean5Min float64  `json:"flow_mean_5min"`
	OccMean      *float64 `json:"occ_mean,omitempty"`
	SpeedMean    *float64 `json:"speed_mean,omitempty"`
	SpeedWeight  *float64 `json:"speed_weight,omitempty"`
	ErrorMean    *float64 `json:"error_mean,omitempty"`
}

// Detector is a loop detector position from detectors_public.csv.
type Detector struct {
	DetID string
	Lon   float64
	Lat   float64
}

// GridCell is the centre of one weather grid cell.
type GridCell struct {
	ID  string
	Lat float64
	Lon float64
}
