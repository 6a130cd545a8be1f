package domain

// CityMetadata summarizes the prepared data of one city.
type CityMetadata struct {
	City          string        `json:"city"`
	Timezone      string        `json:"timezone"`
	TimeRange     TimeRange     `json:"time_range"`
	SpatialBounds SpatialBounds `json:"spatial_bounds"`
	DataSummary   DataSummary   `json:"data_summary"`
	Relationships Relationships `json:"relationships"`
}

// TimeRange spans the local dates covered by the traffic readings.
type TimeRange struct {
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Resolutions map[string]string `json:"resolutions"`
}

// SpatialBounds is the road network extent as [minLon, minLat, maxLon, maxLat].
type SpatialBounds struct {
	BBox       [4]float64 `json:"bbox"`
	Projection string     `json:"projection"`
}

type DataSummary struct {
	NumRoads      int `json:"num_roads"`
	NumSensors    int `json:"num_sensors"`
	NumTimepoints int `json:"num_timepoints"`
}

type Relationships struct {
	RoadToDetector string `json:"road_to_detector"`
	RoadToWeather  string `json:"road_to_weather"`
}

// NewCityMetadata fills the fixed parts of the metadata document: the
// dataset resolutions, the WGS84 projection and the join cardinalities.
func NewCityMetadata(city, zone string) CityMetadata {
	return CityMetadata{
		City:     city,
		Timezone: zone,
		TimeRange: TimeRange{
			Resolutions: map[string]string{"weather": "1h", "traffic": "5min"},
		},
		SpatialBounds: SpatialBounds{Projection: "EPSG:4326"},
		Relationships: Relationships{
			RoadToDetector: "one_to_one",
			RoadToWeather:  "one_to_many",
		},
	}
}

// Summarize sets the time range and timepoint count from readings and
// returns the number of distinct detectors seen.
func (m *CityMetadata) Summarize(readings []SensorReading) int {
	times := make(map[Moment]struct{})
	detectors := make(map[string]struct{})
	var first, last Moment
	for i, r := range readings {
		t := r.Time()
		times[t] = struct{}{}
		detectors[r.DetID] = struct{}{}
		if i == 0 || t.Before(first) {
			first = t
		}
		if i == 0 || last.Before(t) {
			last = t
		}
	}

	m.DataSummary.NumTimepoints = len(times)
	if len(readings) > 0 {
		m.TimeRange.Start = first.DateString()
		m.TimeRange.End = last.DateString()
	}
	return len(detectors)
}
