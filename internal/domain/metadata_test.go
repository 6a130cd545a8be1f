package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCityMetadata_Summarize(t *testing.T) {
	m := NewCityMetadata("torino", zoneRome)
	day := NewMoment(2024, time.March, 30, 0, 0, 0, 0)

	detectors := m.Summarize([]SensorReading{
		{Day: day.Add(24 * time.Hour), Interval: 300, DetID: "a"},
		{Day: day, Interval: 0, DetID: "a"},
		{Day: day, Interval: 0, DetID: "b"},
		{Day: day.Add(48 * time.Hour), Interval: 600, DetID: "b"},
	})

	assert.Equal(t, 2, detectors)
	assert.Equal(t, "2024-03-30", m.TimeRange.Start)
	assert.Equal(t, "2024-04-01", m.TimeRange.End)
	assert.Equal(t, 3, m.DataSummary.NumTimepoints)
}

func TestCityMetadata_JSON(t *testing.T) {
	m := NewCityMetadata("torino", zoneRome)
	m.Summarize(nil)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "torino", doc["city"])

	tr := doc["time_range"].(map[string]any)
	assert.Equal(t, "", tr["start"])
	assert.Equal(t, map[string]any{"weather": "1h", "traffic": "5min"}, tr["resolutions"])

	rel := doc["relationships"].(map[string]any)
	assert.Equal(t, "one_to_one", rel["road_to_detector"])
	assert.Equal(t, "EPSG:4326", doc["spatial_bounds"].(map[string]any)["projection"])
}
