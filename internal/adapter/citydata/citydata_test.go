package citydata

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/spatial"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"torino", "london", ".cache"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	writeFile(t, root, "hourly_progress.txt", "london\n")

	cities, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "london", cities[0].Name)
	assert.Equal(t, filepath.Join(root, "torino"), cities[1].Dir)
	assert.Equal(t, filepath.Join(root, "torino", "torino.csv"), cities[1].ReadingsPath())
	assert.Equal(t, filepath.Join(root, "torino", "torino_completeness.json"), cities[1].CompletenessPath())
	assert.Equal(t, filepath.Join(root, "torino", "torino_sensor_flow.parquet"), cities[1].SensorMatrixPath("flow"))
	assert.Equal(t, filepath.Join(root, "torino", "torino_road_index.parquet"), cities[1].RoadIndexPath())
}

func TestRequire(t *testing.T) {
	dir := t.TempDir()
	present := writeFile(t, dir, "a.csv", "x")

	require.NoError(t, Require(present))

	err := Require(present, filepath.Join(dir, "b.csv"), filepath.Join(dir, "c.geojson"))
	require.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), "b.csv, c.geojson")
}

func TestReadSensorReadings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "torino.csv", `day,interval,detid,flow,occ,error,city,speed
2024-03-31,0,d1,12,0.1,0,torino,42.5
2024-03-31,300,d1,8,,1,,NaN
`)

	readings, err := ReadSensorReadings(path, "fallback")
	require.NoError(t, err)
	require.Len(t, readings, 2)

	first := readings[0]
	assert.Equal(t, "2024-03-31 00:00:00", first.Time().String())
	assert.Equal(t, "d1", first.DetID)
	assert.Equal(t, "torino", first.City)
	require.NotNil(t, first.Speed)
	assert.InDelta(t, 42.5, *first.Speed, 1e-9)

	second := readings[1]
	assert.Equal(t, "2024-03-31 00:05:00", second.Time().String())
	assert.Equal(t, "fallback", second.City)
	assert.Nil(t, second.Occ)
	assert.Nil(t, second.Speed)
	require.NotNil(t, second.Error)
	assert.InDelta(t, 1.0, *second.Error, 1e-9)
}

func TestReadSensorReadings_MissingFlow(t *testing.T) {
	path := writeFile(t, t.TempDir(), "x.csv", `day,interval,detid,flow
2024-03-31,0,d1,10
2024-03-31,300,d1,
2024-03-31,600,d1,NaN
`)

	readings, err := ReadSensorReadings(path, "x")
	require.NoError(t, err)
	require.Len(t, readings, 3)
	require.NotNil(t, readings[0].Flow)
	assert.InDelta(t, 10.0, *readings[0].Flow, 1e-9)
	assert.Nil(t, readings[1].Flow)
	assert.Nil(t, readings[2].Flow)

	hourly := domain.AggregateHourly(readings)
	require.Len(t, hourly, 1)
	assert.Equal(t, 3, hourly[0].Samples)
	assert.InDelta(t, 10.0, hourly[0].FlowSum, 1e-9)
	assert.InDelta(t, 10.0/3, hourly[0].FlowMean5Min, 1e-9)
}

func TestReadSensorReadings_OptionalColumnsAbsent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "essen.csv", "day,interval,detid,flow\n2024-05-02,3600,x,3\n")

	readings, err := ReadSensorReadings(path, "essen")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "essen", readings[0].City)
	assert.Nil(t, readings[0].Occ)
}

func TestReadSensorReadings_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing column", "day,interval,detid\n", `missing column "flow"`},
		{"bad day", "day,interval,detid,flow\n31-03-2024,0,d,1\n", ":2:"},
		{"bad interval", "day,interval,detid,flow\n2024-03-31,x,d,1\n", "interval"},
		{"bad speed", "day,interval,detid,flow,speed\n2024-03-31,0,d,1,fast\n", "speed"},
		{"bad flow", "day,interval,detid,flow\n2024-03-31,0,d,lots\n", "flow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "c.csv", tt.content)
			_, err := ReadSensorReadings(path, "c")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ReadSensorReadings(filepath.Join(dir, "absent.csv"), "c")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadDetectors(t *testing.T) {
	path := writeFile(t, t.TempDir(), DetectorsFile, "detid,length,pos,fclass,road,limit,citycode,lanes,linkid,long,lat\nd1,0.1,0.2,primary,Via Roma,50,torino,2,7,7.68,45.07\n")

	dets, err := ReadDetectors(path)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "d1", dets[0].DetID)
	assert.InDelta(t, 7.68, dets[0].Lon, 1e-9)
	assert.InDelta(t, 45.07, dets[0].Lat, 1e-9)
}

func TestReadDetectors_RejectsUnusableCoordinates(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		row  string
		want string
	}{
		{"nan longitude", "d1,NaN,45.0", ":2: long:"},
		{"infinite latitude", "d1,7.7,+Inf", ":2: lat:"},
		{"latitude out of range", "d1,7.7,91", ":2: lat:"},
		{"longitude out of range", "d1,-181,45", ":2: long:"},
		{"not a number", "d1,east,45", ":2: long:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, DetectorsFile, "detid,long,lat\n"+tt.row+"\n")
			_, err := ReadDetectors(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadGrid(t *testing.T) {
	path := writeFile(t, t.TempDir(), GridFile, "grid_id,latitude,longitude\ng1,45.0,7.75\ng2,45.25,7.75\n")

	cells, err := ReadGrid(path)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "g2", cells[1].ID)
	assert.InDelta(t, 45.25, cells[1].Lat, 1e-9)

	bad := writeFile(t, t.TempDir(), GridFile, "grid_id,latitude,longitude\ng1,north,7.75\n")
	_, err = ReadGrid(bad)
	assert.ErrorContains(t, err, "latitude")

	nan := writeFile(t, t.TempDir(), GridFile, "grid_id,latitude,longitude\ng1,45.0,NaN\n")
	_, err = ReadGrid(nan)
	assert.ErrorContains(t, err, "longitude")
}

func TestWriteAndReadNetwork(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{7.68, 45.07}, {7.69, 45.07}}))
	n, err := spatial.NewNetwork(fc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), NetworkGeoJSON)
	require.NoError(t, WriteNetwork(path, n))

	back, err := ReadNetwork(path)
	require.NoError(t, err)
	assert.Len(t, back.Roads, 1)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torino_metadata.json")
	require.NoError(t, WriteJSON(path, map[string]int{"num_roads": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["num_roads"])

	var back map[string]int
	require.NoError(t, ReadJSON(path, &back))
	assert.Equal(t, got, back)
}

func TestReadJSON_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", "{")
	err := ReadJSON(path, &struct{}{})
	assert.ErrorContains(t, err, "decode")
}

func TestWriteAtomic_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	err := WriteAtomic(path, func(io.Writer) error { return errors.New("boom") })
	require.Error(t, err)

	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
