// Package citydata reads and writes the files of one city directory.
package citydata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// File names inside a city directory.
const (
	DetectorsFile      = "detectors_public.csv"
	RoadsFile          = "roads_centroidline.geojson"
	GridFile           = "grid_info.csv"
	HourlyFile         = "hourly_readings.parquet"
	ReadingsParquet    = "5min_readings.parquet"
	DetectorsParquet   = "detectors.parquet"
	NetworkGeoJSON     = "selected_network_4326.geojson"
	NetworkParquet     = "selected_network.parquet"
	completenessSuffix = "_completeness.json"
	metadataSuffix     = "_metadata.json"
	roadIndexSuffix    = "_road_index.parquet"
	roadNodesSuffix    = "_road_nodes.parquet"
)

// City is one city directory under the data root.
type City struct {
	Name string
	Dir  string
}

// ReadingsPath is the 5-minute readings CSV, named after the city.
func (c City) ReadingsPath() string { return c.path(c.Name + ".csv") }

func (c City) DetectorsPath() string        { return c.path(DetectorsFile) }
func (c City) RoadsPath() string            { return c.path(RoadsFile) }
func (c City) GridPath() string             { return c.path(GridFile) }
func (c City) HourlyPath() string           { return c.path(HourlyFile) }
func (c City) ReadingsParquetPath() string  { return c.path(ReadingsParquet) }
func (c City) DetectorsParquetPath() string { return c.path(DetectorsParquet) }
func (c City) NetworkGeoJSONPath() string   { return c.path(NetworkGeoJSON) }
func (c City) NetworkParquetPath() string   { return c.path(NetworkParquet) }

func (c City) CompletenessPath() string { return c.path(c.Name + completenessSuffix) }
func (c City) MetadataPath() string     { return c.path(c.Name + metadataSuffix) }
func (c City) RoadIndexPath() string    { return c.path(c.Name + roadIndexSuffix) }
func (c City) RoadNodesPath() string    { return c.path(c.Name + roadNodesSuffix) }

// SensorMatrixPath is the time × sensor-road matrix of one metric.
func (c City) SensorMatrixPath(metric string) string {
	return c.path(c.Name + "_sensor_" + metric + ".parquet")
}

func (c City) path(name string) string { return filepath.Join(c.Dir, name) }

// Require returns an error naming every path that does not exist.
func Require(paths ...string) error {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, filepath.Base(p))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}
	return nil
}

// ErrMissingInput reports a stage input absent from the city directory.
var ErrMissingInput = errors.New("missing input")

// Discover lists the city directories under root, sorted by name. Hidden
// directories are skipped.
func Discover(root string) ([]City, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}

	var cities []City
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cities = append(cities, City{Name: e.Name(), Dir: filepath.Join(root, e.Name())})
	}
	slices.SortFunc(cities, func(a, b City) int { return strings.Compare(a.Name, b.Name) })
	return cities, nil
}
