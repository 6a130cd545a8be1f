package citydata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/spatial"
)

// header maps column names to their index in a CSV header row.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for i, name := range row {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return h, nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optionalFloat parses an optional numeric cell. Empty and NaN cells are nil.
func optionalFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

// coordinate parses a finite degree value within ±limit.
func coordinate(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, fmt.Errorf("%q is not a coordinate within ±%g", s, limit)
	}
	return v, nil
}

func openCSV(path string) (*os.File, *csv.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	return f, r, nil
}

// ReadSensorReadings loads a 5-minute readings file. Rows without a city
// column value are attributed to city.
func ReadSensorReadings(path, city string) ([]domain.SensorReading, error) {
	f, r, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(r, "day", "interval", "detid", "flow")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []domain.SensorReading
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		reading, err := parseReading(h, row, city)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, reading)
	}
	return out, nil
}

func parseReading(h header, row []string, city string) (domain.SensorReading, error) {
	day, err := domain.ParseMoment(h.get(row, "day"))
	if err != nil {
		return domain.SensorReading{}, err
	}
	interval, err := strconv.Atoi(h.get(row, "interval"))
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("interval: %w", err)
	}
	flow, err := optionalFloat(h.get(row, "flow"))
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("flow: %w", err)
	}

	rd := domain.SensorReading{
		Day:      day.Midnight(),
		Interval: interval,
		DetID:    h.get(row, "detid"),
		City:     h.get(row, "city"),
		Flow:     flow,
	}
	if rd.City == "" {
		rd.City = city
	}
	if rd.Occ, err = optionalFloat(h.get(row, "occ")); err != nil {
		return domain.SensorReading{}, fmt.Errorf("occ: %w", err)
	}
	if rd.Speed, err = optionalFloat(h.get(row, "speed")); err != nil {
		return domain.SensorReading{}, fmt.Errorf("speed: %w", err)
	}
	if rd.Error, err = optionalFloat(h.get(row, "error")); err != nil {
		return domain.SensorReading{}, fmt.Errorf("error: %w", err)
	}
	return rd, nil
}

// ReadDetectors loads detector positions (detid, long, lat).
func ReadDetectors(path string) ([]domain.Detector, error) {
	f, r, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(r, "detid", "long", "lat")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []domain.Detector
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		lon, err := coordinate(h.get(row, "long"), 180)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: long: %w", path, line, err)
		}
		lat, err := coordinate(h.get(row, "lat"), 90)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: lat: %w", path, line, err)
		}
		out = append(out, domain.Detector{DetID: h.get(row, "detid"), Lon: lon, Lat: lat})
	}
	return out, nil
}

// ReadGrid loads weather grid centres (grid_id, latitude, longitude).
func ReadGrid(path string) ([]domain.GridCell, error) {
	f, r, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(r, "grid_id", "latitude", "longitude")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var out []domain.GridCell
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		lat, err := coordinate(h.get(row, "latitude"), 90)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: latitude: %w", path, line, err)
		}
		lon, err := coordinate(h.get(row, "longitude"), 180)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: longitude: %w", path, line, err)
		}
		out = append(out, domain.GridCell{ID: h.get(row, "grid_id"), Lat: lat, Lon: lon})
	}
	return out, nil
}

// ReadNetwork loads a road network GeoJSON file.
func ReadNetwork(path string) (*spatial.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := spatial.ParseNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
