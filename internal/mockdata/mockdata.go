// Package mockdata writes a small deterministic city directory in the layout
// the pipeline reads, for local runs and tests.
package mockdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

// Options shapes the generated city.
type Options struct {
	Timezone  string
	Start     domain.Moment // first local date
	Days      int
	Detectors int
	// Centre is the lon/lat the roads and detectors are laid out around.
	Centre orb.Point
	// DropHours lists local hours left without readings.
	DropHours []domain.Moment
}

// Rome is four days around the 2024 spring-forward day in Europe/Rome.
func Rome() Options {
	return Options{
		Timezone:  "Europe/Rome",
		Start:     domain.NewMoment(2024, time.March, 29, 0, 0, 0, 0),
		Days:      4,
		Detectors: 3,
		Centre:    orb.Point{12.4964, 41.9028},
	}
}

// roadSpacing is the distance between parallel mock roads, in degrees.
const roadSpacing = 0.002

// WriteCity creates dir/name with readings, detectors, roads and grid files.
func WriteCity(dir, name string, opts Options) (citydata.City, error) {
	city := citydata.City{Name: name, Dir: filepath.Join(dir, name)}
	if err := os.MkdirAll(city.Dir, 0o755); err != nil {
		return city, err
	}

	conv := domain.NewConverter(nil, domain.Latest)
	if err := writeReadings(city, conv, opts); err != nil {
		return city, fmt.Errorf("readings: %w", err)
	}
	if err := writeDetectors(city, opts); err != nil {
		return city, fmt.Errorf("detectors: %w", err)
	}
	if err := writeRoads(city, opts); err != nil {
		return city, fmt.Errorf("roads: %w", err)
	}
	if err := writeGrid(city, opts); err != nil {
		return city, fmt.Errorf("grid: %w", err)
	}
	return city, nil
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	return citydata.WriteAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := rows(w); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	})
}

// detectorID names the i-th mock detector.
func detectorID(i int) string { return fmt.Sprintf("MOCK%02d", i+1) }

func writeReadings(city citydata.City, conv *domain.Converter, opts Options) error {
	dropped := make(map[domain.Moment]bool, len(opts.DropHours))
	for _, h := range opts.DropHours {
		dropped[h] = true
	}

	return writeCSV(city.ReadingsPath(),
		[]string{"day", "interval", "detid", "flow", "occ", "error", "city", "speed"},
		func(w *csv.Writer) error {
			for d := 0; d < opts.Days; d++ {
				date := opts.Start.Add(time.Duration(d) * 24 * time.Hour)
				day, err := conv.Day(date, opts.Timezone)
				if err != nil {
					return err
				}

				seen := make(map[domain.Moment]bool)
				for _, slot := range day.Hours {
					if seen[slot.Local] || dropped[slot.Local] {
						continue
					}
					seen[slot.Local] = true

					for det := 0; det < opts.Detectors; det++ {
						for m := 0; m < 60; m += 5 {
							interval := slot.Local.Hour()*3600 + m*60
							if err := w.Write(readingRow(date, interval, det, city.Name)); err != nil {
								return err
							}
						}
					}
				}
			}
			return nil
		})
}

// readingRow derives a plausible sample from the time of day: a daily flow
// wave with speed falling as flow rises.
func readingRow(date domain.Moment, interval, det int, city string) []string {
	phase := 2 * math.Pi * float64(interval) / 86400
	flow := math.Round(60 + 40*math.Sin(phase-math.Pi/2) + float64(det*5))
	occ := flow / 400
	speed := math.Max(15, 70-flow/3)
	return []string{
		date.DateString(),
		strconv.Itoa(interval),
		detectorID(det),
		strconv.FormatFloat(flow, 'f', -1, 64),
		strconv.FormatFloat(occ, 'f', 4, 64),
		"0",
		city,
		strconv.FormatFloat(speed, 'f', 1, 64),
	}
}

func writeDetectors(city citydata.City, opts Options) error {
	return writeCSV(city.DetectorsPath(), []string{"detid", "long", "lat"}, func(w *csv.Writer) error {
		for i := 0; i < opts.Detectors; i++ {
			p := roadPoint(opts.Centre, i)
			if err := w.Write([]string{
				detectorID(i),
				strconv.FormatFloat(p[0], 'f', 6, 64),
				strconv.FormatFloat(p[1]+roadSpacing/10, 'f', 6, 64),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// roadPoint is the midpoint of the i-th east-west mock road.
func roadPoint(centre orb.Point, i int) orb.Point {
	return orb.Point{centre[0], centre[1] + float64(i)*roadSpacing}
}

func writeRoads(city citydata.City, opts Options) error {
	fc := geojson.NewFeatureCollection()
	n := opts.Detectors + 1
	for i := 0; i < n; i++ {
		mid := roadPoint(opts.Centre, i)
		f := geojson.NewFeature(orb.LineString{
			{mid[0] - roadSpacing, mid[1]},
			{mid[0] + roadSpacing, mid[1]},
		})
		f.Properties["name"] = fmt.Sprintf("Mock Road %d", i+1)
		f.Properties["highway"] = "secondary"
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return citydata.WriteAtomic(city.RoadsPath(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeGrid lays a 2x2 block of 0.25 degree cells around the centre.
func writeGrid(city citydata.City, opts Options) error {
	lat0 := math.Floor(opts.Centre[1]*4) / 4
	lon0 := math.Floor(opts.Centre[0]*4) / 4
	return writeCSV(city.GridPath(), []string{"grid_id", "latitude", "longitude"}, func(w *csv.Writer) error {
		id := 0
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				id++
				if err := w.Write([]string{
					strconv.Itoa(id),
					strconv.FormatFloat(lat0+float64(dy)*0.25, 'f', 2, 64),
					strconv.FormatFloat(lon0+float64(dx)*0.25, 'f', 2, 64),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
