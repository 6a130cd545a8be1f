// Command genmock writes a deterministic mock city directory for local runs
// of the prep pipeline.
//
// Usage:
//
//	go run ./cmd/genmock -out data/input -city rome \
//	  -drop "2024-03-30 00:00,2024-03-30 01:00"
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts := mockdata.Rome()

	out := flag.String("out", "data/input", "data root to write the city directory under")
	city := flag.String("city", "rome", "city directory name")
	zone := flag.String("tz", opts.Timezone, "IANA zone of the city")
	start := flag.String("start", opts.Start.DateString(), "first local date")
	days := flag.Int("days", opts.Days, "number of local days")
	detectors := flag.Int("detectors", opts.Detectors, "number of detectors")
	drop := flag.String("drop", "", "comma-separated local hours to leave without readings")
	flag.Parse()

	first, err := domain.ParseMoment(*start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	dropped, err := parseHours(*drop)
	if err != nil {
		return fmt.Errorf("-drop: %w", err)
	}
	if *days <= 0 || *detectors <= 0 {
		return fmt.Errorf("-days and -detectors must be positive")
	}

	opts.Timezone = *zone
	opts.Start = first
	opts.Days = *days
	opts.Detectors = *detectors
	opts.DropHours = dropped

	c, err := mockdata.WriteCity(*out, *city, opts)
	if err != nil {
		return err
	}
	log.Printf("wrote %s (%s, %d days from %s, %d detectors, %d dropped hours)",
		c.Dir, opts.Timezone, opts.Days, opts.Start.DateString(), opts.Detectors, len(dropped))
	return nil
}

func parseHours(s string) ([]domain.Moment, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var hours []domain.Moment
	for _, part := range strings.Split(s, ",") {
		m, err := domain.ParseMoment(part)
		if err != nil {
			return nil, err
		}
		hours = append(hours, m.Truncate(time.Hour))
	}
	return hours, nil
}
