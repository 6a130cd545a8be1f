// Command validate checks the prepared outputs of every city under a data
// root: that each stage wrote its artifacts, that the completeness reports
// agree with the DST calendar, and that the metadata matches them. It lists
// incomplete days and the ERA5 files needed to fill them.
//
// Usage:
//
//	go run ./cmd/validate -data-root data/input
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/fatih/color"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// cityOutputs holds the decoded reports of one city. Either may be nil when
// the file is missing or unreadable.
type cityOutputs struct {
	city         citydata.City
	completeness *domain.CompletenessReport
	metadata     *domain.CityMetadata
}

func main() {
	root := flag.String("data-root", sharedcfg.EnvOrDefault("DATA_ROOT", "data/input"), "directory holding one subdirectory per city")
	flag.Parse()

	os.Exit(run(*root, os.Stdout))
}

func run(root string, out io.Writer) int {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out, "=== Prepared Data Validation ===")
	fmt.Fprintln(out)

	cities, err := citydata.Discover(root)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	if len(cities) == 0 {
		fmt.Fprintf(out, "FATAL: no city directories under %s\n", root)
		return 1
	}

	outputs := make([]cityOutputs, 0, len(cities))
	for _, c := range cities {
		outputs = append(outputs, load(c))
	}

	phases := []*phase{
		validateArtifacts(outputs),
		validateCompleteness(outputs),
		validateMetadata(outputs),
	}

	allPassed := true
	for _, p := range phases {
		status := pass("PASS")
		if !p.passed() {
			status = fail(fmt.Sprintf("FAIL (%d errors)", len(p.errors)))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	for _, o := range outputs {
		printCity(out, o)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func load(c citydata.City) cityOutputs {
	o := cityOutputs{city: c}
	var report domain.CompletenessReport
	if err := citydata.ReadJSON(c.CompletenessPath(), &report); err == nil {
		o.completeness = &report
	}
	var meta domain.CityMetadata
	if err := citydata.ReadJSON(c.MetadataPath(), &meta); err == nil {
		o.metadata = &meta
	}
	return o
}

func validateArtifacts(outputs []cityOutputs) *phase {
	p := &phase{name: "Stage artifacts present"}
	for _, o := range outputs {
		c := o.city
		paths := []string{
			c.ReadingsParquetPath(),
			c.DetectorsParquetPath(),
			c.HourlyPath(),
			c.CompletenessPath(),
			c.NetworkGeoJSONPath(),
			c.NetworkParquetPath(),
			c.RoadIndexPath(),
			c.RoadNodesPath(),
			c.MetadataPath(),
		}
		for _, m := range domain.MatrixMetrics {
			paths = append(paths, c.SensorMatrixPath(string(m)))
		}
		err := citydata.Require(paths...)
		if err != nil {
			p.errorf("%s: %v", c.Name, err)
		}
	}
	return p
}

// hoursPerDay counts the hourly instants of a local day, repeated wall hours
// included.
var hoursPerDay = map[domain.Transition]int{
	domain.TransitionNone: 24,
	domain.SpringForward:  23,
	domain.FallBack:       25,
}

func validateCompleteness(outputs []cityOutputs) *phase {
	p := &phase{name: "Completeness reports match DST calendar"}
	for _, o := range outputs {
		r := o.completeness
		if r == nil {
			continue
		}
		name := o.city.Name

		incomplete := 0
		files := make(map[string]bool)
		for _, d := range r.Days {
			want, ok := hoursPerDay[d.Transition]
			if !ok {
				p.errorf("%s %s: unknown transition %q", name, d.Date.DateString(), d.Transition)
			} else if got := d.Expected + len(d.Repeated); got != want {
				p.errorf("%s %s: %s day has %d hours, report counts %d", name, d.Date.DateString(), d.Transition, want, got)
			}
			if d.Observed+len(d.Missing)-len(d.Unexpected) != d.Expected {
				p.errorf("%s %s: observed %d + missing %d - unexpected %d != expected %d",
					name, d.Date.DateString(), d.Observed, len(d.Missing), len(d.Unexpected), d.Expected)
			}
			if !d.Complete() {
				incomplete++
			}
			for _, m := range d.Missing {
				if want := domain.GribFileName(m.UTC); m.GribFile != want {
					p.errorf("%s %s: missing hour %s maps to %s, want %s", name, d.Date.DateString(), m.Local, m.GribFile, want)
				}
				files[m.GribFile] = true
			}
		}

		if incomplete != r.IncompleteDays {
			p.errorf("%s: %d incomplete days, report says %d", name, incomplete, r.IncompleteDays)
		}
		for f := range files {
			if !slices.Contains(r.RequiredGribFiles, f) {
				p.errorf("%s: %s not listed in required_grib_files", name, f)
			}
		}
	}
	return p
}

func validateMetadata(outputs []cityOutputs) *phase {
	p := &phase{name: "Metadata consistent with readings"}
	for _, o := range outputs {
		m := o.metadata
		if m == nil {
			continue
		}
		name := o.city.Name

		if m.City != name {
			p.errorf("%s: metadata names city %q", name, m.City)
		}
		if m.TimeRange.Start > m.TimeRange.End {
			p.errorf("%s: time range %s after %s", name, m.TimeRange.Start, m.TimeRange.End)
		}
		if m.DataSummary.NumRoads == 0 {
			p.errorf("%s: no roads", name)
		}
		if m.DataSummary.NumSensors > m.DataSummary.NumRoads {
			p.errorf("%s: %d sensors on %d roads", name, m.DataSummary.NumSensors, m.DataSummary.NumRoads)
		}
		b := m.SpatialBounds.BBox
		if b[0] > b[2] || b[1] > b[3] {
			p.errorf("%s: inverted bbox %v", name, b)
		}

		r := o.completeness
		if r == nil || len(r.Days) == 0 {
			continue
		}
		if m.Timezone != r.Timezone {
			p.errorf("%s: metadata zone %s, completeness zone %s", name, m.Timezone, r.Timezone)
		}
		first, last := r.Days[0].Date.DateString(), r.Days[len(r.Days)-1].Date.DateString()
		if m.TimeRange.Start != first || m.TimeRange.End != last {
			p.errorf("%s: metadata range %s..%s, completeness range %s..%s",
				name, m.TimeRange.Start, m.TimeRange.End, first, last)
		}
	}
	return p
}

func printCity(out io.Writer, o cityOutputs) {
	r := o.completeness
	if r == nil {
		fmt.Fprintf(out, "%s: no completeness report\n", o.city.Name)
		return
	}
	fmt.Fprintf(out, "%s (%s): %d days, %d incomplete\n", r.City, r.Timezone, len(r.Days), r.IncompleteDays)
	for _, d := range r.Days {
		if d.Complete() {
			continue
		}
		fmt.Fprintf(out, "  %s %-14s %d/%d hours, %d missing, %d unexpected\n",
			d.Date.DateString(), d.Transition, d.Observed, d.Expected, len(d.Missing), len(d.Unexpected))
	}
	for _, f := range r.RequiredGribFiles {
		fmt.Fprintf(out, "  needs %s\n", f)
	}
}
