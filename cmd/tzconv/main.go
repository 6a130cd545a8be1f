// Command tzconv converts one wall-clock reading between a zone and UTC, or
// lists the hours of a local day.
//
// Usage:
//
//	tzconv [-utc] [-policy latest|earliest|strict] [-json] "2024-03-31 02:30" Europe/Rome
//	tzconv -day 2024-10-27 Europe/Rome
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

var (
	dstColor      = color.New(color.FgBlue)
	repeatedColor = color.New(color.FgYellow)
	skippedColor  = color.New(color.FgRed)
	faintColor    = color.New(color.FgHiBlack)
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tzconv:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tzconv", flag.ContinueOnError)
	fromUTC := fs.Bool("utc", false, "treat the input as a UTC reading and convert to the zone")
	policyName := fs.String("policy", "latest", "repeated or skipped local time: latest, earliest or strict")
	day := fs.Bool("day", false, "list every hour of the local day")
	asJSON := fs.Bool("json", false, "print JSON")
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New(`usage: tzconv [-utc] [-policy p] [-day] [-json] "<time>" <zone>`)
	}

	policy, err := domain.ParseDisambiguation(*policyName)
	if err != nil {
		return err
	}
	conv := domain.NewConverter(nil, policy)
	input, zone := fs.Arg(0), fs.Arg(1)

	if *day {
		date, err := domain.ParseMoment(input)
		if err != nil {
			return err
		}
		d, err := conv.Day(date, zone)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(out, d)
		}
		printDay(out, d)
		return nil
	}

	var res domain.ConversionResult
	if *fromUTC {
		res, err = conv.ParseUTCToLocal(input, zone)
	} else {
		res, err = conv.ParseLocalToUTC(input, zone)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(out, res)
	}
	printResult(out, res, *fromUTC)
	return nil
}

func printResult(out io.Writer, res domain.ConversionResult, fromUTC bool) {
	from, to := res.Timezone, "UTC"
	if fromUTC {
		from, to = "UTC", res.Timezone
	}
	fmt.Fprintf(out, "%s %s -> %s %s\n", res.Input, from, res.Converted, to)

	wall := string(res.Wall)
	switch res.Wall {
	case domain.WallRepeated:
		wall = repeatedColor.Sprint(wall)
	case domain.WallSkipped:
		wall = skippedColor.Sprint(wall)
	}
	dst := fmt.Sprint(res.IsDST)
	if res.IsDST {
		dst = dstColor.Sprint(dst)
	}
	fmt.Fprintf(out, "  dst: %s  transition: %s  wall: %s\n", dst, res.Transition, wall)
}

func printDay(out io.Writer, d domain.LocalDay) {
	fmt.Fprintf(out, "%s %s (%s, %d hours)\n", d.Date.DateString(), d.Timezone, d.Transition, len(d.Hours))
	for _, h := range d.Hours {
		local := h.Local.Format("15:04")
		if h.Repeated {
			local = repeatedColor.Sprint(local)
		}
		marker := " "
		if h.IsDST {
			marker = dstColor.Sprint("*")
		}
		fmt.Fprintf(out, "  %s %s %s\n", local, marker, faintColor.Sprint(h.UTC.String()+" UTC"))
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
