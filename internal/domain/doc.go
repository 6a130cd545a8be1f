// Package domain models the traffic and weather readings of the urban flood
// dataset and converts their timestamps between city-local time and UTC.
//
// # Data Source
//
// Traffic readings come from the UTD19 loop-detector dataset: one CSV per city
// with a row per detector per 5-minute interval. Weather comes from ERA5 hourly
// rainfall, one GRIB file per UTC day. Joining the two means every local
// traffic hour has to be mapped onto a UTC hour and a GRIB file.
//
// # Time Conventions
//
// Traffic rows carry a local calendar date and the seconds since local
// midnight:
//
//	day=2024-03-31, interval=10800  →  03:00 local
//
// The hourly files label each hour as "DD/MM/YYYY HH:MM:SS", again local.
// ERA5 is always UTC. A [Moment] is a bare wall-clock reading; which side of
// the conversion it belongs to is decided by the caller and the zone name
// travels next to it.
//
// Daylight saving:
//
//	spring-forward  23 local hours; the skipped wall hour (02:00 in Europe)
//	                never appears in valid data
//	fall-back       25 local hours; the repeated wall hour (02:00 in Europe)
//	                is binned once in the hourly files
//
// A day with any other hour count is reported as [ErrDSTAnomaly] rather than
// defaulted: downstream joins rely on the transition tag to expect a missing
// or a doubled hour.
//
// Repeated and skipped readings are resolved by a [Disambiguation] policy.
// The default, [Latest], reads the wall clock at standard time.
//
// # Completeness
//
// [CheckDay] compares the hours observed on a local date with the hours the
// zone actually has that day and names the ERA5 file covering each missing
// hour (see [GribFileName]).
package domain
