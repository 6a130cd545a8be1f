package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database fallback for hosts without /usr/share/zoneinfo

	"github.com/maypok86/otter/v2"
)

const defaultZoneCacheSize = 512

// ZoneSource resolves IANA zone names.
type ZoneSource interface {
	Location(name string) (*time.Location, error)
}

// ZoneCache loads each zone once and serves it read-only afterwards.
type ZoneCache struct {
	cache *otter.Cache[string, *time.Location]
	load  func(name string) (*time.Location, error)
}

// NewZoneCache creates a ZoneCache backed by the process zone database.
func NewZoneCache(maxZones int) *ZoneCache {
	if maxZones <= 0 {
		maxZones = defaultZoneCacheSize
	}
	return &ZoneCache{
		cache: otter.Must(&otter.Options[string, *time.Location]{
			MaximumSize: maxZones,
		}),
		load: time.LoadLocation,
	}
}

// Location returns the zone for name. The empty name and "Local" are rejected
// because time.LoadLocation maps them to UTC and the host zone respectively.
func (z *ZoneCache) Location(name string) (*time.Location, error) {
	if loc, ok := z.cache.GetIfPresent(name); ok {
		return loc, nil
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}

	loc, err := z.load(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	z.cache.Set(name, loc)
	return loc, nil
}
