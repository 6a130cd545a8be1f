package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
)

// defaultCityZones maps the dataset's city directory names to IANA zones.
var defaultCityZones = map[string]string{
	"london":     "Europe/London",
	"manchester": "Europe/London",
	"torino":     "Europe/Rome",
	"cagliari":   "Europe/Rome",
	"paris":      "Europe/Paris",
	"marseille":  "Europe/Paris",
	"strasbourg": "Europe/Paris",
	"augsburg":   "Europe/Berlin",
	"essen":      "Europe/Berlin",
	"darmstadt":  "Europe/Berlin",
	"hamburg":    "Europe/Berlin",
	"toronto":    "America/Toronto",
	"luzern":     "Europe/Zurich",
	"taipeh":     "Asia/Taipei",
	"innsbruck":  "Europe/Vienna",
	"madrid":     "Europe/Madrid",
}

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataRoot        string
	Workers         int
	Disambiguation  domain.Disambiguation
	DefaultTimezone string
	GridResolution  float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for hourly readings.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int

	cityZones map[string]string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseDisambiguation(sharedcfg.EnvOrDefault("DISAMBIGUATION", "latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISAMBIGUATION: %w", err)
	}

	resolution, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GRID_RESOLUTION", "0.25"), 64)
	if err != nil || resolution <= 0 {
		return nil, errors.New("invalid GRID_RESOLUTION")
	}

	zones, err := parseCityZones(os.Getenv("CITY_TIMEZONES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataRoot:        sharedcfg.EnvOrDefault("DATA_ROOT", "data/input"),
		Workers:         workers,
		Disambiguation:  policy,
		DefaultTimezone: sharedcfg.EnvOrDefault("DEFAULT_TIMEZONE", "UTC"),
		GridResolution:  resolution,
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "hourly-sensor-readings"),
		BatchSize:       batchSize,
		cityZones:       zones,
	}

	if cfg.DataRoot == "" {
		return nil, errors.New("DATA_ROOT is required")
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil || cfg.DefaultTimezone == "Local" {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q", cfg.DefaultTimezone)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// TimezoneFor returns the zone of a city directory, falling back to
// DefaultTimezone. Lookup ignores case.
func (c *Config) TimezoneFor(city string) string {
	if zone, ok := c.cityZones[strings.ToLower(city)]; ok {
		return zone
	}
	return c.DefaultTimezone
}

// CityZones returns a copy of the city table.
func (c *Config) CityZones() map[string]string {
	return maps.Clone(c.cityZones)
}

func parseWorkers() (int, error) {
	s := sharedcfg.EnvOrDefault("WORKERS", "4")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 64 {
		return 0, fmt.Errorf("invalid WORKERS %q: must be between 1 and 64", s)
	}
	return n, nil
}

// parseCityZones layers "city=Zone,city=Zone" overrides on the built-in table.
func parseCityZones(s string) (map[string]string, error) {
	zones := maps.Clone(defaultCityZones)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		city, zone, ok := strings.Cut(pair, "=")
		city, zone = strings.ToLower(strings.TrimSpace(city)), strings.TrimSpace(zone)
		if !ok || city == "" || zone == "" {
			return nil, fmt.Errorf("invalid CITY_TIMEZONES entry %q: want city=Zone", pair)
		}
		zones[city] = zone
	}
	return zones, nil
}
