// Package config loads the eventcal YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Venue    VenueConfig    `yaml:"venue"`
	Calendar CalendarConfig `yaml:"calendar"`
	Output   OutputConfig   `yaml:"output"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Serve    ServeConfig    `yaml:"serve"`
	Store    StoreConfig    `yaml:"store"`
}

// VenueConfig describes the venue events are pinned to.
type VenueConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// CalendarConfig controls calendar-level ICS properties.
type CalendarConfig struct {
	Name      string `yaml:"name"`
	ProdID    string `yaml:"prod_id"`
	TTL       string `yaml:"ttl"`
	UIDDomain string `yaml:"uid_domain"`
}

// OutputConfig names the emitted artifacts.
type OutputConfig struct {
	ICSPath      string `yaml:"ics_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// FetchConfig tunes upstream fetching. Timeout is a duration string
// ("45s", "2m") parsed with time.ParseDuration.
type FetchConfig struct {
	UserAgent        string `yaml:"user_agent"`
	Timeout          string `yaml:"timeout"`
	Concurrency      int    `yaml:"concurrency"`
	DisableThreshold int    `yaml:"disable_threshold"`
}

// TimeoutDuration parses the fetch timeout, falling back to 20s on an empty
// value.
func (f FetchConfig) TimeoutDuration() time.Duration {
	if f.Timeout == "" {
		return 20 * time.Second
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// ScheduleConfig controls the built-in monthly scheduler.
type ScheduleConfig struct {
	DayOfMonth int `yaml:"day_of_month"`
	Hour       int `yaml:"hour"`
}

// ServeConfig controls the HTTP publisher.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig locates the source database.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Venue: VenueConfig{
			Name:     "DHL Stadium, Cape Town",
			Timezone: "Africa/Johannesburg",
		},
		Calendar: CalendarConfig{
			Name:      "Cape Town Stadium Events",
			ProdID:    "-//Cape Town Stadium//eventcal//EN",
			TTL:       "P1D",
			UIDDomain: "eventcal.capetownstadium",
		},
		Output: OutputConfig{
			ICSPath:      "public/calendar.ics",
			SnapshotPath: "public/events.json",
		},
		Fetch: FetchConfig{
			UserAgent:        "eventcal/1.0 (Cape Town Stadium event calendar)",
			Timeout:          "20s",
			Concurrency:      5,
			DisableThreshold: 10,
		},
		Schedule: ScheduleConfig{
			DayOfMonth: 1,
			Hour:       6,
		},
		Serve: ServeConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			DSN: "eventcal.db",
		},
	}
}

// Load reads the config file at path and merges it over the defaults. A
// missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Schedule.DayOfMonth < 1 || c.Schedule.DayOfMonth > 31 {
		return fmt.Errorf("schedule.day_of_month must be between 1 and 31")
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("schedule.hour must be between 0 and 23")
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1")
	}
	if c.Fetch.DisableThreshold < 1 {
		return fmt.Errorf("fetch.disable_threshold must be at least 1")
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			return fmt.Errorf("invalid fetch.timeout: %w", err)
		}
	}
	if c.Output.ICSPath == "" {
		return fmt.Errorf("output.ics_path must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid venue.timezone: %w", err)
	}
	return nil
}

// Location resolves the venue timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Venue.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Venue.Timezone)
}
