package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Scan     ScanConfig     `json:"scan"`
	Schedule ScheduleConfig `json:"schedule"`
	Watch    WatchConfig    `json:"watch"`

	// Storage is optional; nil disables persistence of scan runs.
	Storage *StorageConfig `json:"storage,omitempty"`
	HTTP    HTTPConfig     `json:"http"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ScanConfig selects the files scanned for timer schedules.
//
// Include patterns match file names; exclude patterns match directory names
// and prune the whole subtree. Empty lists fall back to the scanner defaults.
type ScanConfig struct {
	Roots   []string `json:"roots"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	Workers int      `json:"workers,omitempty"`
}

// ScheduleConfig controls how schedules are evaluated and described.
type ScheduleConfig struct {
	// Timezone is an IANA name (e.g. "Europe/Amsterdam"). Empty means local time.
	Timezone string `json:"timezone,omitempty"`
	Use24h   bool   `json:"use_24h,omitempty"`
}

// WatchConfig controls rescans in watch mode.
//
// Durations are Go duration strings.
//
// Defaults:
//   - debounce: "500ms"
//   - min_interval: "2s"
type WatchConfig struct {
	Debounce    string `json:"debounce,omitempty"`
	MinInterval string `json:"min_interval,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./.timerlint/state" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HTTPConfig enables the HTTP API when Addr is set.
type HTTPConfig struct {
	Addr string `json:"addr,omitempty"`
	// Pprof mounts net/http/pprof under /debug. Bind Addr to localhost when enabled.
	Pprof bool `json:"pprof,omitempty"`
}

const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMinInterval = 2 * time.Second
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Scan:    ScanConfig{Roots: []string{"."}},
	}
}

// Location resolves Schedule.Timezone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// WatchTimings resolves the watch durations, applying defaults.
func (c *Config) WatchTimings() (debounce, minInterval time.Duration, err error) {
	if debounce, err = ParseDurationOrDefault("watch.debounce", c.Watch.Debounce, DefaultDebounce); err != nil {
		return 0, 0, err
	}
	if minInterval, err = ParseDurationOrDefault("watch.min_interval", c.Watch.MinInterval, DefaultMinInterval); err != nil {
		return 0, 0, err
	}
	return debounce, minInterval, nil
}

// Validate checks fields that can't be expressed in the JSON shape.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if len(c.Scan.Roots) == 0 {
		errs = append(errs, errors.New("scan.roots: at least one root is required"))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, errors.New("scan.workers: must be >= 0"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.WatchTimings(); err != nil {
		errs = append(errs, err)
	}
	if s := c.Storage; s != nil {
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		d := strings.ToLower(strings.TrimSpace(s.Driver))
		if d != "" && d != "none" && strings.TrimSpace(s.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path: required for driver %q", s.Driver))
		}
	}
	return errors.Join(errs...)
}
