package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "UTC"
	defaultDataDir  = "./var"
	defaultLogLevel = "info"
)

// SourceConfig describes a single event feed.
type SourceConfig struct {
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is fetched over HTTP(S). Ignored when Path is set.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Format is "csv" or "ics". Empty means guess from the extension.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// WindowConfig bounds ICS recurrence expansion to the conference dates.
// Both values are YYYY-MM-DD and inclusive.
type WindowConfig struct {
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`
}

// LogConfig controls log level and optional file output.
type LogConfig struct {
	// Level is one of debug, info, error.
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to turn ICS timestamps into wall-clock
	// dates and times, and to stamp the exported agenda.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Sources lists the event feeds. Rows from all sources are normalized
	// together.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// DataDir holds the selection file and the fetch cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic reloads. Empty means load once at startup.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Window WindowConfig `yaml:"window" json:"window"`

	Log LogConfig `yaml:"log" json:"log"`

	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		Sources: []SourceConfig{
			{ID: "events", Name: "Conference events", Path: "./events.csv", Format: "csv"},
		},
		DataDir:     defaultDataDir,
		RefreshCron: "",
		Log:         LogConfig{Level: defaultLogLevel},
		Metrics:     true,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Format = strings.ToLower(strings.TrimSpace(src.Format))
		if src.ID == "" {
			switch {
			case src.Name != "":
				src.ID = src.Name
			default:
				src.ID = fmt.Sprintf("source-%d", i+1)
			}
		}
	}
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	for _, src := range c.Sources {
		if src.URL == "" && src.Path == "" {
			return fmt.Errorf("source %q: url or path is required", src.ID)
		}
		switch src.Format {
		case "", "csv", "ics":
		default:
			return fmt.Errorf("source %q: unknown format %q", src.ID, src.Format)
		}
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("refresh %q: %w", c.RefreshCron, err)
		}
	}
	if _, _, err := c.Window.Bounds(time.UTC); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SelectionPath is where the selection store is persisted.
func (c *Config) SelectionPath() string {
	return filepath.Join(c.DataDir, "selection.json")
}

// CacheDir is where fetched source bodies are cached.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "source-cache")
}

// Bounds returns the window as [start 00:00, day after end 00:00) in loc.
// Unset ends are returned as zero times.
func (w WindowConfig) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	var start, end time.Time
	if w.Start != "" {
		t, err := time.ParseInLocation("2006-01-02", w.Start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window start: %w", err)
		}
		start = t
	}
	if w.End != "" {
		t, err := time.ParseInLocation("2006-01-02", w.End, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("window end: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("window end is before start")
	}
	return start, end, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
