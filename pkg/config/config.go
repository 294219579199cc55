// Package config provides configuration loading and management for gprproc.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gprproc/internal/models"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many files to process in parallel
		NumCores int `yaml:"numCores"`

		// MediumVelocity is the wave velocity in the subsurface in m/ns
		MediumVelocity float64 `yaml:"mediumVelocity"`

		// MergeGap is the maximum temporal gap between recordings that
		// still merges, e.g. "10 min"
		MergeGap string `yaml:"mergeGap"`

		// FailFast stops the batch at the first failing file
		FailFast bool `yaml:"failFast"`
	} `yaml:"processing"`

	// Geolocation parameters
	Geolocation struct {
		// TargetCRS is the coordinate reference system positions are
		// reprojected into, e.g. "EPSG:25832"
		TargetCRS string `yaml:"targetCRS"`

		// DEMPath points at an elevation model for the survey area
		DEMPath string `yaml:"demPath"`

		// DEMMaxDistance is the largest accepted distance in CRS units
		// between a trace and its nearest elevation sample
		DEMMaxDistance float64 `yaml:"demMaxDistance"`
	} `yaml:"geolocation"`

	// Output parameters
	Output struct {
		// Dir is the directory processed profiles are written into;
		// empty keeps them beside the inputs
		Dir string `yaml:"dir"`

		// RenderImages also writes a JPEG per exported profile
		RenderImages bool `yaml:"renderImages"`

		// JPEGQuality is the render quality, 1 to 100
		JPEGQuality int `yaml:"jpegQuality"`

		// Quiet raises the logging floor from INFO to WARN
		Quiet bool `yaml:"quiet"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.MediumVelocity = models.DefaultMediumVelocity
	cfg.Processing.MergeGap = ""
	cfg.Processing.FailFast = false

	cfg.Geolocation.TargetCRS = ""
	cfg.Geolocation.DEMPath = ""
	cfg.Geolocation.DEMMaxDistance = 50

	cfg.Output.Dir = ""
	cfg.Output.RenderImages = false
	cfg.Output.JPEGQuality = 90
	cfg.Output.Quiet = false

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// ParseGapThreshold parses a human-readable merge gap such as "10 min",
// "90s" or "1.5 h". The unit defaults to minutes when omitted.
func ParseGapThreshold(s string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty gap threshold")
	}

	var number, unit string
	if len(fields) >= 2 {
		number, unit = fields[0], fields[1]
	} else {
		// Split a compact form like "90s" or "10min".
		number = fields[0]
		cut := len(number)
		for cut > 0 && !isDigit(number[cut-1]) {
			cut--
		}
		number, unit = fields[0][:cut], fields[0][cut:]
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gap threshold %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative gap threshold %q", s)
	}

	var scale time.Duration
	switch strings.ToLower(unit) {
	case "s", "sec", "secs", "second", "seconds":
		scale = time.Second
	case "", "m", "min", "mins", "minute", "minutes":
		scale = time.Minute
	case "h", "hr", "hrs", "hour", "hours":
		scale = time.Hour
	default:
		return 0, fmt.Errorf("unknown gap threshold unit %q", unit)
	}
	return time.Duration(value * float64(scale)), nil
}

func isDigit(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.'
}
