// Package config provides configuration loading and management for
// demcoreg. It handles loading configuration from YAML files and
// provides default values; command-line flags override whatever the
// file supplies.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Coregistration parameters
	Coregistration struct {
		// Iterations is the fixed number of shift-and-resample passes.
		Iterations int `yaml:"iterations"`

		// Cores specifies how many CPU cores to use for resampling.
		Cores int `yaml:"cores"`
	} `yaml:"coregistration"`

	// Masking parameters applied before estimation and deramping
	Masking struct {
		// ZMax masks master cells above this elevation during
		// deramping (e.g. snow-covered areas). NaN disables the cut.
		ZMax float64 `yaml:"zmax"`

		// ZMin masks master cells below this elevation (e.g. sea ice).
		// NaN disables the cut.
		ZMin float64 `yaml:"zmin"`

		// ResMax invalidates cells where |master-slave| exceeds this
		// value before the loop starts. NaN disables the filter.
		ResMax float64 `yaml:"resmax"`
	} `yaml:"masking"`

	// Fill parameters for optional void filling
	Fill struct {
		// Enabled turns on pre-loop void filling of both DEMs.
		Enabled bool `yaml:"enabled"`

		// Neighbors is the number of valid samples blended per void cell.
		Neighbors int `yaml:"neighbors"`

		// MaxDistance bounds, in cells, how far a void may be filled from.
		MaxDistance float64 `yaml:"maxDistance"`
	} `yaml:"fill"`

	// Output parameters
	Output struct {
		// Verbose controls the per-iteration report on stdout.
		Verbose bool `yaml:"verbose"`

		// PlotDir is where diagnostic plots are written when plotting
		// is requested.
		PlotDir string `yaml:"plotDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Coregistration.Iterations = 5
	cfg.Coregistration.Cores = runtime.NumCPU()

	cfg.Masking.ZMax = math.NaN()
	cfg.Masking.ZMin = math.NaN()
	cfg.Masking.ResMax = math.NaN()

	cfg.Fill.Enabled = false
	cfg.Fill.Neighbors = 8
	cfg.Fill.MaxDistance = 4

	cfg.Output.Verbose = true
	cfg.Output.PlotDir = "coreg_plots"

	return cfg
}

// Validate reports configuration values no run could make sense of.
func (cfg *Config) Validate() error {
	if cfg.Coregistration.Iterations < 1 {
		return fmt.Errorf("coregistration.iterations must be >= 1, got %d", cfg.Coregistration.Iterations)
	}
	if cfg.Fill.Enabled && cfg.Fill.Neighbors < 1 {
		return fmt.Errorf("fill.neighbors must be >= 1, got %d", cfg.Fill.Neighbors)
	}
	if !math.IsNaN(cfg.Masking.ZMax) && !math.IsNaN(cfg.Masking.ZMin) && cfg.Masking.ZMin > cfg.Masking.ZMax {
		return fmt.Errorf("masking.zmin (%g) exceeds masking.zmax (%g)", cfg.Masking.ZMin, cfg.Masking.ZMax)
	}
	return nil
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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
