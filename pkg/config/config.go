// Package config provides configuration loading and management for neuroatlas.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many planes or slices are processed concurrently
		NumWorkers int `yaml:"numWorkers"`

		// PlaneHeight is the default physical distance between consecutive planes in µm
		PlaneHeight float64 `yaml:"planeHeight"`

		// PlaneSpacing is the default in-plane sample spacing in µm
		PlaneSpacing [2]float64 `yaml:"planeSpacing"`
	} `yaml:"processing"`

	// Mask optimization parameters
	Optimization struct {
		// ClosingRadius is the dilation-erosion radius in µm
		ClosingRadius float64 `yaml:"closingRadius"`

		// MinComponentSize removes connected components below this physical size (µm³)
		MinComponentSize float64 `yaml:"minComponentSize"`
	} `yaml:"optimization"`

	// Contour export parameters
	Contours struct {
		// SegmentLength thins contour vertices to this physical distance in µm
		SegmentLength float64 `yaml:"segmentLength"`

		// Axis is the slicing axis for per-plane contour extraction
		Axis int `yaml:"axis"`

		// IncludeHoles traces enclosed background regions as separate contours
		IncludeHoles bool `yaml:"includeHoles"`
	} `yaml:"contours"`

	// Output parameters
	Output struct {
		// Compress gzip-compresses stored volume data
		Compress bool `yaml:"compress"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.PlaneHeight = 1.0
	cfg.Processing.PlaneSpacing = [2]float64{1.0, 1.0}

	// Set default optimization parameters
	cfg.Optimization.ClosingRadius = 20.0
	cfg.Optimization.MinComponentSize = 20.0 * 20.0 * 20.0

	// Set default contour parameters
	cfg.Contours.SegmentLength = 10.0
	cfg.Contours.Axis = 2
	cfg.Contours.IncludeHoles = true

	// Set default output parameters
	cfg.Output.Compress = true
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
