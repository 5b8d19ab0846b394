// Package config provides configuration loading and management for voxeleraser.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Sample is one pointer sample of a scripted erase stroke
type Sample struct {
	// X, Y, Z is the ray hit in normalized [0,1] texture coordinates
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`

	// Distance is the hit distance along the picking ray
	Distance float64 `yaml:"distance"`
}

// Stroke is a scripted erase gesture: the first sample starts the drag and
// a mouse-up follows the last one
type Stroke struct {
	Samples []Sample `yaml:"samples"`

	// ViewDir is the picking ray direction
	ViewDir [3]float64 `yaml:"viewDir"`

	// NormalMode overrides eraser.normalMode for this stroke when set
	NormalMode *bool `yaml:"normalMode,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Eraser parameters
	Eraser struct {
		// Radius of the erase cylinder in voxels
		Radius float64 `yaml:"radius"`

		// Depth of the erase cylinder in voxels
		Depth float64 `yaml:"depth"`

		// NormalMode aligns the cylinder with the surface normal instead of the view
		NormalMode bool `yaml:"normalMode"`

		// IsoThreshold is the surface threshold in [0,1]
		IsoThreshold float64 `yaml:"isoThreshold"`

		// UndoIterations is how many erases one undo reverts
		UndoIterations int `yaml:"undoIterations"`

		// ContinuityThreshold is the largest ray-distance jump within a stroke
		ContinuityThreshold float64 `yaml:"continuityThreshold"`
	} `yaml:"eraser"`

	// Surface normal estimation parameters
	Normal struct {
		GaussRadius int     `yaml:"gaussRadius"`
		Sigma       float64 `yaml:"sigma"`
	} `yaml:"normal"`

	// Volume source parameters
	Volume struct {
		// Input is a directory of slice images or a raw volume file
		Input string `yaml:"input"`

		// Dims and Channels describe a raw volume file
		Dims     [3]int `yaml:"dims"`
		Channels int    `yaml:"channels"`

		// PhantomSize and PhantomRadius describe the synthetic sphere used
		// when no input is given
		PhantomSize   int     `yaml:"phantomSize"`
		PhantomRadius float64 `yaml:"phantomRadius"`
	} `yaml:"volume"`

	// Scripted session
	Session struct {
		Strokes []Stroke `yaml:"strokes"`

		// Undo is the number of undo calls made after all strokes
		Undo int `yaml:"undo"`
	} `yaml:"session"`

	// Output parameters
	Output struct {
		// SaveSlices writes masked slices along every axis
		SaveSlices bool `yaml:"saveSlices"`

		// SlicesDir is where slices are written
		SlicesDir string `yaml:"slicesDir"`

		// MaskSnapshot is the path of the mask snapshot, empty to skip
		MaskSnapshot string `yaml:"maskSnapshot"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default eraser parameters
	cfg.Eraser.Radius = 6
	cfg.Eraser.Depth = 6
	cfg.Eraser.NormalMode = true
	cfg.Eraser.IsoThreshold = 0.46
	cfg.Eraser.UndoIterations = 10
	cfg.Eraser.ContinuityThreshold = 0.05

	// Set default normal estimation parameters
	cfg.Normal.GaussRadius = 2
	cfg.Normal.Sigma = 1.4

	// Set default volume parameters
	cfg.Volume.Channels = 1
	cfg.Volume.PhantomSize = 64
	cfg.Volume.PhantomRadius = 24

	// Set default output parameters
	cfg.Output.SaveSlices = false
	cfg.Output.SlicesDir = "erased_slices"
	cfg.Output.MaskSnapshot = "mask.vxmk"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.Eraser.Radius <= 0 || c.Eraser.Depth <= 0 {
		return fmt.Errorf("eraser radius and depth must be positive")
	}
	if c.Eraser.IsoThreshold < 0 || c.Eraser.IsoThreshold > 1 {
		return fmt.Errorf("eraser isoThreshold %.3f outside [0,1]", c.Eraser.IsoThreshold)
	}
	if c.Volume.Channels != 1 && c.Volume.Channels != 4 {
		return fmt.Errorf("volume channels must be 1 or 4, got %d", c.Volume.Channels)
	}
	if c.Volume.Input == "" && (c.Volume.PhantomSize <= 0 || c.Volume.PhantomRadius <= 0) {
		return fmt.Errorf("phantom size and radius must be positive when no input is given")
	}
	for i, s := range c.Session.Strokes {
		if len(s.Samples) == 0 {
			return fmt.Errorf("stroke %d has no samples", i)
		}
	}
	return nil
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
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
