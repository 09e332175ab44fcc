// Package config provides configuration loading for the viewer. It
// handles loading configuration from YAML files and provides default
// values for everything, so a missing config file is never an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Atlas parameters
	Atlas struct {
		// BaseURL is the atlas API endpoint serving marker stacks,
		// region masks and surface meshes.
		BaseURL string `yaml:"baseUrl"`

		// RegionVersion selects the region asset release on the API.
		RegionVersion string `yaml:"regionVersion"`

		// CacheDir is where downloaded assets are kept. Empty selects a
		// per-user cache directory.
		CacheDir string `yaml:"cacheDir"`

		// DefaultMarker is loaded on startup when non-empty.
		DefaultMarker string `yaml:"defaultMarker"`
	} `yaml:"atlas"`

	// UI tunables
	UI struct {
		// OverlayAlpha is the blend weight of region overlays on the
		// section images, in [0, 1].
		OverlayAlpha float64 `yaml:"overlayAlpha"`

		// PlaneColor is the cutting-plane tint as a hex color.
		PlaneColor string `yaml:"planeColor"`

		// ScatterSize is the ROI point diameter in pixels.
		ScatterSize int `yaml:"scatterSize"`
	} `yaml:"ui"`

	// Script parameters
	Script struct {
		// TimeoutSeconds bounds a single console evaluation.
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"script"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Atlas.BaseURL = "https://api.mapzebrain.org/media"
	cfg.Atlas.RegionVersion = "v2.0.1"
	cfg.Atlas.CacheDir = ""
	cfg.Atlas.DefaultMarker = ""

	cfg.UI.OverlayAlpha = 0.6
	cfg.UI.PlaneColor = "#ffffff"
	cfg.UI.ScatterSize = 6

	cfg.Script.TimeoutSeconds = 5

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
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
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would render garbage or hang the app.
func (c *Config) Validate() error {
	if c.UI.OverlayAlpha < 0 || c.UI.OverlayAlpha > 1 {
		return fmt.Errorf("config: overlayAlpha %v outside [0, 1]", c.UI.OverlayAlpha)
	}
	if c.UI.ScatterSize <= 0 {
		return fmt.Errorf("config: scatterSize must be positive, got %d", c.UI.ScatterSize)
	}
	if c.Script.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: script timeout must be positive, got %d", c.Script.TimeoutSeconds)
	}
	if c.Atlas.BaseURL == "" {
		return fmt.Errorf("config: atlas baseUrl must not be empty")
	}
	return nil
}

// EffectiveCacheDir resolves the asset cache directory, defaulting to a
// viewer subdirectory of the user cache.
func (c *Config) EffectiveCacheDir() (string, error) {
	if c.Atlas.CacheDir != "" {
		return c.Atlas.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving user cache dir: %w", err)
	}
	return filepath.Join(base, "mapzebrain-viewer"), nil
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
