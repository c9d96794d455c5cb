// Package config handles configuration loading for the overlay server.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gt-overlay/server/pkg/colorramp"
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Render    RenderConfig    `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CatalogConfig selects and locates the raster catalog backend.
type CatalogConfig struct {
	Backend string `yaml:"backend"` // "fs" (default) or "tiledb"
	Root    string `yaml:"root"`
}

// AnalyticsConfig controls the working grid resolution used by
// extent-mode breaks, render, and histogram requests (Open Question 1:
// this is the configurable replacement for a hardcoded 256x256 grid).
type AnalyticsConfig struct {
	GridSize int `yaml:"grid_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	TileSize         int    `yaml:"tile_size"`
	DefaultColorRamp string `yaml:"default_color_ramp"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Catalog: CatalogConfig{
			Backend: "fs",
			Root:    "./data/catalog",
		},
		Analytics: AnalyticsConfig{
			GridSize: 256,
		},
		Render: RenderConfig{
			TileSize:         256,
			DefaultColorRamp: colorramp.Default,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Catalog.Backend == "" {
		cfg.Catalog.Backend = defaults.Catalog.Backend
	}
	if cfg.Catalog.Root == "" {
		cfg.Catalog.Root = defaults.Catalog.Root
	}
	if cfg.Analytics.GridSize == 0 {
		cfg.Analytics.GridSize = defaults.Analytics.GridSize
	}
	if cfg.Render.TileSize == 0 {
		cfg.Render.TileSize = defaults.Render.TileSize
	}
	if cfg.Render.DefaultColorRamp == "" {
		cfg.Render.DefaultColorRamp = defaults.Render.DefaultColorRamp
	}
}
