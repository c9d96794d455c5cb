package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Overrides(t *testing.T) {
	content := `
server:
  port: 9000
  cors_origins:
    - "https://maps.example.com"
catalog:
  backend: tiledb
  root: "/data/gt-catalog"
analytics:
  grid_size: 512
render:
  tile_size: 512
  default_color_ramp: viridis
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://maps.example.com" {
		t.Errorf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Catalog.Backend != "tiledb" || cfg.Catalog.Root != "/data/gt-catalog" {
		t.Errorf("unexpected catalog config: %+v", cfg.Catalog)
	}
	if cfg.Analytics.GridSize != 512 {
		t.Errorf("expected grid size 512, got %d", cfg.Analytics.GridSize)
	}
	if cfg.Render.TileSize != 512 || cfg.Render.DefaultColorRamp != "viridis" {
		t.Errorf("unexpected render config: %+v", cfg.Render)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Catalog.Backend != "fs" {
		t.Errorf("expected default catalog backend fs, got %q", cfg.Catalog.Backend)
	}
	if cfg.Analytics.GridSize != 256 {
		t.Errorf("expected default grid size 256, got %d", cfg.Analytics.GridSize)
	}
	if cfg.Render.TileSize != 256 {
		t.Errorf("expected default tile size 256, got %d", cfg.Render.TileSize)
	}
	if cfg.Render.DefaultColorRamp != "blue-to-red" {
		t.Errorf("expected default color ramp blue-to-red, got %q", cfg.Render.DefaultColorRamp)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default config, got %+v", cfg)
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
