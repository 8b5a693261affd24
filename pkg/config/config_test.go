package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Coregistration.Iterations != 5 {
		t.Errorf("expected 5 default iterations, got %d", cfg.Coregistration.Iterations)
	}
	if cfg.Coregistration.Cores < 1 {
		t.Errorf("expected at least 1 core, got %d", cfg.Coregistration.Cores)
	}
	if !math.IsNaN(cfg.Masking.ZMax) || !math.IsNaN(cfg.Masking.ZMin) || !math.IsNaN(cfg.Masking.ResMax) {
		t.Errorf("masking thresholds should default to disabled (NaN)")
	}
	if cfg.Fill.Enabled {
		t.Errorf("void filling should default to off")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Coregistration.Iterations != 5 {
		t.Errorf("expected defaults for missing file, got %d iterations", cfg.Coregistration.Iterations)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	content := `
coregistration:
  iterations: 8
masking:
  zmax: 3000
fill:
  enabled: true
  neighbors: 4
output:
  verbose: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Coregistration.Iterations != 8 {
		t.Errorf("iterations: expected 8, got %d", cfg.Coregistration.Iterations)
	}
	if cfg.Masking.ZMax != 3000 {
		t.Errorf("zmax: expected 3000, got %f", cfg.Masking.ZMax)
	}
	if !math.IsNaN(cfg.Masking.ZMin) {
		t.Errorf("zmin not in file should stay disabled, got %f", cfg.Masking.ZMin)
	}
	if !cfg.Fill.Enabled || cfg.Fill.Neighbors != 4 {
		t.Errorf("fill section not applied: %+v", cfg.Fill)
	}
	if cfg.Output.Verbose {
		t.Errorf("verbose should be overridden to false")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	content := "coregistration:\n  iterations: 0\n"
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected validation error for zero iterations")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Coregistration.Iterations = 7
	cfg.Masking.ZMax = 2500

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Coregistration.Iterations != 7 {
		t.Errorf("iterations: expected 7, got %d", loaded.Coregistration.Iterations)
	}
	if loaded.Masking.ZMax != 2500 {
		t.Errorf("zmax: expected 2500, got %f", loaded.Masking.ZMax)
	}
	if !math.IsNaN(loaded.Masking.ZMin) {
		t.Errorf("zmin should round-trip as NaN, got %f", loaded.Masking.ZMin)
	}
}
