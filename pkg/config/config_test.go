package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Optimization.ClosingRadius != 20 {
		t.Errorf("default closing radius = %v, want 20", cfg.Optimization.ClosingRadius)
	}
	if cfg.Optimization.MinComponentSize != 8000 {
		t.Errorf("default min component size = %v, want 8000", cfg.Optimization.MinComponentSize)
	}
	if cfg.Contours.SegmentLength != 10 {
		t.Errorf("default segment length = %v, want 10", cfg.Contours.SegmentLength)
	}
	if cfg.Processing.NumWorkers < 1 {
		t.Errorf("default worker count = %d, want at least 1", cfg.Processing.NumWorkers)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Contours.Axis != DefaultConfig().Contours.Axis {
		t.Errorf("missing config did not fall back to defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "neuroatlas.yaml")
	cfg := DefaultConfig()
	cfg.Optimization.ClosingRadius = 35
	cfg.Contours.IncludeHoles = false
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got.Optimization.ClosingRadius != 35 {
		t.Errorf("loaded closing radius = %v, want 35", got.Optimization.ClosingRadius)
	}
	if got.Contours.IncludeHoles {
		t.Error("loaded includeHoles = true, want false")
	}
}
