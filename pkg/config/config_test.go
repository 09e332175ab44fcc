package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Atlas.BaseURL == "" {
		t.Error("default baseUrl empty")
	}
	if cfg.UI.OverlayAlpha != 0.6 {
		t.Errorf("default overlayAlpha = %v, want 0.6", cfg.UI.OverlayAlpha)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("atlas:\n  defaultMarker: Gad1b\nui:\n  overlayAlpha: 0.3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Atlas.DefaultMarker != "Gad1b" {
		t.Errorf("defaultMarker = %q", cfg.Atlas.DefaultMarker)
	}
	if cfg.UI.OverlayAlpha != 0.3 {
		t.Errorf("overlayAlpha = %v, want 0.3", cfg.UI.OverlayAlpha)
	}
	// Untouched values keep their defaults.
	if cfg.Script.TimeoutSeconds != 5 {
		t.Errorf("timeoutSeconds = %d, want 5", cfg.Script.TimeoutSeconds)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  overlayAlpha: 1.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Atlas.DefaultMarker = "Elavl3-H2B-GCaMP"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Atlas.DefaultMarker != cfg.Atlas.DefaultMarker {
		t.Errorf("defaultMarker = %q, want %q", loaded.Atlas.DefaultMarker, cfg.Atlas.DefaultMarker)
	}
}
