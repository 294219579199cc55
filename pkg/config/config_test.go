package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Processing.NumCores < 1 {
		t.Errorf("expected at least one core, got %d", cfg.Processing.NumCores)
	}
	if cfg.Processing.MediumVelocity != 0.168 {
		t.Errorf("expected default velocity 0.168, got %g", cfg.Processing.MediumVelocity)
	}
	if cfg.Geolocation.DEMMaxDistance != 50 {
		t.Errorf("expected DEM max distance 50, got %g", cfg.Geolocation.DEMMaxDistance)
	}
	if cfg.Output.JPEGQuality != 90 {
		t.Errorf("expected JPEG quality 90, got %d", cfg.Output.JPEGQuality)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Processing.MediumVelocity != 0.168 {
		t.Errorf("defaults not applied: %g", cfg.Processing.MediumVelocity)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `processing:
  numCores: 2
  mediumVelocity: 0.1
  mergeGap: 10 min
geolocation:
  targetCRS: EPSG:25832
output:
  renderImages: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Processing.NumCores != 2 || cfg.Processing.MediumVelocity != 0.1 {
		t.Errorf("processing overrides lost: %+v", cfg.Processing)
	}
	if cfg.Geolocation.TargetCRS != "EPSG:25832" {
		t.Errorf("geolocation override lost: %+v", cfg.Geolocation)
	}
	// Untouched keys keep their defaults.
	if cfg.Output.JPEGQuality != 90 {
		t.Errorf("default JPEG quality lost: %d", cfg.Output.JPEGQuality)
	}
	if !cfg.Output.RenderImages {
		t.Error("renderImages override lost")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Processing.MergeGap = "5 min"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	back, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if back.Processing.MergeGap != "5 min" {
		t.Errorf("round trip lost mergeGap: %q", back.Processing.MergeGap)
	}
}

func TestParseGapThreshold(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "10 min", want: 10 * time.Minute},
		{in: "10min", want: 10 * time.Minute},
		{in: "90s", want: 90 * time.Second},
		{in: "1.5 h", want: 90 * time.Minute},
		{in: "45 seconds", want: 45 * time.Second},
		{in: "7", want: 7 * time.Minute}, // unit defaults to minutes
		{in: "", wantErr: true},
		{in: "ten min", wantErr: true},
		{in: "10 fortnights", wantErr: true},
		{in: "-5 min", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseGapThreshold(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
