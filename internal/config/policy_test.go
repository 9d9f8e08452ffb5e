package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPolicy_MissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	if policy.Signal.MinPixels != 50 {
		t.Errorf("Expected min pixels 50, got %d", policy.Signal.MinPixels)
	}
	if policy.Violation.Dwell() != 5*time.Second {
		t.Errorf("Expected 5s dwell, got %v", policy.Violation.Dwell())
	}
	if len(policy.Signal.Red) != 2 {
		t.Errorf("Expected two red bands, got %d", len(policy.Signal.Red))
	}
	if policy.Evidence.FPS != 5 {
		t.Errorf("Expected 5 fps clips, got %v", policy.Evidence.FPS)
	}
}

func TestLoadPolicy_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	content := `
[signal]
min_pixels = 120

[violation]
dwell_seconds = 7.5

[evidence]
codec = "mp4v"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}

	if policy.Signal.MinPixels != 120 {
		t.Errorf("Expected min pixels 120, got %d", policy.Signal.MinPixels)
	}
	if policy.Violation.Dwell() != 7500*time.Millisecond {
		t.Errorf("Expected 7.5s dwell, got %v", policy.Violation.Dwell())
	}
	if policy.Evidence.Codec != "mp4v" {
		t.Errorf("Expected codec mp4v, got %s", policy.Evidence.Codec)
	}
	// Untouched sections keep their defaults.
	if policy.Signal.Green.Lower[0] != 40 {
		t.Errorf("Expected default green band, got %v", policy.Signal.Green)
	}
	if policy.Violation.MaxBufferedFrames != 900 {
		t.Errorf("Expected default buffer cap, got %d", policy.Violation.MaxBufferedFrames)
	}
}

func TestLoadPolicy_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero dwell", "[violation]\ndwell_seconds = 0.0\n"},
		{"bad codec", "[evidence]\ncodec = \"h264x\"\n"},
		{"negative pixels", "[signal]\nmin_pixels = -1\n"},
		{"broken toml", "[signal\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write policy: %v", err)
			}
			if _, err := LoadPolicy(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PORT", "9090")
	t.Setenv("MEDIA_ROOT", dir)
	t.Setenv("POLICY_PATH", filepath.Join(dir, "none.toml"))
	t.Setenv("SETTINGS_REFRESH_FRAMES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.SettingsRefreshEvery != 30 {
		t.Errorf("Expected fallback refresh interval 30, got %d", cfg.SettingsRefreshEvery)
	}
	if cfg.EvidenceDirectory() != filepath.Join(dir, "violations") {
		t.Errorf("Unexpected evidence directory %s", cfg.EvidenceDirectory())
	}
}
