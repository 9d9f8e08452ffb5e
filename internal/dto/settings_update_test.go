package dto

import (
	"encoding/json"
	"testing"

	"crosswatch/internal/model"
)

func TestSettingsUpdate_PartialApply(t *testing.T) {
	var update SettingsUpdate
	if err := json.Unmarshal([]byte(`{"road_zone_x_percent": 0.625, "roi_w": 40}`), &update); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	next, err := update.Apply(model.DefaultSettings())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if next.ZoneBoundaryFraction != 0.625 {
		t.Errorf("Expected fraction 0.625, got %v", next.ZoneBoundaryFraction)
	}
	if next.SignalRegionW != 40 {
		t.Errorf("Expected roi_w 40, got %d", next.SignalRegionW)
	}
	if next.SignalRegionH != 100 {
		t.Errorf("Expected untouched roi_h 100, got %d", next.SignalRegionH)
	}
}

func TestSettingsUpdate_RejectsOutOfRange(t *testing.T) {
	tooFar := 1.5
	negative := -3.0

	tests := []struct {
		name   string
		update SettingsUpdate
	}{
		{"fraction above one", SettingsUpdate{ZoneBoundaryFraction: &tooFar}},
		{"negative region", SettingsUpdate{SignalRegionX: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := model.DefaultSettings()
			got, err := tt.update.Apply(current)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if got != current {
				t.Errorf("Expected settings unchanged on error, got %+v", got)
			}
		})
	}
}
