package dto

import (
	"fmt"

	"crosswatch/internal/model"
)

// SettingsUpdate is a partial settings change; nil fields are left untouched.
type SettingsUpdate struct {
	ZoneBoundaryFraction *float64 `json:"road_zone_x_percent"`
	SignalRegionX        *float64 `json:"roi_x"`
	SignalRegionY        *float64 `json:"roi_y"`
	SignalRegionW        *float64 `json:"roi_w"`
	SignalRegionH        *float64 `json:"roi_h"`
}

// Apply returns current with the update applied, or an error when a value is out of range.
func (u SettingsUpdate) Apply(current model.Settings) (model.Settings, error) {
	next := current
	if u.ZoneBoundaryFraction != nil {
		f := *u.ZoneBoundaryFraction
		if f < 0 || f > 1 {
			return current, fmt.Errorf("road_zone_x_percent must be in [0,1], got %v", f)
		}
		next.ZoneBoundaryFraction = f
	}

	fields := []struct {
		name  string
		value *float64
		dst   *int
	}{
		{"roi_x", u.SignalRegionX, &next.SignalRegionX},
		{"roi_y", u.SignalRegionY, &next.SignalRegionY},
		{"roi_w", u.SignalRegionW, &next.SignalRegionW},
		{"roi_h", u.SignalRegionH, &next.SignalRegionH},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if *f.value < 0 {
			return current, fmt.Errorf("%s must be >= 0, got %v", f.name, *f.value)
		}
		*f.dst = int(*f.value)
	}
	return next, nil
}
