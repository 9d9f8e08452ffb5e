package model

// Region is a pixel rectangle.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Settings is the single system-wide configuration row.
type Settings struct {
	ZoneBoundaryFraction float64 `json:"road_zone_x_percent"`
	SignalRegionX        int     `json:"roi_x"`
	SignalRegionY        int     `json:"roi_y"`
	SignalRegionW        int     `json:"roi_w"`
	SignalRegionH        int     `json:"roi_h"`
}

// DefaultSettings is what a fresh store starts with.
func DefaultSettings() Settings {
	return Settings{
		ZoneBoundaryFraction: 0.6,
		SignalRegionW:        100,
		SignalRegionH:        100,
	}
}

// SignalRegion returns the configured sensor rectangle.
func (s Settings) SignalRegion() Region {
	return Region{X: s.SignalRegionX, Y: s.SignalRegionY, W: s.SignalRegionW, H: s.SignalRegionH}
}
