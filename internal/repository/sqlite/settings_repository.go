package sqlite

import (
	"fmt"

	"crosswatch/internal/model"
)

// SettingsRepository implements repository.SettingsRepository for SQLite.
// The table holds at most one row, id = 1.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new SQLite settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the settings row, creating it with defaults on first use.
func (r *SettingsRepository) Load() (*model.Settings, error) {
	r.db.Lock()
	defer r.db.Unlock()

	defaults := model.DefaultSettings()
	if _, err := r.db.Conn().Exec(`
		INSERT OR IGNORE INTO settings (id, road_zone_x_percent, roi_x, roi_y, roi_w, roi_h)
		VALUES (1, ?, ?, ?, ?, ?)
	`, defaults.ZoneBoundaryFraction, defaults.SignalRegionX, defaults.SignalRegionY,
		defaults.SignalRegionW, defaults.SignalRegionH); err != nil {
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}

	var s model.Settings
	err := r.db.Conn().QueryRow(`
		SELECT road_zone_x_percent, roi_x, roi_y, roi_w, roi_h FROM settings WHERE id = 1
	`).Scan(&s.ZoneBoundaryFraction, &s.SignalRegionX, &s.SignalRegionY, &s.SignalRegionW, &s.SignalRegionH)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &s, nil
}

// Save replaces the settings row.
func (r *SettingsRepository) Save(s *model.Settings) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO settings (id, road_zone_x_percent, roi_x, roi_y, roi_w, roi_h)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			road_zone_x_percent = excluded.road_zone_x_percent,
			roi_x = excluded.roi_x,
			roi_y = excluded.roi_y,
			roi_w = excluded.roi_w,
			roi_h = excluded.roi_h
	`, s.ZoneBoundaryFraction, s.SignalRegionX, s.SignalRegionY, s.SignalRegionW, s.SignalRegionH)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
