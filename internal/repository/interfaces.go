package repository

import (
	"crosswatch/internal/dto"
	"crosswatch/internal/model"
)

// ViolationRepository defines the interface for violation record operations.
type ViolationRepository interface {
	// Create operations
	Insert(v *model.Violation) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Violation, error)
	GetAll(filter *dto.ViolationFilters) ([]model.Violation, error)
	GetTotalCount(filter *dto.ViolationFilters) (int, error)

	// Update operations
	SetReviewed(id int64, reviewed bool) error

	// Delete operations
	Delete(id int64) error
}

// SettingsRepository stores the single system-wide settings row.
type SettingsRepository interface {
	Load() (*model.Settings, error)
	Save(s *model.Settings) error
}
