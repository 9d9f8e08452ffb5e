package sqlite

import (
	"database/sql"
	"fmt"

	"crosswatch/internal/dto"
	"crosswatch/internal/model"
)

// ViolationRepository implements repository.ViolationRepository for SQLite.
type ViolationRepository struct {
	db *DB
}

// NewViolationRepository creates a new SQLite violation repository.
func NewViolationRepository(db *DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// Insert adds a violation record and sets its ID.
func (r *ViolationRepository) Insert(v *model.Violation) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO violations (violator_name, violation_type, timestamp, video_file, is_reviewed)
		VALUES (?, ?, ?, ?, ?)
	`, v.ViolatorName, string(v.ViolationType), v.Timestamp, v.VideoFile, v.IsReviewed)
	if err != nil {
		return 0, fmt.Errorf("failed to insert violation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	return id, nil
}

// GetByID retrieves a violation by its ID, or nil when absent.
func (r *ViolationRepository) GetByID(id int64) (*model.Violation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var v model.Violation
	var class string
	err := r.db.Conn().QueryRow(`
		SELECT id, violator_name, violation_type, timestamp, video_file, is_reviewed
		FROM violations WHERE id = ?
	`, id).Scan(&v.ID, &v.ViolatorName, &class, &v.Timestamp, &v.VideoFile, &v.IsReviewed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get violation: %w", err)
	}
	v.ViolationType = model.Class(class)
	return &v, nil
}

// GetAll retrieves violations newest first.
func (r *ViolationRepository) GetAll(filter *dto.ViolationFilters) ([]model.Violation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := violationWhere(filter)
	query := `
		SELECT id, violator_name, violation_type, timestamp, video_file, is_reviewed
		FROM violations
	` + where + " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	violations := []model.Violation{}
	for rows.Next() {
		var v model.Violation
		var class string
		if err := rows.Scan(&v.ID, &v.ViolatorName, &class, &v.Timestamp, &v.VideoFile, &v.IsReviewed); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.ViolationType = model.Class(class)
		violations = append(violations, v)
	}

	return violations, rows.Err()
}

// GetTotalCount returns the number of violations matching the filter.
func (r *ViolationRepository) GetTotalCount(filter *dto.ViolationFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := violationWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM violations`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}

// SetReviewed marks a violation as reviewed or not.
func (r *ViolationRepository) SetReviewed(id int64, reviewed bool) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`UPDATE violations SET is_reviewed = ? WHERE id = ?`, reviewed, id); err != nil {
		return fmt.Errorf("failed to update violation: %w", err)
	}
	return nil
}

// Delete removes a violation record. Its clip is the caller's to remove.
func (r *ViolationRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM violations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete violation: %w", err)
	}
	return nil
}

func violationWhere(filter *dto.ViolationFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Type != "" {
		where += " AND violation_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Reviewed != nil {
		where += " AND is_reviewed = ?"
		args = append(args, *filter.Reviewed)
	}
	return where, args
}
