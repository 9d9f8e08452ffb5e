package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crosswatch/internal/dto"
	"crosswatch/internal/logger"
	"crosswatch/internal/model"
	"crosswatch/internal/repository"

	"github.com/go-chi/chi/v5"
)

// reviewUpdate is the body of PATCH /api/violations/{id}.
type reviewUpdate struct {
	IsReviewed *bool `json:"is_reviewed"`
}

// ListViolationsHandler returns the filtered, paginated violation history.
func ListViolationsHandler(repo repository.ViolationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.ViolationFilters{
			Type:   model.Class(q.Get("type")),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}
		if filter.Type != "" && !filter.Type.Valid() {
			http.Error(w, "Unknown violation type", http.StatusBadRequest)
			return
		}
		if v := q.Get("reviewed"); v != "" {
			reviewed, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "Invalid reviewed filter", http.StatusBadRequest)
				return
			}
			filter.Reviewed = &reviewed
		}

		violations, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying violations: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if violations == nil {
			violations = []model.Violation{}
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting violations: %v", err)
			totalCount = len(violations)
		}

		writeJSON(w, http.StatusOK, dto.ViolationsData{
			Violations:  violations,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetViolationHandler returns one violation.
func GetViolationHandler(repo repository.ViolationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := loadViolation(w, r, repo, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, v, logger)
	}
}

// UpdateViolationHandler marks a violation as reviewed or not.
func UpdateViolationHandler(repo repository.ViolationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := loadViolation(w, r, repo, logger)
		if !ok {
			return
		}

		var body reviewUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsReviewed == nil {
			http.Error(w, "Body must contain is_reviewed", http.StatusBadRequest)
			return
		}

		if err := repo.SetReviewed(v.ID, *body.IsReviewed); err != nil {
			logger.Error("Error updating violation %d: %v", v.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		v.IsReviewed = *body.IsReviewed

		writeJSON(w, http.StatusOK, v, logger)
	}
}

// DeleteViolationHandler removes a violation and its evidence clip.
func DeleteViolationHandler(repo repository.ViolationRepository, mediaRoot string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := loadViolation(w, r, repo, logger)
		if !ok {
			return
		}

		if v.VideoFile != "" {
			if clip, ok := mediaPath(mediaRoot, v.VideoFile); ok {
				if err := os.Remove(clip); err != nil && !os.IsNotExist(err) {
					logger.Error("Failed to delete clip %s: %v", clip, err)
				}
			} else {
				logger.Warning("Refusing to delete clip outside media root: %s", v.VideoFile)
			}
		}

		if err := repo.Delete(v.ID); err != nil {
			logger.Error("Error deleting violation %d: %v", v.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted violation %d (%s)", v.ID, v.ViolatorName)
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadViolation resolves the {id} URL parameter, writing the error response when it fails.
func loadViolation(w http.ResponseWriter, r *http.Request, repo repository.ViolationRepository, logger *logger.Logger) (*model.Violation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid violation id", http.StatusBadRequest)
		return nil, false
	}

	v, err := repo.GetByID(id)
	if err != nil {
		logger.Error("Error loading violation %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if v == nil {
		http.Error(w, "Violation not found", http.StatusNotFound)
		return nil, false
	}
	return v, true
}

// mediaPath maps a media-relative path to disk, rejecting paths that escape root.
func mediaPath(root, rel string) (string, bool) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
