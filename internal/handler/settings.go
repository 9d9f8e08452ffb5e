package handler

import (
	"encoding/json"
	"net/http"

	"crosswatch/internal/dto"
	"crosswatch/internal/logger"
	"crosswatch/internal/repository"
	"crosswatch/internal/service/settings"
)

// GetSettingsHandler returns the stored system settings.
func GetSettingsHandler(repo repository.SettingsRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := repo.Load()
		if err != nil {
			logger.Error("Error loading settings: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, s, logger)
	}
}

// UpdateSettingsHandler applies a partial settings update and refreshes the
// snapshot used by new frames.
func UpdateSettingsHandler(repo repository.SettingsRepository, provider *settings.Provider, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update dto.SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		current, err := repo.Load()
		if err != nil {
			logger.Error("Error loading settings: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		next, err := update.Apply(*current)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := repo.Save(&next); err != nil {
			logger.Error("Error saving settings: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if provider != nil {
			if err := provider.Refresh(); err != nil {
				logger.Warning("Settings saved but not reloaded: %v", err)
			}
		}

		logger.Info("Settings updated: %+v", next)
		writeJSON(w, http.StatusOK, next, logger)
	}
}
