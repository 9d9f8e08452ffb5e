package route

import (
	"net/http"
	"os"
	"path/filepath"

	"crosswatch/internal/config"
	"crosswatch/internal/handler"
	"crosswatch/internal/logger"
	"crosswatch/internal/middleware"
	"crosswatch/internal/repository"
	"crosswatch/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the streaming endpoints, the REST API, media and log
// serving, and wraps everything with the authentication middleware.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	violations repository.ViolationRepository, settingsRepo repository.SettingsRepository) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(middleware.Auth(cfg.Password))

	// Static files and evidence clips
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaRoot))))

	// Streaming
	r.Get("/ws/recognition", handler.RecognitionWebsocketHandler(manager, logger))
	r.Get("/api/view", handler.ViewWebsocketHandler(manager, logger))

	// API endpoints
	r.Route("/api/violations", func(r chi.Router) {
		r.Get("/", handler.ListViolationsHandler(violations, logger))
		r.Get("/{id}", handler.GetViolationHandler(violations, logger))
		r.Patch("/{id}", handler.UpdateViolationHandler(violations, logger))
		r.Delete("/{id}", handler.DeleteViolationHandler(violations, cfg.MediaRoot, logger))
	})
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/", handler.GetSettingsHandler(settingsRepo, logger))
		r.Post("/", handler.UpdateSettingsHandler(settingsRepo, manager.Settings(), logger))
		r.Put("/", handler.UpdateSettingsHandler(settingsRepo, manager.Settings(), logger))
	})

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth endpoints
	r.Post("/auth/login", handler.LoginHandler(cfg, logger))
	r.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	r.NotFound(dynamicHTMLHandler)

	return r
}
