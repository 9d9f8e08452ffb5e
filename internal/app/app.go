package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/logger"
	"crosswatch/internal/repository/sqlite"
	"crosswatch/internal/route"
	"crosswatch/internal/service"
	"crosswatch/internal/service/ai"
	"crosswatch/internal/service/identity"
	"crosswatch/internal/service/settings"
	"crosswatch/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired server.
type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	hub      *websocket.HubService
	detector *ai.Detector
	faces    *ai.FaceEngine
	handler  http.Handler
}

// NewApp loads configuration and wires every service. Missing model files
// only disable the engine that needs them.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	violations := sqlite.NewViolationRepository(db)
	settingsRepo := sqlite.NewSettingsRepository(db)

	a := &App{config: cfg, logger: log, db: db}

	var detector ai.ObjectDetector
	if d, err := ai.NewDetector(cfg.ModelPath, cfg.Policy.Detection, log); err != nil {
		log.Warning("Could not initialize detection network, streams will report no objects: %v", err)
	} else {
		a.detector = d
		detector = d
	}

	var faceEngine identity.Engine
	if f, err := ai.NewFaceEngine(cfg.FaceCascadePath, cfg.FaceEmbedderPath, log); err != nil {
		log.Warning("Could not initialize face engine, persons stay unknown: %v", err)
	} else {
		a.faces = f
		faceEngine = f
	}

	var gallery *identity.Gallery
	if faceEngine != nil {
		gallery, err = identity.LoadGallery(cfg.GalleryDirectory, faceEngine, cfg.Policy.Identity.Tolerance, log)
		if err != nil {
			log.Warning("Could not load gallery: %v", err)
		}
	}
	resolver := identity.NewResolver(faceEngine, gallery, log)

	provider := settings.NewProvider(settingsRepo, log)
	a.hub = websocket.NewHubService(log)
	manager := service.NewManager(cfg, log, provider, detector, resolver, violations, a.hub)

	a.handler = route.SetupRoutes(manager, cfg, log, violations, settingsRepo)
	return a, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.handler,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.hub.Run(ctx)
	})
	g.Go(func() error {
		a.logger.Info("Crosswatch listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Media: %s, evidence: %s", a.config.MediaRoot, a.config.EvidenceDirectory())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.faces != nil {
		a.faces.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Close()
}
