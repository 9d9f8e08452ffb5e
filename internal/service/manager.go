package service

import (
	"sync"

	"crosswatch/internal/config"
	"crosswatch/internal/logger"
	"crosswatch/internal/repository"
	"crosswatch/internal/service/ai"
	"crosswatch/internal/service/identity"
	"crosswatch/internal/service/pipeline"
	"crosswatch/internal/service/settings"
	"crosswatch/internal/service/signal"
	"crosswatch/internal/service/storage"
	"crosswatch/internal/service/tracking"
	"crosswatch/internal/service/websocket"

	"github.com/google/uuid"
)

// Manager owns the engines shared by all connections and creates one
// pipeline session per connection.
type Manager struct {
	cfg        *config.Config
	logger     *logger.Logger
	settings   *settings.Provider
	estimator  *signal.Estimator
	detector   ai.ObjectDetector
	resolver   *identity.Resolver
	writer     storage.ClipWriter
	violations repository.ViolationRepository
	hub        *websocket.HubService

	sessions map[string]*pipeline.Session
	mu       sync.Mutex
}

// NewManager wires the shared services. detector may be nil when no model is available.
func NewManager(cfg *config.Config, logger *logger.Logger, provider *settings.Provider, detector ai.ObjectDetector,
	resolver *identity.Resolver, violations repository.ViolationRepository, hub *websocket.HubService) *Manager {
	return &Manager{
		cfg:        cfg,
		logger:     logger,
		settings:   provider,
		estimator:  signal.NewEstimator(cfg.Policy.Signal),
		detector:   detector,
		resolver:   resolver,
		writer:     storage.NewVideoClipWriter(cfg.Policy.Evidence),
		violations: violations,
		hub:        hub,
		sessions:   make(map[string]*pipeline.Session),
	}
}

// NewSession creates and registers the pipeline of a new connection.
func (m *Manager) NewSession() *pipeline.Session {
	var engine tracking.Engine
	if m.detector != nil {
		engine = ai.NewTrackEngine(m.detector, m.cfg.Policy.Detection)
	}

	id := uuid.NewString()
	recorder := storage.NewRecorder(m.cfg.EvidenceDirectory(), m.cfg.Policy.Violation.MaxBufferedFrames,
		m.writer, m.violations, m.hub, m.logger)

	session := pipeline.NewSession(pipeline.Options{
		ID:           id,
		Settings:     m.settings,
		Estimator:    m.estimator,
		Tracker:      engine,
		Resolver:     m.resolver,
		Recorder:     recorder,
		Policy:       m.cfg.Policy,
		RefreshEvery: m.cfg.SettingsRefreshEvery,
		Logger:       m.logger,
	})

	m.mu.Lock()
	m.sessions[id] = session
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("Stream %s connected. Active streams: %d", id, total)
	return session
}

// CloseSession drops the session state and waits for its evidence writes.
func (m *Manager) CloseSession(session *pipeline.Session) {
	m.mu.Lock()
	delete(m.sessions, session.ID())
	total := len(m.sessions)
	m.mu.Unlock()

	session.Close()
	m.logger.Info("Stream %s disconnected. Active streams: %d", session.ID(), total)
}

// SessionCount returns the number of live streams.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// GetWebsocketService returns the viewer hub.
func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.hub
}

// Settings returns the settings provider.
func (m *Manager) Settings() *settings.Provider {
	return m.settings
}
