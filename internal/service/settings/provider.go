package settings

import (
	"fmt"
	"sync"
	"sync/atomic"

	"crosswatch/internal/logger"
	"crosswatch/internal/model"
)

// Snapshot is an immutable view of the system settings. It is replaced
// wholesale on refresh and never mutated.
type Snapshot struct {
	Version              uint64
	ZoneBoundaryFraction float64
	SignalRegion         model.Region
}

// Source produces the current settings on demand.
type Source interface {
	Load() (*model.Settings, error)
}

// Provider holds the current Snapshot and refreshes it from a Source.
type Provider struct {
	source  Source
	logger  *logger.Logger
	current atomic.Pointer[Snapshot]
	version atomic.Uint64

	refreshing atomic.Bool
	wg         sync.WaitGroup
}

// NewProvider loads the first snapshot synchronously. On failure it starts from defaults.
func NewProvider(source Source, logger *logger.Logger) *Provider {
	p := &Provider{source: source, logger: logger}
	p.store(model.DefaultSettings())

	if err := p.Refresh(); err != nil {
		logger.Warning("Using default settings: %v", err)
	}
	return p
}

// Current returns the snapshot in effect. Callers keep it for a whole frame.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Refresh reads the source and swaps in a new snapshot. The old one stays in
// effect when the read fails.
func (p *Provider) Refresh() error {
	s, err := p.source.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	p.store(*s)
	return nil
}

// RefreshAsync starts a background Refresh unless one is already running.
func (p *Provider) RefreshAsync() {
	if !p.refreshing.CompareAndSwap(false, true) {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.refreshing.Store(false)
		if err := p.Refresh(); err != nil {
			p.logger.Warning("Settings refresh failed, keeping version %d: %v", p.Current().Version, err)
		}
	}()
}

// Wait blocks until in-flight background refreshes finish.
func (p *Provider) Wait() {
	p.wg.Wait()
}

func (p *Provider) store(s model.Settings) {
	p.current.Store(&Snapshot{
		Version:              p.version.Add(1),
		ZoneBoundaryFraction: s.ZoneBoundaryFraction,
		SignalRegion:         s.SignalRegion(),
	})
}
