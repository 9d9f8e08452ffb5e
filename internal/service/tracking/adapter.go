// Package tracking normalizes tracking engine output into per-frame objects.
package tracking

import (
	"image"

	"crosswatch/internal/logger"
	"crosswatch/internal/model"
	"crosswatch/internal/service/ai"

	"gocv.io/x/gocv"
)

// Engine detects and tracks objects of the given COCO classes.
type Engine interface {
	Track(img gocv.Mat, classes []int) ([]ai.Track, error)
}

// Object is one tracked object on the current frame.
type Object struct {
	TrackID int
	Class   model.Class
	Box     image.Rectangle
	CenterX float64
}

// Adapter wraps an Engine for one connection.
type Adapter struct {
	engine  Engine
	classes []int
	logger  *logger.Logger
}

// NewAdapter creates an adapter restricted to the monitored classes. A nil
// engine yields no objects.
func NewAdapter(engine Engine, logger *logger.Logger) *Adapter {
	return &Adapter{
		engine:  engine,
		classes: model.MonitoredCOCOClasses,
		logger:  logger,
	}
}

// Objects returns the tracked objects of img. Returns nothing when the engine
// fails or does not assign identities.
func (a *Adapter) Objects(img gocv.Mat) []Object {
	if a.engine == nil {
		return nil
	}

	tracks, err := a.engine.Track(img, a.classes)
	if err != nil {
		a.logger.Warning("Tracking failed: %v", err)
		return nil
	}

	for _, t := range tracks {
		if t.ID == 0 {
			return nil
		}
	}

	objects := make([]Object, 0, len(tracks))
	for _, t := range tracks {
		class := model.ClassFromCOCO(t.ClassID)
		if !class.Valid() {
			continue
		}
		objects = append(objects, Object{
			TrackID: t.ID,
			Class:   class,
			Box:     t.Box,
			CenterX: float64(t.Box.Min.X+t.Box.Max.X) / 2,
		})
	}
	return objects
}
