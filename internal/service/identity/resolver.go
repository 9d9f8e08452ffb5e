package identity

import (
	"fmt"
	"image"

	"crosswatch/internal/logger"
	"crosswatch/internal/model"

	"gocv.io/x/gocv"
)

// Result is the identity of one person crop.
type Result struct {
	FaceFound bool
	FaceBox   image.Rectangle // frame coordinates
	Label     string          // gallery label or model.UnknownName
}

// Resolver matches person crops against the gallery.
type Resolver struct {
	engine  Engine
	gallery *Gallery
	logger  *logger.Logger
}

// NewResolver creates a resolver. A nil gallery matches nobody.
func NewResolver(engine Engine, gallery *Gallery, logger *logger.Logger) *Resolver {
	if gallery == nil {
		gallery = NewGallery(0)
	}
	return &Resolver{engine: engine, gallery: gallery, logger: logger}
}

// Resolve analyzes the body box of img. Engine failures count as no face.
func (r *Resolver) Resolve(img gocv.Mat, body image.Rectangle) Result {
	unknown := Result{Label: model.UnknownName}
	if r.engine == nil || img.Empty() {
		return unknown
	}

	box := body.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if box.Empty() {
		return unknown
	}

	crop := img.Region(box)
	defer crop.Close()

	face, err := r.analyze(crop)
	if err != nil {
		r.logger.Warning("Face analysis failed: %v", err)
		return unknown
	}
	if !face.Found {
		return unknown
	}

	res := Result{
		FaceFound: true,
		FaceBox:   face.Box.Add(box.Min),
		Label:     model.UnknownName,
	}
	if label, ok := r.gallery.Match(face.Embedding); ok {
		res.Label = label
	}
	return res
}

func (r *Resolver) analyze(crop gocv.Mat) (face Face, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("face engine panic: %v", p)
		}
	}()
	return r.engine.Analyze(crop)
}
