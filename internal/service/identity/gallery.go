// Package identity resolves display names for person tracks from a gallery of known faces.
package identity

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"crosswatch/internal/logger"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Face is what an Engine finds in an image.
type Face struct {
	Found     bool
	Box       image.Rectangle // in the coordinates of the analyzed image
	Embedding []float64
}

// Engine locates a face and extracts its embedding. Implementations must not
// keep img after returning.
type Engine interface {
	Analyze(img gocv.Mat) (Face, error)
}

// Entry is one known identity.
type Entry struct {
	Label     string
	Embedding []float64
}

// Gallery holds known embeddings in load order. It is read-only after load.
type Gallery struct {
	entries   []Entry
	tolerance float64
}

// NewGallery builds a gallery from entries.
func NewGallery(tolerance float64, entries ...Entry) *Gallery {
	return &Gallery{entries: entries, tolerance: tolerance}
}

// LoadGallery reads one reference image per identity from dir. The label is
// the filename without extension. Files that cannot be read or have no face
// are skipped.
func LoadGallery(dir string, engine Engine, tolerance float64, logger *logger.Logger) (*Gallery, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create gallery directory: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory: %w", err)
	}

	g := NewGallery(tolerance)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(dir, f.Name())
		label := strings.TrimSuffix(f.Name(), filepath.Ext(f.Name()))

		face, err := analyzeFile(engine, path)
		if err != nil {
			logger.Warning("Skipping gallery file %s: %v", f.Name(), err)
			continue
		}
		if !face.Found || len(face.Embedding) == 0 {
			logger.Warning("Skipping gallery file %s: no face found", f.Name())
			continue
		}

		g.entries = append(g.entries, Entry{Label: label, Embedding: face.Embedding})
		logger.Info("Loaded known face: %s", label)
	}

	logger.Info("Gallery loaded with %d identities from %s", len(g.entries), dir)
	return g, nil
}

func analyzeFile(engine Engine, path string) (face Face, err error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return Face{}, fmt.Errorf("not a readable image")
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("face engine panic: %v", r)
		}
	}()
	return engine.Analyze(img)
}

// Match returns the label of the first entry within tolerance of embedding.
func (g *Gallery) Match(embedding []float64) (string, bool) {
	for _, e := range g.entries {
		if len(e.Embedding) != len(embedding) {
			continue
		}
		if floats.Distance(e.Embedding, embedding, 2) <= g.tolerance {
			return e.Label, true
		}
	}
	return "", false
}

// Len returns the number of known identities.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// Labels returns the known labels in load order.
func (g *Gallery) Labels() []string {
	labels := make([]string, len(g.entries))
	for i, e := range g.entries {
		labels[i] = e.Label
	}
	return labels
}
