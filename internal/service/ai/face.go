package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"crosswatch/internal/logger"
	"crosswatch/internal/service/identity"

	"gocv.io/x/gocv"
)

// openFaceInput is the square input size of the OpenFace embedder.
const openFaceInput = 96

// FaceEngine locates faces with a Haar cascade and embeds them with an
// OpenFace Torch network. It is shared and guarded by a mutex.
type FaceEngine struct {
	mu       sync.Mutex
	cascade  gocv.CascadeClassifier
	embedder gocv.Net
	logger   *logger.Logger
}

// NewFaceEngine loads the cascade and the embedding network.
func NewFaceEngine(cascadePath, embedderPath string, logger *logger.Logger) (*FaceEngine, error) {
	for _, p := range []string{cascadePath, embedderPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("face model file not found: %s", p)
		}
	}

	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(cascadePath) {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", cascadePath)
	}

	net := gocv.ReadNetFromTorch(embedderPath)
	if net.Empty() {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face embedder %s", embedderPath)
	}

	logger.Info("Face engine initialized")
	return &FaceEngine{cascade: cascade, embedder: net, logger: logger}, nil
}

// Analyze finds the largest face in img and returns its embedding.
func (e *FaceEngine) Analyze(img gocv.Mat) (identity.Face, error) {
	if img.Empty() {
		return identity.Face{}, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	e.mu.Lock()
	defer e.mu.Unlock()

	rects := e.cascade.DetectMultiScale(gray)
	if len(rects) == 0 {
		return identity.Face{}, nil
	}

	box := rects[0]
	for _, r := range rects[1:] {
		if area(r) > area(box) {
			box = r
		}
	}

	face := img.Region(box)
	defer face.Close()

	blob := gocv.BlobFromImage(face, 1.0/255.0, image.Pt(openFaceInput, openFaceInput), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.embedder.SetInput(blob, "")
	out := e.embedder.Forward("")
	defer out.Close()

	vec, err := out.DataPtrFloat32()
	if err != nil {
		return identity.Face{}, fmt.Errorf("failed to read embedding: %w", err)
	}

	embedding := make([]float64, len(vec))
	for i, v := range vec {
		embedding[i] = float64(v)
	}
	return identity.Face{Found: true, Box: box, Embedding: embedding}, nil
}

// Close releases the native resources.
func (e *FaceEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cascade.Close()
	return e.embedder.Close()
}
