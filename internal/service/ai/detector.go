package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"crosswatch/internal/config"
	"crosswatch/internal/logger"

	"gocv.io/x/gocv"
)

// yoloAttributes is the row count of a YOLOv8 COCO head: 4 box values and 80 class scores.
const yoloAttributes = 84

// ErrNotReady is returned when the network was not loaded.
var ErrNotReady = errors.New("detection network not initialized")

// Detection is one object found in a frame, in frame pixel coordinates.
type Detection struct {
	ClassID    int
	Confidence float32
	Box        image.Rectangle
}

// ObjectDetector finds objects of the given COCO classes in a frame.
type ObjectDetector interface {
	Detect(img gocv.Mat, classes []int) ([]Detection, error)
}

// Detector runs a YOLOv8 ONNX model. The network is shared by every
// connection and guarded by a mutex.
type Detector struct {
	mu        sync.Mutex
	net       gocv.Net
	ready     bool
	modelPath string
	policy    config.DetectionPolicy
	logger    *logger.Logger
}

// NewDetector loads the model at modelPath.
func NewDetector(modelPath string, policy config.DetectionPolicy, logger *logger.Logger) (*Detector, error) {
	d := &Detector{
		modelPath: modelPath,
		policy:    policy,
		logger:    logger,
	}

	if err := d.initializeNet(); err != nil {
		return nil, err
	}
	return d, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (d *Detector) initializeNet() error {
	if _, err := os.Stat(d.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.modelPath)
	}

	net := gocv.ReadNetFromONNX(d.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", d.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	d.net = net
	d.ready = true
	d.logger.Info("Detection network initialized from %s", d.modelPath)
	return nil
}

// Detect runs the network on img and returns detections of the allowed classes
// above the confidence threshold, after non-maximum suppression.
func (d *Detector) Detect(img gocv.Mat, classes []int) ([]Detection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("detect on empty image")
	}

	size := d.policy.InputSize
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	if !d.ready {
		d.mu.Unlock()
		return nil, ErrNotReady
	}
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	scaleX := float32(img.Cols()) / float32(size)
	scaleY := float32(img.Rows()) / float32(size)
	return decodeYOLO(data, classes, float32(d.policy.Confidence), float32(d.policy.NMSThreshold), scaleX, scaleY), nil
}

// decodeYOLO turns a [84 x N] output tensor into detections. Each column is
// cx, cy, w, h followed by one score per COCO class.
func decodeYOLO(data []float32, classes []int, confidence, nms, scaleX, scaleY float32) []Detection {
	n := len(data) / yoloAttributes
	if n == 0 {
		return nil
	}

	var (
		boxes  []image.Rectangle
		scores []float32
		ids    []int
	)
	for i := 0; i < n; i++ {
		bestClass, bestScore := -1, float32(0)
		for _, c := range classes {
			s := data[(4+c)*n+i]
			if s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestClass < 0 || bestScore < confidence {
			continue
		}

		cx, cy := data[i]*scaleX, data[n+i]*scaleY
		w, h := data[2*n+i]*scaleX, data[3*n+i]*scaleY
		boxes = append(boxes, image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)))
		scores = append(scores, bestScore)
		ids = append(ids, bestClass)
	}
	if len(boxes) == 0 {
		return nil
	}

	keep := gocv.NMSBoxes(boxes, scores, confidence, nms)
	detections := make([]Detection, 0, len(keep))
	for _, k := range keep {
		detections = append(detections, Detection{ClassID: ids[k], Confidence: scores[k], Box: boxes[k]})
	}
	return detections
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil
	}
	d.ready = false
	return d.net.Close()
}
