// Package storage buffers evidence frames and writes violation clips.
package storage

import (
	"fmt"
	"image"

	"crosswatch/internal/config"
	"crosswatch/internal/frame"

	"gocv.io/x/gocv"
)

// VideoClipWriter encodes clips with OpenCV at a fixed frame rate. The clip
// takes the size of its first frame; later frames of another size are resized.
type VideoClipWriter struct {
	fps   float64
	codec string
}

// NewVideoClipWriter creates a writer for the evidence policy.
func NewVideoClipWriter(policy config.EvidencePolicy) *VideoClipWriter {
	return &VideoClipWriter{fps: policy.FPS, codec: policy.Codec}
}

// Write encodes frames in order into path.
func (w *VideoClipWriter) Write(path string, frames []*frame.Context) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to write")
	}
	width, height := frames[0].Width, frames[0].Height

	vw, err := gocv.VideoWriterFile(path, w.codec, w.fps, width, height, true)
	if err != nil {
		return fmt.Errorf("failed to open video writer: %w", err)
	}
	defer vw.Close()

	resized := gocv.NewMat()
	defer resized.Close()

	for i, fc := range frames {
		img := fc.Image
		if fc.Width != width || fc.Height != height {
			gocv.Resize(fc.Image, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
			img = resized
		}
		if err := vw.Write(img); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}
	return nil
}
