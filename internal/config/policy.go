package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// HSVBand is an inclusive OpenCV HSV range (H in [0,180], S and V in [0,255]).
type HSVBand struct {
	Lower [3]float64 `toml:"lower"`
	Upper [3]float64 `toml:"upper"`
}

// SignalPolicy tunes the traffic-light color classifier.
type SignalPolicy struct {
	MinPixels int       `toml:"min_pixels"`
	Green     HSVBand   `toml:"green"`
	Red       []HSVBand `toml:"red"` // red wraps the hue origin, so it is a union of bands
}

// ViolationPolicy tunes the per-track state machine.
type ViolationPolicy struct {
	DwellSeconds      float64 `toml:"dwell_seconds"`
	MaxBufferedFrames int     `toml:"max_buffered_frames"`
}

// Dwell returns the confirmation threshold as a duration.
func (p ViolationPolicy) Dwell() time.Duration {
	return time.Duration(p.DwellSeconds * float64(time.Second))
}

// EvidencePolicy controls clip encoding.
type EvidencePolicy struct {
	FPS   float64 `toml:"fps"`
	Codec string  `toml:"codec"`
}

// DetectionPolicy tunes the detector and the IoU tracker.
type DetectionPolicy struct {
	Confidence      float64 `toml:"confidence"`
	NMSThreshold    float64 `toml:"nms_threshold"`
	InputSize       int     `toml:"input_size"`
	MinIoU          float64 `toml:"min_iou"`
	MaxMissedFrames int     `toml:"max_missed_frames"`
}

// IdentityPolicy tunes face matching.
type IdentityPolicy struct {
	Tolerance float64 `toml:"tolerance"`
}

// Policy groups every tunable threshold of the pipeline.
type Policy struct {
	Signal    SignalPolicy    `toml:"signal"`
	Violation ViolationPolicy `toml:"violation"`
	Evidence  EvidencePolicy  `toml:"evidence"`
	Detection DetectionPolicy `toml:"detection"`
	Identity  IdentityPolicy  `toml:"identity"`
}

// DefaultPolicy returns the thresholds the monitor ships with.
func DefaultPolicy() Policy {
	return Policy{
		Signal: SignalPolicy{
			MinPixels: 50,
			Green:     HSVBand{Lower: [3]float64{40, 40, 40}, Upper: [3]float64{80, 255, 255}},
			Red: []HSVBand{
				{Lower: [3]float64{0, 50, 50}, Upper: [3]float64{10, 255, 255}},
				{Lower: [3]float64{170, 50, 50}, Upper: [3]float64{180, 255, 255}},
			},
		},
		Violation: ViolationPolicy{
			DwellSeconds:      5,
			MaxBufferedFrames: 900,
		},
		Evidence: EvidencePolicy{
			FPS:   5,
			Codec: "avc1",
		},
		Detection: DetectionPolicy{
			Confidence:      0.45,
			NMSThreshold:    0.5,
			InputSize:       640,
			MinIoU:          0.3,
			MaxMissedFrames: 15,
		},
		Identity: IdentityPolicy{
			Tolerance: 0.6,
		},
	}
}

// LoadPolicy overlays the TOML file at path on DefaultPolicy. A missing file is not an error.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return policy, nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := toml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return policy, nil
}

// Validate rejects thresholds the pipeline cannot run with.
func (p Policy) Validate() error {
	if p.Signal.MinPixels < 0 {
		return fmt.Errorf("signal.min_pixels must be >= 0, got %d", p.Signal.MinPixels)
	}
	if len(p.Signal.Red) == 0 {
		return errors.New("signal.red needs at least one band")
	}
	bands := append([]HSVBand{p.Signal.Green}, p.Signal.Red...)
	for _, b := range bands {
		for i := 0; i < 3; i++ {
			if b.Lower[i] > b.Upper[i] {
				return fmt.Errorf("hsv band %v..%v is inverted", b.Lower, b.Upper)
			}
		}
	}
	if p.Violation.DwellSeconds <= 0 {
		return fmt.Errorf("violation.dwell_seconds must be > 0, got %v", p.Violation.DwellSeconds)
	}
	if p.Violation.MaxBufferedFrames <= 0 {
		return fmt.Errorf("violation.max_buffered_frames must be > 0, got %d", p.Violation.MaxBufferedFrames)
	}
	if p.Evidence.FPS <= 0 {
		return fmt.Errorf("evidence.fps must be > 0, got %v", p.Evidence.FPS)
	}
	if len(p.Evidence.Codec) != 4 {
		return fmt.Errorf("evidence.codec must be a fourcc, got %q", p.Evidence.Codec)
	}
	if p.Detection.InputSize <= 0 {
		return fmt.Errorf("detection.input_size must be > 0, got %d", p.Detection.InputSize)
	}
	return nil
}
