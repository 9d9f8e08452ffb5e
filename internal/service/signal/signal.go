// Package signal estimates the traffic-light state from a sensor region of the frame.
package signal

import (
	"image"

	"crosswatch/internal/config"
	"crosswatch/internal/model"

	"gocv.io/x/gocv"
)

// State is the estimated traffic-light color.
type State int

const (
	Green State = iota
	Red
)

// String returns the wire form of the state.
func (s State) String() string {
	if s == Red {
		return "RED"
	}
	return "GREEN"
}

// Counts holds matched pixel counts inside the sensor region.
type Counts struct {
	Red   int
	Green int
}

// ClampRegion fits r into a width x height frame. The result is never empty
// for a non-empty frame.
func ClampRegion(r model.Region, width, height int) image.Rectangle {
	x := clamp(r.X, 0, width-1)
	y := clamp(r.Y, 0, height-1)
	w := clamp(r.W, 1, width-x)
	h := clamp(r.H, 1, height-y)
	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Decide applies the majority rule. Ties and weak evidence keep prev.
func Decide(c Counts, prev State, minPixels int) State {
	switch {
	case c.Red > c.Green && c.Red > minPixels:
		return Red
	case c.Green > c.Red && c.Green > minPixels:
		return Green
	default:
		return prev
	}
}

// Estimator counts HSV band matches. It is stateless and safe for concurrent use.
type Estimator struct {
	policy config.SignalPolicy
}

// NewEstimator creates an estimator for the given color bands.
func NewEstimator(policy config.SignalPolicy) *Estimator {
	return &Estimator{policy: policy}
}

// Count returns the red and green pixel counts inside rect.
func (e *Estimator) Count(img gocv.Mat, rect image.Rectangle) Counts {
	if img.Empty() || rect.Empty() {
		return Counts{}
	}

	roi := img.Region(rect)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	green := gocv.NewMat()
	defer green.Close()
	inBand(hsv, e.policy.Green, &green)

	red := gocv.Zeros(hsv.Rows(), hsv.Cols(), gocv.MatTypeCV8UC1)
	defer red.Close()
	for _, band := range e.policy.Red {
		part := gocv.NewMat()
		inBand(hsv, band, &part)
		gocv.BitwiseOr(red, part, &red)
		part.Close()
	}

	return Counts{
		Red:   gocv.CountNonZero(red),
		Green: gocv.CountNonZero(green),
	}
}

// Estimate counts the region and applies Decide against prev.
func (e *Estimator) Estimate(img gocv.Mat, rect image.Rectangle, prev State) (State, Counts) {
	c := e.Count(img, rect)
	return Decide(c, prev, e.policy.MinPixels), c
}

func inBand(hsv gocv.Mat, band config.HSVBand, dst *gocv.Mat) {
	lo := gocv.NewScalar(band.Lower[0], band.Lower[1], band.Lower[2], 0)
	hi := gocv.NewScalar(band.Upper[0], band.Upper[1], band.Upper[2], 0)
	gocv.InRangeWithScalar(hsv, lo, hi, dst)
}
