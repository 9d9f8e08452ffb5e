package ai

import (
	"image"
	"sort"

	"crosswatch/internal/config"

	"gocv.io/x/gocv"
)

// Track is a detection with a stable identity. ID is zero when the tracker
// could not assign one.
type Track struct {
	ID      int
	ClassID int
	Box     image.Rectangle
}

type trackState struct {
	id      int
	classID int
	box     image.Rectangle
	missed  int
}

// Tracker associates detections across frames by greedy same-class IoU
// matching. IDs increase monotonically and are never reused. A Tracker
// belongs to one connection and is not safe for concurrent use.
type Tracker struct {
	nextID    int
	tracks    []*trackState
	minIoU    float64
	maxMissed int
}

// NewTracker creates an empty tracker.
func NewTracker(policy config.DetectionPolicy) *Tracker {
	return &Tracker{
		nextID:    1,
		minIoU:    policy.MinIoU,
		maxMissed: policy.MaxMissedFrames,
	}
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

type candidate struct {
	track, det int
	iou        float64
}

// Update matches dets against live tracks and returns one Track per detection
// in detection order.
func (t *Tracker) Update(dets []Detection) []Track {
	var pairs []candidate
	for ti, tr := range t.tracks {
		for di, d := range dets {
			if tr.classID != d.ClassID {
				continue
			}
			if iou := IoU(tr.box, d.Box); iou >= t.minIoU {
				pairs = append(pairs, candidate{track: ti, det: di, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].iou > pairs[j].iou })

	trackUsed := make([]bool, len(t.tracks))
	assigned := make([]*trackState, len(dets))
	for _, p := range pairs {
		if trackUsed[p.track] || assigned[p.det] != nil {
			continue
		}
		trackUsed[p.track] = true
		assigned[p.det] = t.tracks[p.track]
	}

	alive := t.tracks[:0]
	for ti, tr := range t.tracks {
		if !trackUsed[ti] {
			tr.missed++
			if tr.missed > t.maxMissed {
				continue
			}
		}
		alive = append(alive, tr)
	}
	t.tracks = alive

	out := make([]Track, len(dets))
	for di, d := range dets {
		tr := assigned[di]
		if tr == nil {
			tr = &trackState{id: t.nextID, classID: d.ClassID}
			t.nextID++
			t.tracks = append(t.tracks, tr)
		}
		tr.box = d.Box
		tr.missed = 0
		out[di] = Track{ID: tr.id, ClassID: d.ClassID, Box: d.Box}
	}
	return out
}

// Len returns the number of live tracks, including ones currently missed.
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// TrackEngine pairs a shared detector with a per-connection tracker.
type TrackEngine struct {
	detector ObjectDetector
	tracker  *Tracker
}

// NewTrackEngine creates a tracking engine for one connection.
func NewTrackEngine(detector ObjectDetector, policy config.DetectionPolicy) *TrackEngine {
	return &TrackEngine{detector: detector, tracker: NewTracker(policy)}
}

// Track detects objects of the given classes and assigns track ids.
func (e *TrackEngine) Track(img gocv.Mat, classes []int) ([]Track, error) {
	dets, err := e.detector.Detect(img, classes)
	if err != nil {
		return nil, err
	}
	return e.tracker.Update(dets), nil
}
