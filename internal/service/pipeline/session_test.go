package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"sync"
	"testing"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/dto"
	"crosswatch/internal/frame"
	"crosswatch/internal/logger"
	"crosswatch/internal/model"
	"crosswatch/internal/service/ai"
	"crosswatch/internal/service/identity"
	"crosswatch/internal/service/settings"
	"crosswatch/internal/service/signal"
	"crosswatch/internal/service/storage"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

// ========================================
// Test Fakes
// ========================================

type fixedSettings struct {
	snap      *settings.Snapshot
	refreshes int
}

func (f *fixedSettings) Current() *settings.Snapshot { return f.snap }
func (f *fixedSettings) RefreshAsync() { f.refreshes++ }

type scriptedTracker struct {
	tracks []ai.Track
}

func (s *scriptedTracker) Track(gocv.Mat, []int) ([]ai.Track, error) {
	return s.tracks, nil
}

// scriptedResolver returns the result registered for the current frame index.
type scriptedResolver struct {
	frame   *int
	results map[int]identity.Result
}

func (r scriptedResolver) Resolve(gocv.Mat, image.Rectangle) identity.Result {
	if res, ok := r.results[*r.frame]; ok {
		return res
	}
	return identity.Result{Label: model.UnknownName}
}

type countingWriter struct {
	mu     sync.Mutex
	frames []int
}

func (w *countingWriter) Write(_ string, frames []*frame.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, len(frames))
	return nil
}

type memRepo struct {
	mu      sync.Mutex
	records []model.Violation
}

func (m *memRepo) Insert(v *model.Violation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *v)
	return v.ID, nil
}

func (m *memRepo) GetByID(int64) (*model.Violation, error) { return nil, nil }
func (m *memRepo) GetAll(*dto.ViolationFilters) ([]model.Violation, error) { return nil, nil }
func (m *memRepo) GetTotalCount(*dto.ViolationFilters) (int, error) { return 0, nil }
func (m *memRepo) SetReviewed(int64, bool) error { return nil }
func (m *memRepo) Delete(int64) error { return nil }

// ========================================
// Test Setup Helpers
// ========================================

var (
	t0    = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	red   = gocv.NewScalar(0, 0, 255, 0)
	green = gocv.NewScalar(0, 255, 0, 0)
)

type harness struct {
	session  *Session
	settings *fixedSettings
	tracker  *scriptedTracker
	writer   *countingWriter
	repo     *memRepo
	frame    int
}

func newHarness(t *testing.T, resolver func(h *harness) PersonResolver) *harness {
	t.Helper()

	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(log.Close)

	policy := config.DefaultPolicy()
	h := &harness{
		settings: &fixedSettings{snap: &settings.Snapshot{
			Version:              1,
			ZoneBoundaryFraction: 0.625,
			SignalRegion:         model.Region{W: 100, H: 100},
		}},
		tracker: &scriptedTracker{},
		writer:  &countingWriter{},
		repo:    &memRepo{},
	}

	var res PersonResolver
	if resolver != nil {
		res = resolver(h)
	}

	h.session = NewSession(Options{
		ID:        "test",
		Settings:  h.settings,
		Estimator: signal.NewEstimator(policy.Signal),
		Tracker:   h.tracker,
		Resolver:  res,
		Recorder:  storage.NewRecorder(t.TempDir(), policy.Violation.MaxBufferedFrames, h.writer, h.repo, nil, log),
		Policy:    policy,
		Logger:    log,
		Now:       func() time.Time { return t0 },
	})
	return h
}

// step feeds one 480x360 frame of the given color at frame index i (100ms apart).
func (h *harness) step(i int, color gocv.Scalar) *dto.FrameResult {
	h.frame = i
	img := gocv.NewMatWithSizeFromScalar(color, 360, 480, gocv.MatTypeCV8UC3)
	fc := frame.New(img, t0.Add(time.Duration(i)*100*time.Millisecond))
	defer fc.Release()
	return h.session.ProcessFrame(context.Background(), fc)
}

func encodeFrame(t *testing.T, color gocv.Scalar) string {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(color, 360, 480, gocv.MatTypeCV8UC3)
	defer img.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		t.Fatalf("IMEncode failed: %v", err)
	}
	defer buf.Close()
	return base64.StdEncoding.EncodeToString(buf.GetBytes())
}

var car7 = ai.Track{ID: 7, ClassID: 2, Box: image.Rect(300, 100, 400, 200)}

// ========================================
// Scenario Tests
// ========================================

func TestScenario_CarInZoneForSixSeconds(t *testing.T) {
	h := newHarness(t, nil)
	h.tracker.tracks = []ai.Track{car7}

	for i := 0; i <= 60; i++ {
		res := h.step(i, red)
		if res.ZoneBoundaryX != 300 {
			t.Fatalf("Expected boundary 300, got %d", res.ZoneBoundaryX)
		}
	}
	h.session.Close()

	if len(h.repo.records) != 1 {
		t.Fatalf("Expected exactly one violation, got %d", len(h.repo.records))
	}
	v := h.repo.records[0]
	if v.ViolatorName != "Car #7" || v.ViolationType != model.ClassCar {
		t.Errorf("Unexpected violation %+v", v)
	}
	if v.VideoFile != "violations/20250601-080005_Car_#7.mp4" {
		t.Errorf("Unexpected evidence path %q", v.VideoFile)
	}
	// Frames 0 through 51 were buffered when the dwell passed five seconds.
	if diff := cmp.Diff([]int{52}, h.writer.frames); diff != "" {
		t.Errorf("Clip length mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_GreenAtSecondFour(t *testing.T) {
	h := newHarness(t, nil)
	h.tracker.tracks = []ai.Track{car7}

	for i := 0; i <= 60; i++ {
		color := red
		if i >= 40 {
			color = green
		}
		h.step(i, color)
	}
	h.session.Close()

	if len(h.repo.records) != 0 {
		t.Errorf("Expected no violation, got %+v", h.repo.records)
	}
	if h.session.machine.Len() != 0 {
		t.Error("Expected track state to be cleared")
	}
}

func TestScenario_PersonKeepsResolvedName(t *testing.T) {
	h := newHarness(t, func(h *harness) PersonResolver {
		results := map[int]identity.Result{}
		for i := 10; i < 20; i++ {
			results[i] = identity.Result{FaceFound: true, FaceBox: image.Rect(320, 40, 340, 60), Label: "Alice"}
		}
		return scriptedResolver{frame: &h.frame, results: results}
	})
	h.tracker.tracks = []ai.Track{{ID: 4, ClassID: 0, Box: image.Rect(310, 30, 350, 200)}}

	var last *dto.FrameResult
	for i := 0; i <= 60; i++ {
		last = h.step(i, red)
		if i >= 10 && last.Objects[0].Label != "Alice" {
			t.Fatalf("Frame %d: expected Alice, got %q", i, last.Objects[0].Label)
		}
	}
	h.session.Close()

	if len(h.repo.records) != 1 || h.repo.records[0].ViolatorName != "Alice" {
		t.Fatalf("Expected one violation by Alice, got %+v", h.repo.records)
	}
	if diff := cmp.Diff([]string{"Alice (6s)"}, last.ActiveViolationLabels); diff != "" {
		t.Errorf("Active labels mismatch (-want +got):\n%s", diff)
	}
}

// ========================================
// Frame Result Tests
// ========================================

func TestProcessFrame_Result(t *testing.T) {
	h := newHarness(t, func(h *harness) PersonResolver {
		return scriptedResolver{frame: &h.frame, results: map[int]identity.Result{
			0: {FaceFound: true, FaceBox: image.Rect(15, 25, 35, 45), Label: model.UnknownName},
		}}
	})
	h.settings.snap = &settings.Snapshot{ZoneBoundaryFraction: 0.625, SignalRegion: model.Region{X: 400, Y: 300, W: 200, H: 200}}
	h.tracker.tracks = []ai.Track{
		car7,
		{ID: 9, ClassID: 0, Box: image.Rect(10, 20, 50, 100)},
	}

	got := h.step(0, red)

	want := &dto.FrameResult{
		Objects: []dto.ObjectResult{
			{Label: "Car #7", Box: [4]int{100, 400, 200, 300}},
			{Label: "Person #9", Box: [4]int{25, 35, 45, 15}},
		},
		SignalState:           "RED",
		ZoneBoundaryX:         300,
		SensorRegionUsed:      model.Region{X: 400, Y: 300, W: 80, H: 60},
		ActiveViolationLabels: []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FrameResult mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"objects", "signalState", "zoneBoundaryX", "sensorRegionUsed", "activeViolationLabels"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("Missing %q in %s", key, data)
		}
	}
}

func TestProcessFrame_NoDetectionsStillReportsSignal(t *testing.T) {
	h := newHarness(t, nil)

	res := h.step(0, red)
	if res.SignalState != "RED" || len(res.Objects) != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
	if h.session.State() != signal.Red {
		t.Error("Expected session state to follow the frame")
	}
}

// ========================================
// Message Handling Tests
// ========================================

func TestHandleMessage(t *testing.T) {
	h := newHarness(t, nil)
	img := encodeFrame(t, red)

	tests := []struct {
		name string
		msg  string
		ok   bool
	}{
		{"plain base64", `{"image":"` + img + `"}`, true},
		{"data url", `{"image":"data:image/jpeg;base64,` + img + `"}`, true},
		{"not json", `hello`, false},
		{"no image", `{"frame":"abc"}`, false},
		{"bad base64", `{"image":"***"}`, false},
		{"not an image", `{"image":"` + base64.StdEncoding.EncodeToString([]byte("nope")) + `"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := h.session.HandleMessage(context.Background(), []byte(tt.msg))
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && res.SignalState != "RED" {
				t.Errorf("Expected RED, got %s", res.SignalState)
			}
			if !ok && res != nil {
				t.Error("Expected no result for a dropped message")
			}
		})
	}
}

func TestHandleMessage_MalformedKeepsState(t *testing.T) {
	h := newHarness(t, nil)
	h.step(0, red)

	if _, ok := h.session.HandleMessage(context.Background(), []byte(`{"image":"!!"}`)); ok {
		t.Fatal("Expected message to be dropped")
	}
	if h.session.State() != signal.Red {
		t.Error("Dropped message changed the signal state")
	}
}

func TestHandleMessage_RefreshesEveryThirtyMessages(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 95; i++ {
		h.session.HandleMessage(context.Background(), []byte(`garbage`))
	}
	if h.settings.refreshes != 3 {
		t.Errorf("Expected 3 refreshes, got %d", h.settings.refreshes)
	}
}
