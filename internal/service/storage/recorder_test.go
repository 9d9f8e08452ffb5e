package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/dto"
	"crosswatch/internal/frame"
	"crosswatch/internal/logger"
	"crosswatch/internal/model"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"
)

// ========================================
// Test Fakes
// ========================================

type fakeWriter struct {
	mu     sync.Mutex
	paths  []string
	clips  [][]time.Time
	refs   []int
	failOn string
}

func (w *fakeWriter) Write(path string, frames []*frame.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOn != "" && filepath.Base(path) == w.failOn {
		return errors.New("disk full")
	}
	times := make([]time.Time, len(frames))
	for i, f := range frames {
		times[i] = f.At
	}
	w.paths = append(w.paths, path)
	w.clips = append(w.clips, times)
	w.refs = append(w.refs, frames[0].Refs())
	return nil
}

type memRepo struct {
	mu      sync.Mutex
	records []model.Violation
	err     error
}

func (m *memRepo) Insert(v *model.Violation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	v.ID = int64(len(m.records) + 1)
	m.records = append(m.records, *v)
	return v.ID, nil
}

func (m *memRepo) GetByID(int64) (*model.Violation, error) { return nil, nil }
func (m *memRepo) GetAll(*dto.ViolationFilters) ([]model.Violation, error) { return nil, nil }
func (m *memRepo) GetTotalCount(*dto.ViolationFilters) (int, error) { return 0, nil }
func (m *memRepo) SetReviewed(int64, bool) error { return nil }
func (m *memRepo) Delete(int64) error { return nil }

type fakeNotifier struct {
	mu   sync.Mutex
	seen []model.Violation
}

func (n *fakeNotifier) NotifyViolation(v model.Violation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, v)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

var t0 = time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

func newFrame(i int) *frame.Context {
	return frame.New(gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3), t0.Add(time.Duration(i)*100*time.Millisecond))
}

// ========================================
// Recorder Tests
// ========================================

func TestClipName(t *testing.T) {
	if got := ClipName(t0, "Car #7"); got != "20250601-123045_Car_#7.mp4" {
		t.Errorf("Unexpected clip name %q", got)
	}
	if got := ClipName(t0, "a/b c"); got != "20250601-123045_a_b_c.mp4" {
		t.Errorf("Unexpected clip name %q", got)
	}
}

func TestRecorder_FlushWritesBufferedFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writer := &fakeWriter{}
	repo := &memRepo{}
	notifier := &fakeNotifier{}
	r := NewRecorder(dir, 100, writer, repo, notifier, newTestLogger(t))

	var want []time.Time
	for i := 0; i < 10; i++ {
		fc := newFrame(i)
		r.Append(7, fc)
		want = append(want, fc.At)
		fc.Release()
	}

	v := r.Flush(7, model.Violation{ViolatorName: "Car #7", ViolationType: model.ClassCar, Timestamp: t0})
	r.Wait()

	if v.VideoFile != "violations/20250601-123045_Car_#7.mp4" {
		t.Errorf("Unexpected evidence path %q", v.VideoFile)
	}
	if len(writer.clips) != 1 {
		t.Fatalf("Expected one clip, got %d", len(writer.clips))
	}
	if diff := cmp.Diff(want, writer.clips[0]); diff != "" {
		t.Errorf("Clip frames mismatch (-want +got):\n%s", diff)
	}
	if writer.paths[0] != filepath.Join(dir, "20250601-123045_Car_#7.mp4") {
		t.Errorf("Unexpected clip path %q", writer.paths[0])
	}
	if len(repo.records) != 1 || repo.records[0].VideoFile != v.VideoFile {
		t.Errorf("Unexpected records %+v", repo.records)
	}
	if len(notifier.seen) != 1 || notifier.seen[0].ID != 1 {
		t.Errorf("Expected one notification with the stored id, got %+v", notifier.seen)
	}
}

func TestRecorder_FlushesOncePerLifetime(t *testing.T) {
	writer := &fakeWriter{}
	repo := &memRepo{}
	r := NewRecorder(t.TempDir(), 100, writer, repo, nil, newTestLogger(t))

	v := model.Violation{ViolatorName: "Bus #2", ViolationType: model.ClassBus, Timestamp: t0}
	for i := 0; i < 5; i++ {
		fc := newFrame(i)
		r.Append(2, fc)
		fc.Release()
		r.Flush(2, v)
	}
	r.Wait()

	if len(repo.records) != 1 {
		t.Errorf("Expected one record, got %d", len(repo.records))
	}
	if len(writer.clips) != 1 || len(writer.clips[0]) != 1 {
		t.Errorf("Expected a single one-frame clip, got %+v", writer.clips)
	}
	// Buffering continues after the flush.
	if r.Buffered(2) != 5 {
		t.Errorf("Expected 5 buffered frames, got %d", r.Buffered(2))
	}

	r.Discard(2)
	fc := newFrame(9)
	r.Append(2, fc)
	fc.Release()
	r.Flush(2, v)
	r.Wait()
	if len(repo.records) != 2 {
		t.Errorf("Expected a new lifetime to flush again, got %d records", len(repo.records))
	}
}

func TestRecorder_DropsOldestWhenFull(t *testing.T) {
	writer := &fakeWriter{}
	r := NewRecorder(t.TempDir(), 3, writer, &memRepo{}, nil, newTestLogger(t))

	frames := make([]*frame.Context, 5)
	for i := range frames {
		frames[i] = newFrame(i)
		r.Append(1, frames[i])
	}

	if r.Buffered(1) != 3 {
		t.Fatalf("Expected 3 buffered frames, got %d", r.Buffered(1))
	}
	if frames[0].Refs() != 1 || frames[1].Refs() != 1 || frames[4].Refs() != 2 {
		t.Errorf("Unexpected refs %d %d %d", frames[0].Refs(), frames[1].Refs(), frames[4].Refs())
	}

	r.Flush(1, model.Violation{ViolatorName: "Car #1", Timestamp: t0})
	r.Wait()

	want := []time.Time{frames[2].At, frames[3].At, frames[4].At}
	if diff := cmp.Diff(want, writer.clips[0]); diff != "" {
		t.Errorf("Clip frames mismatch (-want +got):\n%s", diff)
	}

	r.Reset()
	for _, fc := range frames {
		if fc.Refs() != 1 {
			t.Errorf("Expected only the caller reference left, got %d", fc.Refs())
		}
		fc.Release()
	}
}

func TestRecorder_FlushKeepsFramesAliveAfterDiscard(t *testing.T) {
	writer := &fakeWriter{}
	r := NewRecorder(t.TempDir(), 10, writer, &memRepo{}, nil, newTestLogger(t))

	fc := newFrame(0)
	r.Append(1, fc)
	r.Flush(1, model.Violation{ViolatorName: "Car #1", Timestamp: t0})
	r.Discard(1)
	fc.Release()
	r.Wait()

	if len(writer.refs) != 1 || writer.refs[0] < 1 {
		t.Errorf("Frame was released before the clip was written: %+v", writer.refs)
	}
	if fc.Refs() != 0 {
		t.Errorf("Expected all references released, got %d", fc.Refs())
	}
}

func TestRecorder_WriteFailureStillRecords(t *testing.T) {
	writer := &fakeWriter{failOn: "20250601-123045_Car_#3.mp4"}
	repo := &memRepo{}
	r := NewRecorder(t.TempDir(), 10, writer, repo, nil, newTestLogger(t))

	fc := newFrame(0)
	r.Append(3, fc)
	fc.Release()
	r.Flush(3, model.Violation{ViolatorName: "Car #3", ViolationType: model.ClassCar, Timestamp: t0})
	r.Wait()

	if len(repo.records) != 1 {
		t.Fatalf("Expected the violation to be recorded, got %d", len(repo.records))
	}
	if repo.records[0].VideoFile != "" {
		t.Errorf("Expected no evidence path after a failed write, got %q", repo.records[0].VideoFile)
	}
}

func TestRecorder_RepositoryFailureSkipsNotify(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewRecorder(t.TempDir(), 10, &fakeWriter{}, &memRepo{err: errors.New("locked")}, notifier, newTestLogger(t))

	fc := newFrame(0)
	r.Append(3, fc)
	fc.Release()
	r.Flush(3, model.Violation{ViolatorName: "Car #3", Timestamp: t0})
	r.Wait()

	if len(notifier.seen) != 0 {
		t.Errorf("Expected no notification, got %+v", notifier.seen)
	}
}

func TestVideoClipWriter_RejectsEmptyClip(t *testing.T) {
	w := NewVideoClipWriter(config.DefaultPolicy().Evidence)
	if err := w.Write(filepath.Join(t.TempDir(), "x.mp4"), nil); err == nil {
		t.Error("Expected error for an empty clip")
	}
}
