package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/frame"
	"crosswatch/internal/logger"
	"crosswatch/internal/model"
	"crosswatch/internal/repository"
)

// ClipWriter encodes frames into a video file at path.
type ClipWriter interface {
	Write(path string, frames []*frame.Context) error
}

// Notifier is told about every persisted violation.
type Notifier interface {
	NotifyViolation(v model.Violation)
}

// ClipName builds the evidence file name for a violation.
func ClipName(at time.Time, label string) string {
	safe := strings.NewReplacer(" ", "_", "/", "_", string(filepath.Separator), "_").Replace(label)
	return fmt.Sprintf("%s_%s.mp4", at.Format("20060102-150405"), safe)
}

// Recorder buffers frames per monitored track and writes the buffer of a
// confirmed track as an evidence clip. One Recorder belongs to one connection;
// flushes run in the background.
type Recorder struct {
	mu       sync.Mutex
	buffers  map[int]*ring
	flushed  map[int]bool
	capacity int

	dir      string
	writer   ClipWriter
	repo     repository.ViolationRepository
	notifier Notifier
	logger   *logger.Logger

	wg sync.WaitGroup
}

// NewRecorder creates a recorder writing clips under dir. notifier may be nil.
func NewRecorder(dir string, capacity int, writer ClipWriter, repo repository.ViolationRepository, notifier Notifier, logger *logger.Logger) *Recorder {
	return &Recorder{
		buffers:  make(map[int]*ring),
		flushed:  make(map[int]bool),
		capacity: capacity,
		dir:      dir,
		writer:   writer,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Append adds fc to the buffer of trackID, taking a reference to it. The
// oldest frame is dropped once the buffer is full.
func (r *Recorder) Append(trackID int, fc *frame.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buffers[trackID]
	if !ok {
		b = newRing(r.capacity)
		r.buffers[trackID] = b
	}
	if dropped := b.push(fc.Retain()); dropped != nil {
		dropped.Release()
	}
}

// Buffered returns the number of frames held for trackID.
func (r *Recorder) Buffered(trackID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buffers[trackID]; ok {
		return b.len()
	}
	return 0
}

// Flush hands the current buffer of trackID to a background writer. The clip
// is written, then v is persisted and announced. A track is flushed at most
// once per buffer lifetime. Returns v with its evidence path set.
func (r *Recorder) Flush(trackID int, v model.Violation) model.Violation {
	name := ClipName(v.Timestamp, v.ViolatorName)
	v.VideoFile = path.Join(config.EvidenceSubdir, name)

	r.mu.Lock()
	if r.flushed[trackID] {
		r.mu.Unlock()
		return v
	}
	r.flushed[trackID] = true

	var frames []*frame.Context
	if b, ok := r.buffers[trackID]; ok {
		frames = b.snapshot()
	}
	for _, fc := range frames {
		fc.Retain()
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			for _, fc := range frames {
				fc.Release()
			}
		}()
		r.persist(v, filepath.Join(r.dir, name), frames)
	}()

	return v
}

func (r *Recorder) persist(v model.Violation, clipPath string, frames []*frame.Context) {
	if err := r.writeClip(clipPath, frames); err != nil {
		r.logger.Error("Failed to write evidence for %s: %v", v.ViolatorName, err)
		v.VideoFile = ""
	} else {
		r.logger.Info("Evidence saved: %s (%d frames)", clipPath, len(frames))
	}

	if _, err := r.repo.Insert(&v); err != nil {
		r.logger.Error("Failed to save violation for %s: %v", v.ViolatorName, err)
		return
	}
	r.logger.Info("Violation recorded: %s (%s)", v.ViolatorName, v.ViolationType)

	if r.notifier != nil {
		r.notifier.NotifyViolation(v)
	}
}

func (r *Recorder) writeClip(clipPath string, frames []*frame.Context) error {
	if len(frames) == 0 {
		return fmt.Errorf("no buffered frames")
	}
	if err := os.MkdirAll(filepath.Dir(clipPath), 0755); err != nil {
		return fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return r.writer.Write(clipPath, frames)
}

// Discard drops the buffer of trackID without writing it.
func (r *Recorder) Discard(trackID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discardLocked(trackID)
}

func (r *Recorder) discardLocked(trackID int) {
	if b, ok := r.buffers[trackID]; ok {
		b.releaseAll()
		delete(r.buffers, trackID)
	}
	delete(r.flushed, trackID)
}

// Reset drops every buffer.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.buffers {
		r.discardLocked(id)
	}
	r.flushed = make(map[int]bool)
}

// Wait blocks until every started flush has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// ring is a drop-oldest frame buffer.
type ring struct {
	frames []*frame.Context
	start  int
	n      int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{frames: make([]*frame.Context, capacity)}
}

// push appends fc and returns the dropped frame, if any.
func (b *ring) push(fc *frame.Context) *frame.Context {
	if b.n < len(b.frames) {
		b.frames[(b.start+b.n)%len(b.frames)] = fc
		b.n++
		return nil
	}
	dropped := b.frames[b.start]
	b.frames[b.start] = fc
	b.start = (b.start + 1) % len(b.frames)
	return dropped
}

func (b *ring) len() int {
	return b.n
}

// snapshot returns the frames oldest first.
func (b *ring) snapshot() []*frame.Context {
	out := make([]*frame.Context, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.frames[(b.start+i)%len(b.frames)]
	}
	return out
}

func (b *ring) releaseAll() {
	for _, fc := range b.snapshot() {
		fc.Release()
	}
	b.frames = nil
	b.n = 0
}
