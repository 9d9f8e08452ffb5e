// Package pipeline runs the per-connection violation pipeline over incoming frames.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"strings"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/dto"
	"crosswatch/internal/frame"
	"crosswatch/internal/logger"
	"crosswatch/internal/model"
	"crosswatch/internal/service/identity"
	"crosswatch/internal/service/settings"
	"crosswatch/internal/service/signal"
	"crosswatch/internal/service/storage"
	"crosswatch/internal/service/tracking"
	"crosswatch/internal/service/violation"
	"crosswatch/internal/service/zone"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// SettingsSource serves the current settings snapshot.
type SettingsSource interface {
	Current() *settings.Snapshot
	RefreshAsync()
}

// PersonResolver resolves the identity of a person box.
type PersonResolver interface {
	Resolve(img gocv.Mat, body image.Rectangle) identity.Result
}

// Options wires a Session.
type Options struct {
	ID           string
	Settings     SettingsSource
	Estimator    *signal.Estimator
	Tracker      tracking.Engine
	Resolver     PersonResolver
	Recorder     *storage.Recorder
	Policy       config.Policy
	RefreshEvery int
	Logger       *logger.Logger
	Now          func() time.Time
}

// Session is the pipeline state of one connection. Frames must be handed to
// it sequentially.
type Session struct {
	id           string
	settings     SettingsSource
	estimator    *signal.Estimator
	adapter      *tracking.Adapter
	resolver     PersonResolver
	machine      *violation.Machine
	names        *identity.Names
	recorder     *storage.Recorder
	logger       *logger.Logger
	now          func() time.Time
	refreshEvery int

	state    signal.State
	messages int
}

// NewSession creates a session starting with a green signal and no tracks.
func NewSession(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshEvery <= 0 {
		opts.RefreshEvery = 30
	}

	return &Session{
		id:           opts.ID,
		settings:     opts.Settings,
		estimator:    opts.Estimator,
		adapter:      tracking.NewAdapter(opts.Tracker, opts.Logger),
		resolver:     opts.Resolver,
		machine:      violation.NewMachine(opts.Policy.Violation),
		names:        identity.NewNames(),
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		now:          opts.Now,
		refreshEvery: opts.RefreshEvery,
		state:        signal.Green,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current signal state.
func (s *Session) State() signal.State {
	return s.state
}

// HandleMessage processes one inbound websocket message. It returns false when
// the message is not a decodable frame; nothing changes in that case.
func (s *Session) HandleMessage(ctx context.Context, data []byte) (*dto.FrameResult, bool) {
	s.messages++
	if s.messages%s.refreshEvery == 0 {
		s.settings.RefreshAsync()
	}

	var event dto.FrameEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Image == "" {
		return nil, false
	}

	raw, err := decodePayload(event.Image)
	if err != nil {
		return nil, false
	}

	fc, err := frame.Decode(raw, s.now())
	if err != nil {
		return nil, false
	}
	defer fc.Release()

	return s.ProcessFrame(ctx, fc), true
}

// decodePayload decodes base64 image data, with or without a data URL prefix.
func decodePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		if i := strings.Index(payload, ","); i >= 0 {
			payload = payload[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(payload)
}

// ProcessFrame runs one full cycle over fc. The caller keeps its reference.
func (s *Session) ProcessFrame(ctx context.Context, fc *frame.Context) *dto.FrameResult {
	snap := s.settings.Current()
	region := signal.ClampRegion(snap.SignalRegion, fc.Width, fc.Height)
	boundary := zone.Boundary(fc.Width, snap.ZoneBoundaryFraction)

	var (
		state   signal.State
		objects []tracking.Object
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, _ = s.estimator.Estimate(fc.Image, region, s.state)
		return nil
	})
	g.Go(func() error {
		objects = s.adapter.Objects(fc.Image)
		return nil
	})
	_ = g.Wait()

	if state != s.state {
		s.logger.Info("[%s] Signal changed to %s", s.id, state)
	}
	s.state = state

	observations := make([]violation.Observation, len(objects))
	boxes := make([]image.Rectangle, len(objects))
	ids := make([]int, len(objects))
	for i, obj := range objects {
		name := model.UnknownName
		boxes[i] = obj.Box
		if obj.Class == model.ClassPerson && s.resolver != nil {
			res := s.resolver.Resolve(fc.Image, obj.Box)
			if res.FaceFound {
				boxes[i] = res.FaceBox
			}
			name = s.names.Observe(obj.TrackID, res.Label)
		}

		ids[i] = obj.TrackID
		observations[i] = violation.Observation{
			TrackID: obj.TrackID,
			Class:   obj.Class,
			InZone:  zone.Contains(obj.CenterX, boundary),
			Name:    name,
		}
	}
	s.names.Retain(ids)

	step := s.machine.Step(fc.At, s.state == signal.Red, observations)

	for _, id := range step.Removed {
		s.recorder.Discard(id)
	}
	for _, out := range step.Outcomes {
		if out.Monitored {
			s.recorder.Append(out.TrackID, fc)
		}
	}
	for _, c := range step.Confirmed {
		v := s.recorder.Flush(c.TrackID, c.Violation)
		s.logger.Warning("[%s] Violation confirmed: %s (%s) -> %s", s.id, v.ViolatorName, v.ViolationType, v.VideoFile)
	}

	result := &dto.FrameResult{
		Objects:               make([]dto.ObjectResult, len(step.Outcomes)),
		SignalState:           s.state.String(),
		ZoneBoundaryX:         boundary,
		SensorRegionUsed:      model.Region{X: region.Min.X, Y: region.Min.Y, W: region.Dx(), H: region.Dy()},
		ActiveViolationLabels: step.Active,
	}
	if result.ActiveViolationLabels == nil {
		result.ActiveViolationLabels = []string{}
	}
	for i, out := range step.Outcomes {
		b := boxes[i]
		result.Objects[i] = dto.ObjectResult{
			Label:       out.Label,
			Box:         [4]int{b.Min.Y, b.Max.X, b.Max.Y, b.Min.X},
			IsViolation: out.IsViolation,
		}
	}
	return result
}

// Close drops every track and unconfirmed buffer and waits for confirmed
// evidence to be written.
func (s *Session) Close() {
	s.machine.Reset()
	s.recorder.Reset()
	s.recorder.Wait()
}
