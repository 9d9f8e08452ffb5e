// Package violation implements the per-track red-light violation lifecycle.
package violation

import (
	"fmt"
	"sort"
	"time"

	"crosswatch/internal/config"
	"crosswatch/internal/model"
	"crosswatch/internal/service/identity"
)

// Observation is one tracked object as seen on the current frame.
type Observation struct {
	TrackID int
	Class   model.Class
	InZone  bool
	Name    string // resolved person name, model.UnknownName when not matched
}

// TrackState is the lifecycle entry of a monitored track.
type TrackState struct {
	EnteredAt time.Time
	Class     model.Class
	Name      string
	Frames    int
	Captured  bool
}

// Outcome describes one observation after the step.
type Outcome struct {
	TrackID     int
	Label       string
	Monitored   bool // in zone while red, a TrackState exists
	IsViolation bool // dwell exceeded
	Dwell       time.Duration
}

// Confirmation is the transition action fired when a track becomes a violation.
type Confirmation struct {
	TrackID   int
	Violation model.Violation
}

// Step is the result of applying one frame.
type Step struct {
	Outcomes  []Outcome // parallel to the observations
	Confirmed []Confirmation
	Removed   []int
	Active    []string
}

// Machine holds the TrackState map of one connection. It is not safe for
// concurrent use; frames must be applied in order.
type Machine struct {
	dwell  time.Duration
	tracks map[int]*TrackState
}

// NewMachine creates an empty machine.
func NewMachine(policy config.ViolationPolicy) *Machine {
	return &Machine{
		dwell:  policy.Dwell(),
		tracks: make(map[int]*TrackState),
	}
}

// Label is the violator label for a track.
func Label(class model.Class, trackID int, name string) string {
	if class == model.ClassPerson && name != "" && name != model.UnknownName {
		return name
	}
	return fmt.Sprintf("%s #%d", class, trackID)
}

// Step applies one frame observed at now with the given signal state.
func (m *Machine) Step(now time.Time, red bool, observations []Observation) Step {
	step := Step{Outcomes: make([]Outcome, 0, len(observations))}
	live := make(map[int]bool, len(observations))

	for _, o := range observations {
		out := Outcome{TrackID: o.TrackID, Label: Label(o.Class, o.TrackID, o.Name)}

		if red && o.InZone {
			live[o.TrackID] = true

			ts, ok := m.tracks[o.TrackID]
			if !ok {
				ts = &TrackState{EnteredAt: now, Class: o.Class, Name: model.UnknownName}
				m.tracks[o.TrackID] = ts
			}
			ts.Name = identity.Sticky(ts.Name, o.Name)
			ts.Frames++

			dwell := now.Sub(ts.EnteredAt)
			out.Label = Label(ts.Class, o.TrackID, ts.Name)
			out.Monitored = true
			out.Dwell = dwell

			if dwell > m.dwell {
				out.IsViolation = true
				step.Active = append(step.Active, fmt.Sprintf("%s (%ds)", out.Label, int(dwell.Seconds())))

				if !ts.Captured {
					ts.Captured = true
					step.Confirmed = append(step.Confirmed, Confirmation{
						TrackID: o.TrackID,
						Violation: model.Violation{
							ViolatorName:  out.Label,
							ViolationType: ts.Class,
							Timestamp:     now,
						},
					})
				}
			}
		}

		step.Outcomes = append(step.Outcomes, out)
	}

	// Green forgives everything; on red only tracks still in the zone survive.
	for id := range m.tracks {
		if !red || !live[id] {
			delete(m.tracks, id)
			step.Removed = append(step.Removed, id)
		}
	}
	sort.Ints(step.Removed)

	return step
}

// Track returns a copy of the state for trackID.
func (m *Machine) Track(trackID int) (TrackState, bool) {
	ts, ok := m.tracks[trackID]
	if !ok {
		return TrackState{}, false
	}
	return *ts, true
}

// Len returns the number of monitored tracks.
func (m *Machine) Len() int {
	return len(m.tracks)
}

// Reset drops every TrackState and returns the removed ids.
func (m *Machine) Reset() []int {
	ids := make([]int, 0, len(m.tracks))
	for id := range m.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	m.tracks = make(map[int]*TrackState)
	return ids
}
