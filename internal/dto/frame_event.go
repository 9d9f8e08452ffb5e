package dto

import "crosswatch/internal/model"

// FrameEvent is one inbound video frame.
type FrameEvent struct {
	Image string `json:"image"` // base64 JPEG, optionally as a data URL
}

// ObjectResult describes one tracked object in a processed frame.
type ObjectResult struct {
	Label       string `json:"label"`
	Box         [4]int `json:"box"` // top, right, bottom, left
	IsViolation bool   `json:"isViolation"`
}

// FrameResult is emitted once per successfully processed frame.
type FrameResult struct {
	Objects               []ObjectResult `json:"objects"`
	SignalState           string         `json:"signalState"`
	ZoneBoundaryX         int            `json:"zoneBoundaryX"`
	SensorRegionUsed      model.Region   `json:"sensorRegionUsed"`
	ActiveViolationLabels []string       `json:"activeViolationLabels"`
}

// ViolationNotice is broadcast to dashboard viewers when a violation is stored.
type ViolationNotice struct {
	Type      string          `json:"type"`
	Violation model.Violation `json:"violation"`
}
