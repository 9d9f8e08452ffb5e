package model

import "time"

// Violation is a confirmed red-light crossing. JSON names match the dashboard client.
type Violation struct {
	ID            int64     `json:"id"`
	ViolatorName  string    `json:"violator_name"`
	ViolationType Class     `json:"violation_type"`
	Timestamp     time.Time `json:"timestamp"`
	VideoFile     string    `json:"video_file"` // relative to the media root
	IsReviewed    bool      `json:"is_reviewed"`
}
