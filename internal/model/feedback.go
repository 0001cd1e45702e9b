package model

import "time"

// ScheduledPrompt is the single pending "did it work?" check-in.
type ScheduledPrompt struct {
	RecommendationID string `json:"recoId"`
	LureName         string `json:"lureName"`
	// DueAt is a unix timestamp in milliseconds.
	DueAt int64 `json:"dueAt"`
}

// DueTime returns DueAt as a time.Time.
func (p ScheduledPrompt) DueTime() time.Time {
	return time.UnixMilli(p.DueAt)
}

// IsDue reports whether the prompt should be visible at now.
func (p ScheduledPrompt) IsDue(now time.Time) bool {
	return now.UnixMilli() >= p.DueAt
}

// Outcome is the user's answer to a scheduled prompt.
type Outcome struct {
	Caught bool    `json:"caught"`
	Count  *int    `json:"count,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// FeedbackRecord is one queued outcome awaiting upload.
type FeedbackRecord struct {
	ID               string       `json:"id"`
	RecommendationID string       `json:"recoId"`
	LureName         string       `json:"lureName"`
	Caught           bool         `json:"caught"`
	Count            *int         `json:"count,omitempty"`
	Notes            *string      `json:"notes,omitempty"`
	Timestamp        int64        `json:"timestamp"`
	Location         *Coordinates `json:"location"`
}

// Time returns Timestamp as a time.Time.
func (r FeedbackRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
