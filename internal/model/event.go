package model

import (
	"time"
)

// EventType identifies a review lifecycle event.
type EventType string

const (
	EventReviewCompleted EventType = "review_completed"
	EventReviewFailed    EventType = "review_failed"
)

// ReviewEvent is published when a review record reaches a terminal state.
// Notification consumers are external; the engine only emits.
type ReviewEvent struct {
	Type      EventType     `json:"type"`
	Kind      ReviewKind    `json:"kind"`
	UnitID    string        `json:"unit_id"`
	RecordID  uint          `json:"record_id"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}
