package model

import (
	"time"
)

// ReviewStatus is the lifecycle state of a review record.
type ReviewStatus string

const (
	StatusPending    ReviewStatus = "pending"
	StatusProcessing ReviewStatus = "processing"
	StatusCompleted  ReviewStatus = "completed"
	StatusFailed     ReviewStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ReviewRecord is the persisted review entity. Transitions are one-directional:
// pending -> processing -> completed | failed. A re-trigger creates a new
// record instead of mutating a terminal one.
type ReviewRecord struct {
	ID     uint         `gorm:"primaryKey" json:"id"`
	Kind   ReviewKind   `gorm:"index:idx_review_unit,priority:1;not null" json:"kind"`
	UnitID string       `gorm:"index:idx_review_unit,priority:2;not null" json:"unit_id"`
	Status ReviewStatus `gorm:"index;not null" json:"status"`

	Result      *AnalysisResult `gorm:"serializer:json" json:"result,omitempty"`
	FileResults []FileAnalysis  `gorm:"serializer:json" json:"file_results,omitempty"`

	FailureReason  string        `json:"failure_reason,omitempty"`
	ProcessingTime time.Duration `json:"processing_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ReviewRecord) TableName() string {
	return "reviews"
}
