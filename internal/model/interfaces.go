package model

import (
	"context"
	"time"
)

// AgentAPI is implemented by provider-specific LLM backends.
type AgentAPI interface {
	CallAPI(ctx context.Context, req APIRequest) (APIResponse, error)
}

// AnalysisAgent performs one analysis call against a concrete model.
type AnalysisAgent interface {
	Analyze(ctx context.Context, prompt Prompt, profile ModelProfile) (*AnalysisResult, error)
}

// ReviewStore persists review records and owns the lifecycle transitions.
type ReviewStore interface {
	// CreateProcessing atomically checks for a processing or completed record
	// of the same unit and creates a new record in processing state. Returns
	// ErrReviewAlreadyExists from the storage package when the idempotency
	// guard rejects the request and force is not set.
	CreateProcessing(ctx context.Context, req *ReviewRequest) (*ReviewRecord, error)

	// HasActive reports whether a processing or completed record exists.
	HasActive(ctx context.Context, kind ReviewKind, unitID string) (bool, error)

	SetCompleted(ctx context.Context, id uint, result *AnalysisResult, files []FileAnalysis, elapsed time.Duration) error
	SetFailed(ctx context.Context, id uint, reason string) error

	// FailActive forces any still-processing record of the unit to failed.
	// Used by the job-level failure handler after retries are exhausted.
	FailActive(ctx context.Context, kind ReviewKind, unitID, reason string) error

	// FailStale flips records stuck in processing longer than the given age,
	// so a timeout reaper can recover crashed jobs.
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)

	Get(ctx context.Context, id uint) (*ReviewRecord, error)
	LatestFor(ctx context.Context, kind ReviewKind, unitID string) (*ReviewRecord, error)
}

// Notifier consumes review lifecycle events for downstream notification.
type Notifier interface {
	Notify(ctx context.Context, event ReviewEvent)
}
