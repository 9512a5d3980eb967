package storage

import (
	"context"
	"testing"
	"time"

	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store, err := NewWithDB(db)
	require.NoError(t, err)
	return store
}

func submissionReq(unitID string) *model.ReviewRequest {
	return &model.ReviewRequest{
		Kind:   model.ReviewKindSubmission,
		UnitID: unitID,
		Units:  []*model.CodeUnit{{Filename: "solution.py", Content: "pass"}},
	}
}

func TestCreateProcessing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.Equal(t, model.StatusProcessing, record.Status)
}

func TestCreateProcessingIdempotencyGuard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	_, err = store.CreateProcessing(ctx, submissionReq("7"))
	assert.ErrorIs(t, err, ErrReviewAlreadyExists)

	// A different unit is unaffected.
	_, err = store.CreateProcessing(ctx, submissionReq("8"))
	assert.NoError(t, err)

	// The same unit id under another kind is a different unit.
	_, err = store.CreateProcessing(ctx, &model.ReviewRequest{
		Kind:   model.ReviewKindPullRequest,
		UnitID: "7",
	})
	assert.NoError(t, err)
}

func TestCreateProcessingForceBypassesGuard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	req := submissionReq("7")
	req.Force = true
	second, err := store.CreateProcessing(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestFailedRecordDoesNotBlockNewReview(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)
	require.NoError(t, store.SetFailed(ctx, record.ID, "AI API service is currently unavailable"))

	_, err = store.CreateProcessing(ctx, submissionReq("7"))
	assert.NoError(t, err, "a failed record must not block a retry")
}

func TestSetCompleted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	result := &model.AnalysisResult{OverallScore: 85, Summary: "solid"}
	files := []model.FileAnalysis{{File: "solution.py", Result: *result}}
	require.NoError(t, store.SetCompleted(ctx, record.ID, result, files, 3*time.Second))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 85, got.Result.OverallScore)
	require.Len(t, got.FileResults, 1)
	assert.Equal(t, 3*time.Second, got.ProcessingTime)
}

func TestSetCompletedRejectsTerminalRecord(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)
	require.NoError(t, store.SetFailed(ctx, record.ID, "boom"))

	err = store.SetCompleted(ctx, record.ID, &model.AnalysisResult{}, nil, time.Second)
	assert.Error(t, err, "a failed record must never flip to completed")

	err = store.SetFailed(ctx, record.ID, "again")
	assert.Error(t, err, "a terminal record must not be failed twice")
}

func TestFailActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	require.NoError(t, store.FailActive(ctx, model.ReviewKindSubmission, "7", "Rate limit active, try again later"))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "Rate limit active, try again later", got.FailureReason)

	// No active record left is not an error.
	assert.NoError(t, store.FailActive(ctx, model.ReviewKindSubmission, "7", "x"))
}

func TestFailStale(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	// Fresh records stay untouched.
	count, err := store.FailStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Backdate the record past the cutoff.
	err = store.db.Model(&model.ReviewRecord{}).
		Where("id = ?", record.ID).
		Update("updated_at", time.Now().Add(-2*time.Hour)).Error
	require.NoError(t, err)

	count, err = store.FailStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestHasActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	active, err := store.HasActive(ctx, model.ReviewKindSubmission, "7")
	require.NoError(t, err)
	assert.False(t, active)

	record, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)

	active, err = store.HasActive(ctx, model.ReviewKindSubmission, "7")
	require.NoError(t, err)
	assert.True(t, active)

	// Completed still counts as active for the idempotency guard.
	require.NoError(t, store.SetCompleted(ctx, record.ID, &model.AnalysisResult{}, nil, time.Second))
	active, err = store.HasActive(ctx, model.ReviewKindSubmission, "7")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLatestFor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LatestFor(ctx, model.ReviewKindSubmission, "7")
	assert.Error(t, err)

	first, err := store.CreateProcessing(ctx, submissionReq("7"))
	require.NoError(t, err)
	require.NoError(t, store.SetFailed(ctx, first.ID, "boom"))

	req := submissionReq("7")
	second, err := store.CreateProcessing(ctx, req)
	require.NoError(t, err)

	got, err := store.LatestFor(ctx, model.ReviewKindSubmission, "7")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}
