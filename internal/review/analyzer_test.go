package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	result *model.AnalysisResult
	err    error
}

type fakeAgent struct {
	responses map[model.ModelID]fakeCall
	calls     []model.ModelID
}

func (f *fakeAgent) Analyze(_ context.Context, _ model.Prompt, profile model.ModelProfile) (*model.AnalysisResult, error) {
	f.calls = append(f.calls, profile.ID)
	call, ok := f.responses[profile.ID]
	if !ok {
		return nil, errors.New("unexpected model " + string(profile.ID))
	}
	return call.result, call.err
}

func newTestAnalyzer(t *testing.T, agent *fakeAgent, limiterCfg ratelimit.Config) (*Analyzer, *ratelimit.Limiter) {
	t.Helper()

	limiter, err := ratelimit.New(limiterCfg)
	require.NoError(t, err)

	selector, err := NewSelector(SelectorConfig{}, testModels())
	require.NoError(t, err)

	a := NewAnalyzer(agent, limiter, selector)
	a.delay = 0
	return a, limiter
}

func submissionRequest() *model.ReviewRequest {
	return &model.ReviewRequest{
		Kind:   model.ReviewKindSubmission,
		UnitID: "7",
		Title:  "Two Sum",
		Units:  []*model.CodeUnit{{Filename: "solution.py", Content: "def solve(): pass"}},
	}
}

func TestAnalyzeFirstModelSucceeds(t *testing.T) {
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{
		"big-model": {result: &model.AnalysisResult{OverallScore: 88, Summary: "clean"}},
	}}
	a, _ := newTestAnalyzer(t, agent, ratelimit.Config{})

	req := submissionRequest()
	result, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.NoError(t, err)

	assert.Equal(t, 88, result.OverallScore)
	assert.Equal(t, model.ModelID("big-model"), result.ModelUsed)
	assert.Equal(t, []model.ModelID{"big-model"}, agent.calls)
}

func TestAnalyzeFallsBackOnRateLimit(t *testing.T) {
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{
		"big-model": {err: &model.RateLimitError{WaitFor: 10 * time.Minute, Message: "quota"}},
		"mid-model": {result: &model.AnalysisResult{OverallScore: 75}},
	}}
	a, limiter := newTestAnalyzer(t, agent, ratelimit.Config{})

	req := submissionRequest()
	result, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.NoError(t, err)

	assert.Equal(t, model.ModelID("mid-model"), result.ModelUsed)
	assert.Equal(t, []model.ModelID{"big-model", "mid-model"}, agent.calls)
	assert.True(t, limiter.IsBlocked(), "provider 429 must set the blocked flag")
}

func TestAnalyzeFallsBackOnTransportAndMalformed(t *testing.T) {
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{
		"big-model":   {err: &model.TransportError{StatusCode: 503, Message: "unavailable"}},
		"mid-model":   {err: model.ErrMalformedOutput},
		"small-model": {result: &model.AnalysisResult{OverallScore: 42}},
	}}
	a, limiter := newTestAnalyzer(t, agent, ratelimit.Config{})

	req := submissionRequest()
	result, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.NoError(t, err)

	assert.Equal(t, model.ModelID("small-model"), result.ModelUsed)
	assert.False(t, limiter.IsBlocked(), "transport errors must not block the limiter")
}

func TestAnalyzeExhaustsChain(t *testing.T) {
	transportErr := &model.TransportError{StatusCode: 500, Message: "boom"}
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{
		"big-model":   {err: &model.TransportError{StatusCode: 503, Message: "unavailable"}},
		"mid-model":   {err: model.ErrMalformedOutput},
		"small-model": {err: transportErr},
	}}
	a, _ := newTestAnalyzer(t, agent, ratelimit.Config{})

	req := submissionRequest()
	_, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.Error(t, err)

	var exhausted *model.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, transportErr, "exhaustion must carry the last underlying error")
	assert.Len(t, agent.calls, 3)
}

func TestAnalyzeSkipsGatedModels(t *testing.T) {
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{}}
	a, limiter := newTestAnalyzer(t, agent, ratelimit.Config{})
	limiter.MarkBlocked(time.Hour)

	req := submissionRequest()
	_, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.Error(t, err)

	var exhausted *model.ExhaustedError
	require.ErrorAs(t, err, &exhausted)

	var rle *model.RateLimitError
	assert.ErrorAs(t, err, &rle, "a fully gated chain must surface as rate limited")
	assert.Empty(t, agent.calls, "no provider call may happen while gated")
}

func TestAnalyzeNormalizesResponse(t *testing.T) {
	agent := &fakeAgent{responses: map[model.ModelID]fakeCall{
		"big-model": {result: &model.AnalysisResult{OverallScore: 300, BugCount: -1}},
	}}
	a, limiter := newTestAnalyzer(t, agent, ratelimit.Config{})

	req := submissionRequest()
	result, err := a.Analyze(context.Background(), *req.Units[0], req)
	require.NoError(t, err)

	assert.Equal(t, 100, result.OverallScore)
	assert.Equal(t, 0, result.BugCount)
	assert.Equal(t, defaultSummary, result.Summary)

	rem := limiter.Remaining()
	assert.Equal(t, 29, rem.PerMinute, "a successful call must be recorded")
}
