package review

import (
	"testing"

	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	r := Normalize(&model.AnalysisResult{})

	assert.Equal(t, defaultScore, r.OverallScore)
	assert.Equal(t, defaultScore, r.ComplexityScore)
	assert.Equal(t, defaultScore, r.SecurityScore)
	assert.Equal(t, defaultScore, r.MaintainabilityScore)
	assert.Equal(t, defaultScore, r.PerformanceScore)
	assert.Equal(t, 0, r.BugCount)
	assert.Equal(t, defaultSummary, r.Summary)
	assert.NotNil(t, r.Suggestions)
	assert.NotNil(t, r.SecurityIssues)
	assert.NotNil(t, r.PerformanceIssues)
	assert.NotNil(t, r.CodeQualityIssues)
}

func TestNormalizeClampsScores(t *testing.T) {
	r := Normalize(&model.AnalysisResult{
		OverallScore:         150,
		ComplexityScore:      -10,
		SecurityScore:        100,
		MaintainabilityScore: 1,
		PerformanceScore:     99,
		BugCount:             -3,
	})

	assert.Equal(t, maxScore, r.OverallScore)
	assert.Equal(t, minScore, r.ComplexityScore)
	assert.Equal(t, 100, r.SecurityScore)
	assert.Equal(t, 1, r.MaintainabilityScore)
	assert.Equal(t, 99, r.PerformanceScore)
	assert.Equal(t, 0, r.BugCount)
}

func TestNormalizeIssueDefaults(t *testing.T) {
	r := Normalize(&model.AnalysisResult{
		Suggestions:       []model.Suggestion{{}},
		SecurityIssues:    []model.SecurityIssue{{Issue: "SQL injection"}},
		PerformanceIssues: []model.PerformanceIssue{{Impact: model.SeverityHigh}},
		CodeQualityIssues: []model.QualityIssue{{Severity: model.SeverityLow}},
	})

	assert.Equal(t, defaultIssueMessage, r.Suggestions[0].Message)
	assert.Equal(t, model.SeverityMedium, r.Suggestions[0].Severity)

	assert.Equal(t, "SQL injection", r.SecurityIssues[0].Issue)
	assert.Equal(t, model.SeverityMedium, r.SecurityIssues[0].Severity)

	assert.Equal(t, defaultIssueMessage, r.PerformanceIssues[0].Issue)
	assert.Equal(t, model.SeverityHigh, r.PerformanceIssues[0].Impact)

	assert.Equal(t, defaultIssueMessage, r.CodeQualityIssues[0].Issue)
	assert.Equal(t, model.SeverityLow, r.CodeQualityIssues[0].Severity)
}

func TestNormalizeKeepsValidResult(t *testing.T) {
	r := Normalize(&model.AnalysisResult{
		OverallScore: 85,
		BugCount:     2,
		Summary:      "Looks solid",
		Feedback:     "Minor nits only",
	})

	assert.Equal(t, 85, r.OverallScore)
	assert.Equal(t, 2, r.BugCount)
	assert.Equal(t, "Looks solid", r.Summary)
	assert.Equal(t, "Minor nits only", r.Feedback)
}
