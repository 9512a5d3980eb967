package review

import "github.com/maxbolgarin/reviewd/internal/model"

const (
	minScore     = 1
	maxScore     = 100
	defaultScore = 50

	defaultSummary      = "AI analysis completed"
	defaultIssueMessage = "No details provided"
)

// Normalize fills missing fields of a raw model response with documented
// defaults and clamps all numeric values. The result is always a complete,
// presentable AnalysisResult; garbled partial responses never escape.
func Normalize(r *model.AnalysisResult) *model.AnalysisResult {
	r.OverallScore = clampScore(r.OverallScore)
	r.ComplexityScore = clampScore(r.ComplexityScore)
	r.SecurityScore = clampScore(r.SecurityScore)
	r.MaintainabilityScore = clampScore(r.MaintainabilityScore)
	r.PerformanceScore = clampScore(r.PerformanceScore)

	if r.BugCount < 0 {
		r.BugCount = 0
	}
	if r.Summary == "" {
		r.Summary = defaultSummary
	}

	if r.Suggestions == nil {
		r.Suggestions = []model.Suggestion{}
	}
	if r.SecurityIssues == nil {
		r.SecurityIssues = []model.SecurityIssue{}
	}
	if r.PerformanceIssues == nil {
		r.PerformanceIssues = []model.PerformanceIssue{}
	}
	if r.CodeQualityIssues == nil {
		r.CodeQualityIssues = []model.QualityIssue{}
	}

	for i := range r.Suggestions {
		s := &r.Suggestions[i]
		s.Message = defaultString(s.Message)
		s.Severity = defaultSeverity(s.Severity)
	}
	for i := range r.SecurityIssues {
		s := &r.SecurityIssues[i]
		s.Issue = defaultString(s.Issue)
		s.Severity = defaultSeverity(s.Severity)
	}
	for i := range r.PerformanceIssues {
		p := &r.PerformanceIssues[i]
		p.Issue = defaultString(p.Issue)
		p.Impact = defaultSeverity(p.Impact)
	}
	for i := range r.CodeQualityIssues {
		q := &r.CodeQualityIssues[i]
		q.Issue = defaultString(q.Issue)
		q.Severity = defaultSeverity(q.Severity)
	}

	return r
}

// clampScore keeps a score within the valid range, mapping a missing zero
// value to the neutral default.
func clampScore(score int) int {
	switch {
	case score == 0:
		return defaultScore
	case score < minScore:
		return minScore
	case score > maxScore:
		return maxScore
	default:
		return score
	}
}

func defaultString(s string) string {
	if s == "" {
		return defaultIssueMessage
	}
	return s
}

func defaultSeverity(s model.Severity) model.Severity {
	if s == "" {
		return model.SeverityMedium
	}
	return s
}
