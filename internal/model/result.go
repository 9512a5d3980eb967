package model

// Severity levels used across all issue kinds.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Suggestion is a general improvement proposal for a specific line.
type Suggestion struct {
	File     string   `json:"file,omitempty"`
	Line     *int     `json:"line"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Type     string   `json:"type"`
}

// SecurityIssue describes a potential vulnerability.
type SecurityIssue struct {
	File           string   `json:"file,omitempty"`
	Line           *int     `json:"line"`
	Issue          string   `json:"issue"`
	Severity       Severity `json:"severity"`
	Recommendation string   `json:"recommendation"`
	CWEID          string   `json:"cwe_id,omitempty"`
}

// PerformanceIssue describes a performance concern.
type PerformanceIssue struct {
	File           string   `json:"file,omitempty"`
	Line           *int     `json:"line"`
	Issue          string   `json:"issue"`
	Impact         Severity `json:"impact"`
	Recommendation string   `json:"recommendation"`
}

// QualityIssue describes a readability or maintainability problem.
type QualityIssue struct {
	File     string   `json:"file,omitempty"`
	Line     *int     `json:"line"`
	Issue    string   `json:"issue"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
}

// AnalysisResult is one normalized AI response. Field names match the JSON
// shape the prompt requests from the provider. Every score is kept within
// [1,100] and bug_count is non-negative after normalization.
type AnalysisResult struct {
	OverallScore         int    `json:"overall_score"`
	ComplexityScore      int    `json:"complexity_score"`
	SecurityScore        int    `json:"security_score"`
	MaintainabilityScore int    `json:"maintainability_score"`
	PerformanceScore     int    `json:"performance_score"`
	BugCount             int    `json:"bug_count"`
	Summary              string `json:"summary"`
	Feedback             string `json:"feedback"`

	Suggestions       []Suggestion       `json:"suggestions"`
	SecurityIssues    []SecurityIssue    `json:"security_issues"`
	PerformanceIssues []PerformanceIssue `json:"performance_issues"`
	CodeQualityIssues []QualityIssue     `json:"code_quality_issues"`

	ModelUsed ModelID `json:"model_used,omitempty"`
}

// TotalIssues counts entries across all four issue categories.
func (r *AnalysisResult) TotalIssues() int {
	return len(r.Suggestions) + len(r.SecurityIssues) +
		len(r.PerformanceIssues) + len(r.CodeQualityIssues)
}

// FileAnalysis pairs a per-file analysis with its filename for aggregation.
type FileAnalysis struct {
	File   string         `json:"file"`
	Result AnalysisResult `json:"result"`
}
