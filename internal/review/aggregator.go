package review

import (
	"fmt"
	"math"
	"strings"

	"github.com/maxbolgarin/reviewd/internal/model"
)

const emptyAggregateSummary = "No code files found for analysis"

// Aggregate merges per-file analysis results into one pull-request level
// result. Issues keep their originating filename, feedback sections are
// joined in file iteration order and every score is the rounded mean across
// files.
func Aggregate(files []model.FileAnalysis) *model.AnalysisResult {
	if len(files) == 0 {
		return Normalize(&model.AnalysisResult{
			OverallScore: defaultScore,
			Summary:      emptyAggregateSummary,
		})
	}

	out := &model.AnalysisResult{
		Suggestions:       []model.Suggestion{},
		SecurityIssues:    []model.SecurityIssue{},
		PerformanceIssues: []model.PerformanceIssue{},
		CodeQualityIssues: []model.QualityIssue{},
	}

	var (
		overall, complexity, security int
		maintainability, performance  int
		feedback                      []string
	)

	for _, f := range files {
		r := f.Result

		overall += r.OverallScore
		complexity += r.ComplexityScore
		security += r.SecurityScore
		maintainability += r.MaintainabilityScore
		performance += r.PerformanceScore
		out.BugCount += r.BugCount

		if r.Feedback != "" {
			feedback = append(feedback, fmt.Sprintf("**%s**: %s", f.File, r.Feedback))
		}

		for _, s := range r.Suggestions {
			s.File = f.File
			out.Suggestions = append(out.Suggestions, s)
		}
		for _, s := range r.SecurityIssues {
			s.File = f.File
			out.SecurityIssues = append(out.SecurityIssues, s)
		}
		for _, p := range r.PerformanceIssues {
			p.File = f.File
			out.PerformanceIssues = append(out.PerformanceIssues, p)
		}
		for _, q := range r.CodeQualityIssues {
			q.File = f.File
			out.CodeQualityIssues = append(out.CodeQualityIssues, q)
		}
	}

	n := len(files)
	out.OverallScore = roundedMean(overall, n)
	out.ComplexityScore = roundedMean(complexity, n)
	out.SecurityScore = roundedMean(security, n)
	out.MaintainabilityScore = roundedMean(maintainability, n)
	out.PerformanceScore = roundedMean(performance, n)

	out.Feedback = strings.Join(feedback, "\n\n")
	out.Summary = fmt.Sprintf(
		"Analyzed %d files with an average score of %d/100. Found %d total issues and suggestions.",
		n, out.OverallScore, out.TotalIssues(),
	)

	return Normalize(out)
}

func roundedMean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
