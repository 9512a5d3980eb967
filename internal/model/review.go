package model

import (
	"path/filepath"
	"strings"
)

// ReviewKind identifies what kind of entity is being reviewed.
type ReviewKind string

const (
	ReviewKindSubmission  ReviewKind = "submission"
	ReviewKindPullRequest ReviewKind = "pull_request"
)

func (k ReviewKind) IsValid() bool {
	return k == ReviewKindSubmission || k == ReviewKindPullRequest
}

// CodeUnit is one reviewable piece of source: a submission's content or a
// single file of a pull request. Immutable once constructed.
type CodeUnit struct {
	Filename    string `json:"filename"`
	Language    string `json:"language"`
	Content     string `json:"content"`
	DiffContext string `json:"diff_context,omitempty"`

	IsRemoved bool `json:"is_removed,omitempty"`
	Additions int  `json:"additions,omitempty"`
	Deletions int  `json:"deletions,omitempty"`
	Changes   int  `json:"changes,omitempty"`
}

// ChangedLines returns the number of changed lines, falling back to
// additions+deletions when the provider did not send a total.
func (u *CodeUnit) ChangedLines() int {
	if u.Changes > 0 {
		return u.Changes
	}
	return u.Additions + u.Deletions
}

// ReviewRequest is the engine input: one submission or one pull request with
// its code units.
type ReviewRequest struct {
	Kind   ReviewKind  `json:"kind"`
	UnitID string      `json:"unit_id"`
	Title  string      `json:"title,omitempty"`
	Units  []*CodeUnit `json:"units"`

	// Force creates a new review attempt even if a processing or completed
	// record already exists for this unit.
	Force bool `json:"force,omitempty"`
}

func (r ReviewRequest) String() string {
	return string(r.Kind) + ":" + r.UnitID
}

// TotalChangedLines sums changed lines across all units of the request.
func (r *ReviewRequest) TotalChangedLines() int {
	var total int
	for _, u := range r.Units {
		total += u.ChangedLines()
	}
	return total
}

var extensionLanguages = map[string]string{
	".php":   "php",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".py":    "python",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".rb":    "ruby",
	".go":    "go",
	".rs":    "rust",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".vue":   "vue",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
}

// DetectLanguage maps a filename extension to a language name, returning
// "text" for anything unknown.
func DetectLanguage(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if language, ok := extensionLanguages[ext]; ok {
		return language
	}
	return "text"
}
