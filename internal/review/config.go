package review

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/maxbolgarin/lang"
)

const (
	defaultMaxFilesPerReview = 30
	defaultConcurrency       = 1
)

var defaultSourceExtensions = []string{
	".php", ".js", ".jsx", ".ts", ".tsx", ".py", ".java", ".cpp", ".c",
	".cs", ".rb", ".go", ".rs", ".swift", ".kt", ".scala", ".vue",
}

// Config controls the orchestrator behavior.
type Config struct {
	Selector SelectorConfig `yaml:"selector"`

	// SourceExtensions whitelists file extensions reviewed in pull requests.
	SourceExtensions []string `yaml:"source_extensions" env:"REVIEW_SOURCE_EXTENSIONS"`

	// MaxFilesPerReview caps how many files of one pull request are analyzed.
	MaxFilesPerReview int `yaml:"max_files_per_review" env:"REVIEW_MAX_FILES"`

	// Concurrency bounds parallel per-file analysis within one pull request.
	// The default of one keeps file analysis sequential.
	Concurrency int `yaml:"concurrency" env:"REVIEW_CONCURRENCY"`

	// FailOnFileError aborts a pull-request review when any single file
	// exhausts its model chain instead of excluding it from aggregation.
	FailOnFileError bool `yaml:"fail_on_file_error" env:"REVIEW_FAIL_ON_FILE_ERROR"`
}

func (cfg *Config) PrepareAndValidate() error {
	if err := cfg.Selector.PrepareAndValidate(); err != nil {
		return err
	}
	if len(cfg.SourceExtensions) == 0 {
		cfg.SourceExtensions = defaultSourceExtensions
	}
	cfg.MaxFilesPerReview = lang.Check(cfg.MaxFilesPerReview, defaultMaxFilesPerReview)
	cfg.Concurrency = lang.Check(cfg.Concurrency, defaultConcurrency)
	return nil
}

func (cfg *Config) isSourceFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return slices.Contains(cfg.SourceExtensions, ext)
}
