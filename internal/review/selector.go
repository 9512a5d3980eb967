package review

import (
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/reviewd/internal/model"
)

const (
	defaultHighChangeLines = 500
	defaultHighFileCount   = 10
	defaultMidChangeLines  = 100
	defaultMidFileCount    = 3
)

// defaultSensitivePatterns marks paths whose changes always get the strongest
// model regardless of size. Matched as case-insensitive substrings.
var defaultSensitivePatterns = []string{
	"config", "auth", "secret", ".env", "token",
	"/api/", "/routes/", "credential", "password",
}

// SelectorConfig holds the size and sensitivity thresholds for model choice.
type SelectorConfig struct {
	HighChangeLines   int      `yaml:"high_change_lines" env:"SELECTOR_HIGH_CHANGE_LINES"`
	HighFileCount     int      `yaml:"high_file_count" env:"SELECTOR_HIGH_FILE_COUNT"`
	MidChangeLines    int      `yaml:"mid_change_lines" env:"SELECTOR_MID_CHANGE_LINES"`
	MidFileCount      int      `yaml:"mid_file_count" env:"SELECTOR_MID_FILE_COUNT"`
	SensitivePatterns []string `yaml:"sensitive_patterns" env:"SELECTOR_SENSITIVE_PATTERNS"`
}

func (cfg *SelectorConfig) PrepareAndValidate() error {
	cfg.HighChangeLines = lang.Check(cfg.HighChangeLines, defaultHighChangeLines)
	cfg.HighFileCount = lang.Check(cfg.HighFileCount, defaultHighFileCount)
	cfg.MidChangeLines = lang.Check(cfg.MidChangeLines, defaultMidChangeLines)
	cfg.MidFileCount = lang.Check(cfg.MidFileCount, defaultMidFileCount)
	if len(cfg.SensitivePatterns) == 0 {
		cfg.SensitivePatterns = defaultSensitivePatterns
	}
	if cfg.MidChangeLines >= cfg.HighChangeLines {
		return errm.New("mid change threshold must be below high change threshold")
	}
	return nil
}

// Selector picks the primary model for a request and builds the fallback
// chain. The first configured model is the primary for submissions; pull
// requests are routed by change size and path sensitivity.
type Selector struct {
	cfg    SelectorConfig
	models []model.ModelProfile
}

// NewSelector creates a selector over the configured model table. The table
// order is the configured fallback order; index zero is the primary.
func NewSelector(cfg SelectorConfig, models []model.ModelProfile) (*Selector, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}
	if len(models) == 0 {
		return nil, errm.New("at least one model is required")
	}
	return &Selector{cfg: cfg, models: models}, nil
}

// SelectPrimary chooses the model to try first for the given request.
func (s *Selector) SelectPrimary(req *model.ReviewRequest) model.ModelProfile {
	if req.Kind != model.ReviewKindPullRequest {
		return s.models[0]
	}

	changes := req.TotalChangedLines()
	files := len(req.Units)

	switch {
	case changes > s.cfg.HighChangeLines || files > s.cfg.HighFileCount || s.hasSensitivePath(req):
		return s.bestByTier(model.TierHigh)
	case changes > s.cfg.MidChangeLines || files > s.cfg.MidFileCount:
		return s.bestByTier(model.TierMedium)
	default:
		return s.bestByTier(model.TierLow)
	}
}

// FallbackChain returns the full ordered model list to try: the primary
// first, then the remaining configured models in table order, deduplicated.
func (s *Selector) FallbackChain(primary model.ModelProfile) []model.ModelProfile {
	chain := make([]model.ModelProfile, 0, len(s.models))
	chain = append(chain, primary)
	for _, m := range s.models {
		if m.ID == primary.ID {
			continue
		}
		chain = append(chain, m)
	}
	return chain
}

// bestByTier returns the configured model closest to the wanted tier,
// preferring exact matches, then the highest-ranked model available.
func (s *Selector) bestByTier(tier model.QualityTier) model.ModelProfile {
	best := s.models[0]
	for _, m := range s.models {
		if m.QualityTier == tier {
			return m
		}
		if m.QualityTier.Rank() > best.QualityTier.Rank() {
			best = m
		}
	}
	return best
}

func (s *Selector) hasSensitivePath(req *model.ReviewRequest) bool {
	for _, u := range req.Units {
		name := strings.ToLower(u.Filename)
		for _, pattern := range s.cfg.SensitivePatterns {
			if strings.Contains(name, pattern) {
				return true
			}
		}
	}
	return false
}
