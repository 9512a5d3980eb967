package model

import (
	"time"
)

// QualityTier ranks model capability for selection purposes.
type QualityTier string

const (
	TierLow    QualityTier = "low"
	TierMedium QualityTier = "medium"
	TierHigh   QualityTier = "high"
)

var tierRank = map[QualityTier]int{
	TierLow:    1,
	TierMedium: 2,
	TierHigh:   3,
}

// Rank returns a comparable weight for the tier, higher is better.
func (t QualityTier) Rank() int {
	return tierRank[t]
}

// ModelID identifies a concrete provider model.
type ModelID string

// ModelProfile is a declarative capability description of one model. Profiles
// are configuration data so that new models can be added without touching
// selection code.
type ModelProfile struct {
	ID          ModelID     `yaml:"id"`
	Provider    string      `yaml:"provider"` // openai-compatible or gemini
	MaxTokens   int         `yaml:"max_tokens"`
	QualityTier QualityTier `yaml:"quality_tier"`
	GoodFor     []string    `yaml:"good_for"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultModelProfiles is the capability table used when no models are
// configured. One model per tier keeps a full fallback chain available.
func DefaultModelProfiles() []ModelProfile {
	return []ModelProfile{
		{
			ID:          "llama-3.3-70b-versatile",
			Provider:    ProviderOpenAI,
			MaxTokens:   8192,
			QualityTier: TierHigh,
			GoodFor:     []string{"security", "architecture", "large_changes"},
		},
		{
			ID:          "gemini-2.5-flash",
			Provider:    ProviderGemini,
			MaxTokens:   8192,
			QualityTier: TierMedium,
			GoodFor:     []string{"general", "medium_changes"},
		},
		{
			ID:          "llama-3.1-8b-instant",
			Provider:    ProviderOpenAI,
			MaxTokens:   4096,
			QualityTier: TierLow,
			GoodFor:     []string{"small_changes", "quick_feedback"},
		},
	}
}

// ModelConfig represents model-specific backend configuration.
type ModelConfig struct {
	APIKey   string
	Model    ModelID
	URL      string
	ProxyURL string
	IsTest   bool
}

// APIRequest represents one request to an LLM API.
type APIRequest struct {
	Model        ModelID
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	ResponseType string
}

// APIResponse represents a response from an LLM API.
type APIResponse struct {
	CreateTime       time.Time
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Prompt represents a structured prompt for an LLM.
type Prompt struct {
	SystemPrompt string
	UserPrompt   string
}
