package agent

import (
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/reviewd/internal/model"
)

const (
	defaultBaseURL        = "https://api.groq.com/openai/v1"
	defaultTimeout        = 30 * time.Second
	defaultTemperature    = 0.1
	defaultResponseTokens = 2000
)

// Config represents AI provider configuration.
type Config struct {
	APIKey       string `yaml:"api_key" env:"AGENT_API_KEY"`
	GeminiAPIKey string `yaml:"gemini_api_key" env:"AGENT_GEMINI_API_KEY"`
	BaseURL      string `yaml:"base_url" env:"AGENT_BASE_URL"`
	ProxyURL     string `yaml:"proxy_url" env:"AGENT_PROXY_URL"`
	UserAgent    string `yaml:"user_agent" env:"AGENT_USER_AGENT"`

	Timeout        time.Duration `yaml:"timeout" env:"AGENT_TIMEOUT"`
	Temperature    float32       `yaml:"temperature" env:"AGENT_TEMPERATURE"`
	ResponseTokens int           `yaml:"response_tokens" env:"AGENT_RESPONSE_TOKENS"`

	// Models is the declarative capability table. Empty means the built-in
	// default set.
	Models []model.ModelProfile `yaml:"models"`

	IsTest bool `yaml:"is_test" env:"AGENT_IS_TEST"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.BaseURL = lang.Check(cfg.BaseURL, defaultBaseURL)
	cfg.Timeout = lang.Check(cfg.Timeout, defaultTimeout)
	cfg.Temperature = lang.Check(cfg.Temperature, defaultTemperature)
	cfg.ResponseTokens = lang.Check(cfg.ResponseTokens, defaultResponseTokens)

	if len(cfg.Models) == 0 {
		cfg.Models = model.DefaultModelProfiles()
	}

	var needsOpenAI, needsGemini bool
	for _, p := range cfg.Models {
		switch p.Provider {
		case model.ProviderOpenAI:
			needsOpenAI = true
		case model.ProviderGemini:
			needsGemini = true
		default:
			return errm.Errorf("unsupported provider %q for model %q", p.Provider, p.ID)
		}
	}
	if needsOpenAI && cfg.APIKey == "" {
		return errm.New("agent API key is required")
	}
	if needsGemini && cfg.GeminiAPIKey == "" {
		return errm.New("Gemini API key is required")
	}

	return nil
}

// Profile returns the capability profile for the given model id.
func (cfg *Config) Profile(id model.ModelID) (model.ModelProfile, bool) {
	for _, p := range cfg.Models {
		if p.ID == id {
			return p, true
		}
	}
	return model.ModelProfile{}, false
}
