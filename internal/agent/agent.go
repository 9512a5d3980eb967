package agent

import (
	"context"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/agent/gemini"
	"github.com/maxbolgarin/reviewd/internal/agent/openai"
	"github.com/maxbolgarin/reviewd/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Agent performs single AI analysis calls. It holds one backend per provider
// present in the configured model table; the caller chooses the model per
// call, so one Agent serves the whole fallback chain. It never retries,
// retry policy belongs to the analyzer.
type Agent struct {
	cfg  Config
	log  logze.Logger
	apis map[string]model.AgentAPI
}

// New creates an agent with backends for every provider the model table needs.
func New(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	a := &Agent{
		cfg:  cfg,
		log:  logze.With("module", "agent"),
		apis: make(map[string]model.AgentAPI),
	}

	for _, p := range cfg.Models {
		if _, ok := a.apis[p.Provider]; ok {
			continue
		}

		var (
			api model.AgentAPI
			err error
		)
		switch p.Provider {
		case model.ProviderOpenAI:
			var cli *cliex.HTTP
			cli, err = cliex.NewWithConfig(cliex.Config{
				BaseURL:        cfg.BaseURL,
				UserAgent:      cfg.UserAgent,
				ProxyAddress:   cfg.ProxyURL,
				RequestTimeout: cfg.Timeout,
			})
			if err != nil {
				return nil, errm.Wrap(err, "failed to create HTTP client")
			}
			api, err = openai.New(ctx, cli, model.ModelConfig{
				APIKey:   cfg.APIKey,
				URL:      cfg.BaseURL,
				ProxyURL: cfg.ProxyURL,
				IsTest:   cfg.IsTest,
			})
		case model.ProviderGemini:
			api, err = gemini.New(ctx, model.ModelConfig{
				APIKey:   cfg.GeminiAPIKey,
				ProxyURL: cfg.ProxyURL,
				IsTest:   cfg.IsTest,
			})
		}
		if err != nil {
			return nil, errm.Wrap(err, "failed to create "+p.Provider+" backend")
		}
		a.apis[p.Provider] = api
	}

	return a, nil
}

// Analyze sends one prompt to the given model and decodes the structured
// review from its response. The result is raw: defaults and clamping are the
// caller's concern. Fails with RateLimitError, TransportError or
// ErrMalformedOutput.
func (a *Agent) Analyze(ctx context.Context, prompt model.Prompt, profile model.ModelProfile) (*model.AnalysisResult, error) {
	api, ok := a.apis[profile.Provider]
	if !ok {
		return nil, errm.Errorf("no backend for provider %q", profile.Provider)
	}

	resp, err := api.CallAPI(ctx, model.APIRequest{
		Model:        profile.ID,
		Prompt:       prompt.UserPrompt,
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    a.cfg.ResponseTokens,
		Temperature:  a.cfg.Temperature,
		ResponseType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	if resp.Content == "" {
		return nil, errm.Wrap(model.ErrMalformedOutput, "empty response content")
	}

	result, err := unmarshalResult(resp.Content)
	if err != nil {
		a.log.Debug("unparseable model response", "model", profile.ID, "content_length", len(resp.Content))
		return nil, errm.Wrap(model.ErrMalformedOutput, err.Error())
	}

	a.log.Debug("analysis call completed",
		"model", profile.ID,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
	)

	return result, nil
}

// unmarshalResult extracts the JSON object from a possibly fenced response.
func unmarshalResult(response string) (*model.AnalysisResult, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimPrefix(response, "json")
	response = strings.TrimSuffix(response, "```")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, errm.New("no valid JSON found in response")
	}

	jsonStr := fixCommonJSONIssues(response[start : end+1])

	var result model.AnalysisResult
	if err := json.UnmarshalFromString(jsonStr, &result); err != nil {
		return nil, errm.Wrap(err, "failed to parse JSON response")
	}

	return &result, nil
}

func fixCommonJSONIssues(jsonStr string) string {
	// Recover responses truncated mid-field by closing on the last complete one
	if !strings.HasSuffix(strings.TrimSpace(jsonStr), "}") {
		lastComma := strings.LastIndex(jsonStr, ",")
		lastQuote := strings.LastIndex(jsonStr, "\"")
		if lastComma > lastQuote {
			jsonStr = jsonStr[:lastComma] + "\n    }\n  ]\n}"
		}
	}
	return jsonStr
}
