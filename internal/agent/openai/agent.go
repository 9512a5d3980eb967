package openai

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
)

const (
	defaultModel   = model.ModelID("llama-3.3-70b-versatile")
	defaultBaseURL = "https://api.groq.com/openai/v1"

	completionsPath = "/chat/completions"
)

var _ model.AgentAPI = (*Agent)(nil)

// Agent implements the AgentAPI interface against any OpenAI-compatible
// chat-completions endpoint (Groq, OpenAI, local gateways).
type Agent struct {
	cfg model.ModelConfig
	cli *cliex.HTTP
}

// New creates an OpenAI-compatible agent over the given HTTP client.
func New(ctx context.Context, cli *cliex.HTTP, cfg model.ModelConfig) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, errm.New("API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)
	cfg.URL = lang.Check(cfg.URL, defaultBaseURL)

	cli.C().SetHeader("Authorization", "Bearer "+cfg.APIKey)

	agent := &Agent{
		cfg: cfg,
		cli: cli,
	}

	if cfg.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, errm.Wrap(err, "failed to connect to API")
		}
	}

	return agent, nil
}

// CallAPI makes one chat-completions request. HTTP 429 maps to
// model.RateLimitError with the parsed suggested wait; other failures map to
// model.TransportError. It never retries.
func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	reqBody := chatCompletionRequest{
		Model:       string(lang.Check(req.Model, a.cfg.Model)),
		Temperature: float64(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      false,
		Messages: []message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.ResponseType == "application/json" {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var respBody chatCompletionResponse
	_, err := a.cli.Post(ctx, a.cfg.URL+completionsPath, reqBody, &respBody)
	if err != nil {
		return model.APIResponse{}, classify(err, respBody.Error)
	}

	if respBody.Error != nil {
		return model.APIResponse{}, errm.Errorf("API error: %s", respBody.Error.Message)
	}
	if len(respBody.Choices) == 0 {
		return model.APIResponse{}, errm.Wrap(model.ErrMalformedOutput, "no choices in response")
	}

	out := model.APIResponse{
		CreateTime:       time.Unix(respBody.Created, 0),
		Content:          strings.TrimSpace(respBody.Choices[0].Message.Content),
		PromptTokens:     respBody.Usage.PromptTokens,
		CompletionTokens: respBody.Usage.CompletionTokens,
		TotalTokens:      respBody.Usage.TotalTokens,
	}

	return out, nil
}

func (a *Agent) testConnection(ctx context.Context) error {
	_, err := a.CallAPI(ctx, model.APIRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	if err != nil {
		return errm.Wrap(err, "connection test failed")
	}
	return nil
}

var statusCodeRe = regexp.MustCompile(`\b([45]\d{2})\b`)

// classify maps an HTTP failure to the engine error taxonomy. The status code
// is recovered from the error text the client produces; the error body, when
// the client managed to decode one, gives a better message.
func classify(err error, apiErr *apiError) error {
	message := err.Error()
	if apiErr != nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	status := 0
	if m := statusCodeRe.FindStringSubmatch(err.Error()); len(m) == 2 {
		status, _ = strconv.Atoi(m[1])
	}

	if status == 429 || strings.Contains(strings.ToLower(message), "rate limit") {
		return &model.RateLimitError{
			WaitFor: ratelimit.ParseWait(message),
			Message: message,
		}
	}
	return &model.TransportError{StatusCode: status, Message: message}
}
