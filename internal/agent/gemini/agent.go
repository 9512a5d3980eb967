package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
	"google.golang.org/genai"
)

const defaultModel = model.ModelID("gemini-2.5-flash")

var _ model.AgentAPI = (*Agent)(nil)

// Agent implements the AgentAPI interface for Google Gemini.
type Agent struct {
	client *genai.Client
	cfg    model.ModelConfig
}

// New creates a new Gemini agent.
func New(ctx context.Context, cfg model.ModelConfig) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, errm.New("Gemini API key is required")
	}
	cfg.Model = lang.Check(cfg.Model, defaultModel)

	transport := &http.Transport{}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Transport: transport,
		},
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create Gemini client")
	}

	agent := &Agent{
		client: client,
		cfg:    cfg,
	}

	if cfg.IsTest {
		if err := agent.testConnection(ctx); err != nil {
			return nil, errm.Wrap(err, "failed to connect to Gemini API")
		}
	}

	return agent, nil
}

// CallAPI makes one content-generation request. Quota errors map to
// model.RateLimitError, other API failures to model.TransportError.
func (a *Agent) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  lang.Check(req.ResponseType, "text/plain"),
		Temperature:       &req.Temperature,
		MaxOutputTokens:   int32(req.MaxTokens),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
	}

	result, err := a.client.Models.GenerateContent(ctx,
		string(lang.Check(req.Model, a.cfg.Model)),
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		config,
	)
	if err != nil {
		return model.APIResponse{}, handleAPIError(err)
	}

	return toResponse(result), nil
}

// toResponse flattens the first candidate into an APIResponse. Usage metadata
// is optional in the API and may be nil.
func toResponse(result *genai.GenerateContentResponse) model.APIResponse {
	var content string
	if len(result.Candidates) > 0 {
		candidate := result.Candidates[0]
		if candidate.Content != nil && len(candidate.Content.Parts) > 0 {
			content = candidate.Content.Parts[0].Text
		}
	}

	out := model.APIResponse{
		CreateTime: result.CreateTime,
		Content:    strings.TrimSpace(content),
	}
	if um := result.UsageMetadata; um != nil {
		out.PromptTokens = int(um.PromptTokenCount)
		out.CompletionTokens = int(um.CandidatesTokenCount)
		out.TotalTokens = int(um.TotalTokenCount)
	}

	return out
}

func handleAPIError(err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "429") || strings.Contains(strings.ToLower(errStr), "quota"):
		return &model.RateLimitError{
			WaitFor: ratelimit.ParseWait(errStr),
			Message: "rate limit exceeded: " + errStr,
		}
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return &model.TransportError{StatusCode: 403, Message: "authentication failed"}
	case strings.Contains(errStr, "400"):
		return &model.TransportError{StatusCode: 400, Message: "bad request to Gemini API"}
	case strings.Contains(errStr, "503"):
		return &model.TransportError{StatusCode: 503, Message: "Gemini API service unavailable"}
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502"):
		return &model.TransportError{StatusCode: 500, Message: "Gemini API server error"}
	default:
		return errm.Wrap(err, "Gemini API error")
	}
}

func (a *Agent) testConnection(ctx context.Context) error {
	_, err := a.CallAPI(ctx, model.APIRequest{
		Prompt:      "Respond with 'OK' if you can understand this message.",
		MaxTokens:   10,
		Temperature: 0.5,
	})
	return err
}
