package review

import (
	"context"
	"errors"
	"time"

	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/agent/prompts"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
)

// blockedModelDelay is the pause before trying the next model when the local
// limiter gates a call. Long waits belong to the queue, not here.
const blockedModelDelay = 2 * time.Second

// Analyzer runs one code unit through the fallback model chain. It owns the
// per-call retry policy: limiter gating, rate-limit block propagation and
// advancing past transport or parse failures.
type Analyzer struct {
	agent    model.AnalysisAgent
	limiter  *ratelimit.Limiter
	selector *Selector
	log      logze.Logger

	delay time.Duration
}

// NewAnalyzer creates an analyzer over the given agent, limiter and selector.
func NewAnalyzer(agent model.AnalysisAgent, limiter *ratelimit.Limiter, selector *Selector) *Analyzer {
	return &Analyzer{
		agent:    agent,
		limiter:  limiter,
		selector: selector,
		log:      logze.With("module", "analyzer"),
		delay:    blockedModelDelay,
	}
}

// Analyze reviews one code unit, walking the fallback chain until a model
// produces a usable result. The returned result is normalized and carries the
// model that produced it. Fails only with ExhaustedError after every model in
// the chain failed or was gated.
func (a *Analyzer) Analyze(ctx context.Context, unit model.CodeUnit, req *model.ReviewRequest) (*model.AnalysisResult, error) {
	chain := a.selector.FallbackChain(a.selector.SelectPrimary(req))

	label := unit.Filename
	if req.Kind == model.ReviewKindSubmission {
		label = req.Title
	}

	var lastErr error
	for i, profile := range chain {
		log := a.log.WithFields("model", profile.ID, "unit", unit.Filename)

		if !a.limiter.CanProceed() {
			log.Info("rate limiter gating call, trying next model")
			if lastErr == nil {
				lastErr = &model.RateLimitError{Message: "local rate limit reached"}
			}
			if i < len(chain)-1 {
				a.sleep(ctx)
			}
			continue
		}

		prompt := prompts.Build(unit, profile, label)

		result, err := a.agent.Analyze(ctx, prompt, profile)
		if err == nil {
			a.limiter.RecordCall()
			result = Normalize(result)
			result.ModelUsed = profile.ID
			log.Info("unit analyzed", "score", result.OverallScore, "issues", result.TotalIssues())
			return result, nil
		}

		lastErr = err

		var rle *model.RateLimitError
		switch {
		case errors.As(err, &rle):
			a.limiter.MarkBlocked(rle.WaitFor)
			log.Warn("provider rate limited, trying next model", "wait", rle.WaitFor.String())
		default:
			log.Err(err, "model call failed, trying next model")
		}
	}

	return nil, &model.ExhaustedError{Unit: unit.Filename, Last: lastErr}
}

func (a *Analyzer) sleep(ctx context.Context) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
	}
}
