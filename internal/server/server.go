package server

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
	"github.com/maxbolgarin/reviewd/internal/review"
	"github.com/maxbolgarin/servex/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	reviewsEndpoint   = "/api/v1/reviews"
	batchEndpoint     = "/api/v1/reviews/batch"
	rateLimitEndpoint = "/api/v1/ratelimit"
)

// Server exposes the trigger API. Reviews are always asynchronous: a trigger
// request only enqueues a job and returns 202.
type Server struct {
	svc     *review.Service
	store   model.ReviewStore
	limiter *ratelimit.Limiter
	config  Config
	log     logze.Logger
	server  *servex.Server
}

// New creates the API server and registers all routes.
func New(cfg Config, svc *review.Service, store model.ReviewStore, limiter *ratelimit.Limiter) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	log := logze.With("module", "server")

	server, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create server")
	}

	s := &Server{
		svc:     svc,
		store:   store,
		limiter: limiter,
		config:  cfg,
		log:     log,
		server:  server,
	}

	server.HandleFunc(batchEndpoint, s.handleBatch)
	server.HandleFunc(reviewsEndpoint, s.handleReviews)
	server.HandleFunc(rateLimitEndpoint, s.handleRateLimit)

	return s, nil
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	if s.config.EnableHTTPS {
		return s.server.StartHTTPS(s.config.Address)
	}
	return s.server.StartHTTP(s.config.Address)
}

// Stop stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if !s.authorized(r) {
		ctx.Unauthorized(errm.New("invalid token"), "authorization failed")
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.triggerReview(ctx, r)
	case http.MethodGet:
		s.getReview(ctx, r)
	default:
		ctx.Response(http.StatusMethodNotAllowed)
	}
}

func (s *Server) triggerReview(ctx *servex.Context, r *http.Request) {
	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read request body")
		return
	}

	var req model.ReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		ctx.BadRequest(err, "failed to parse review request")
		return
	}

	err = s.svc.Trigger(r.Context(), &req)
	switch {
	case err == nil:
		ctx.Response(http.StatusAccepted, map[string]string{
			"status":  "queued",
			"kind":    string(req.Kind),
			"unit_id": req.UnitID,
		})
	case errm.Is(err, review.ErrAlreadyReviewed):
		ctx.Response(http.StatusConflict, map[string]string{
			"error": "review already exists for this unit",
		})
	case errm.Is(err, review.ErrInvalidRequest):
		ctx.BadRequest(err, "invalid review request")
	default:
		ctx.InternalServerError(err, "failed to trigger review")
	}
}

func (s *Server) getReview(ctx *servex.Context, r *http.Request) {
	kind := model.ReviewKind(r.URL.Query().Get("kind"))
	unitID := r.URL.Query().Get("unit_id")
	if !kind.IsValid() || unitID == "" {
		ctx.BadRequest(errm.New("kind and unit_id query parameters are required"), "invalid query")
		return
	}

	record, err := s.store.LatestFor(r.Context(), kind, unitID)
	if err != nil {
		ctx.NotFound(err, "review not found")
		return
	}
	ctx.Response(http.StatusOK, record)
}

type batchRequest struct {
	Requests []*model.ReviewRequest `json:"requests"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if !s.authorized(r) {
		ctx.Unauthorized(errm.New("invalid token"), "authorization failed")
		return
	}
	if r.Method != http.MethodPost {
		ctx.Response(http.StatusMethodNotAllowed)
		return
	}

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read request body")
		return
	}

	var batch batchRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		ctx.BadRequest(err, "failed to parse batch request")
		return
	}
	if len(batch.Requests) == 0 {
		ctx.BadRequest(errm.New("empty batch"), "no requests in batch")
		return
	}

	enqueued, err := s.svc.TriggerBatch(r.Context(), batch.Requests)
	if err != nil {
		ctx.InternalServerError(err, "failed to enqueue batch")
		return
	}

	ctx.Response(http.StatusAccepted, map[string]int{
		"enqueued": enqueued,
		"skipped":  len(batch.Requests) - enqueued,
	})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodGet {
		ctx.Response(http.StatusMethodNotAllowed)
		return
	}

	remaining := s.limiter.Remaining()
	ctx.Response(http.StatusOK, map[string]any{
		"remaining_per_minute": remaining.PerMinute,
		"remaining_per_hour":   remaining.PerHour,
		"blocked":              s.limiter.IsBlocked(),
	})
}

// authorized checks the bearer token when one is configured. An empty
// configured token disables auth, intended for local runs only.
func (s *Server) authorized(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.config.AuthToken
}
