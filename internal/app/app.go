package app

import (
	"context"
	"time"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/agent"
	"github.com/maxbolgarin/reviewd/internal/config"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/notify"
	"github.com/maxbolgarin/reviewd/internal/queue"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
	"github.com/maxbolgarin/reviewd/internal/review"
	"github.com/maxbolgarin/reviewd/internal/server"
	"github.com/maxbolgarin/reviewd/internal/storage"
)

const staleReaperInterval = time.Minute

// Reviewd is the main service that wires all components together.
type Reviewd struct {
	store    *storage.Store
	agent    *agent.Agent
	limiter  *ratelimit.Limiter
	service  *review.Service
	queue    *queue.Queue
	server   *server.Server
	notifier *notify.Notifier

	cfg config.Config
	log logze.Logger
}

// New creates the review service with all its components.
func New(ctx contem.Context, cfg config.Config) (*Reviewd, error) {
	s := &Reviewd{
		cfg: cfg,
		log: logze.With("component", "app"),
	}

	if err := s.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return s, nil
}

// Start launches the queue workers, the stale-record reaper and the API
// server. It does not block.
func (s *Reviewd) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	go s.runStaleReaper(ctx)

	if err := s.server.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start API server")
	}

	s.log.Info("service started", "address", s.cfg.Server.Address)
	return nil
}

func (s *Reviewd) init(ctx contem.Context, cfg config.Config) (err error) {
	// Agent config defaults must be applied before the selector reads the
	// model table.
	if err = cfg.Agent.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "invalid agent config")
	}
	if err = cfg.Queue.PrepareAndValidate(); err != nil {
		return errm.Wrap(err, "invalid queue config")
	}
	s.cfg = cfg

	s.store, err = storage.New(cfg.Database)
	if err != nil {
		return errm.Wrap(err, "failed to create store")
	}

	s.agent, err = agent.New(ctx, cfg.Agent)
	if err != nil {
		return errm.Wrap(err, "failed to create AI agent")
	}

	s.limiter, err = ratelimit.New(cfg.RateLimit)
	if err != nil {
		return errm.Wrap(err, "failed to create rate limiter")
	}

	selector, err := review.NewSelector(cfg.Review.Selector, cfg.Agent.Models)
	if err != nil {
		return errm.Wrap(err, "failed to create model selector")
	}
	analyzer := review.NewAnalyzer(s.agent, s.limiter, selector)

	s.notifier, err = notify.New(cfg.Notify)
	if err != nil {
		return errm.Wrap(err, "failed to create notifier")
	}

	// The queue and the orchestrator reference each other: the queue runs
	// Process, the orchestrator dispatches into the queue. The closures
	// resolve the cycle since handlers only fire after Start.
	s.queue, err = queue.New(cfg.Queue,
		func(ctx context.Context, req *model.ReviewRequest) error {
			return s.service.Process(ctx, req)
		},
		func(ctx context.Context, req *model.ReviewRequest, cause error) {
			s.service.HandleFailure(ctx, req, cause)
		},
	)
	if err != nil {
		return errm.Wrap(err, "failed to create job queue")
	}

	s.service, err = review.NewService(cfg.Review, s.store, analyzer, s.queue, s.notifier)
	if err != nil {
		return errm.Wrap(err, "failed to create review service")
	}

	s.server, err = server.New(cfg.Server, s.service, s.store, s.limiter)
	if err != nil {
		return errm.Wrap(err, "failed to create API server")
	}

	ctx.Add(s.server.Stop)
	ctx.Add(func(context.Context) error {
		s.queue.Stop()
		s.service.Stop()
		return nil
	})

	return nil
}

// runStaleReaper periodically fails records stuck in processing, recovering
// from crashed or timed-out jobs.
func (s *Reviewd) runStaleReaper(ctx context.Context) {
	staleAge := 2 * s.cfg.Queue.JobTimeout

	ticker := time.NewTicker(staleReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.FailStale(ctx, staleAge); err != nil {
				s.log.Err(err, "failed to reap stale reviews")
			}
		}
	}
}
