package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/panjf2000/ants/v2"
)

const (
	defaultWorkers        = 4
	defaultMaxAttempts    = 3
	defaultRateLimitDelay = 10 * time.Minute
	defaultJobTimeout     = 5 * time.Minute
	defaultMaxReschedules = 6
)

var defaultBackoff = []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute}

// Config represents job queue behavior configuration.
type Config struct {
	Workers     int `yaml:"workers" env:"QUEUE_WORKERS"`
	MaxAttempts int `yaml:"max_attempts" env:"QUEUE_MAX_ATTEMPTS"`

	// Backoff delays before retry attempts; index zero delays the second
	// attempt. A missing entry reuses the last configured delay.
	Backoff []time.Duration `yaml:"backoff" env:"QUEUE_BACKOFF"`

	// RateLimitDelay reschedules a rate-limited job without consuming an
	// attempt, bounded by MaxReschedules.
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" env:"QUEUE_RATE_LIMIT_DELAY"`
	MaxReschedules int           `yaml:"max_reschedules" env:"QUEUE_MAX_RESCHEDULES"`

	JobTimeout time.Duration `yaml:"job_timeout" env:"QUEUE_JOB_TIMEOUT"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Workers = lang.Check(cfg.Workers, defaultWorkers)
	cfg.MaxAttempts = lang.Check(cfg.MaxAttempts, defaultMaxAttempts)
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = defaultBackoff
	}
	cfg.RateLimitDelay = lang.Check(cfg.RateLimitDelay, defaultRateLimitDelay)
	cfg.MaxReschedules = lang.Check(cfg.MaxReschedules, defaultMaxReschedules)
	cfg.JobTimeout = lang.Check(cfg.JobTimeout, defaultJobTimeout)
	return nil
}

// Attempt describes one scheduled execution of a job. Immutable: a retry is a
// new Attempt, never a mutated one.
type Attempt struct {
	Number      int
	ScheduledAt time.Time
}

// Handler executes one review job attempt.
type Handler func(ctx context.Context, req *model.ReviewRequest) error

// FailureHandler runs after the retry budget is exhausted.
type FailureHandler func(ctx context.Context, req *model.ReviewRequest, err error)

// RetriesExhaustedError is passed to the failure handler when every attempt
// of a job failed.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

type job struct {
	req         *model.ReviewRequest
	attempt     Attempt
	reschedules int
}

// Queue runs review jobs on a bounded worker pool with delayed retries. Jobs
// for different requests execute concurrently; a rate-limited job is pushed
// back by a fixed delay without consuming a retry attempt.
type Queue struct {
	cfg     Config
	log     logze.Logger
	handler Handler
	failure FailureHandler

	pool   *ants.Pool
	timers *abstract.SafeMap[uint64, *time.Timer]
	seq    atomic.Uint64
	wg     sync.WaitGroup

	ctx     context.Context
	stopped atomic.Bool
}

// New creates a queue; Start must be called before dispatching.
func New(cfg Config, handler Handler, failure FailureHandler) (*Queue, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}
	if handler == nil {
		return nil, errm.New("handler is required")
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create ants pool")
	}

	return &Queue{
		cfg:     cfg,
		log:     logze.With("module", "queue"),
		handler: handler,
		failure: failure,
		pool:    pool,
		timers:  abstract.NewSafeMap[uint64, *time.Timer](),
	}, nil
}

// Start binds the queue to its base context. Jobs inherit this context, so
// cancelling it stops in-flight work at the next blocking call.
func (q *Queue) Start(ctx context.Context) {
	q.ctx = ctx
}

// Dispatch enqueues a review job for immediate execution.
func (q *Queue) Dispatch(_ context.Context, req *model.ReviewRequest) error {
	if q.stopped.Load() {
		return errm.New("queue is stopped")
	}
	return q.submit(job{
		req:     req,
		attempt: Attempt{Number: 1, ScheduledAt: time.Now()},
	})
}

// Stop drains scheduled retries and releases the worker pool. Delayed jobs
// that have not fired yet are dropped.
func (q *Queue) Stop() {
	if !q.stopped.CompareAndSwap(false, true) {
		return
	}
	q.timers.Range(func(_ uint64, t *time.Timer) bool {
		t.Stop()
		return true
	})
	q.wg.Wait()
	q.pool.Release()
}

func (q *Queue) submit(j job) error {
	q.wg.Add(1)
	err := q.pool.Submit(func() {
		defer q.wg.Done()
		q.run(j)
	})
	if err != nil {
		q.wg.Done()
		return errm.Wrap(err, "failed to submit job")
	}
	return nil
}

func (q *Queue) run(j job) {
	log := q.log.WithFields(
		"kind", j.req.Kind,
		"unit_id", j.req.UnitID,
		"attempt", j.attempt.Number,
	)

	ctx, cancel := context.WithTimeout(q.baseCtx(), q.cfg.JobTimeout)
	defer cancel()

	err := q.handler(ctx, j.req)
	if err == nil {
		return
	}

	var rle *model.RateLimitError
	if errors.As(err, &rle) && j.reschedules < q.cfg.MaxReschedules {
		log.Warn("job rate limited, rescheduling", "delay", q.cfg.RateLimitDelay.String())
		q.schedule(job{
			req:         j.req,
			attempt:     Attempt{Number: j.attempt.Number, ScheduledAt: time.Now().Add(q.cfg.RateLimitDelay)},
			reschedules: j.reschedules + 1,
		}, q.cfg.RateLimitDelay)
		return
	}

	if j.attempt.Number < q.cfg.MaxAttempts {
		delay := q.backoff(j.attempt.Number)
		log.Err(err, "job attempt failed, retrying", "delay", delay.String())
		q.schedule(job{
			req:         j.req,
			attempt:     Attempt{Number: j.attempt.Number + 1, ScheduledAt: time.Now().Add(delay)},
			reschedules: j.reschedules,
		}, delay)
		return
	}

	log.Err(err, "job failed permanently")
	if q.failure != nil {
		q.failure(q.baseCtx(), j.req, &RetriesExhaustedError{
			Attempts: j.attempt.Number,
			Last:     err,
		})
	}
}

func (q *Queue) schedule(j job, delay time.Duration) {
	if q.stopped.Load() {
		return
	}
	id := q.seq.Add(1)
	timer := time.AfterFunc(delay, func() {
		q.timers.Delete(id)
		if q.stopped.Load() {
			return
		}
		if err := q.submit(j); err != nil {
			q.log.Err(err, "failed to resubmit delayed job", "unit_id", j.req.UnitID)
		}
	})
	q.timers.Set(id, timer)
}

func (q *Queue) baseCtx() context.Context {
	if q.ctx != nil {
		return q.ctx
	}
	return context.Background()
}

// backoff returns the delay before the next attempt after the given one.
func (q *Queue) backoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(q.cfg.Backoff) {
		idx = len(q.cfg.Backoff) - 1
	}
	return q.cfg.Backoff[idx]
}
