package review

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/model"
	"github.com/maxbolgarin/reviewd/internal/storage"
	"github.com/panjf2000/ants/v2"
)

// ErrAlreadyReviewed is returned by Trigger when a non-forced request hits
// the idempotency guard.
var ErrAlreadyReviewed = errm.New("review already exists for this unit")

// ErrInvalidRequest marks a trigger request rejected by validation.
var ErrInvalidRequest = errm.New("invalid review request")

// Human-readable failure reasons stored on failed records.
const (
	reasonRateLimited = "Rate limit active, try again later"
	reasonUnavailable = "AI API service is currently unavailable"
)

// Dispatcher enqueues review jobs for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.ReviewRequest) error
}

// Service is the review orchestrator. Trigger accepts requests and hands them
// to the queue; Process runs inside a queue worker and drives one review
// through analysis, aggregation and persistence.
type Service struct {
	cfg        Config
	store      model.ReviewStore
	analyzer   *Analyzer
	dispatcher Dispatcher
	notifier   model.Notifier
	log        logze.Logger
	pool       *ants.Pool
}

// NewService creates the orchestrator. A worker pool for per-file analysis is
// created only when concurrency above one is configured.
func NewService(cfg Config, store model.ReviewStore, analyzer *Analyzer, dispatcher Dispatcher, notifier model.Notifier) (*Service, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	s := &Service{
		cfg:        cfg,
		store:      store,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		notifier:   notifier,
		log:        logze.With("module", "review"),
	}

	if cfg.Concurrency > 1 {
		pool, err := ants.NewPool(cfg.Concurrency)
		if err != nil {
			return nil, errm.Wrap(err, "failed to create ants pool")
		}
		s.pool = pool
	}

	return s, nil
}

// Trigger validates a request and enqueues it for asynchronous review. The
// caller returns immediately; the review itself runs on a queue worker.
func (s *Service) Trigger(ctx context.Context, req *model.ReviewRequest) error {
	if !req.Kind.IsValid() {
		return errm.Wrap(ErrInvalidRequest, "unknown review kind "+string(req.Kind))
	}
	if req.UnitID == "" {
		return errm.Wrap(ErrInvalidRequest, "unit id is required")
	}

	if !req.Force {
		active, err := s.store.HasActive(ctx, req.Kind, req.UnitID)
		if err != nil {
			return errm.Wrap(err, "failed to check existing reviews")
		}
		if active {
			return ErrAlreadyReviewed
		}
	}

	if err := s.dispatcher.Dispatch(ctx, req); err != nil {
		return errm.Wrap(err, "failed to enqueue review")
	}

	s.log.Info("review enqueued", "kind", req.Kind, "unit_id", req.UnitID, "units", len(req.Units))
	return nil
}

// TriggerBatch enqueues many requests, skipping duplicates instead of
// failing the whole batch. Returns the number actually enqueued.
func (s *Service) TriggerBatch(ctx context.Context, reqs []*model.ReviewRequest) (int, error) {
	var enqueued int
	for _, req := range reqs {
		err := s.Trigger(ctx, req)
		switch {
		case err == nil:
			enqueued++
		case errm.Is(err, ErrAlreadyReviewed):
			s.log.Debug("skipping duplicate in batch", "kind", req.Kind, "unit_id", req.UnitID)
		default:
			return enqueued, err
		}
	}
	return enqueued, nil
}

// Process executes one review job. It is the queue handler: a returned error
// means the attempt failed and the queue decides on a retry.
func (s *Service) Process(ctx context.Context, req *model.ReviewRequest) error {
	log := s.log.WithFields("kind", req.Kind, "unit_id", req.UnitID)
	timer := abstract.StartTimer()

	record, err := s.store.CreateProcessing(ctx, req)
	if err != nil {
		if errm.Is(err, storage.ErrReviewAlreadyExists) {
			log.Info("review already exists, skipping job")
			return nil
		}
		return errm.Wrap(err, "failed to create review record")
	}

	switch req.Kind {
	case model.ReviewKindSubmission:
		err = s.processSubmission(ctx, record, req, timer, log)
	case model.ReviewKindPullRequest:
		err = s.processPullRequest(ctx, record, req, timer, log)
	default:
		err = errm.Errorf("unknown review kind %q", req.Kind)
	}

	if err != nil {
		reason := FailureReason(err)
		if serr := s.store.SetFailed(ctx, record.ID, reason); serr != nil {
			log.Err(serr, "failed to mark review as failed")
		}
		return err
	}
	return nil
}

// HandleFailure runs when the queue gives up on a job. It forces any record
// still in flight to failed and publishes the terminal event.
func (s *Service) HandleFailure(ctx context.Context, req *model.ReviewRequest, cause error) {
	log := s.log.WithFields("kind", req.Kind, "unit_id", req.UnitID)

	reason := FailureReason(cause)
	if err := s.store.FailActive(ctx, req.Kind, req.UnitID, reason); err != nil {
		log.Err(err, "failed to finalize failed review")
	}

	log.Error("review failed after all retries", "reason", reason, "cause", cause.Error())
	s.notify(ctx, model.ReviewEvent{
		Type:   model.EventReviewFailed,
		Kind:   req.Kind,
		UnitID: req.UnitID,
		Reason: reason,
	})
}

func (s *Service) processSubmission(ctx context.Context, record *model.ReviewRecord, req *model.ReviewRequest, timer abstract.Timer, log logze.Logger) error {
	if len(req.Units) == 0 {
		return errm.New("submission has no content")
	}

	result, err := s.analyzer.Analyze(ctx, *req.Units[0], req)
	if err != nil {
		return err
	}

	elapsed := timer.ElapsedTime()
	if err := s.store.SetCompleted(ctx, record.ID, result, nil, elapsed); err != nil {
		return errm.Wrap(err, "failed to complete review")
	}

	log.Info("submission review completed",
		"score", result.OverallScore,
		"model", result.ModelUsed,
		"elapsed", elapsed.String(),
	)
	s.notify(ctx, model.ReviewEvent{
		Type:     model.EventReviewCompleted,
		Kind:     req.Kind,
		UnitID:   req.UnitID,
		RecordID: record.ID,
		Elapsed:  elapsed,
	})
	return nil
}

func (s *Service) processPullRequest(ctx context.Context, record *model.ReviewRecord, req *model.ReviewRequest, timer abstract.Timer, log logze.Logger) error {
	units := s.filterUnits(req.Units, log)
	if len(units) == 0 {
		log.Info("no reviewable files in pull request")
		result := Aggregate(nil)
		if err := s.store.SetCompleted(ctx, record.ID, result, nil, timer.ElapsedTime()); err != nil {
			return errm.Wrap(err, "failed to complete review")
		}
		s.notify(ctx, model.ReviewEvent{
			Type:     model.EventReviewCompleted,
			Kind:     req.Kind,
			UnitID:   req.UnitID,
			RecordID: record.ID,
			Elapsed:  timer.ElapsedTime(),
		})
		return nil
	}

	files, lastErr := s.analyzeUnits(ctx, units, req, log)
	if s.cfg.FailOnFileError && lastErr != nil {
		return lastErr
	}
	if len(files) == 0 {
		if lastErr == nil {
			return errm.New("no files were analyzed successfully")
		}
		// Every file exhausted its model chain. The cause is kept so a
		// rate-limited failure stays recognizable upstream.
		return errm.Wrap(lastErr, "no files were analyzed successfully")
	}

	result := Aggregate(files)
	elapsed := timer.ElapsedTime()
	if err := s.store.SetCompleted(ctx, record.ID, result, files, elapsed); err != nil {
		return errm.Wrap(err, "failed to complete review")
	}

	log.Info("pull request review completed",
		"files", len(files),
		"score", result.OverallScore,
		"issues", result.TotalIssues(),
		"elapsed", elapsed.String(),
	)
	s.notify(ctx, model.ReviewEvent{
		Type:     model.EventReviewCompleted,
		Kind:     req.Kind,
		UnitID:   req.UnitID,
		RecordID: record.ID,
		Elapsed:  elapsed,
	})
	return nil
}

// analyzeUnits runs per-file analysis, sequentially by default or on the
// worker pool when concurrency is configured. A file whose model chain
// exhausts is excluded from the results; the last such failure is returned
// alongside them, immediately when FailOnFileError is set.
func (s *Service) analyzeUnits(ctx context.Context, units []*model.CodeUnit, req *model.ReviewRequest, log logze.Logger) ([]model.FileAnalysis, error) {
	if s.pool == nil {
		return s.analyzeSequential(ctx, units, req, log)
	}
	return s.analyzeConcurrent(ctx, units, req, log)
}

func (s *Service) analyzeSequential(ctx context.Context, units []*model.CodeUnit, req *model.ReviewRequest, log logze.Logger) ([]model.FileAnalysis, error) {
	files := make([]model.FileAnalysis, 0, len(units))
	var lastErr error
	for _, unit := range units {
		result, err := s.analyzer.Analyze(ctx, *unit, req)
		if err != nil {
			if s.cfg.FailOnFileError {
				return nil, errm.Wrap(err, "failed to analyze "+unit.Filename)
			}
			log.Err(err, "file analysis failed, excluding from aggregation", "file", unit.Filename)
			lastErr = err
			continue
		}
		files = append(files, model.FileAnalysis{File: unit.Filename, Result: *result})
	}
	return files, lastErr
}

func (s *Service) analyzeConcurrent(ctx context.Context, units []*model.CodeUnit, req *model.ReviewRequest, log logze.Logger) ([]model.FileAnalysis, error) {
	var (
		wg      sync.WaitGroup
		results = make([]*model.AnalysisResult, len(units))
		errs    = make([]error, len(units))
	)

	for i, unit := range units {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = s.analyzer.Analyze(ctx, *unit, req)
		})
		if err != nil {
			wg.Done()
			return nil, errm.Wrap(err, "failed to submit analysis task")
		}
	}
	wg.Wait()

	files := make([]model.FileAnalysis, 0, len(units))
	var lastErr error
	for i, unit := range units {
		if errs[i] != nil {
			if s.cfg.FailOnFileError {
				return nil, errm.Wrap(errs[i], "failed to analyze "+unit.Filename)
			}
			log.Err(errs[i], "file analysis failed, excluding from aggregation", "file", unit.Filename)
			lastErr = errs[i]
			continue
		}
		files = append(files, model.FileAnalysis{File: unit.Filename, Result: *results[i]})
	}
	return files, lastErr
}

// filterUnits drops removed files, files without content and non-source
// extensions, capping the total at the configured maximum.
func (s *Service) filterUnits(units []*model.CodeUnit, log logze.Logger) []*model.CodeUnit {
	filtered := make([]*model.CodeUnit, 0, len(units))
	for _, unit := range units {
		if unit.IsRemoved {
			continue
		}
		if unit.Content == "" && unit.DiffContext == "" {
			continue
		}
		if !s.cfg.isSourceFile(unit.Filename) {
			log.Debug("skipping non-source file", "file", unit.Filename)
			continue
		}

		filtered = append(filtered, unit)
		if len(filtered) >= s.cfg.MaxFilesPerReview {
			log.Warn("reached maximum files per review", "limit", s.cfg.MaxFilesPerReview)
			break
		}
	}
	return filtered
}

// FailureReason maps a terminal error to the human-readable category stored
// on the record.
func FailureReason(err error) string {
	var rle *model.RateLimitError
	if errors.As(err, &rle) {
		return reasonRateLimited
	}
	return reasonUnavailable
}

// Stop releases the worker pool.
func (s *Service) Stop() {
	if s.pool != nil {
		s.pool.Release()
	}
}

func (s *Service) notify(ctx context.Context, event model.ReviewEvent) {
	if s.notifier == nil {
		return
	}
	event.Timestamp = time.Now()
	s.notifier.Notify(ctx, event)
}
