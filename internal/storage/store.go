package storage

import (
	"context"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/reviewd/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrReviewAlreadyExists is returned by CreateProcessing when a processing or
// completed record for the same unit exists and the request is not forced.
var ErrReviewAlreadyExists = errm.New("review already exists for this unit")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultDSN = "reviewd.db"
)

// Config represents database connection configuration.
type Config struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Driver = lang.Check(cfg.Driver, DriverSQLite)
	cfg.DSN = lang.Check(cfg.DSN, defaultDSN)
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return errm.Errorf("unsupported database driver %q", cfg.Driver)
	}
	return nil
}

var _ model.ReviewStore = (*Store)(nil)

// Store persists review records in a relational database. It owns the record
// lifecycle: all status transitions are guarded so that a terminal record is
// never mutated.
type Store struct {
	db  *gorm.DB
	log logze.Logger
}

// New opens the configured database and migrates the reviews table.
func New(cfg Config) (*Store, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to open database")
	}

	return NewWithDB(db)
}

// NewWithDB wraps an already opened gorm handle, migrating the schema.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.ReviewRecord{}); err != nil {
		return nil, errm.Wrap(err, "failed to migrate schema")
	}
	return &Store{
		db:  db,
		log: logze.With("module", "storage"),
	}, nil
}

// CreateProcessing atomically applies the idempotency guard and inserts a new
// record in processing state. The check and insert run in one transaction so
// concurrent workers cannot both create a review for the same unit.
func (s *Store) CreateProcessing(ctx context.Context, req *model.ReviewRequest) (*model.ReviewRecord, error) {
	record := &model.ReviewRecord{
		Kind:   req.Kind,
		UnitID: req.UnitID,
		Status: model.StatusProcessing,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !req.Force {
			var count int64
			err := tx.Model(&model.ReviewRecord{}).
				Where("kind = ? AND unit_id = ? AND status IN ?",
					req.Kind, req.UnitID,
					[]model.ReviewStatus{model.StatusPending, model.StatusProcessing, model.StatusCompleted}).
				Count(&count).Error
			if err != nil {
				return errm.Wrap(err, "failed to check existing reviews")
			}
			if count > 0 {
				return ErrReviewAlreadyExists
			}
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("review record created", "id", record.ID, "kind", req.Kind, "unit_id", req.UnitID)
	return record, nil
}

// HasActive reports whether a processing or completed record exists for the unit.
func (s *Store) HasActive(ctx context.Context, kind model.ReviewKind, unitID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ReviewRecord{}).
		Where("kind = ? AND unit_id = ? AND status IN ?",
			kind, unitID,
			[]model.ReviewStatus{model.StatusPending, model.StatusProcessing, model.StatusCompleted}).
		Count(&count).Error
	if err != nil {
		return false, errm.Wrap(err, "failed to count reviews")
	}
	return count > 0, nil
}

// SetCompleted flips a processing record to completed with its results. A
// record no longer in processing state is left untouched.
func (s *Store) SetCompleted(ctx context.Context, id uint, result *model.AnalysisResult, files []model.FileAnalysis, elapsed time.Duration) error {
	// Struct-based update so the json serializer runs for result columns.
	res := s.db.WithContext(ctx).Model(&model.ReviewRecord{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Select("status", "result", "file_results", "processing_time").
		Updates(&model.ReviewRecord{
			Status:         model.StatusCompleted,
			Result:         result,
			FileResults:    files,
			ProcessingTime: elapsed,
		})
	if res.Error != nil {
		return errm.Wrap(res.Error, "failed to complete review")
	}
	if res.RowsAffected == 0 {
		return errm.Errorf("review %d is not in processing state", id)
	}
	return nil
}

// SetFailed flips a processing record to failed with a human-readable reason.
func (s *Store) SetFailed(ctx context.Context, id uint, reason string) error {
	res := s.db.WithContext(ctx).Model(&model.ReviewRecord{}).
		Where("id = ? AND status = ?", id, model.StatusProcessing).
		Updates(map[string]any{
			"status":         model.StatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return errm.Wrap(res.Error, "failed to fail review")
	}
	if res.RowsAffected == 0 {
		return errm.Errorf("review %d is not in processing state", id)
	}
	return nil
}

// FailActive forces every non-terminal record of the unit to failed. Used by
// the job-level failure handler once the retry budget is exhausted.
func (s *Store) FailActive(ctx context.Context, kind model.ReviewKind, unitID, reason string) error {
	err := s.db.WithContext(ctx).Model(&model.ReviewRecord{}).
		Where("kind = ? AND unit_id = ? AND status IN ?",
			kind, unitID,
			[]model.ReviewStatus{model.StatusPending, model.StatusProcessing}).
		Updates(map[string]any{
			"status":         model.StatusFailed,
			"failure_reason": reason,
		}).Error
	if err != nil {
		return errm.Wrap(err, "failed to fail active reviews")
	}
	return nil
}

// FailStale flips records stuck in processing longer than olderThan, so
// crashed jobs do not leave records processing forever.
func (s *Store) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).Model(&model.ReviewRecord{}).
		Where("status = ? AND updated_at < ?", model.StatusProcessing, cutoff).
		Updates(map[string]any{
			"status":         model.StatusFailed,
			"failure_reason": "Review timed out",
		})
	if res.Error != nil {
		return 0, errm.Wrap(res.Error, "failed to fail stale reviews")
	}
	if res.RowsAffected > 0 {
		s.log.Warn("failed stale reviews", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// Get returns one record by primary key.
func (s *Store) Get(ctx context.Context, id uint) (*model.ReviewRecord, error) {
	var record model.ReviewRecord
	err := s.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		return nil, errm.Wrap(err, "failed to get review")
	}
	return &record, nil
}

// LatestFor returns the newest record for the unit.
func (s *Store) LatestFor(ctx context.Context, kind model.ReviewKind, unitID string) (*model.ReviewRecord, error) {
	var record model.ReviewRecord
	err := s.db.WithContext(ctx).
		Where("kind = ? AND unit_id = ?", kind, unitID).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		return nil, errm.Wrap(err, "failed to get latest review")
	}
	return &record, nil
}
