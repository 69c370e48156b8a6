package sweeps

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

type SweepRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.SweepRun) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SweepRun, error)
	List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.SweepRun, error)

	// ClaimNextPending flips the oldest PENDING run to RUNNING. Returns nil
	// when there is nothing to claim or another worker won the race.
	ClaimNextPending(ctx context.Context, tx *gorm.DB) (*types.SweepRun, error)

	MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error

	// Cancel flips a PENDING or RUNNING run to FAILED.
	Cancel(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	StatusOf(ctx context.Context, tx *gorm.DB, id uuid.UUID) (types.SweepRunStatus, error)
	SaveReport(ctx context.Context, tx *gorm.DB, id uuid.UUID, report datatypes.JSON) error

	// Ordinal is the 1-based position of the run among all runs by creation time.
	Ordinal(ctx context.Context, tx *gorm.DB, run *types.SweepRun) (int, error)

	DeleteFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type sweepRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSweepRunRepo(db *gorm.DB, baseLog *logger.Logger) SweepRunRepo {
	return &sweepRunRepo{db: db, log: baseLog.With("repo", "SweepRunRepo")}
}

func (r *sweepRunRepo) Create(ctx context.Context, tx *gorm.DB, row *types.SweepRun) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).Create(row).Error
}

func (r *sweepRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SweepRun, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out types.SweepRun
	err := t.WithContext(ctx).Where("id = ?", id).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sweepRunRepo) List(ctx context.Context, tx *gorm.DB, limit int) ([]*types.SweepRun, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.SweepRun
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sweepRunRepo) ClaimNextPending(ctx context.Context, tx *gorm.DB) (*types.SweepRun, error) {
	t := tx
	if t == nil {
		t = r.db
	}

	var candidate types.SweepRun
	err := t.WithContext(ctx).
		Where("status = ?", types.SweepRunPending).
		Order("created_at ASC").
		First(&candidate).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ? AND status = ?", candidate.ID, types.SweepRunPending).
		Updates(map[string]interface{}{"status": types.SweepRunRunning, "started_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to another worker.
		return nil, nil
	}
	candidate.Status = types.SweepRunRunning
	candidate.StartedAt = &now
	return &candidate, nil
}

func (r *sweepRunRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	return t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ? AND status = ?", id, types.SweepRunRunning).
		Updates(map[string]interface{}{"status": types.SweepRunCompleted, "finished_at": now}).Error
}

func (r *sweepRunRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	return t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": types.SweepRunFailed, "error": reason, "finished_at": now}).Error
}

func (r *sweepRunRepo) Cancel(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ? AND status IN ?", id, []types.SweepRunStatus{types.SweepRunPending, types.SweepRunRunning}).
		Update("status", types.SweepRunFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *sweepRunRepo) StatusOf(ctx context.Context, tx *gorm.DB, id uuid.UUID) (types.SweepRunStatus, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	// Pluck needs a built-in scalar (or slice) destination; a named string
	// type falls through gorm's scan switch and fails at runtime.
	var status string
	err := t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	return types.SweepRunStatus(status), nil
}

func (r *sweepRunRepo) SaveReport(ctx context.Context, tx *gorm.DB, id uuid.UUID, report datatypes.JSON) error {
	t := tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("id = ?", id).
		Update("report", report).Error
}

func (r *sweepRunRepo) Ordinal(ctx context.Context, tx *gorm.DB, run *types.SweepRun) (int, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var count int64
	err := t.WithContext(ctx).
		Model(&types.SweepRun{}).
		Where("created_at < ? OR (created_at = ? AND id = ?)", run.CreatedAt, run.CreatedAt, run.ID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *sweepRunRepo) DeleteFinishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Where("status IN ? AND finished_at < ?", []types.SweepRunStatus{types.SweepRunCompleted, types.SweepRunFailed}, cutoff).
		Delete(&types.SweepRun{})
	return res.RowsAffected, res.Error
}
