package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medforge/medforge-backend/internal/data/repos/ingest"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/envutil"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// Scheduler enqueues the nightly quality sweep and prunes old rows. The
// worker picks the enqueued run up like any other pending run.
type Scheduler struct {
	log     *logger.Logger
	cron    *cron.Cron
	runs    sweeps.SweepRunRepo
	results sweeps.SweepResultRepo
	jobs    ingest.JobRepo
}

func New(baseLog *logger.Logger, runs sweeps.SweepRunRepo, results sweeps.SweepResultRepo, jobs ingest.JobRepo) *Scheduler {
	return &Scheduler{
		log:     baseLog.With("component", "SweepScheduler"),
		cron:    cron.New(),
		runs:    runs,
		results: results,
		jobs:    jobs,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	sweepSpec := envutil.Str("SWEEP_CRON", "0 3 * * *")
	if _, err := s.cron.AddFunc(sweepSpec, func() { s.enqueueNightlySweep(ctx) }); err != nil {
		return err
	}

	cleanupSpec := envutil.Str("CLEANUP_CRON", "30 4 * * *")
	if _, err := s.cron.AddFunc(cleanupSpec, func() { s.cleanup(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("Scheduler started", "sweep_cron", sweepSpec, "cleanup_cron", cleanupSpec)

	go func() {
		<-ctx.Done()
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.log.Info("Scheduler stopped")
	}()
	return nil
}

// enqueueNightlySweep creates a run over everything touched in the last day
// plus anything still unscored.
func (s *Scheduler) enqueueNightlySweep(ctx context.Context) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	run := &types.SweepRun{
		Name:        "nightly-" + time.Now().UTC().Format("2006-01-02"),
		CreatedFrom: &since,
		BatchSize:   envutil.Int("SWEEP_BATCH_SIZE", 200),
		Concurrency: envutil.Int("SWEEP_CONCURRENCY", 4),
		Status:      types.SweepRunPending,
	}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		s.log.Error("Failed to enqueue nightly sweep", "error", err)
		return
	}
	s.log.Info("Enqueued nightly sweep", "run_id", run.ID, "name", run.Name)
}

func (s *Scheduler) cleanup(ctx context.Context) {
	retentionDays := envutil.Int("RETENTION_DAYS", 90)
	if retentionDays < 1 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	if n, err := s.results.DeleteCreatedBefore(ctx, nil, cutoff); err != nil {
		s.log.Warn("Sweep result cleanup failed", "error", err)
	} else if n > 0 {
		s.log.Info("Pruned sweep results", "deleted", n, "cutoff", cutoff)
	}

	if n, err := s.runs.DeleteFinishedBefore(ctx, nil, cutoff); err != nil {
		s.log.Warn("Sweep run cleanup failed", "error", err)
	} else if n > 0 {
		s.log.Info("Pruned sweep runs", "deleted", n, "cutoff", cutoff)
	}

	if n, err := s.jobs.DeleteCompletedBefore(ctx, nil, cutoff); err != nil {
		s.log.Warn("Ingest job cleanup failed", "error", err)
	} else if n > 0 {
		s.log.Info("Pruned ingest jobs", "deleted", n, "cutoff", cutoff)
	}
}
