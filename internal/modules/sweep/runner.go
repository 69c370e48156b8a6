package sweep

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	types "github.com/medforge/medforge-backend/internal/domain"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// concurrencyCeiling caps a run's configured concurrency.
const concurrencyCeiling = 8

// Runner executes a claimed sweep run: selects targets, processes them in
// bounded concurrent groups, commits group N before starting N+1, and honors
// cancellation at group boundaries.
type Runner struct {
	log        *logger.Logger
	engine     *Engine
	runs       sweeps.SweepRunRepo
	variations content.VariationRepo
}

func NewRunner(engine *Engine, runs sweeps.SweepRunRepo, variations content.VariationRepo, baseLog *logger.Logger) *Runner {
	return &Runner{
		log:        baseLog.With("service", "SweepRunner"),
		engine:     engine,
		runs:       runs,
		variations: variations,
	}
}

// ExecuteRun drives a RUNNING run to COMPLETED, or FAILED on an escaping
// error. Individual variation failures are absorbed by the engine.
func (r *Runner) ExecuteRun(ctx context.Context, run *types.SweepRun) error {
	ctx, span := otel.Tracer("sweep").Start(ctx, "sweep.ExecuteRun")
	span.SetAttributes(attribute.String("run.id", run.ID.String()))
	defer span.End()

	log := r.log.With("run_id", run.ID)

	if err := r.execute(ctx, log, run); err != nil {
		log.Error("sweep run failed", "error", err)
		if markErr := r.runs.MarkFailed(ctx, nil, run.ID, err.Error()); markErr != nil {
			log.Error("failed to mark run FAILED", "error", markErr)
		}
		return err
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, log *logger.Logger, run *types.SweepRun) error {
	targets, err := r.variations.SelectTargets(ctx, nil, targetFilter(run))
	if err != nil {
		return fmt.Errorf("select targets: %w", err)
	}
	log.Info("sweep run selected targets", "count", len(targets))

	groupSize := run.Concurrency
	if groupSize < 1 {
		groupSize = 1
	}
	if groupSize > concurrencyCeiling {
		groupSize = concurrencyCeiling
	}

	for start := 0; start < len(targets); start += groupSize {
		// Cancellation is cooperative: checked once per group, an in-flight
		// group always finishes.
		status, err := r.runs.StatusOf(ctx, nil, run.ID)
		if err != nil {
			return fmt.Errorf("check run status: %w", err)
		}
		if status != types.SweepRunRunning {
			log.Warn("sweep run no longer RUNNING, stopping", "status", status)
			return nil
		}

		end := start + groupSize
		if end > len(targets) {
			end = len(targets)
		}

		eg, groupCtx := errgroup.WithContext(ctx)
		for _, target := range targets[start:end] {
			variation := target
			eg.Go(func() error {
				if _, err := r.engine.ProcessVariation(groupCtx, run, variation); err != nil {
					return err
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return fmt.Errorf("process group: %w", err)
		}
		log.Debug("sweep group committed", "processed", end, "total", len(targets))
	}

	if err := r.runs.MarkCompleted(ctx, nil, run.ID); err != nil {
		return fmt.Errorf("mark run completed: %w", err)
	}
	log.Info("sweep run completed", "processed", len(targets))
	return nil
}

func targetFilter(run *types.SweepRun) content.TargetFilter {
	filter := content.TargetFilter{
		Specialty:     run.Specialty,
		Topic:         run.Topic,
		CreatedFrom:   run.CreatedFrom,
		CreatedTo:     run.CreatedTo,
		MaxConfidence: run.MaxConfidence,
		OnlyUnscored:  run.OnlyUnscored,
		Limit:         run.BatchSize,
	}
	if len(run.VariationIDs) > 0 {
		var ids []uuid.UUID
		if err := json.Unmarshal(run.VariationIDs, &ids); err == nil {
			filter.IDs = ids
		}
	}
	return filter
}
