package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	"github.com/medforge/medforge-backend/internal/modules/sweep"
	"github.com/medforge/medforge-backend/internal/platform/envutil"
	"github.com/medforge/medforge-backend/internal/platform/logger"
)

// Worker polls for pending sweep runs and executes them one at a time per
// loop. Claiming is a conditional update, so several workers can share a
// database without double-running the same sweep.
type Worker struct {
	log    *logger.Logger
	runs   sweeps.SweepRunRepo
	runner *sweep.Runner
}

func NewWorker(baseLog *logger.Logger, runs sweeps.SweepRunRepo, runner *sweep.Runner) *Worker {
	return &Worker{
		log:    baseLog.With("component", "SweepWorker"),
		runs:   runs,
		runner: runner,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 1)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting sweep worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	interval := time.Duration(envutil.Int("WORKER_POLL_SECONDS", 2)) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			run, err := w.runs.ClaimNextPending(ctx, nil)
			if err != nil {
				w.log.Warn("ClaimNextPending failed", "worker_id", workerID, "error", err)
				continue
			}
			if run == nil {
				continue
			}

			w.log.Info("Claimed sweep run", "worker_id", workerID, "run_id", run.ID, "name", run.Name)

			func() {
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("Sweep run panic",
							"worker_id", workerID,
							"run_id", run.ID,
							"panic", r,
						)
						_ = w.runs.MarkFailed(ctx, nil, run.ID, fmt.Sprintf("panic: %v", r))
					}
				}()

				// ExecuteRun marks the run failed itself; this is a safety net
				// for errors that escape it.
				if runErr := w.runner.ExecuteRun(ctx, run); runErr != nil {
					w.log.Warn("Sweep run failed", "worker_id", workerID, "run_id", run.ID, "error", runErr)
				}
			}()
		}
	}
}
