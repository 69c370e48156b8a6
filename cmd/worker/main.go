package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medforge/medforge-backend/internal/data/repos/catalog"
	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	"github.com/medforge/medforge-backend/internal/db"
	"github.com/medforge/medforge-backend/internal/jobs/worker"
	"github.com/medforge/medforge-backend/internal/modules/sweep"
	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
	"github.com/medforge/medforge-backend/internal/observability"
	"github.com/medforge/medforge-backend/internal/platform/envutil"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
)

// Standalone sweep worker. Runs the same claim loop as the API process so
// sweep capacity can scale independently of request handling.
func main() {
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{ServiceName: "medforge-worker"})
	defer func() { _ = shutdownOTel(context.Background()) }()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	variationRepo := content.NewVariationRepo(thePG, log)
	classificationRepo := content.NewClassificationRepo(thePG, log)
	taxonomyRepo := catalog.NewTaxonomyRepo(thePG, log)
	sweepRunRepo := sweeps.NewSweepRunRepo(thePG, log)
	sweepResultRepo := sweeps.NewSweepResultRepo(thePG, log)

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}

	evalModel := envutil.Str("SWEEP_EVAL_MODEL", "gpt-5.2-mini")
	fixModel := envutil.Str("SWEEP_FIX_MODEL", "gpt-5.2")

	taxonomyCatalog := taxonomy.NewCatalog(taxonomyRepo, log)
	sweepEngine := sweep.NewEngine(thePG, log, openaiClient, taxonomyCatalog, variationRepo, classificationRepo, sweepResultRepo, evalModel, fixModel)
	sweepRunner := sweep.NewRunner(sweepEngine, sweepRunRepo, variationRepo, log)

	worker.NewWorker(log, sweepRunRepo, sweepRunner).Start(ctx)
	log.Info("Sweep worker started")

	<-ctx.Done()
	log.Info("Sweep worker shutting down")
}
