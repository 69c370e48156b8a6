package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medforge/medforge-backend/internal/data/repos/catalog"
	"github.com/medforge/medforge-backend/internal/data/repos/content"
	"github.com/medforge/medforge-backend/internal/data/repos/ingest"
	"github.com/medforge/medforge-backend/internal/data/repos/sweeps"
	"github.com/medforge/medforge-backend/internal/db"
	"github.com/medforge/medforge-backend/internal/http/handlers"
	"github.com/medforge/medforge-backend/internal/jobs/scheduler"
	"github.com/medforge/medforge-backend/internal/jobs/worker"
	"github.com/medforge/medforge-backend/internal/modules/classify"
	"github.com/medforge/medforge-backend/internal/modules/factory"
	"github.com/medforge/medforge-backend/internal/modules/generate"
	"github.com/medforge/medforge-backend/internal/modules/report"
	"github.com/medforge/medforge-backend/internal/modules/sweep"
	"github.com/medforge/medforge-backend/internal/modules/taxonomy"
	"github.com/medforge/medforge-backend/internal/observability"
	"github.com/medforge/medforge-backend/internal/platform/envutil"
	"github.com/medforge/medforge-backend/internal/platform/logger"
	"github.com/medforge/medforge-backend/internal/platform/openai"
	"github.com/medforge/medforge-backend/internal/server"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{})
	defer func() { _ = shutdownOTel(context.Background()) }()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.SeedTaxonomyDefaults(); err != nil {
		log.Warn("Taxonomy seed failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	jobRepo := ingest.NewJobRepo(thePG, log)
	itemRepo := content.NewBaseItemRepo(thePG, log)
	classificationRepo := content.NewClassificationRepo(thePG, log)
	variationRepo := content.NewVariationRepo(thePG, log)
	taxonomyRepo := catalog.NewTaxonomyRepo(thePG, log)
	sweepRunRepo := sweeps.NewSweepRunRepo(thePG, log)
	sweepResultRepo := sweeps.NewSweepResultRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}

	evalModel := envutil.Str("SWEEP_EVAL_MODEL", "gpt-5.2-mini")
	fixModel := envutil.Str("SWEEP_FIX_MODEL", "gpt-5.2")
	reportModel := envutil.Str("REPORT_MODEL", fixModel)

	taxonomyCatalog := taxonomy.NewCatalog(taxonomyRepo, log)
	classifier := classify.NewService(openaiClient, taxonomyCatalog, classify.NewMetrics(), log)
	generator := generate.NewGenerator(openaiClient, log)
	orchestrator := factory.NewOrchestrator(thePG, log, jobRepo, itemRepo, classificationRepo, variationRepo, classifier, generator)

	sweepEngine := sweep.NewEngine(thePG, log, openaiClient, taxonomyCatalog, variationRepo, classificationRepo, sweepResultRepo, evalModel, fixModel)
	sweepRunner := sweep.NewRunner(sweepEngine, sweepRunRepo, variationRepo, log)
	reportGenerator := report.NewGenerator(openaiClient, sweepRunRepo, sweepResultRepo, variationRepo, report.PricingFromEnv(), reportModel, log)

	// Background workers
	worker.NewWorker(log, sweepRunRepo, sweepRunner).Start(ctx)
	if err := scheduler.New(log, sweepRunRepo, sweepResultRepo, jobRepo).Start(ctx); err != nil {
		log.Error("Scheduler init failed", "error", err)
		os.Exit(1)
	}

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		FactoryHandler:  handlers.NewFactoryHandler(orchestrator, jobRepo, itemRepo, classificationRepo, variationRepo),
		SweepsHandler:   handlers.NewSweepsHandler(sweepRunRepo, sweepResultRepo),
		ReportsHandler:  handlers.NewReportsHandler(reportGenerator),
		TaxonomyHandler: handlers.NewTaxonomyHandler(taxonomyCatalog),
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
