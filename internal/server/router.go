package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/medforge/medforge-backend/internal/http/handlers"
	"github.com/medforge/medforge-backend/internal/platform/envutil"
)

type RouterConfig struct {
	FactoryHandler  *handlers.FactoryHandler
	SweepsHandler   *handlers.SweepsHandler
	ReportsHandler  *handlers.ReportsHandler
	TaxonomyHandler *handlers.TaxonomyHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := strings.Split(envutil.Str("CORS_ALLOW_ORIGINS", "http://localhost:3000"), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/ingest", cfg.FactoryHandler.IngestBatch)
		api.GET("/ingest/:id", cfg.FactoryHandler.GetJob)
		api.GET("/items/:id", cfg.FactoryHandler.GetItem)
		api.POST("/items/:id/analyze", cfg.FactoryHandler.AnalyzeItem)

		api.POST("/sweeps", cfg.SweepsHandler.Create)
		api.GET("/sweeps", cfg.SweepsHandler.List)
		api.GET("/sweeps/:id", cfg.SweepsHandler.Get)
		api.GET("/sweeps/:id/results", cfg.SweepsHandler.Results)
		api.POST("/sweeps/:id/cancel", cfg.SweepsHandler.Cancel)
		api.GET("/sweeps/:id/report", cfg.ReportsHandler.Get)

		api.GET("/taxonomy", cfg.TaxonomyHandler.List)
	}

	return router
}
