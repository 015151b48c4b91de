// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"comanda/internal/domain/period"
	"comanda/internal/domain/reporting"
	"comanda/internal/infrastructure/http/v1/handlers"
	"comanda/internal/infrastructure/http/v1/middleware"
	"comanda/internal/infrastructure/storage/postgres"
	"comanda/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// Logger for request logging.
	Logger *logger.Logger

	// PeriodService drives the period lifecycle.
	PeriodService *period.Service

	// ReportService serves CMV summaries, rankings, and comparisons.
	ReportService *reporting.Service

	// TokenValidator enables bearer authentication when non-nil.
	// Identity is issued elsewhere; this service only verifies tokens.
	TokenValidator middleware.TokenValidator
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	periodHandler := handlers.NewPeriodHandler(base, cfg.PeriodService)
	cmvHandler := handlers.NewCMVHandler(base, cfg.ReportService)
	reportHandler := handlers.NewReportHandler(base, cfg.ReportService)

	// API v1
	v1 := router.Group("/api/v1")
	if cfg.TokenValidator != nil {
		v1.Use(middleware.Auth(cfg.TokenValidator))
	}
	{
		periods := v1.Group("/periods")
		{
			periods.POST("", periodHandler.Create)
			periods.GET("", periodHandler.List)
			periods.GET("/:id", periodHandler.Get)
			periods.PUT("/:id", periodHandler.Update)
			periods.DELETE("/:id", periodHandler.Delete)

			periods.POST("/:id/purchases", periodHandler.RegisterPurchase)
			periods.GET("/:id/purchases/history", cmvHandler.PurchaseHistory)
			periods.POST("/:id/close", periodHandler.Close)

			periods.GET("/:id/cmv", cmvHandler.Summary)
			periods.GET("/:id/cmv/products", cmvHandler.Products)
			periods.GET("/:id/cmv/categories", cmvHandler.Categories)
			periods.POST("/:id/cmv/recompute", periodHandler.RecomputeSnapshots)
		}

		reports := v1.Group("/reports")
		{
			reports.POST("/cmv/compare", reportHandler.Compare)
			reports.GET("/periods/:id", reportHandler.PeriodReport)
		}
	}

	return router
}
