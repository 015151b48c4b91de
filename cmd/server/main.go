// Package main is the entry point for the comanda CMV API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comanda/internal/domain"
	"comanda/internal/domain/cmv"
	"comanda/internal/domain/ledger"
	"comanda/internal/domain/period"
	"comanda/internal/domain/reporting"
	"comanda/internal/domain/valuation"
	v1 "comanda/internal/infrastructure/http/v1"
	"comanda/internal/infrastructure/http/v1/middleware"
	"comanda/internal/infrastructure/storage/postgres"
	"comanda/internal/infrastructure/storage/postgres/cmv_repo"
	"comanda/internal/infrastructure/storage/postgres/ledger_repo"
	"comanda/internal/infrastructure/storage/postgres/period_repo"
	"comanda/internal/infrastructure/storage/postgres/sales_repo"
	"comanda/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting comanda server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	periodRepo := period_repo.NewPeriodRepo(txManager)
	snapshotRepo := cmv_repo.NewSnapshotRepo(txManager)
	stockRepo := ledger_repo.NewStockRepo(txManager)
	appraisalRepo := ledger_repo.NewAppraisalRepo(txManager)
	orderRepo := sales_repo.NewOrderRepo(txManager)

	// --- Domain services ---
	valuer := valuation.NewValuer(appraisalRepo, stockRepo)
	aggregator := ledger.NewAggregator(stockRepo, orderRepo)
	engine := cmv.NewEngine(orderRepo, snapshotRepo)

	periodService := period.NewService(periodRepo, valuer, aggregator, engine, txManager)
	reportService := reporting.NewService(periodRepo, engine, aggregator, reporting.NewTextRenderer())

	// --- Audit trail ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	registerAuditHooks(periodService, auditService)

	// --- Optional bearer auth ---
	var validator middleware.TokenValidator
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		validator = middleware.NewJWTValidator(secret)
		log.Info("bearer authentication enabled")
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		PeriodService:  periodService,
		ReportService:  reportService,
		TokenValidator: validator,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// registerAuditHooks records every period mutation in the audit trail.
// Audit writes are hooks, not service logic: the close hook runs after
// commit, so a failed close never leaves an audit row.
func registerAuditHooks(svc *period.Service, audit *postgres.AuditService) {
	svc.Hooks().On(domain.AfterCreate, func(ctx context.Context, p *period.Period) error {
		return audit.LogChange(ctx, "period", p.ID, postgres.AuditActionCreate, map[string]any{
			"type":      p.Type,
			"startDate": p.StartDate,
			"endDate":   p.EndDate,
		})
	})
	svc.Hooks().On(domain.AfterUpdate, func(ctx context.Context, p *period.Period) error {
		return audit.LogChange(ctx, "period", p.ID, postgres.AuditActionUpdate, map[string]any{
			"startDate": p.StartDate,
			"endDate":   p.EndDate,
			"purchases": p.Purchases,
			"version":   p.Version,
		})
	})
	svc.Hooks().On(domain.AfterDelete, func(ctx context.Context, p *period.Period) error {
		return audit.LogChange(ctx, "period", p.ID, postgres.AuditActionDelete, nil)
	})
	svc.Hooks().On(domain.AfterClose, func(ctx context.Context, p *period.Period) error {
		return audit.LogChange(ctx, "period", p.ID, postgres.AuditActionClose, map[string]any{
			"closingStock":  p.ClosingStock,
			"revenue":       p.Revenue,
			"cmv":           p.CMV,
			"cmvPercentage": p.CMVPercentage,
		})
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
