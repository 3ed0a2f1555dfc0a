package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fleetcore/fleetcore/internal/app"
	"github.com/fleetcore/fleetcore/internal/billing"
	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/observability"
	"github.com/fleetcore/fleetcore/internal/payouts"
	"github.com/fleetcore/fleetcore/internal/platform/cache"
	"github.com/fleetcore/fleetcore/internal/platform/db"
	"github.com/fleetcore/fleetcore/internal/pnl"
	pnlexport "github.com/fleetcore/fleetcore/internal/pnl/export"
	"github.com/fleetcore/fleetcore/internal/settings"
	"github.com/fleetcore/fleetcore/internal/shared"
	"github.com/fleetcore/fleetcore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo, cfg.DefaultVATPercent, cfg.DefaultCurrency)

	pnlRepo := pnl.NewRepository(dbpool)
	pnlService := pnl.NewService(pnlRepo)
	pnlCache := pnl.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := pnlCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("pnl cache invalidation listener", slog.Any("error", err))
	}
	pnlHandler := pnl.NewHandler(logger, pnlService, pnlCache, pnlexport.WriteReportCSV)

	expensesRepo := expenses.NewRepository(dbpool)
	expensesService := expenses.NewService(expensesRepo, cfg.DefaultCurrency)
	expensesHandler := expenses.NewHandler(logger, expensesService, pnlCache)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, expensesService)
	idempotency := shared.NewIdempotencyStore(dbpool)
	billingHandler := billing.NewHandler(logger, billingService, settingsService, idempotency, pnlCache)

	payoutsRepo := payouts.NewRepository(dbpool)
	payoutsService := payouts.NewService(payoutsRepo, expensesRepo, cfg.DefaultCurrency)
	payoutsHandler := payouts.NewHandler(logger, payoutsService, pnlCache)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		BillingHandler:  billingHandler,
		ExpensesHandler: expensesHandler,
		PnLHandler:      pnlHandler,
		PayoutsHandler:  payoutsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
