package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/reaper"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
	"github.com/digimartlabs/digimart-backend/pkg/migrate"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	pkgredis "github.com/digimartlabs/digimart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reaper-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reaper-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reaper-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	sagaMetrics := metrics.NewSagaMetrics(prometheus.DefaultRegisterer)
	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	ledgerSvc := ledger.NewService(ledger.NewRepository(conn), logg)
	txlogSvc := txlog.NewService(txlog.NewRepository(conn), logg)
	stockSvc := stock.NewService(stock.NewRepository(conn), logg)
	assetSvc := assets.NewService(assets.NewRepository(conn), logg)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)

	compensator := checkout.NewCompensator(dbClient, orderRepo, ledgerSvc, txlogSvc, stockSvc, assetSvc, outboxSvc, sagaMetrics, logg)

	lock, err := reaper.NewRedisLock(redisClient, redisClient.LockKey("expired-order-reaper"), cfg.Reaper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper lock", err)
		os.Exit(1)
	}
	service, err := reaper.NewService(reaper.ServiceParams{
		Logger:      logg,
		Orders:      orderRepo,
		Compensator: compensator,
		Lock:        lock,
		Metrics:     jobMetrics,
		Config:      cfg.Reaper,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "reaper-worker",
	})
	logg.Info(ctx, "starting reaper worker")

	service.Start(ctx)
	<-ctx.Done()
	service.Stop(context.Background())

	logg.Info(context.Background(), "reaper worker shutting down gracefully")
}
