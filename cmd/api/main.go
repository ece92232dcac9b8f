package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/digimartlabs/digimart-backend/api/routes"
	"github.com/digimartlabs/digimart-backend/internal/activity"
	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/notifications"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/products"
	"github.com/digimartlabs/digimart-backend/internal/reaper"
	"github.com/digimartlabs/digimart-backend/internal/reviews"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/internal/stores"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/internal/users"
	"github.com/digimartlabs/digimart-backend/internal/wallet"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
	"github.com/digimartlabs/digimart-backend/pkg/migrate"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	pkgredis "github.com/digimartlabs/digimart-backend/pkg/redis"
	"github.com/digimartlabs/digimart-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap square", err)
		os.Exit(1)
	}

	sagaMetrics := metrics.NewSagaMetrics(prometheus.DefaultRegisterer)
	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	ledgerSvc := ledger.NewService(ledger.NewRepository(conn), logg)
	txlogSvc := txlog.NewService(txlog.NewRepository(conn), logg)
	stockSvc := stock.NewService(stock.NewRepository(conn), logg)
	assetSvc := assets.NewService(assets.NewRepository(conn), logg)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	compensator := checkout.NewCompensator(dbClient, orderRepo, ledgerSvc, txlogSvc, stockSvc, assetSvc, outboxSvc, sagaMetrics, logg)
	checkoutSvc := checkout.NewService(dbClient, orderRepo, productRepo, ledgerSvc, txlogSvc, stockSvc, assetSvc, outboxSvc, compensator, cfg.Checkout, sagaMetrics, logg)

	lock, err := reaper.NewRedisLock(redisClient, redisClient.LockKey("expired-order-reaper"), cfg.Reaper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper lock", err)
		os.Exit(1)
	}
	reaperSvc, err := reaper.NewService(reaper.ServiceParams{
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
	reaperSvc.Start(context.Background())
	defer reaperSvc.Stop(context.Background())

	svcs := routes.Services{
		Users:         users.NewService(users.NewRepository(conn), logg),
		Stores:        stores.NewService(stores.NewRepository(conn), logg),
		Products:      products.NewService(dbClient, productRepo, assetSvc, stockSvc, logg),
		Checkout:      checkoutSvc,
		Orders:        orders.NewService(orderRepo, logg),
		Wallet:        wallet.NewService(dbClient, ledgerSvc, txlogSvc, outboxSvc, squareClient, cfg.Square, logg),
		Transactions:  txlogSvc,
		Reviews:       reviews.NewService(reviews.NewRepository(conn), orderRepo, logg),
		Activity:      activity.NewService(activity.NewRepository(conn), logg),
		Notifications: notifications.NewService(notifications.NewRepository(conn), logg),
		Reaper:        reaperSvc,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, svcs),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
