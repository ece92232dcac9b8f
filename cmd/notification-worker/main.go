package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/digimartlabs/digimart-backend/internal/notifications"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/migrate"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/idempotency"
	"github.com/digimartlabs/digimart-backend/pkg/pubsub"
	pkgredis "github.com/digimartlabs/digimart-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notification-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "notification-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notification-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	svc := notifications.NewService(notifications.NewRepository(dbClient.DB()), logg)

	subscriptions := map[string]interface {
		Run(context.Context) error
	}{}
	if sub := pubsubClient.OrdersSubscription(); sub != nil {
		consumer, err := notifications.NewConsumer(svc, sub, manager, logg)
		requireResource(ctx, logg, "orders consumer", err)
		subscriptions["orders"] = consumer
	}
	if sub := pubsubClient.NotificationSubscription(); sub != nil {
		consumer, err := notifications.NewConsumer(svc, sub, manager, logg)
		requireResource(ctx, logg, "notification consumer", err)
		subscriptions["notifications"] = consumer
	}
	if len(subscriptions) == 0 {
		requireResource(ctx, logg, "subscriptions", errors.New("no subscriptions configured"))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "notification worker ready")

	group, groupCtx := errgroup.WithContext(runCtx)
	for name, consumer := range subscriptions {
		group.Go(func() error {
			if err := consumer.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s consumer: %w", name, err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logg.Error(runCtx, "notification worker failed", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "notification worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
