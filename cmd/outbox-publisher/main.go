package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/instance"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/migrate"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/registry"
	"github.com/angelmondragon/visitrewards-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	flush := flag.Bool("flush", false, "publish everything pending, then exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	if err := run(logg, *flush); err != nil {
		logg.Error(context.Background(), "notification relay stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(bootLogger *logger.Logger, flush bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		InstanceID:  instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"flush":       flush,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			bootLogger.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			bootLogger.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("build event registry: %w", err)
	}
	if err := pubsubClient.CheckTopics(ctx, eventRegistry.Topics()...); err != nil {
		return fmt.Errorf("check registry topics: %w", err)
	}
	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "event registry ready")
	relay, err := NewRelay(RelayParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("create notification relay: %w", err)
	}

	if flush {
		total, err := relay.Flush(ctx)
		logg.Info(logg.WithField(ctx, "settled", total), "notification relay flushed")
		return err
	}

	logg.Info(ctx, "starting notification relay")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "notification relay shutting down")
	return nil
}
