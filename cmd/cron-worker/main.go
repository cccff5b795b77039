package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/visitrewards-backend/internal/cron"
	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/instance"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/metrics"
	"github.com/angelmondragon/visitrewards-backend/pkg/migrate"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default: all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		InstanceID:  instance.GetID(),
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
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
	resolver, err := programs.NewResolver(programs.NewRepository(conn), redisClient, cfg.Programs.CacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create program resolver", err)
		os.Exit(1)
	}
	programGuard, err := ledger.NewProgramGuard(ledger.GuardParams{
		DB:         dbClient,
		MaxRetries: cfg.Ledger.MaxRetries,
		Backoff:    cfg.Ledger.RetryBackoff,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create program guard", err)
		os.Exit(1)
	}
	giftService, err := giftsync.NewService(giftsync.ServiceParams{
		Repo:        giftsync.NewRepository(conn),
		Guard:       programGuard,
		Invalidator: resolver,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gift sync service", err)
		os.Exit(1)
	}

	giftJob, err := cron.NewGiftSyncJob(cron.GiftSyncJobParams{Logger: logg, Reconciler: giftService})
	if err != nil {
		logg.Error(context.Background(), "failed to create gift sync job", err)
		os.Exit(1)
	}
	tokenJob, err := cron.NewRedemptionTokenJob(cron.RedemptionTokenJobParams{
		Logger:    logg,
		Ledger:    ledger.NewRepository(conn),
		Retention: cfg.Ledger.RedemptionTokenRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create redemption token job", err)
		os.Exit(1)
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(conn),
		DeadLetters: outbox.NewDLQRepository(conn),
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(giftJob, tokenJob, outboxJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	if *only != "" {
		registry, err = registry.Only(strings.Split(*only, ",")...)
		if err != nil {
			logg.Error(context.Background(), "invalid -jobs selection", err)
			os.Exit(1)
		}
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metricsCollector,
		Interval:   cfg.GiftSync.Interval,
		JobTimeout: cfg.GiftSync.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    service.Interval().String(),
		"jobs":        registry.Names(),
	})

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
