package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/visitrewards-backend/api/routes"
	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/memberships"
	"github.com/angelmondragon/visitrewards-backend/internal/notifications"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/internal/redemptions"
	"github.com/angelmondragon/visitrewards-backend/internal/visits"
	"github.com/angelmondragon/visitrewards-backend/pkg/config"
	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/instance"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/metrics"
	"github.com/angelmondragon/visitrewards-backend/pkg/migrate"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		InstanceID:  instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	conn := dbClient.DB()
	ledgerRepo := ledger.NewRepository(conn)
	catalogRepo := programs.NewRepository(conn)

	resolver, err := programs.NewResolver(catalogRepo, redisClient, cfg.Programs.CacheTTL, logg)
	if err != nil {
		logg.Error(ctx, "failed to create program resolver", err)
		os.Exit(1)
	}

	guardParams := ledger.GuardParams{
		DB:         dbClient,
		MaxRetries: cfg.Ledger.MaxRetries,
		Backoff:    cfg.Ledger.RetryBackoff,
		Observer:   ledgerMetrics,
		Logger:     logg,
	}
	membershipGuard, err := ledger.NewMembershipGuard(guardParams)
	if err != nil {
		logg.Error(ctx, "failed to create membership guard", err)
		os.Exit(1)
	}
	programGuard, err := ledger.NewProgramGuard(guardParams)
	if err != nil {
		logg.Error(ctx, "failed to create program guard", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewEmitter(dbClient, outbox.NewService(outbox.NewRepository(conn), logg), logg)
	if err != nil {
		logg.Error(ctx, "failed to create notification emitter", err)
		os.Exit(1)
	}

	giftService, err := giftsync.NewService(giftsync.ServiceParams{
		Repo:        giftsync.NewRepository(conn),
		Guard:       programGuard,
		Invalidator: resolver,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create gift sync service", err)
		os.Exit(1)
	}

	catalogService, err := programs.NewService(programs.ServiceParams{
		Repo:       catalogRepo,
		DB:         dbClient,
		Resolver:   resolver,
		Reconciler: giftService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	visitService, err := visits.NewService(visits.ServiceParams{
		Ledger:   ledgerRepo,
		Resolver: resolver,
		Guard:    membershipGuard,
		Notifier: notifier,
		Metrics:  ledgerMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create visit service", err)
		os.Exit(1)
	}

	redemptionService, err := redemptions.NewService(redemptions.ServiceParams{
		Ledger:         ledgerRepo,
		Catalog:        catalogRepo,
		Resolver:       resolver,
		Guard:          membershipGuard,
		Notifier:       notifier,
		Metrics:        ledgerMetrics,
		TokenRetention: cfg.Ledger.RedemptionTokenRetention,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create redemption service", err)
		os.Exit(1)
	}

	membershipService, err := memberships.NewService(memberships.ServiceParams{
		Repo:        memberships.NewRepository(conn),
		Ledger:      ledgerRepo,
		Eligibility: redemptionService,
		Resolver:    resolver,
	})
	if err != nil {
		logg.Error(ctx, "failed to create membership service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Metrics:     registry,
			Visits:      visitService,
			Redemptions: redemptionService,
			Catalog:     catalogService,
			Memberships: membershipService,
			GiftSync:    giftService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
