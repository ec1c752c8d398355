package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velafit/velafit-backend/internal/credits"
	"github.com/velafit/velafit-backend/internal/cron"
	"github.com/velafit/velafit-backend/internal/plans"
	"github.com/velafit/velafit-backend/pkg/config"
	"github.com/velafit/velafit-backend/pkg/db"
	"github.com/velafit/velafit-backend/pkg/logger"
	"github.com/velafit/velafit-backend/pkg/metrics"
	"github.com/velafit/velafit-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	plansService, err := plans.NewService(plans.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create plans service", err)
		os.Exit(1)
	}

	creditsService, err := credits.NewService(credits.ServiceParams{
		Repo:  credits.NewRepository(dbClient.DB()),
		Tx:    dbClient,
		Plans: plansService,
	})
	if err != nil {
		logg.Error(ctx, "failed to create credits service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewCreditExpiryJob(cron.CreditExpiryJobParams{
		Logger:      logg,
		Credits:     creditsService,
		LedgerBatch: cfg.Sweeper.LedgerBatch,
		Retries:     cfg.Sweeper.RetryRetries,
		Backoff:     cfg.Sweeper.RetryBackoff,
	})
	if err != nil {
		logg.Error(ctx, "failed to create credit expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cron.LockTTLFor(cfg.Sweeper.Interval))
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Sweeper.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shut down")
}
