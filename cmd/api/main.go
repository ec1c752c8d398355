package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/velafit/velafit-backend/api/routes"
	"github.com/velafit/velafit-backend/internal/credits"
	"github.com/velafit/velafit-backend/internal/plans"
	"github.com/velafit/velafit-backend/pkg/config"
	"github.com/velafit/velafit-backend/pkg/db"
	"github.com/velafit/velafit-backend/pkg/logger"
	"github.com/velafit/velafit-backend/pkg/migrate"
	"github.com/velafit/velafit-backend/pkg/redis"
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

	plansService, err := plans.NewService(plans.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	creditsService, err := credits.NewService(credits.ServiceParams{
		Repo:  credits.NewRepository(dbClient.DB()),
		Tx:    dbClient,
		Plans: plansService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credits service", err)
		os.Exit(1)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:  cfg,
			Logger:  logg,
			DB:      dbClient,
			Redis:   redisClient,
			Plans:   plansService,
			Credits: creditsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
