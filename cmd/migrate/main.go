package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/V4T54L/foodhub/internal/adapter/repository/postgres"
	"github.com/V4T54L/foodhub/internal/app"
	"github.com/V4T54L/foodhub/internal/pkg/config"
	"github.com/V4T54L/foodhub/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel).With("service", "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := app.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	log.Info("schema applied")
}
