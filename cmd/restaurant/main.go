package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/foodhub/internal/adapter/api"
	"github.com/V4T54L/foodhub/internal/app"
	"github.com/V4T54L/foodhub/internal/pkg/config"
	"github.com/V4T54L/foodhub/internal/pkg/logger"
	"github.com/V4T54L/foodhub/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).With("service", "restaurant")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("restaurant service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	pipeline, reads := infra.Pipeline(cfg, log)
	svc := usecase.NewRestaurantService(pipeline, reads, infra.Store, log)

	return app.Serve(ctx, cfg, "restaurant", api.NewRestaurantRouter(app.RouterConfig(cfg), log, svc), log)
}
