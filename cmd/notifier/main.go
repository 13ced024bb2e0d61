package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/foodhub/internal/adapter/api"
	"github.com/V4T54L/foodhub/internal/adapter/api/handler"
	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	redisrepo "github.com/V4T54L/foodhub/internal/adapter/repository/redis"
	"github.com/V4T54L/foodhub/internal/app"
	"github.com/V4T54L/foodhub/internal/pkg/config"
	"github.com/V4T54L/foodhub/internal/pkg/logger"
	"github.com/V4T54L/foodhub/internal/usecase"
)

const errorBackoff = time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).With("service", "notifier")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("notifier stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := app.OpenRedis(ctx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer client.Close()

	stream := app.NewEventStream(cfg, client, log)
	if err := stream.SetupConsumerGroup(ctx, cfg.NotifierGroup); err != nil {
		return err
	}

	m := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	sse := handler.NewSSEBroker(log)
	tracker := redisrepo.NewSequenceTracker(client, cfg.CacheKeyPrefix+"notifier:", 0)
	fanout := usecase.NewEventFanoutUseCase(stream, tracker, sse, log, m, cfg.NotifierGroup, cfg.NotifierConsumer)

	adminUseCase := usecase.NewAdminStreamUseCase(redisrepo.NewStreamAdmin(client, log))
	router := api.NewNotifierRouter(app.RouterConfig(cfg), log, sse, adminUseCase)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("notifier consuming events", "group", cfg.NotifierGroup, "consumer", cfg.NotifierConsumer)
		for gctx.Err() == nil {
			if _, err := fanout.ProcessBatch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("error processing batch", "error", err)
				select {
				case <-time.After(errorBackoff):
				case <-gctx.Done():
				}
			}
		}
		log.Info("context cancelled, shutting down consumer loop")
		return nil
	})
	g.Go(func() error {
		return app.Serve(gctx, cfg, "notifier", router, log)
	})
	return g.Wait()
}
