// Command replay republishes the events held in the failed-event journal, in
// the order they were journaled, and truncates the journal on success.
//
// Stop the service that owns JOURNAL_DIR before running it.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

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

	log := logger.New(cfg.LogLevel).With("service", "replay")
	if err := run(cfg, log); err != nil {
		log.Error("journal replay failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	j, err := app.OpenJournal(cfg, log)
	if err != nil {
		return err
	}
	defer j.Close()

	if j.Size() == 0 {
		log.Info("journal is empty, nothing to replay", "dir", cfg.JournalDir)
		return nil
	}

	var client *redis.Client
	if cfg.EventBroker == config.BrokerRedis {
		if client, err = app.OpenRedis(ctx, cfg.RedisURL, log); err != nil {
			return err
		}
		defer client.Close()
	}
	broker, err := app.NewBroker(ctx, cfg, client, log)
	if err != nil {
		return err
	}
	defer broker.Close()

	// No journal: a failed replay leaves the events where they are.
	publisher := app.NewPublisher(cfg, broker, nil, log, nil)
	n, err := usecase.NewReplayJournalUseCase(j, publisher, log).Run(ctx)
	if err != nil {
		return err
	}
	log.Info("replayed journaled events", "count", n, "dir", cfg.JournalDir)
	return nil
}
