// Package app wires the adapters, the mutation pipeline and the HTTP servers
// shared by every foodhub binary.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/foodhub/internal/adapter/api"
	"github.com/V4T54L/foodhub/internal/adapter/broker/kafka"
	"github.com/V4T54L/foodhub/internal/adapter/broker/rabbitmq"
	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	"github.com/V4T54L/foodhub/internal/adapter/pii"
	"github.com/V4T54L/foodhub/internal/adapter/repository/journal"
	"github.com/V4T54L/foodhub/internal/adapter/repository/memory"
	"github.com/V4T54L/foodhub/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/foodhub/internal/adapter/repository/redis"
	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/pkg/config"
	"github.com/V4T54L/foodhub/internal/usecase"
)

const (
	healthCheckInterval = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Infra holds the process-wide connections and adapters. Handles are pooled
// and safe for concurrent use.
type Infra struct {
	DB      *sql.DB
	Redis   *redis.Client
	Store   *postgres.Store
	Cache   domain.CacheStore
	Broker  domain.EventBroker
	Journal *journal.Journal
	Metrics *metrics.PipelineMetrics

	logger  *slog.Logger
	closers []func() error
}

// Connect opens postgres, redis (when a redis backend is configured), the
// cache store, the event broker and the failed-event journal.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	infra := &Infra{logger: logger, Metrics: metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)}

	db, err := OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	infra.DB = db
	infra.closers = append(infra.closers, db.Close)
	infra.Store = postgres.NewStore(db, logger)
	logger.Info("connected to postgres")

	if cfg.CacheBackend == config.CacheRedis || cfg.EventBroker == config.BrokerRedis {
		client, err := OpenRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Redis = client
		infra.closers = append(infra.closers, client.Close)
	}

	if infra.Cache, err = newCacheStore(cfg, infra.Redis, logger); err != nil {
		infra.Close()
		return nil, err
	}

	if infra.Broker, err = NewBroker(ctx, cfg, infra.Redis, logger); err != nil {
		infra.Close()
		return nil, err
	}
	infra.closers = append(infra.closers, infra.Broker.Close)

	if infra.Journal, err = OpenJournal(cfg, logger); err != nil {
		infra.Close()
		return nil, err
	}
	infra.closers = append(infra.closers, infra.Journal.Close)

	return infra, nil
}

// Close releases every handle in reverse order of acquisition.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.logger.Error("failed to close resource", "error", err)
		}
	}
	i.closers = nil
}

// Pipeline builds the mutation pipeline and read path over the infra.
func (i *Infra) Pipeline(cfg *config.Config, logger *slog.Logger) (*usecase.MutationPipeline, *usecase.ReadPath) {
	cache := usecase.NewCacheCoordinator(i.Cache, usecase.CacheConfig{
		KeyPrefix: cfg.CacheKeyPrefix,
		TTL:       cfg.CacheTTL,
		Timeout:   cfg.CacheTimeout,
	}, logger, i.Metrics)
	publisher := NewPublisher(cfg, i.Broker, i.Journal, logger, i.Metrics)
	pipeline := usecase.NewMutationPipeline(i.Store, cache, publisher, cfg.StoreTimeout, logger, i.Metrics)
	reads := usecase.NewReadPath(cache, cfg.StoreTimeout, cfg.ReadCoalescing, logger)
	return pipeline, reads
}

// NewPublisher builds the event publisher with PII redaction and the journal.
func NewPublisher(cfg *config.Config, broker domain.EventBroker, j domain.FailedEventJournal, logger *slog.Logger, m *metrics.PipelineMetrics) *usecase.EventPublisher {
	return usecase.NewEventPublisher(broker, j, pii.NewRedactor(cfg.PIIRedactionFields, logger), usecase.RetryConfig{
		MaxAttempts:    cfg.PublishMaxAttempts,
		BaseDelay:      cfg.PublishBaseDelay,
		MaxDelay:       cfg.PublishMaxDelay,
		AttemptTimeout: cfg.PublishAttemptTimeout,
	}, logger, m)
}

// RouterConfig maps the HTTP settings of cfg.
func RouterConfig(cfg *config.Config) api.RouterConfig {
	return api.RouterConfig{RateLimitRPS: cfg.RateLimitRPS, RateLimitBurst: cfg.RateLimitBurst}
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("POSTGRES_URL is required")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// OpenRedis parses url and pings the server. An unreachable server is only a
// warning: cache and stream calls degrade until it comes back.
func OpenRedis(ctx context.Context, url string, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("could not connect to redis, continuing degraded", "error", err)
	} else {
		logger.Info("connected to redis")
	}
	return client, nil
}

// OpenJournal opens the failed-event journal in cfg.JournalDir.
func OpenJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	j, err := journal.Open(cfg.JournalDir, journal.Config{
		SegmentBytes: cfg.JournalSegmentBytes,
		MaxBytes:     cfg.JournalMaxBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open failed-event journal: %w", err)
	}
	return j, nil
}

func newCacheStore(cfg *config.Config, client *redis.Client, logger *slog.Logger) (domain.CacheStore, error) {
	if cfg.CacheBackend == config.CacheRedis {
		logger.Info("using redis cache store")
		return redisrepo.NewCacheStore(client, logger), nil
	}

	memCfg := memory.DefaultConfig()
	memCfg.Capacity = cfg.CacheCapacity
	memCfg.TTL = cfg.CacheTTL
	store, err := memory.NewCacheStore(memCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory cache store: %w", err)
	}
	logger.Info("using in-memory cache store", "capacity", memCfg.Capacity)
	return store, nil
}

// NewBroker selects the event broker named by cfg.EventBroker.
func NewBroker(ctx context.Context, cfg *config.Config, client *redis.Client, logger *slog.Logger) (domain.EventBroker, error) {
	switch cfg.EventBroker {
	case config.BrokerKafka:
		logger.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers)
		return kafka.NewBroker(cfg.KafkaBrokers, logger), nil
	case config.BrokerRabbitMQ:
		broker, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		logger.Info("publishing events to rabbitmq", "exchange", cfg.RabbitMQExchange)
		return broker, nil
	default:
		stream := NewEventStream(cfg, client, logger)
		go stream.StartHealthCheck(ctx, healthCheckInterval)
		logger.Info("publishing events to redis streams")
		return stream, nil
	}
}

// NewEventStream builds the redis streams adapter.
func NewEventStream(cfg *config.Config, client *redis.Client, logger *slog.Logger) *redisrepo.EventStream {
	return redisrepo.NewEventStream(client, redisrepo.StreamConfig{
		MaxLen: cfg.EventStreamMaxLen,
		Block:  cfg.NotifierBlock,
	}, logger)
}

// Serve runs handler on cfg.HTTPAddr and the Prometheus handler on
// cfg.MetricsAddr until ctx is done or a server fails, then shuts both down.
func Serve(ctx context.Context, cfg *config.Config, name string, handler http.Handler, logger *slog.Logger) error {
	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []struct {
		name   string
		server *http.Server
	}{{name, apiServer}, {"metrics", metricsServer}} {
		g.Go(func() error {
			logger.Info("starting server", "server", s.name, "addr", s.server.Addr)
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server failed: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers shut down gracefully")
	return nil
}
