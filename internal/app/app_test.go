package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/adapter/broker/kafka"
	"github.com/V4T54L/foodhub/internal/adapter/repository/memory"
	redisrepo "github.com/V4T54L/foodhub/internal/adapter/repository/redis"
	"github.com/V4T54L/foodhub/internal/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		HTTPAddr:            "127.0.0.1:0",
		MetricsAddr:         "127.0.0.1:0",
		CacheBackend:        config.CacheMemory,
		CacheCapacity:       100,
		CacheTTL:            time.Minute,
		EventBroker:         config.BrokerKafka,
		KafkaBrokers:        []string{"localhost:9092"},
		JournalDir:          t.TempDir(),
		JournalSegmentBytes: 1024,
		JournalMaxBytes:     4096,
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, testConfig(t), "test", http.NotFoundHandler(), testLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_ReportsListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = "not-an-address"

	err := Serve(context.Background(), cfg, "test", http.NotFoundHandler(), testLogger())

	assert.Error(t, err)
}

func TestBackendSelection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t)

	store, err := newCacheStore(cfg, nil, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &memory.CacheStore{}, store)

	broker, err := NewBroker(ctx, cfg, nil, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &kafka.Broker{}, broker)
	require.NoError(t, broker.Close())

	client, err := OpenRedis(ctx, "redis://"+miniredis.RunT(t).Addr(), testLogger())
	require.NoError(t, err)
	defer client.Close()

	cfg.CacheBackend = config.CacheRedis
	cfg.EventBroker = config.BrokerRedis
	store, err = newCacheStore(cfg, client, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &redisrepo.CacheStore{}, store)

	broker, err = NewBroker(ctx, cfg, client, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &redisrepo.EventStream{}, broker)
}

func TestOpenJournal(t *testing.T) {
	j, err := OpenJournal(testConfig(t), testLogger())
	require.NoError(t, err)
	defer j.Close()
	assert.Zero(t, j.Size())
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	assert.Error(t, err)
}
