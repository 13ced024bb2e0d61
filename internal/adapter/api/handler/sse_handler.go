package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	clientBuffer      = 64
	keepAliveInterval = 15 * time.Second
)

type sseClient struct {
	scopeID string
	ch      chan []byte
}

// SSEBroker fans delivered events out to Server-Sent Events clients. It
// implements the notifier's event sink.
type SSEBroker struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
}

// NewSSEBroker creates a new SSEBroker.
func NewSSEBroker(logger *slog.Logger) *SSEBroker {
	return &SSEBroker{
		logger:  logger.With("component", "sse_broker"),
		clients: make(map[*sseClient]struct{}),
	}
}

// ServeHTTP streams events to one client. GET /events?scopeId={restaurantId}
// limits the stream to one restaurant.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := &sseClient{scopeID: r.URL.Query().Get("scopeId"), ch: make(chan []byte, clientBuffer)}
	b.addClient(client)
	defer b.removeClient(client)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			fmt.Fprintf(w, "event: domain_event\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Deliver broadcasts event to every matching client without blocking.
func (b *SSEBroker) Deliver(event domain.DomainEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal SSE message", "event_id", event.ID, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		if client.scopeID != "" && client.scopeID != event.ScopeID {
			continue
		}
		select {
		case client.ch <- data:
		default:
			b.logger.Warn("SSE client buffer full, dropping event", "event_id", event.ID)
		}
	}
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected", "scope_id", client.scopeID)
}

func (b *SSEBroker) removeClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	b.logger.Info("SSE client disconnected", "scope_id", client.scopeID)
}
