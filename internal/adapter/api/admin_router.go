package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/foodhub/internal/adapter/api/handler"
	"github.com/V4T54L/foodhub/internal/adapter/api/middleware"
	"github.com/V4T54L/foodhub/internal/usecase"
)

// NewNotifierRouter creates the router of the notifier: the SSE event feed
// plus the event stream admin API.
func NewNotifierRouter(cfg RouterConfig, logger *slog.Logger, events *handler.SSEBroker, adminUseCase *usecase.AdminStreamUseCase) http.Handler {
	adminHandler := handler.NewAdminHandler(adminUseCase, logger)

	r := newRouter(logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		r.Get("/events", events.ServeHTTP)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/health", adminHandler.HealthCheck)

		r.Route("/streams/{stream}", func(r chi.Router) {
			r.Get("/groups", adminHandler.GetGroupInfo)
			r.Get("/groups/{group}/consumers", adminHandler.GetConsumerInfo)

			r.Get("/groups/{group}/pending", adminHandler.GetPendingSummary)
			r.Get("/groups/{group}/pending/messages", adminHandler.GetPendingMessages)

			r.Post("/groups/{group}/claim", adminHandler.ClaimMessages)
			r.Post("/groups/{group}/ack", adminHandler.AcknowledgeMessages)
			r.Post("/trim", adminHandler.TrimStream)
		})
	})
	return r
}
