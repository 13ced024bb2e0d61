package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/foodhub/internal/adapter/api/handler"
	"github.com/V4T54L/foodhub/internal/adapter/api/middleware"
)

// RouterConfig carries the HTTP settings shared by every service router.
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

func newRouter(logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

// NewRestaurantRouter creates the HTTP router of the restaurant service.
func NewRestaurantRouter(cfg RouterConfig, logger *slog.Logger, svc handler.RestaurantService) http.Handler {
	h := handler.NewRestaurantHandler(svc, logger)

	r := newRouter(logger)
	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
	return r
}

// NewMenuRouter creates the HTTP router of the menu service.
func NewMenuRouter(cfg RouterConfig, logger *slog.Logger, svc handler.MenuService) http.Handler {
	h := handler.NewMenuHandler(svc, logger)

	r := newRouter(logger)
	r.Get("/restaurants/{restaurantID}/menu", h.GetMenu)
	r.Get("/restaurants/{restaurantID}/categories", h.ListCategories)
	r.Get("/items/{id}", h.GetItem)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))

		r.Post("/restaurants/{restaurantID}/categories", h.CreateCategory)
		r.Put("/restaurants/{restaurantID}/categories/reorder", h.ReorderCategories)
		r.Patch("/categories/{id}", h.UpdateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)

		r.Post("/restaurants/{restaurantID}/items", h.CreateItem)
		r.Patch("/items/{id}", h.UpdateItem)
		r.Patch("/items/{id}/availability", h.SetItemAvailability)
		r.Delete("/items/{id}", h.DeleteItem)
	})
	return r
}

// NewOrderRouter creates the HTTP router of the order service.
func NewOrderRouter(cfg RouterConfig, logger *slog.Logger, svc handler.OrderService) http.Handler {
	h := handler.NewOrderHandler(svc, logger)

	r := newRouter(logger)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
			r.Post("/", h.Create)
			r.Patch("/{id}/status", h.UpdateStatus)
		})
	})
	return r
}
