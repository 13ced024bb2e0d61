package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/foodhub/internal/domain"
)

// RestaurantService is the restaurant facade the handler drives.
type RestaurantService interface {
	Create(ctx context.Context, in domain.RestaurantInput) (domain.MutationResult, error)
	Update(ctx context.Context, id string, patch domain.RestaurantPatch) (domain.MutationResult, error)
	Deactivate(ctx context.Context, id string) (domain.MutationResult, error)
	Get(ctx context.Context, id string) (*domain.RestaurantMenu, error)
	List(ctx context.Context) ([]domain.RestaurantMenu, error)
}

// RestaurantHandler serves the restaurant service routes.
type RestaurantHandler struct {
	svc    RestaurantService
	logger *slog.Logger
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(svc RestaurantService, logger *slog.Logger) *RestaurantHandler {
	return &RestaurantHandler{svc: svc, logger: logger.With("component", "restaurant_handler")}
}

// List handles GET /restaurants.
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.svc.List(r.Context())
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, restaurants)
}

// Get handles GET /restaurants/{id}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	restaurant, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, restaurant)
}

// Create handles POST /restaurants.
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.RestaurantInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.Create(r.Context(), in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusCreated, result)
}

// Update handles PATCH /restaurants/{id}.
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.RestaurantPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}

// Delete handles DELETE /restaurants/{id}. Restaurants are soft deleted.
func (h *RestaurantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}
