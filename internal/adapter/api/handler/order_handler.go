package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/foodhub/internal/domain"
)

// OrderService is the order facade the handler drives.
type OrderService interface {
	Create(ctx context.Context, in domain.OrderInput) (domain.MutationResult, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (domain.MutationResult, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListForRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error)
}

// OrderHandler serves the order service routes.
type OrderHandler struct {
	svc    OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger.With("component", "order_handler")}
}

// List handles GET /orders and GET /orders?restaurantId={id}.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		orders []domain.Order
		err    error
	)
	if restaurantID := r.URL.Query().Get("restaurantId"); restaurantID != "" {
		orders, err = h.svc.ListForRestaurant(r.Context(), restaurantID)
	} else {
		orders, err = h.svc.List(r.Context())
	}
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, orders)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, order)
}

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.OrderInput
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

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.OrderStatus `json:"status"`
		Notes  string             `json:"notes"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), body.Status, body.Notes)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}
