package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/foodhub/internal/domain"
)

// MenuService is the menu facade the handler drives.
type MenuService interface {
	CreateCategory(ctx context.Context, restaurantID string, in domain.CategoryInput) (domain.MutationResult, error)
	UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (domain.MutationResult, error)
	DeleteCategory(ctx context.Context, id string) (domain.MutationResult, error)
	ReorderCategories(ctx context.Context, restaurantID string, positions []domain.CategoryPosition) (domain.MutationResult, error)
	ListCategories(ctx context.Context, restaurantID string) ([]domain.Category, error)
	CreateItem(ctx context.Context, restaurantID string, in domain.MenuItemInput) (domain.MutationResult, error)
	UpdateItem(ctx context.Context, id string, patch domain.MenuItemPatch) (domain.MutationResult, error)
	SetItemAvailability(ctx context.Context, id string, available bool) (domain.MutationResult, error)
	DeleteItem(ctx context.Context, id string) (domain.MutationResult, error)
	GetItem(ctx context.Context, id string) (*domain.MenuItem, error)
	GetMenu(ctx context.Context, restaurantID string) (*domain.RestaurantMenu, error)
}

// MenuHandler serves category and menu item routes.
type MenuHandler struct {
	svc    MenuService
	logger *slog.Logger
}

func NewMenuHandler(svc MenuService, logger *slog.Logger) *MenuHandler {
	return &MenuHandler{svc: svc, logger: logger.With("component", "menu_handler")}
}

// GET /restaurants/{restaurantID}/menu
func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.svc.GetMenu(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, menu)
}

// GET /restaurants/{restaurantID}/categories
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, categories)
}

// POST /restaurants/{restaurantID}/categories
func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in domain.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.CreateCategory(r.Context(), chi.URLParam(r, "restaurantID"), in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusCreated, result)
}

// PUT /restaurants/{restaurantID}/categories/reorder
func (h *MenuHandler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Categories []domain.CategoryPosition `json:"categories"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.ReorderCategories(r.Context(), chi.URLParam(r, "restaurantID"), body.Categories)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}

// PATCH /categories/{id}
func (h *MenuHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch domain.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.UpdateCategory(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}

// DELETE /categories/{id}
func (h *MenuHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.DeleteCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusNoContent, result)
}

// POST /restaurants/{restaurantID}/items
func (h *MenuHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in domain.MenuItemInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.CreateItem(r.Context(), chi.URLParam(r, "restaurantID"), in)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusCreated, result)
}

// GET /items/{id}
func (h *MenuHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, item)
}

// PATCH /items/{id}
func (h *MenuHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch domain.MenuItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	result, err := h.svc.UpdateItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}

// PATCH /items/{id}/availability
func (h *MenuHandler) SetItemAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsAvailable *bool `json:"isAvailable"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if body.IsAvailable == nil {
		respondWithError(w, h.logger, domain.NewValidationError("isAvailable", "is required"))
		return
	}
	result, err := h.svc.SetItemAvailability(r.Context(), chi.URLParam(r, "id"), *body.IsAvailable)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusOK, result)
}

// DELETE /items/{id}
func (h *MenuHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.DeleteItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	respondWithMutation(w, h.logger, http.StatusNoContent, result)
}
