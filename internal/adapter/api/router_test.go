package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/adapter/api/handler"
	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
	"github.com/V4T54L/foodhub/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func committed(entity any) domain.MutationResult {
	return domain.MutationResult{Entity: entity, State: domain.StateDone, CacheOutcome: domain.OutcomeOK, PublishOutcome: domain.OutcomeOK}
}

type fakeRestaurants struct {
	result  domain.MutationResult
	err     error
	created domain.RestaurantInput
	list    []domain.RestaurantMenu
}

func (f *fakeRestaurants) Create(ctx context.Context, in domain.RestaurantInput) (domain.MutationResult, error) {
	f.created = in
	return f.result, f.err
}

func (f *fakeRestaurants) Update(ctx context.Context, id string, patch domain.RestaurantPatch) (domain.MutationResult, error) {
	return f.result, f.err
}

func (f *fakeRestaurants) Deactivate(ctx context.Context, id string) (domain.MutationResult, error) {
	return f.result, f.err
}

func (f *fakeRestaurants) Get(ctx context.Context, id string) (*domain.RestaurantMenu, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RestaurantMenu{Restaurant: domain.Restaurant{ID: id}}, nil
}

func (f *fakeRestaurants) List(ctx context.Context) ([]domain.RestaurantMenu, error) {
	return f.list, f.err
}

type fakeMenu struct {
	handler.MenuService
	availability *bool
	positions    []domain.CategoryPosition
	result       domain.MutationResult
	err          error
}

func (f *fakeMenu) SetItemAvailability(ctx context.Context, id string, available bool) (domain.MutationResult, error) {
	f.availability = &available
	return f.result, f.err
}

func (f *fakeMenu) ReorderCategories(ctx context.Context, restaurantID string, positions []domain.CategoryPosition) (domain.MutationResult, error) {
	f.positions = positions
	return f.result, f.err
}

func (f *fakeMenu) DeleteItem(ctx context.Context, id string) (domain.MutationResult, error) {
	return f.result, f.err
}

type fakeOrders struct {
	handler.OrderService
	listedFor string
	status    domain.OrderStatus
	result    domain.MutationResult
	err       error
}

func (f *fakeOrders) List(ctx context.Context) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (f *fakeOrders) ListForRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	f.listedFor = restaurantID
	return []domain.Order{{ID: "o-1", RestaurantID: restaurantID}}, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (domain.MutationResult, error) {
	f.status = status
	return f.result, f.err
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRestaurantRouter(t *testing.T) {
	t.Run("Create Returns Entity And Outcome Headers", func(t *testing.T) {
		svc := &fakeRestaurants{result: committed(domain.Restaurant{ID: "r-1", Name: "Thai Garden"})}
		router := NewRestaurantRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodPost, "/restaurants", `{"name":"Thai Garden","email":"hi@thai.example"}`)

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "done", rr.Header().Get(handler.HeaderMutationState))
		assert.Equal(t, "ok", rr.Header().Get(handler.HeaderCacheOutcome))
		assert.Equal(t, "Thai Garden", svc.created.Name)
		var got domain.Restaurant
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "r-1", got.ID)
	})

	t.Run("Degraded Mutation Is Still A Success", func(t *testing.T) {
		result := committed(domain.Restaurant{ID: "r-1"})
		result.State = domain.StateDegraded
		result.PublishOutcome = domain.OutcomeDegraded
		router := NewRestaurantRouter(RouterConfig{}, testLogger(), &fakeRestaurants{result: result})

		rr := serve(t, router, http.MethodPatch, "/restaurants/r-1", `{"name":"New"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "degraded", rr.Header().Get(handler.HeaderMutationState))
		assert.Equal(t, "degraded", rr.Header().Get(handler.HeaderPublishOutcome))
	})

	errorCases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &domain.ValidationError{Fields: map[string]string{"name": "cannot be blank"}}, http.StatusBadRequest},
		{"not found", domain.NewNotFound(domain.EntityRestaurant, "r-9"), http.StatusNotFound},
		{"conflict", domain.NewConflict(domain.EntityRestaurant, "r-9", errors.New("duplicate")), http.StatusConflict},
		{"store unavailable", &domain.StoreError{Kind: domain.StoreUnavailable, Err: errors.New("dial tcp")}, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range errorCases {
		t.Run("Maps "+tc.name, func(t *testing.T) {
			router := NewRestaurantRouter(RouterConfig{}, testLogger(), &fakeRestaurants{err: tc.err})

			rr := serve(t, router, http.MethodGet, "/restaurants/r-9", "")

			assert.Equal(t, tc.code, rr.Code)
		})
	}

	t.Run("Validation Body Lists Fields", func(t *testing.T) {
		svc := &fakeRestaurants{err: &domain.ValidationError{Fields: map[string]string{"name": "cannot be blank"}}}
		router := NewRestaurantRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodPost, "/restaurants", `{"name":""}`)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"validation failed","fields":{"name":"cannot be blank"}}`, rr.Body.String())
	})

	t.Run("Malformed And Unknown Fields Are Rejected", func(t *testing.T) {
		router := NewRestaurantRouter(RouterConfig{}, testLogger(), &fakeRestaurants{})

		assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPost, "/restaurants", `{"name":`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPost, "/restaurants", `{"owner":"x"}`).Code)
		assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPost, "/restaurants", "").Code)
	})

	t.Run("Writes Are Rate Limited", func(t *testing.T) {
		svc := &fakeRestaurants{result: committed(domain.Restaurant{ID: "r-1"})}
		router := NewRestaurantRouter(RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, testLogger(), svc)

		assert.Equal(t, http.StatusOK, serve(t, router, http.MethodDelete, "/restaurants/r-1", "").Code)
		rr := serve(t, router, http.MethodDelete, "/restaurants/r-1", "")
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
		assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/restaurants", "").Code)
	})

	t.Run("Health", func(t *testing.T) {
		router := NewRestaurantRouter(RouterConfig{}, testLogger(), &fakeRestaurants{})
		rr := serve(t, router, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})
}

func TestMenuRouter(t *testing.T) {
	t.Run("Availability Requires The Flag", func(t *testing.T) {
		svc := &fakeMenu{result: committed(domain.MenuItem{ID: "item-1"})}
		router := NewMenuRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodPatch, "/items/item-1/availability", `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Nil(t, svc.availability)

		rr = serve(t, router, http.MethodPatch, "/items/item-1/availability", `{"isAvailable":false}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, svc.availability)
		assert.False(t, *svc.availability)
	})

	t.Run("Reorder Passes Positions Through", func(t *testing.T) {
		svc := &fakeMenu{result: committed([]domain.Category{})}
		router := NewMenuRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodPut, "/restaurants/r-1/categories/reorder",
			`{"categories":[{"id":"c-2","sortOrder":0},{"id":"c-1","sortOrder":1}]}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []domain.CategoryPosition{{ID: "c-2", SortOrder: 0}, {ID: "c-1", SortOrder: 1}}, svc.positions)
	})

	t.Run("Delete Returns No Content With Headers", func(t *testing.T) {
		router := NewMenuRouter(RouterConfig{}, testLogger(), &fakeMenu{result: committed(domain.MenuItem{ID: "item-1"})})

		rr := serve(t, router, http.MethodDelete, "/items/item-1", "")

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
		assert.Equal(t, "done", rr.Header().Get(handler.HeaderMutationState))
	})
}

func TestOrderRouter(t *testing.T) {
	t.Run("List Filters By Restaurant", func(t *testing.T) {
		svc := &fakeOrders{}
		router := NewOrderRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodGet, "/orders?restaurantId=r-1", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "r-1", svc.listedFor)
	})

	t.Run("Terminal Status Conflict", func(t *testing.T) {
		svc := &fakeOrders{err: domain.NewConflict(domain.EntityOrder, "o-1", errors.New("order is DELIVERED"))}
		router := NewOrderRouter(RouterConfig{}, testLogger(), svc)

		rr := serve(t, router, http.MethodPatch, "/orders/o-1/status", `{"status":"CANCELLED","notes":"late"}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, domain.OrderCancelled, svc.status)
	})
}

func TestNotifierRouter(t *testing.T) {
	repo := &mocks.MockStreamAdminRepository{Groups: []domain.ConsumerGroupInfo{{Name: "notifier"}}}
	router := NewNotifierRouter(RouterConfig{}, testLogger(), handler.NewSSEBroker(testLogger()), usecase.NewAdminStreamUseCase(repo))

	t.Run("Group Info", func(t *testing.T) {
		rr := serve(t, router, http.MethodGet, "/admin/streams/foodhub.events/groups", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "notifier")
	})

	t.Run("Unknown Stream", func(t *testing.T) {
		rr := serve(t, router, http.MethodGet, "/admin/streams/log_events/groups", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Trim Requires Positive Length", func(t *testing.T) {
		rr := serve(t, router, http.MethodPost, "/admin/streams/foodhub.events/trim", `{"maxLen":0}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = serve(t, router, http.MethodPost, "/admin/streams/foodhub.events/trim", `{"maxLen":500}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(500), repo.TrimmedTo)
	})

	t.Run("Ack", func(t *testing.T) {
		rr := serve(t, router, http.MethodPost, "/admin/streams/foodhub.events/groups/notifier/ack", `{"messageIds":["1-0"]}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"acknowledged":1}`, rr.Body.String())
	})
}
