package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/V4T54L/foodhub/internal/domain"
)

// OrderService is the order service facade.
type OrderService struct {
	pipeline *MutationPipeline
	reads    *ReadPath
	reader   domain.OrderReader
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(pipeline *MutationPipeline, reads *ReadPath, reader domain.OrderReader, logger *slog.Logger) *OrderService {
	return &OrderService{
		pipeline: pipeline,
		reads:    reads,
		reader:   reader,
		logger:   logger.With("component", "order_service"),
		now:      time.Now,
	}
}

func validateOrderLine(l domain.OrderLineInput) error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.MenuItemID, validation.Required),
		validation.Field(&l.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&l.Price, validation.Min(0.0)),
	)
}

func validateOrderInput(in domain.OrderInput) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.RestaurantID, validation.Required),
		validation.Field(&in.CustomerName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.CustomerPhone, validation.Required),
		validation.Field(&in.CustomerEmail, is.EmailFormat),
		validation.Field(&in.DeliveryAddress, validation.Required),
		validation.Field(&in.Items, validation.Required),
	)
	if err != nil {
		return err
	}
	lines := make(validation.Errors)
	for i, line := range in.Items {
		if lerr := validateOrderLine(line); lerr != nil {
			lines[strconv.Itoa(i)] = lerr
		}
	}
	if len(lines) > 0 {
		return validation.Errors{"items": lines}
	}
	return nil
}

// OrderNumber formats a human-facing order number: ORD-<unix millis>-<3 digits>.
func OrderNumber(t time.Time) string {
	return fmt.Sprintf("ORD-%d-%03d", t.UnixMilli(), rand.IntN(1000))
}

// Create places a new PENDING order.
func (s *OrderService) Create(ctx context.Context, in domain.OrderInput) (domain.MutationResult, error) {
	if err := asValidationError(validateOrderInput(in)); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.CreateOrder{
		ID:          uuid.NewString(),
		OrderNumber: OrderNumber(s.now()),
		Input:       in,
	})
}

// UpdateStatus moves the order to status and appends a status history row.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, notes string) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	if !status.Valid() {
		return domain.MutationResult{}, domain.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}
	return s.pipeline.Execute(ctx, domain.UpdateOrderStatus{ID: id, Status: status, Notes: notes})
}

func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return Read(ctx, s.reads, s.pipeline.Cache().OrderKey(id), func(ctx context.Context) (*domain.Order, error) {
		return s.reader.GetOrder(ctx, id)
	})
}

// List returns every order, newest first.
func (s *OrderService) List(ctx context.Context) ([]domain.Order, error) {
	return Read(ctx, s.reads, s.pipeline.Cache().OrdersKey(), func(ctx context.Context) ([]domain.Order, error) {
		return s.reader.ListOrders(ctx)
	})
}

// ListForRestaurant returns the orders placed against one restaurant, newest first.
func (s *OrderService) ListForRestaurant(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return nil, err
	}
	return Read(ctx, s.reads, s.pipeline.Cache().RestaurantOrdersKey(restaurantID), func(ctx context.Context) ([]domain.Order, error) {
		return s.reader.ListRestaurantOrders(ctx, restaurantID)
	})
}
