package usecase

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/V4T54L/foodhub/internal/domain"
)

// RestaurantService is the restaurant service facade.
type RestaurantService struct {
	pipeline *MutationPipeline
	reads    *ReadPath
	reader   domain.RestaurantReader
	logger   *slog.Logger
}

func NewRestaurantService(pipeline *MutationPipeline, reads *ReadPath, reader domain.RestaurantReader, logger *slog.Logger) *RestaurantService {
	return &RestaurantService{
		pipeline: pipeline,
		reads:    reads,
		reader:   reader,
		logger:   logger.With("component", "restaurant_service"),
	}
}

func validateRestaurantInput(in domain.RestaurantInput) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Address, validation.Required),
		validation.Field(&in.City, validation.Required),
		validation.Field(&in.State, validation.Required),
		validation.Field(&in.ZipCode, validation.Required),
		validation.Field(&in.Phone, validation.Required),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Website, is.URL),
	)
}

func validateRestaurantPatch(p domain.RestaurantPatch) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Address, validation.NilOrNotEmpty),
		validation.Field(&p.City, validation.NilOrNotEmpty),
		validation.Field(&p.State, validation.NilOrNotEmpty),
		validation.Field(&p.ZipCode, validation.NilOrNotEmpty),
		validation.Field(&p.Phone, validation.NilOrNotEmpty),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&p.Website, is.URL),
	)
}

// Create registers a new active restaurant.
func (s *RestaurantService) Create(ctx context.Context, in domain.RestaurantInput) (domain.MutationResult, error) {
	if err := asValidationError(validateRestaurantInput(in)); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.CreateRestaurant{ID: uuid.NewString(), Input: in})
}

func (s *RestaurantService) Update(ctx context.Context, id string, patch domain.RestaurantPatch) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	if err := asValidationError(validateRestaurantPatch(patch)); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.UpdateRestaurant{ID: id, Patch: patch})
}

// Deactivate soft-deletes the restaurant. It drops out of the directory but
// its rows and menu remain.
func (s *RestaurantService) Deactivate(ctx context.Context, id string) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.DeactivateRestaurant{ID: id})
}

// Get returns the restaurant with its full menu.
func (s *RestaurantService) Get(ctx context.Context, id string) (*domain.RestaurantMenu, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return Read(ctx, s.reads, s.pipeline.Cache().MenuKey(id), func(ctx context.Context) (*domain.RestaurantMenu, error) {
		return s.reader.GetRestaurantMenu(ctx, id)
	})
}

// List returns every active restaurant with its menu.
func (s *RestaurantService) List(ctx context.Context) ([]domain.RestaurantMenu, error) {
	return Read(ctx, s.reads, s.pipeline.Cache().RestaurantsKey(), func(ctx context.Context) ([]domain.RestaurantMenu, error) {
		return s.reader.ListRestaurants(ctx)
	})
}
