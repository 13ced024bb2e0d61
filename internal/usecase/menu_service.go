package usecase

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/V4T54L/foodhub/internal/domain"
)

// MenuService is the menu service facade: categories, items and the
// restaurant menu read model.
type MenuService struct {
	pipeline *MutationPipeline
	reads    *ReadPath
	menus    domain.RestaurantReader
	reader   domain.MenuReader
	logger   *slog.Logger
}

func NewMenuService(pipeline *MutationPipeline, reads *ReadPath, menus domain.RestaurantReader, reader domain.MenuReader, logger *slog.Logger) *MenuService {
	return &MenuService{
		pipeline: pipeline,
		reads:    reads,
		menus:    menus,
		reader:   reader,
		logger:   logger.With("component", "menu_service"),
	}
}

func (s *MenuService) CreateCategory(ctx context.Context, restaurantID string, in domain.CategoryInput) (domain.MutationResult, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return domain.MutationResult{}, err
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Image, is.URL),
		validation.Field(&in.SortOrder, validation.Min(0)),
	)
	if err := asValidationError(err); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.CreateCategory{ID: uuid.NewString(), RestaurantID: restaurantID, Input: in})
}

func (s *MenuService) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	err := validation.ValidateStruct(&patch,
		validation.Field(&patch.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&patch.Image, is.URL),
		validation.Field(&patch.SortOrder, validation.Min(0)),
	)
	if err := asValidationError(err); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.UpdateCategory{ID: id, Patch: patch})
}

// DeleteCategory removes a category together with its items.
func (s *MenuService) DeleteCategory(ctx context.Context, id string) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.DeleteCategory{ID: id})
}

// ReorderCategories assigns new sort orders to several categories at once.
// Either every position is applied or none is.
func (s *MenuService) ReorderCategories(ctx context.Context, restaurantID string, positions []domain.CategoryPosition) (domain.MutationResult, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return domain.MutationResult{}, err
	}
	if len(positions) == 0 {
		return domain.MutationResult{}, domain.NewValidationError("categories", "cannot be blank")
	}
	seen := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		if p.ID == "" {
			return domain.MutationResult{}, domain.NewValidationError("categories.id", "cannot be blank")
		}
		if p.SortOrder < 0 {
			return domain.MutationResult{}, domain.NewValidationError("categories.sortOrder", "must be no less than 0")
		}
		if _, dup := seen[p.ID]; dup {
			return domain.MutationResult{}, domain.NewValidationError("categories.id", "duplicate category "+p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return s.pipeline.Execute(ctx, domain.ReorderCategories{RestaurantID: restaurantID, Positions: positions})
}

// ListCategories returns the categories of a restaurant in display order.
func (s *MenuService) ListCategories(ctx context.Context, restaurantID string) ([]domain.Category, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return nil, err
	}
	return Read(ctx, s.reads, s.pipeline.Cache().CategoriesKey(restaurantID), func(ctx context.Context) ([]domain.Category, error) {
		return s.reader.ListCategories(ctx, restaurantID)
	})
}

func validateMenuItemInput(in domain.MenuItemInput) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CategoryID, validation.Required),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Price, validation.Required, validation.Min(0.01)),
		validation.Field(&in.Image, is.URL),
		validation.Field(&in.Calories, validation.Min(0)),
		validation.Field(&in.SortOrder, validation.Min(0)),
	)
}

func (s *MenuService) CreateItem(ctx context.Context, restaurantID string, in domain.MenuItemInput) (domain.MutationResult, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return domain.MutationResult{}, err
	}
	if err := asValidationError(validateMenuItemInput(in)); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.CreateMenuItem{ID: uuid.NewString(), RestaurantID: restaurantID, Input: in})
}

func (s *MenuService) UpdateItem(ctx context.Context, id string, patch domain.MenuItemPatch) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	err := validation.ValidateStruct(&patch,
		validation.Field(&patch.CategoryID, validation.NilOrNotEmpty),
		validation.Field(&patch.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&patch.Price, validation.NilOrNotEmpty, validation.Min(0.01)),
		validation.Field(&patch.Image, is.URL),
		validation.Field(&patch.Calories, validation.Min(0)),
		validation.Field(&patch.SortOrder, validation.Min(0)),
	)
	if err := asValidationError(err); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.UpdateMenuItem{ID: id, Patch: patch})
}

// SetItemAvailability toggles whether an item can be ordered.
func (s *MenuService) SetItemAvailability(ctx context.Context, id string, available bool) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.SetMenuItemAvailability{ID: id, Available: available})
}

func (s *MenuService) DeleteItem(ctx context.Context, id string) (domain.MutationResult, error) {
	if err := requireID("id", id); err != nil {
		return domain.MutationResult{}, err
	}
	return s.pipeline.Execute(ctx, domain.DeleteMenuItem{ID: id})
}

// GetItem reads one item straight from the store; single items are not cached.
func (s *MenuService) GetItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	return s.reader.GetMenuItem(ctx, id)
}

// GetMenu returns the restaurant with its categories and items.
func (s *MenuService) GetMenu(ctx context.Context, restaurantID string) (*domain.RestaurantMenu, error) {
	if err := requireID("restaurantId", restaurantID); err != nil {
		return nil, err
	}
	return Read(ctx, s.reads, s.pipeline.Cache().MenuKey(restaurantID), func(ctx context.Context) (*domain.RestaurantMenu, error) {
		return s.menus.GetRestaurantMenu(ctx, restaurantID)
	})
}
