package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	categoryColumns = `id, restaurant_id, name, description, image, is_active, sort_order, created_at, updated_at`
	menuItemColumns = `id, restaurant_id, category_id, name, description, price, image, is_available, is_vegetarian, is_vegan, is_spicy, calories, sort_order, created_at, updated_at`
)

func scanCategory(row scanner) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanMenuItem(row scanner) (domain.MenuItem, error) {
	var (
		it       domain.MenuItem
		calories sql.NullInt64
	)
	err := row.Scan(
		&it.ID, &it.RestaurantID, &it.CategoryID, &it.Name, &it.Description, &it.Price, &it.Image,
		&it.IsAvailable, &it.IsVegetarian, &it.IsVegan, &it.IsSpicy, &calories, &it.SortOrder,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if calories.Valid {
		v := int(calories.Int64)
		it.Calories = &v
	}
	return it, err
}

func getCategory(ctx context.Context, q queryer, id string, forUpdate bool) (domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM menu_categories WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanCategory(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, domain.NewNotFound(domain.EntityCategory, id)
		}
		return domain.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func getMenuItem(ctx context.Context, q queryer, id string, forUpdate bool) (domain.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	it, err := scanMenuItem(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MenuItem{}, domain.NewNotFound(domain.EntityMenuItem, id)
		}
		return domain.MenuItem{}, fmt.Errorf("get menu item %s: %w", id, err)
	}
	return it, nil
}

// requireRestaurant fails with NotFound unless the restaurant row exists.
// FOR SHARE keeps it from being deleted until the transaction ends.
func requireRestaurant(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM restaurants WHERE id = $1 FOR SHARE`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(domain.EntityRestaurant, id)
	}
	if err != nil {
		return fmt.Errorf("check restaurant %s: %w", id, err)
	}
	return nil
}

// categoryInRestaurant fails with NotFound unless the category belongs to the restaurant.
func categoryInRestaurant(ctx context.Context, tx *sql.Tx, categoryID, restaurantID string) error {
	c, err := getCategory(ctx, tx, categoryID, false)
	if err != nil {
		return err
	}
	if c.RestaurantID != restaurantID {
		return &domain.StoreError{
			Kind:   domain.StoreNotFound,
			Entity: domain.EntityCategory,
			ID:     categoryID,
			Err:    fmt.Errorf("category belongs to restaurant %s", c.RestaurantID),
		}
	}
	return nil
}

func menuScopes(restaurantID string) []domain.AffectedScope {
	return []domain.AffectedScope{domain.RestaurantScope(restaurantID)}
}

func (s *Store) createCategory(ctx context.Context, tx *sql.Tx, m domain.CreateCategory, now time.Time) (domain.Commit, error) {
	if err := requireRestaurant(ctx, tx, m.RestaurantID); err != nil {
		return domain.Commit{}, err
	}
	c := domain.Category{
		ID: m.ID, RestaurantID: m.RestaurantID, Name: m.Input.Name, Description: m.Input.Description,
		Image: m.Input.Image, IsActive: true, SortOrder: m.Input.SortOrder, CreatedAt: now, UpdatedAt: now,
	}
	query := `INSERT INTO menu_categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, query,
		c.ID, c.RestaurantID, c.Name, c.Description, c.Image, c.IsActive, c.SortOrder, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return domain.Commit{}, fmt.Errorf("insert category: %w", err)
	}

	cs := newChangeSet(c.RestaurantID)
	cs.add(domain.EventCreated, domain.EntityCategory, c.ID, c)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: c, Scopes: menuScopes(c.RestaurantID), Changes: changes}, nil
}

func applyCategoryPatch(c *domain.Category, p domain.CategoryPatch) {
	setString(&c.Name, p.Name)
	setString(&c.Description, p.Description)
	setString(&c.Image, p.Image)
	setBool(&c.IsActive, p.IsActive)
	setInt(&c.SortOrder, p.SortOrder)
}

func (s *Store) updateCategory(ctx context.Context, tx *sql.Tx, m domain.UpdateCategory, now time.Time) (domain.Commit, error) {
	c, err := getCategory(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}
	applyCategoryPatch(&c, m.Patch)
	c.UpdatedAt = now
	query := `
		UPDATE menu_categories
		SET name = $2, description = $3, image = $4, is_active = $5, sort_order = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.Image, c.IsActive, c.SortOrder, c.UpdatedAt); err != nil {
		return domain.Commit{}, fmt.Errorf("update category %s: %w", c.ID, err)
	}

	cs := newChangeSet(c.RestaurantID)
	cs.add(domain.EventUpdated, domain.EntityCategory, c.ID, c)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: c, Scopes: menuScopes(c.RestaurantID), Changes: changes}, nil
}

// deleteCategory removes the category and its items. Each removed item gets
// its own DELETED change ahead of the category's.
func (s *Store) deleteCategory(ctx context.Context, tx *sql.Tx, m domain.DeleteCategory) (domain.Commit, error) {
	c, err := getCategory(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}

	rows, err := tx.QueryContext(ctx,
		`DELETE FROM menu_items WHERE category_id = $1 RETURNING `+menuItemColumns, c.ID)
	if err != nil {
		return domain.Commit{}, fmt.Errorf("delete items of category %s: %w", c.ID, err)
	}
	var removed []domain.MenuItem
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			rows.Close()
			return domain.Commit{}, fmt.Errorf("scan deleted item: %w", err)
		}
		removed = append(removed, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.Commit{}, fmt.Errorf("delete items of category %s: %w", c.ID, err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM menu_categories WHERE id = $1`, c.ID); err != nil {
		return domain.Commit{}, fmt.Errorf("delete category %s: %w", c.ID, err)
	}

	cs := newChangeSet(c.RestaurantID)
	for _, it := range removed {
		cs.add(domain.EventDeleted, domain.EntityMenuItem, it.ID, it)
	}
	cs.add(domain.EventDeleted, domain.EntityCategory, c.ID, c)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: c, Scopes: menuScopes(c.RestaurantID), Changes: changes}, nil
}

// reorderCategories rewrites every position in one transaction; a single
// unknown category rolls all of them back.
func (s *Store) reorderCategories(ctx context.Context, tx *sql.Tx, m domain.ReorderCategories, now time.Time) (domain.Commit, error) {
	query := `
		UPDATE menu_categories SET sort_order = $3, updated_at = $4
		WHERE id = $1 AND restaurant_id = $2
		RETURNING ` + categoryColumns
	cs := newChangeSet(m.RestaurantID)
	updated := make([]domain.Category, 0, len(m.Positions))
	for _, pos := range m.Positions {
		c, err := scanCategory(tx.QueryRowContext(ctx, query, pos.ID, m.RestaurantID, pos.SortOrder, now))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Commit{}, domain.NewNotFound(domain.EntityCategory, pos.ID)
			}
			return domain.Commit{}, fmt.Errorf("reorder category %s: %w", pos.ID, err)
		}
		updated = append(updated, c)
		cs.add(domain.EventUpdated, domain.EntityCategory, c.ID, c)
	}
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: updated, Scopes: menuScopes(m.RestaurantID), Changes: changes}, nil
}

func (s *Store) createMenuItem(ctx context.Context, tx *sql.Tx, m domain.CreateMenuItem, now time.Time) (domain.Commit, error) {
	if err := requireRestaurant(ctx, tx, m.RestaurantID); err != nil {
		return domain.Commit{}, err
	}
	if err := categoryInRestaurant(ctx, tx, m.Input.CategoryID, m.RestaurantID); err != nil {
		return domain.Commit{}, err
	}
	in := m.Input
	it := domain.MenuItem{
		ID: m.ID, RestaurantID: m.RestaurantID, CategoryID: in.CategoryID, Name: in.Name,
		Description: in.Description, Price: in.Price, Image: in.Image, IsAvailable: true,
		IsVegetarian: in.IsVegetarian, IsVegan: in.IsVegan, IsSpicy: in.IsSpicy,
		Calories: in.Calories, SortOrder: in.SortOrder, CreatedAt: now, UpdatedAt: now,
	}
	setBool(&it.IsAvailable, in.IsAvailable)
	query := `
		INSERT INTO menu_items (` + menuItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := tx.ExecContext(ctx, query,
		it.ID, it.RestaurantID, it.CategoryID, it.Name, it.Description, it.Price, it.Image,
		it.IsAvailable, it.IsVegetarian, it.IsVegan, it.IsSpicy, it.Calories, it.SortOrder,
		it.CreatedAt, it.UpdatedAt,
	); err != nil {
		return domain.Commit{}, fmt.Errorf("insert menu item: %w", err)
	}
	return s.itemCommit(ctx, tx, domain.EventCreated, it)
}

func applyMenuItemPatch(it *domain.MenuItem, p domain.MenuItemPatch) {
	setString(&it.CategoryID, p.CategoryID)
	setString(&it.Name, p.Name)
	setString(&it.Description, p.Description)
	if p.Price != nil {
		it.Price = *p.Price
	}
	setString(&it.Image, p.Image)
	setBool(&it.IsAvailable, p.IsAvailable)
	setBool(&it.IsVegetarian, p.IsVegetarian)
	setBool(&it.IsVegan, p.IsVegan)
	setBool(&it.IsSpicy, p.IsSpicy)
	if p.Calories != nil {
		v := *p.Calories
		it.Calories = &v
	}
	setInt(&it.SortOrder, p.SortOrder)
}

func saveMenuItem(ctx context.Context, tx *sql.Tx, it domain.MenuItem) error {
	query := `
		UPDATE menu_items
		SET category_id = $2, name = $3, description = $4, price = $5, image = $6, is_available = $7,
			is_vegetarian = $8, is_vegan = $9, is_spicy = $10, calories = $11, sort_order = $12, updated_at = $13
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query,
		it.ID, it.CategoryID, it.Name, it.Description, it.Price, it.Image, it.IsAvailable,
		it.IsVegetarian, it.IsVegan, it.IsSpicy, it.Calories, it.SortOrder, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update menu item %s: %w", it.ID, err)
	}
	return nil
}

func (s *Store) updateMenuItem(ctx context.Context, tx *sql.Tx, m domain.UpdateMenuItem, now time.Time) (domain.Commit, error) {
	it, err := getMenuItem(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}
	if m.Patch.CategoryID != nil && *m.Patch.CategoryID != it.CategoryID {
		if err := categoryInRestaurant(ctx, tx, *m.Patch.CategoryID, it.RestaurantID); err != nil {
			return domain.Commit{}, err
		}
	}
	applyMenuItemPatch(&it, m.Patch)
	it.UpdatedAt = now
	if err := saveMenuItem(ctx, tx, it); err != nil {
		return domain.Commit{}, err
	}
	return s.itemCommit(ctx, tx, domain.EventUpdated, it)
}

func (s *Store) setMenuItemAvailability(ctx context.Context, tx *sql.Tx, m domain.SetMenuItemAvailability, now time.Time) (domain.Commit, error) {
	it, err := getMenuItem(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}
	it.IsAvailable = m.Available
	it.UpdatedAt = now
	if err := saveMenuItem(ctx, tx, it); err != nil {
		return domain.Commit{}, err
	}
	return s.itemCommit(ctx, tx, domain.EventUpdated, it)
}

func (s *Store) deleteMenuItem(ctx context.Context, tx *sql.Tx, m domain.DeleteMenuItem) (domain.Commit, error) {
	it, err := scanMenuItem(tx.QueryRowContext(ctx, `DELETE FROM menu_items WHERE id = $1 RETURNING `+menuItemColumns, m.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Commit{}, domain.NewNotFound(domain.EntityMenuItem, m.ID)
		}
		return domain.Commit{}, fmt.Errorf("delete menu item %s: %w", m.ID, err)
	}
	return s.itemCommit(ctx, tx, domain.EventDeleted, it)
}

func (s *Store) itemCommit(ctx context.Context, tx *sql.Tx, typ domain.EventType, it domain.MenuItem) (domain.Commit, error) {
	cs := newChangeSet(it.RestaurantID)
	cs.add(typ, domain.EntityMenuItem, it.ID, it)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: it, Scopes: menuScopes(it.RestaurantID), Changes: changes}, nil
}

// ListCategories returns the categories of a restaurant in display order.
// An unknown restaurant yields an empty list.
func (s *Store) ListCategories(ctx context.Context, restaurantID string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM menu_categories WHERE restaurant_id = $1 ORDER BY sort_order, created_at, id`,
		restaurantID)
	if err != nil {
		return nil, classify(err, domain.EntityCategory, "")
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classify(err, domain.EntityCategory, "")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, domain.EntityCategory, "")
	}
	return categories, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	it, err := getMenuItem(ctx, s.db, id, false)
	if err != nil {
		return nil, classify(err, domain.EntityMenuItem, id)
	}
	return &it, nil
}
