package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/foodhub/internal/domain"
)

const restaurantColumns = `id, name, description, address, city, state, zip_code, phone, email, website, logo, is_active, created_at, updated_at`

func scanRestaurant(row scanner) (domain.Restaurant, error) {
	var r domain.Restaurant
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Address, &r.City, &r.State, &r.ZipCode,
		&r.Phone, &r.Email, &r.Website, &r.Logo, &r.IsActive, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func getRestaurant(ctx context.Context, q queryer, id string, forUpdate bool) (domain.Restaurant, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	r, err := scanRestaurant(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Restaurant{}, domain.NewNotFound(domain.EntityRestaurant, id)
		}
		return domain.Restaurant{}, fmt.Errorf("get restaurant %s: %w", id, err)
	}
	return r, nil
}

func restaurantScopes(id string) []domain.AffectedScope {
	return []domain.AffectedScope{domain.RestaurantScope(id), domain.DirectoryScope()}
}

func (s *Store) createRestaurant(ctx context.Context, tx *sql.Tx, m domain.CreateRestaurant, now time.Time) (domain.Commit, error) {
	in := m.Input
	r := domain.Restaurant{
		ID: m.ID, Name: in.Name, Description: in.Description, Address: in.Address, City: in.City,
		State: in.State, ZipCode: in.ZipCode, Phone: in.Phone, Email: in.Email, Website: in.Website,
		Logo: in.Logo, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	query := `
		INSERT INTO restaurants (` + restaurantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if _, err := tx.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, r.Address, r.City, r.State, r.ZipCode,
		r.Phone, r.Email, r.Website, r.Logo, r.IsActive, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return domain.Commit{}, fmt.Errorf("insert restaurant: %w", err)
	}

	cs := newChangeSet(r.ID)
	cs.add(domain.EventCreated, domain.EntityRestaurant, r.ID, r)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: r, Scopes: restaurantScopes(r.ID), Changes: changes}, nil
}

func applyRestaurantPatch(r *domain.Restaurant, p domain.RestaurantPatch) {
	setString(&r.Name, p.Name)
	setString(&r.Description, p.Description)
	setString(&r.Address, p.Address)
	setString(&r.City, p.City)
	setString(&r.State, p.State)
	setString(&r.ZipCode, p.ZipCode)
	setString(&r.Phone, p.Phone)
	setString(&r.Email, p.Email)
	setString(&r.Website, p.Website)
	setString(&r.Logo, p.Logo)
	setBool(&r.IsActive, p.IsActive)
}

func saveRestaurant(ctx context.Context, tx *sql.Tx, r domain.Restaurant) error {
	query := `
		UPDATE restaurants
		SET name = $2, description = $3, address = $4, city = $5, state = $6, zip_code = $7,
			phone = $8, email = $9, website = $10, logo = $11, is_active = $12, updated_at = $13
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, r.Address, r.City, r.State, r.ZipCode,
		r.Phone, r.Email, r.Website, r.Logo, r.IsActive, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update restaurant %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) updateRestaurant(ctx context.Context, tx *sql.Tx, m domain.UpdateRestaurant, now time.Time) (domain.Commit, error) {
	r, err := getRestaurant(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}
	applyRestaurantPatch(&r, m.Patch)
	r.UpdatedAt = now
	if err := saveRestaurant(ctx, tx, r); err != nil {
		return domain.Commit{}, err
	}

	cs := newChangeSet(r.ID)
	cs.add(domain.EventUpdated, domain.EntityRestaurant, r.ID, r)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: r, Scopes: restaurantScopes(r.ID), Changes: changes}, nil
}

// deactivateRestaurant is the soft delete: the row stays, isActive is cleared
// and a DELETED event announces it.
func (s *Store) deactivateRestaurant(ctx context.Context, tx *sql.Tx, m domain.DeactivateRestaurant, now time.Time) (domain.Commit, error) {
	r, err := getRestaurant(ctx, tx, m.ID, true)
	if err != nil {
		return domain.Commit{}, err
	}
	r.IsActive = false
	r.UpdatedAt = now
	if err := saveRestaurant(ctx, tx, r); err != nil {
		return domain.Commit{}, err
	}

	cs := newChangeSet(r.ID)
	cs.add(domain.EventDeleted, domain.EntityRestaurant, r.ID, r)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: r, Scopes: restaurantScopes(r.ID), Changes: changes}, nil
}

// GetRestaurantMenu returns the restaurant with its categories and items,
// both in display order.
func (s *Store) GetRestaurantMenu(ctx context.Context, id string) (*domain.RestaurantMenu, error) {
	r, err := getRestaurant(ctx, s.db, id, false)
	if err != nil {
		return nil, classify(err, domain.EntityRestaurant, id)
	}
	menus, err := s.loadMenus(ctx, s.db, []domain.Restaurant{r})
	if err != nil {
		return nil, classify(err, domain.EntityRestaurant, id)
	}
	return &menus[0], nil
}

// ListRestaurants returns every active restaurant with its menu, by name.
func (s *Store) ListRestaurants(ctx context.Context) ([]domain.RestaurantMenu, error) {
	query := `SELECT ` + restaurantColumns + ` FROM restaurants WHERE is_active = TRUE ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, domain.EntityRestaurant, "")
	}
	defer rows.Close()

	restaurants := []domain.Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, classify(err, domain.EntityRestaurant, "")
		}
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, domain.EntityRestaurant, "")
	}

	menus, err := s.loadMenus(ctx, s.db, restaurants)
	if err != nil {
		return nil, classify(err, domain.EntityRestaurant, "")
	}
	return menus, nil
}

// loadMenus attaches categories and items to restaurants with two queries in
// total, whatever the number of restaurants.
func (s *Store) loadMenus(ctx context.Context, q queryer, restaurants []domain.Restaurant) ([]domain.RestaurantMenu, error) {
	menus := make([]domain.RestaurantMenu, len(restaurants))
	if len(restaurants) == 0 {
		return menus, nil
	}
	ids := make([]string, len(restaurants))
	for i, r := range restaurants {
		ids[i] = r.ID
		menus[i] = domain.RestaurantMenu{Restaurant: r, Categories: []domain.MenuSection{}}
	}

	catRows, err := q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM menu_categories WHERE restaurant_id = ANY($1) ORDER BY sort_order, created_at, id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer catRows.Close()

	sections := make(map[string][]domain.MenuSection, len(restaurants))
	for catRows.Next() {
		c, err := scanCategory(catRows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		sections[c.RestaurantID] = append(sections[c.RestaurantID], domain.MenuSection{Category: c, Items: []domain.MenuItem{}})
	}
	if err := catRows.Err(); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	itemRows, err := q.QueryContext(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE restaurant_id = ANY($1) ORDER BY sort_order, created_at, id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	defer itemRows.Close()

	items := make(map[string][]domain.MenuItem)
	for itemRows.Next() {
		it, err := scanMenuItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items[it.CategoryID] = append(items[it.CategoryID], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}

	for i := range menus {
		secs := sections[menus[i].ID]
		for j := range secs {
			if its, ok := items[secs[j].ID]; ok {
				secs[j].Items = its
			}
		}
		if secs != nil {
			menus[i].Categories = secs
		}
	}
	return menus, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
