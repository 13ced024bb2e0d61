package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	orderColumns         = `id, order_number, restaurant_id, customer_name, customer_phone, customer_email, delivery_address, special_instructions, status, total_amount, created_at, updated_at`
	orderItemColumns     = `id, order_id, menu_item_id, quantity, price, notes`
	statusHistoryColumns = `id, order_id, status, notes, created_at`

	orderCreatedNote = "Order created"
)

func newID() string { return uuid.NewString() }

func scanOrder(row scanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.RestaurantID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.DeliveryAddress, &o.SpecialInstructions, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Items = []domain.OrderItem{}
	o.StatusHistory = []domain.StatusEntry{}
	return o, err
}

// orderTotal sums the lines and rounds to cents.
func orderTotal(lines []domain.OrderLineInput) float64 {
	var total float64
	for _, l := range lines {
		total += float64(l.Quantity) * l.Price
	}
	return math.Round(total*100) / 100
}

func orderScopes(o domain.Order) []domain.AffectedScope {
	return []domain.AffectedScope{
		domain.OrderScope(o.ID),
		domain.OrderBookScope(),
		domain.RestaurantScope(o.RestaurantID),
	}
}

// checkOrderable fails unless the restaurant is active and every referenced
// menu item belongs to it and is available.
func checkOrderable(ctx context.Context, tx *sql.Tx, restaurantID string, lines []domain.OrderLineInput) error {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM restaurants WHERE id = $1 FOR SHARE`, restaurantID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(domain.EntityRestaurant, restaurantID)
	}
	if err != nil {
		return fmt.Errorf("check restaurant %s: %w", restaurantID, err)
	}
	if !active {
		return domain.NewConflict(domain.EntityRestaurant, restaurantID, errors.New("restaurant is not active"))
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.MenuItemID
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, is_available FROM menu_items WHERE restaurant_id = $1 AND id = ANY($2)`,
		restaurantID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("check menu items: %w", err)
	}
	defer rows.Close()

	available := make(map[string]bool, len(ids))
	for rows.Next() {
		var (
			id string
			ok bool
		)
		if err := rows.Scan(&id, &ok); err != nil {
			return fmt.Errorf("scan menu item: %w", err)
		}
		available[id] = ok
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("check menu items: %w", err)
	}

	for _, id := range ids {
		ok, found := available[id]
		if !found {
			return domain.NewNotFound(domain.EntityMenuItem, id)
		}
		if !ok {
			return domain.NewConflict(domain.EntityMenuItem, id, errors.New("menu item is not available"))
		}
	}
	return nil
}

func (s *Store) createOrder(ctx context.Context, tx *sql.Tx, m domain.CreateOrder, now time.Time) (domain.Commit, error) {
	in := m.Input
	if err := checkOrderable(ctx, tx, in.RestaurantID, in.Items); err != nil {
		return domain.Commit{}, err
	}

	o := domain.Order{
		ID: m.ID, OrderNumber: m.OrderNumber, RestaurantID: in.RestaurantID, CustomerName: in.CustomerName,
		CustomerPhone: in.CustomerPhone, CustomerEmail: in.CustomerEmail, DeliveryAddress: in.DeliveryAddress,
		SpecialInstructions: in.SpecialInstructions, Status: domain.OrderPending, TotalAmount: orderTotal(in.Items),
		CreatedAt: now, UpdatedAt: now,
	}
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := tx.ExecContext(ctx, query,
		o.ID, o.OrderNumber, o.RestaurantID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.DeliveryAddress, o.SpecialInstructions, o.Status, o.TotalAmount, o.CreatedAt, o.UpdatedAt,
	); err != nil {
		return domain.Commit{}, fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (id, order_id, line_no, menu_item_id, quantity, price, notes) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	o.Items = make([]domain.OrderItem, 0, len(in.Items))
	for i, l := range in.Items {
		item := domain.OrderItem{ID: s.newID(), OrderID: o.ID, MenuItemID: l.MenuItemID, Quantity: l.Quantity, Price: l.Price, Notes: l.Notes}
		if _, err := tx.ExecContext(ctx, itemQuery, item.ID, item.OrderID, i, item.MenuItemID, item.Quantity, item.Price, item.Notes); err != nil {
			return domain.Commit{}, fmt.Errorf("insert order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}

	entry, err := s.appendStatus(ctx, tx, o.ID, domain.OrderPending, orderCreatedNote, now)
	if err != nil {
		return domain.Commit{}, err
	}
	o.StatusHistory = []domain.StatusEntry{entry}

	cs := newChangeSet(o.RestaurantID)
	cs.add(domain.EventCreated, domain.EntityOrder, o.ID, o)
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: o, Scopes: orderScopes(o), Changes: changes}, nil
}

func (s *Store) appendStatus(ctx context.Context, tx *sql.Tx, orderID string, status domain.OrderStatus, notes string, now time.Time) (domain.StatusEntry, error) {
	entry := domain.StatusEntry{ID: s.newID(), OrderID: orderID, Status: status, Notes: notes, CreatedAt: now}
	query := `INSERT INTO order_status_history (` + statusHistoryColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, entry.ID, entry.OrderID, entry.Status, entry.Notes, entry.CreatedAt); err != nil {
		return domain.StatusEntry{}, fmt.Errorf("append status history: %w", err)
	}
	return entry, nil
}

// updateOrderStatus appends a history row. Orders that reached a terminal
// status reject further transitions with a conflict.
func (s *Store) updateOrderStatus(ctx context.Context, tx *sql.Tx, m domain.UpdateOrderStatus, now time.Time) (domain.Commit, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, m.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Commit{}, domain.NewNotFound(domain.EntityOrder, m.ID)
		}
		return domain.Commit{}, fmt.Errorf("get order %s: %w", m.ID, err)
	}
	if o.Status.Terminal() {
		return domain.Commit{}, domain.NewConflict(domain.EntityOrder, o.ID, fmt.Errorf("order is already %s", o.Status))
	}

	previous := o.Status
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, o.ID, m.Status, now); err != nil {
		return domain.Commit{}, fmt.Errorf("update order %s: %w", o.ID, err)
	}
	if _, err := s.appendStatus(ctx, tx, o.ID, m.Status, m.Notes, now); err != nil {
		return domain.Commit{}, err
	}
	o.Status = m.Status
	o.UpdatedAt = now

	orders := []domain.Order{o}
	if err := loadOrderDetails(ctx, tx, orders); err != nil {
		return domain.Commit{}, err
	}
	o = orders[0]

	cs := newChangeSet(o.RestaurantID)
	cs.add(domain.EventStatusUpdated, domain.EntityOrder, o.ID, domain.StatusChange{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		RestaurantID:   o.RestaurantID,
		PreviousStatus: previous,
		Status:         o.Status,
		Notes:          m.Notes,
		ChangedAt:      now,
	})
	changes, err := cs.seal(ctx, tx)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Commit{Entity: o, Scopes: orderScopes(o), Changes: changes}, nil
}

// loadOrderDetails fills Items and StatusHistory of orders in place.
func loadOrderDetails(ctx context.Context, q queryer, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	itemRows, err := q.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it domain.OrderItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.Price, &it.Notes); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	histRows, err := q.QueryContext(ctx,
		`SELECT `+statusHistoryColumns+` FROM order_status_history WHERE order_id = ANY($1) ORDER BY order_id, created_at, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	defer histRows.Close()
	for histRows.Next() {
		var e domain.StatusEntry
		if err := histRows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Notes, &e.CreatedAt); err != nil {
			return fmt.Errorf("scan status history: %w", err)
		}
		i := index[e.OrderID]
		orders[i].StatusHistory = append(orders[i].StatusHistory, e)
	}
	if err := histRows.Err(); err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	return nil
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, domain.EntityOrder, "")
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(err, domain.EntityOrder, "")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, domain.EntityOrder, "")
	}
	if err := loadOrderDetails(ctx, s.db, orders); err != nil {
		return nil, classify(err, domain.EntityOrder, "")
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.NewNotFound(domain.EntityOrder, id)
	}
	return &orders[0], nil
}

// ListOrders returns every order, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
}

func (s *Store) ListRestaurantOrders(ctx context.Context, restaurantID string) ([]domain.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE restaurant_id = $1 ORDER BY created_at DESC, id`, restaurantID)
}
