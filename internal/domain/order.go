package domain

import "time"

// OrderStatus is the lifecycle state recorded in an order's status history.
type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderPreparing      OrderStatus = "PREPARING"
	OrderReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderPending:        {},
	OrderConfirmed:      {},
	OrderPreparing:      {},
	OrderReadyForPickup: {},
	OrderOutForDelivery: {},
	OrderDelivered:      {},
	OrderCancelled:      {},
}

// Valid reports whether s is one of the recognised order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Order is a customer order placed against a restaurant.
type Order struct {
	ID                  string        `json:"id"`
	OrderNumber         string        `json:"orderNumber"`
	RestaurantID        string        `json:"restaurantId"`
	CustomerName        string        `json:"customerName"`
	CustomerPhone       string        `json:"customerPhone"`
	CustomerEmail       string        `json:"customerEmail,omitempty"`
	DeliveryAddress     string        `json:"deliveryAddress"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
	Status              OrderStatus   `json:"status"`
	TotalAmount         float64       `json:"totalAmount"`
	Items               []OrderItem   `json:"items"`
	StatusHistory       []StatusEntry `json:"statusHistory"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID         string  `json:"id"`
	OrderID    string  `json:"orderId"`
	MenuItemID string  `json:"menuItemId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Notes      string  `json:"notes,omitempty"`
}

// StatusEntry is an append-only status history row.
type StatusEntry struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// StatusChange is the payload of an order STATUS_UPDATED event.
type StatusChange struct {
	OrderID        string      `json:"orderId"`
	OrderNumber    string      `json:"orderNumber"`
	RestaurantID   string      `json:"restaurantId"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	Status         OrderStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	ChangedAt      time.Time   `json:"changedAt"`
}
