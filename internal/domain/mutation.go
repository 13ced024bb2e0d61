package domain

import (
	"encoding/json"
	"time"
)

// ScopeKind is the kind of aggregate whose cached views a mutation can stale.
type ScopeKind string

const (
	// ScopeRestaurant covers every cached view built from one restaurant's rows.
	ScopeRestaurant ScopeKind = "restaurant"
	// ScopeRestaurantDirectory is the list of all active restaurants.
	ScopeRestaurantDirectory ScopeKind = "restaurant_directory"
	ScopeOrder               ScopeKind = "order"
	// ScopeOrderBook is the list of all orders.
	ScopeOrderBook ScopeKind = "order_book"
)

// AffectedScope is a higher-level aggregate invalidated by a mutation.
type AffectedScope struct {
	Kind ScopeKind
	ID   string
}

func RestaurantScope(id string) AffectedScope {
	return AffectedScope{Kind: ScopeRestaurant, ID: id}
}

func DirectoryScope() AffectedScope { return AffectedScope{Kind: ScopeRestaurantDirectory} }

func OrderScope(id string) AffectedScope { return AffectedScope{Kind: ScopeOrder, ID: id} }

func OrderBookScope() AffectedScope { return AffectedScope{Kind: ScopeOrderBook} }

// CacheKey is a namespaced cache entry name, e.g. "menu:<restaurantId>".
type CacheKey string

// CachedValue is the envelope stored under a CacheKey.
type CachedValue struct {
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Data      json.RawMessage `json:"data"`
}

// Expired reports whether the envelope is past its TTL at now.
func (v CachedValue) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// MutationSpec is the closed set of writes the Store Adapter applies.
type MutationSpec interface {
	// Mutation is a stable name used in logs and metrics.
	Mutation() string
	Entity() EntityType
	mutation()
}

// RestaurantInput carries the fields of a new restaurant.
type RestaurantInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zipCode"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Logo        string `json:"logo"`
}

// RestaurantPatch is a partial update; nil fields are left unchanged.
type RestaurantPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	ZipCode     *string `json:"zipCode"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Website     *string `json:"website"`
	Logo        *string `json:"logo"`
	IsActive    *bool   `json:"isActive"`
}

type CreateRestaurant struct {
	ID    string
	Input RestaurantInput
}

type UpdateRestaurant struct {
	ID    string
	Patch RestaurantPatch
}

// DeactivateRestaurant soft-deletes a restaurant by clearing isActive.
type DeactivateRestaurant struct {
	ID string
}

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SortOrder   int    `json:"sortOrder"`
}

type CategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   *int    `json:"sortOrder"`
}

type CreateCategory struct {
	ID           string
	RestaurantID string
	Input        CategoryInput
}

type UpdateCategory struct {
	ID    string
	Patch CategoryPatch
}

type DeleteCategory struct {
	ID string
}

// CategoryPosition assigns a display position to one category.
type CategoryPosition struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sortOrder"`
}

// ReorderCategories rewrites the sort order of several categories of one
// restaurant in a single transaction.
type ReorderCategories struct {
	RestaurantID string
	Positions    []CategoryPosition
}

// MenuItemInput carries the fields of a new menu item.
type MenuItemInput struct {
	CategoryID   string  `json:"categoryId"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Image        string  `json:"image"`
	IsAvailable  *bool   `json:"isAvailable"`
	IsVegetarian bool    `json:"isVegetarian"`
	IsVegan      bool    `json:"isVegan"`
	IsSpicy      bool    `json:"isSpicy"`
	Calories     *int    `json:"calories"`
	SortOrder    int     `json:"sortOrder"`
}

type MenuItemPatch struct {
	CategoryID   *string  `json:"categoryId"`
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Price        *float64 `json:"price"`
	Image        *string  `json:"image"`
	IsAvailable  *bool    `json:"isAvailable"`
	IsVegetarian *bool    `json:"isVegetarian"`
	IsVegan      *bool    `json:"isVegan"`
	IsSpicy      *bool    `json:"isSpicy"`
	Calories     *int     `json:"calories"`
	SortOrder    *int     `json:"sortOrder"`
}

type CreateMenuItem struct {
	ID           string
	RestaurantID string
	Input        MenuItemInput
}

type UpdateMenuItem struct {
	ID    string
	Patch MenuItemPatch
}

type SetMenuItemAvailability struct {
	ID        string
	Available bool
}

type DeleteMenuItem struct {
	ID string
}

// OrderLineInput is one requested line of a new order.
type OrderLineInput struct {
	MenuItemID string  `json:"menuItemId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Notes      string  `json:"notes"`
}

// OrderInput carries the fields of a new order.
type OrderInput struct {
	RestaurantID        string           `json:"restaurantId"`
	CustomerName        string           `json:"customerName"`
	CustomerPhone       string           `json:"customerPhone"`
	CustomerEmail       string           `json:"customerEmail"`
	DeliveryAddress     string           `json:"deliveryAddress"`
	SpecialInstructions string           `json:"specialInstructions"`
	Items               []OrderLineInput `json:"items"`
}

type CreateOrder struct {
	ID          string
	OrderNumber string
	Input       OrderInput
}

// UpdateOrderStatus moves an order to Status and appends a history row.
type UpdateOrderStatus struct {
	ID     string
	Status OrderStatus
	Notes  string
}

func (CreateRestaurant) Mutation() string        { return "create_restaurant" }
func (UpdateRestaurant) Mutation() string        { return "update_restaurant" }
func (DeactivateRestaurant) Mutation() string    { return "deactivate_restaurant" }
func (CreateCategory) Mutation() string          { return "create_category" }
func (UpdateCategory) Mutation() string          { return "update_category" }
func (DeleteCategory) Mutation() string          { return "delete_category" }
func (ReorderCategories) Mutation() string       { return "reorder_categories" }
func (CreateMenuItem) Mutation() string          { return "create_menu_item" }
func (UpdateMenuItem) Mutation() string          { return "update_menu_item" }
func (SetMenuItemAvailability) Mutation() string { return "set_menu_item_availability" }
func (DeleteMenuItem) Mutation() string          { return "delete_menu_item" }
func (CreateOrder) Mutation() string             { return "create_order" }
func (UpdateOrderStatus) Mutation() string       { return "update_order_status" }

func (CreateRestaurant) Entity() EntityType        { return EntityRestaurant }
func (UpdateRestaurant) Entity() EntityType        { return EntityRestaurant }
func (DeactivateRestaurant) Entity() EntityType    { return EntityRestaurant }
func (CreateCategory) Entity() EntityType          { return EntityCategory }
func (UpdateCategory) Entity() EntityType          { return EntityCategory }
func (DeleteCategory) Entity() EntityType          { return EntityCategory }
func (ReorderCategories) Entity() EntityType       { return EntityCategory }
func (CreateMenuItem) Entity() EntityType          { return EntityMenuItem }
func (UpdateMenuItem) Entity() EntityType          { return EntityMenuItem }
func (SetMenuItemAvailability) Entity() EntityType { return EntityMenuItem }
func (DeleteMenuItem) Entity() EntityType          { return EntityMenuItem }
func (CreateOrder) Entity() EntityType             { return EntityOrder }
func (UpdateOrderStatus) Entity() EntityType       { return EntityOrder }

func (CreateRestaurant) mutation()        {}
func (UpdateRestaurant) mutation()        {}
func (DeactivateRestaurant) mutation()    {}
func (CreateCategory) mutation()          {}
func (UpdateCategory) mutation()          {}
func (DeleteCategory) mutation()          {}
func (ReorderCategories) mutation()       {}
func (CreateMenuItem) mutation()          {}
func (UpdateMenuItem) mutation()          {}
func (SetMenuItemAvailability) mutation() {}
func (DeleteMenuItem) mutation()          {}
func (CreateOrder) mutation()             {}
func (UpdateOrderStatus) mutation()       {}

// Change is one committed row change, in commit order. Sequence is assigned
// by the store transaction and is strictly increasing per ScopeID.
type Change struct {
	Type     EventType
	Entity   EntityType
	EntityID string
	ScopeID  string
	Sequence int64
	Payload  any
}

// Commit is what the Store Adapter returns for a committed mutation: the
// post-image, every aggregate it staled, and the changes to announce.
type Commit struct {
	Entity  any
	Scopes  []AffectedScope
	Changes []Change
}

// PipelineState is a state of the mutation state machine.
type PipelineState string

const (
	StateReceived         PipelineState = "received"
	StateStoreCommitted   PipelineState = "store_committed"
	StateCacheInvalidated PipelineState = "cache_invalidated"
	StateEventPublished   PipelineState = "event_published"
	StateDone             PipelineState = "done"
	StateStoreFailed      PipelineState = "store_failed"
	StateDegraded         PipelineState = "degraded"
)

// Outcome is the result of a side effect that runs after the store commit.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	// OutcomeSkipped means the step never ran because the store failed.
	OutcomeSkipped Outcome = "skipped"
)

// MutationResult lets callers tell a fully consistent write from one whose
// cache or event side effects degraded.
type MutationResult struct {
	Entity         any
	State          PipelineState
	CacheOutcome   Outcome
	PublishOutcome Outcome
	Keys           []CacheKey
	Events         []DomainEvent
	CacheErr       error
	PublishErr     error
}

// Degraded reports whether the mutation committed with a failed side effect.
func (r MutationResult) Degraded() bool {
	return r.State == StateDegraded
}
