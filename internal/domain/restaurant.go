package domain

import "time"

// Restaurant is the root aggregate of the menu family. Every category, menu item
// and order is scoped to exactly one restaurant.
type Restaurant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zipCode"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Website     string    `json:"website,omitempty"`
	Logo        string    `json:"logo,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category groups menu items for display. SortOrder is the display position
// inside the restaurant menu.
type Category struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Image        string    `json:"image,omitempty"`
	IsActive     bool      `json:"isActive"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MenuItem is a single orderable dish.
type MenuItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	CategoryID   string    `json:"categoryId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	Image        string    `json:"image,omitempty"`
	IsAvailable  bool      `json:"isAvailable"`
	IsVegetarian bool      `json:"isVegetarian"`
	IsVegan      bool      `json:"isVegan"`
	IsSpicy      bool      `json:"isSpicy"`
	Calories     *int      `json:"calories,omitempty"`
	SortOrder    int       `json:"sortOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MenuSection is a category together with its items, as served by the menu read path.
type MenuSection struct {
	Category
	Items []MenuItem `json:"items"`
}

// RestaurantMenu is the read model cached under menu:<restaurantId>.
type RestaurantMenu struct {
	Restaurant
	Categories []MenuSection `json:"categories"`
}
