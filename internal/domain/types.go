package domain

import (
	"time"
)

// PageQuery defines standard page/limit paging inputs for list operations.
type PageQuery struct {
	Page  int
	Limit int
}

// Page wraps a result slice with paging metadata for list responses.
type Page[T any] struct {
	Items []T
	Page  int
	Pages int
	Total int64
}

// Product is a catalog entry including discount and flash-sale pricing state.
// All monetary amounts are kuruş (minor units).
type Product struct {
	ID           string
	Name         string
	Description  string
	Image        string
	Brand        string
	CategoryID   string
	Price        int64
	Rating       float64
	NumReviews   int
	CountInStock int

	IsDiscount      bool
	DiscountPrice   int64
	DiscountEndDate *time.Time

	IsFlash           bool
	FlashDiscountRate float64
	FlashEndDate      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups products and carries a URL slug derived from the Turkish name.
type Category struct {
	ID          string
	Name        string
	Description string
	Slug        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cart aggregates the mutable shopping cart state for a user. One cart per user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product line within a cart. UnitPrice is the price
// captured when the line was first added and is kept until the line is removed.
type CartItem struct {
	ProductID string
	Quantity  int
	UnitPrice int64
	AddedAt   time.Time
	UpdatedAt *time.Time
}

// OrderStatus enumerates the order lifecycle states. The values are the
// Turkish display strings persisted as-is; API clients match on them.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every order.
	OrderStatusPending OrderStatus = "Beklemede"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "İşleniyor"
	// OrderStatusShipped indicates the order was handed to the carrier.
	OrderStatusShipped OrderStatus = "Kargoda"
	// OrderStatusCompleted is the terminal success state and implies delivery.
	OrderStatusCompleted OrderStatus = "Tamamlandı"
	// OrderStatusCancelled is the terminal failure state.
	OrderStatusCancelled OrderStatus = "İptal"
)

// Valid reports whether the value is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from the state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving to next. Orders
// advance one step at a time and may be cancelled from any non-terminal state.
// Re-applying the current status is not a transition; callers treat it as a no-op.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing
	case OrderStatusProcessing:
		return next == OrderStatusShipped
	case OrderStatusShipped:
		return next == OrderStatusCompleted
	}
	return false
}

// Order is the purchase record created at checkout. Item prices are
// snapshots; later catalog changes never affect an existing order.
type Order struct {
	ID     string
	Number string
	UserID string
	Items  []OrderItem

	Shipping ShippingAddress
	Payment  PaymentResult

	ItemsPrice    int64
	ShippingPrice int64
	TaxPrice      int64
	TotalPrice    int64

	Status      OrderStatus
	IsPaid      bool
	PaidAt      *time.Time
	IsDelivered bool
	DeliveredAt *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a priced line snapshot copied from the cart at checkout.
type OrderItem struct {
	ProductID string
	Name      string
	Image     string
	Quantity  int
	UnitPrice int64
}

// ShippingAddress captures the delivery destination for an order.
type ShippingAddress struct {
	Address    string
	City       string
	District   string
	PostalCode string
	Country    string
}

// PaymentResult stores the gateway outcome verified at order creation.
type PaymentResult struct {
	IntentID string
	Status   string
	Amount   int64
	Currency string
	PaidAt   *time.Time
}

// UserRole distinguishes storefront customers from back-office staff.
type UserRole string

const (
	// RoleCustomer is the default role assigned at registration.
	RoleCustomer UserRole = "customer"
	// RoleAdmin grants access to the back-office endpoints.
	RoleAdmin UserRole = "admin"
)

// User is an account record. PasswordHash is a bcrypt digest and never leaves
// the repository layer through API responses.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the back-office role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
