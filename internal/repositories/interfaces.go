package repositories

import (
	"context"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Carts() CartRepository
	Orders() OrderRepository
	Users() UserRepository
	Counters() CounterRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductListFilter narrows and pages the catalog listing.
type ProductListFilter struct {
	Keyword        string
	CategoryID     string
	OnlyDiscounted bool
	OnlyFlash      bool
	Page           int
	Limit          int
}

// ProductStats summarises the catalog for the back-office dashboard.
type ProductStats struct {
	Total            int64
	OutOfStock       int64
	ActiveDiscounts  int64
	ActiveFlashSales int64
}

// ProductRepository persists catalog entries including their promotion state.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.Page[domain.Product], error)
	// ListFlashSale returns in-stock products with a running flash sale,
	// highest discount rate first.
	ListFlashSale(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	// ListDiscounted returns in-stock products with a running discount,
	// cheapest discount price first.
	ListDiscounted(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	Stats(ctx context.Context, now time.Time) (ProductStats, error)
	// ListLowStock returns products whose stock fell under the threshold,
	// scarcest first.
	ListLowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error)
	// ListExpiredPromotions returns products whose discount or flash window
	// ended at or before now but whose promotion flags are still set.
	ListExpiredPromotions(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	// ClearExpiredPromotions resets whichever promotion windows have lapsed,
	// leaving a still-running promotion of the other kind untouched.
	ClearExpiredPromotions(ctx context.Context, productID string, now time.Time) (domain.Product, error)
}

// CategoryRepository persists product categories and their slugs.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
}

// CartRepository owns the single cart document kept per user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// DailySalesPoint aggregates completed-order revenue for one UTC calendar day.
type DailySalesPoint struct {
	Date   string
	Total  int64
	Orders int64
}

// OrderSalesStats summarises order volume and completed revenue for the back office.
type OrderSalesStats struct {
	TotalOrders    int64
	CompletedSales int64
	Daily          []DailySalesPoint
}

// OrderStatusUpdateResult reports the outcome of a status transition attempt.
// Changed is false when the requested status matched the current one.
type OrderStatusUpdateResult struct {
	Order    domain.Order
	Previous domain.OrderStatus
	Changed  bool
}

// OrderRepository persists orders. Order creation and cancellation move stock
// in the same transaction as the order write.
type OrderRepository interface {
	// CreateWithStockDecrement validates and decrements CountInStock for every
	// line and inserts the order atomically. No partial decrement survives a
	// failed line.
	CreateWithStockDecrement(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByPaymentIntent resolves the order holding the given gateway intent.
	FindByPaymentIntent(ctx context.Context, intentID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, pager domain.PageQuery) (domain.Page[domain.Order], error)
	List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.Order], error)
	// SalesStats reports order counts, completed revenue, and per-day revenue
	// since the given instant.
	SalesStats(ctx context.Context, since time.Time) (OrderSalesStats, error)
	// UpdateStatus applies a lifecycle transition. Cancellation restores stock
	// in the same transaction. Completion stamps delivery.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (OrderStatusUpdateResult, error)
	// MarkPaid records the verified gateway outcome on an order.
	MarkPaid(ctx context.Context, orderID string, payment domain.PaymentResult, now time.Time) (domain.Order, error)
}

// UserRepository persists accounts. Email addresses are unique.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, userID string) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.User], error)
	CountByRole(ctx context.Context, role domain.UserRole) (int64, error)
}

// CounterRepository issues monotonically increasing sequence values, used for
// human-readable order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
