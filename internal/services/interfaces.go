package services

import (
	"context"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	PageQuery       = domain.PageQuery
	Product         = domain.Product
	Category        = domain.Category
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	ShippingAddress = domain.ShippingAddress
	PaymentResult   = domain.PaymentResult
	User            = domain.User
	ProductStats    = repositories.ProductStats
	DailySalesPoint = repositories.DailySalesPoint
)

// CatalogService manages products including promotion windows and admin statistics.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd ProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	ListFlashSale(ctx context.Context) ([]Product, error)
	ListDiscounted(ctx context.Context) ([]Product, error)
	Stats(ctx context.Context) (ProductStats, error)
}

// CategoryService manages product categories and their Turkish slugs.
type CategoryService interface {
	ListCategories(ctx context.Context, includeInactive bool) ([]Category, error)
	GetCategory(ctx context.Context, categoryID string) (Category, error)
	CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, categoryID string, cmd CategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// CartService manages the per-user cart while enforcing live stock limits.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (CartView, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (CartView, error)
	ClearCart(ctx context.Context, userID string) error
}

// PaymentService bridges checkout amounts to the payment gateway.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error)
	VerifyPaymentIntent(ctx context.Context, intentID string) (PaymentVerification, error)
}

// OrderService owns checkout and the order lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListMyOrders(ctx context.Context, userID string, pager PageQuery) (domain.Page[Order], error)
	ListOrders(ctx context.Context, pager PageQuery) (domain.Page[Order], error)
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error)
	// ReconcilePaymentIntent re-checks the gateway for the given intent and
	// marks the matching order paid. Already-paid orders are left untouched.
	ReconcilePaymentIntent(ctx context.Context, intentID string) (Order, error)
}

// DashboardService aggregates the back-office overview dataset.
type DashboardService interface {
	Overview(ctx context.Context) (DashboardOverview, error)
}

// UserService covers registration, login, profile management, and the admin account surface.
type UserService interface {
	Register(ctx context.Context, cmd RegisterCommand) (AuthenticatedUser, error)
	Login(ctx context.Context, email, password string) (AuthenticatedUser, error)
	GetUser(ctx context.Context, userID string) (User, error)
	UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (User, error)
	ListUsers(ctx context.Context, pager PageQuery) (domain.Page[User], error)
	CreateUser(ctx context.Context, cmd AdminCreateUserCommand) (User, error)
	UpdateUser(ctx context.Context, userID string, cmd AdminUpdateUserCommand) (User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// OrderEventPublisher emits order lifecycle events for staff tooling.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order Order) error
	PublishOrderStatusChanged(ctx context.Context, order Order, previous OrderStatus) error
}

// ProductListFilter mirrors the storefront listing query surface.
type ProductListFilter struct {
	Keyword        string
	CategoryID     string
	OnlyDiscounted bool
	OnlyFlash      bool
	Page           int
	Limit          int
}

// ProductCommand carries admin-supplied product fields. Monetary amounts are kuruş.
type ProductCommand struct {
	Name         string
	Description  string
	Image        string
	Brand        string
	CategoryID   string
	Price        int64
	CountInStock int

	IsDiscount      bool
	DiscountPrice   int64
	DiscountEndDate *time.Time

	IsFlash           bool
	FlashDiscountRate float64
	FlashEndDate      *time.Time
}

// CategoryCommand carries admin-supplied category fields.
type CategoryCommand struct {
	Name        string
	Description string
	IsActive    *bool
}

// CartLine is a cart item hydrated with current catalog display data.
type CartLine struct {
	ProductID    string
	Name         string
	Image        string
	Quantity     int
	UnitPrice    int64
	LineTotal    int64
	CountInStock int
	AddedAt      time.Time
	UpdatedAt    *time.Time
}

// CartView is the cart as returned to clients, with hydrated lines and totals.
type CartView struct {
	UserID     string
	Items      []CartLine
	ItemsTotal int64
	UpdatedAt  time.Time
}

// CreatePaymentIntentCommand carries the checkout amount in major units (lira).
type CreatePaymentIntentCommand struct {
	Amount         float64
	IdempotencyKey string
	CustomerID     string
}

// PaymentIntentResult returns the gateway handle the client confirms against.
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	Amount       int64
	Currency     string
}

// PaymentVerification is the authoritative gateway view of an intent.
type PaymentVerification struct {
	IntentID  string
	Succeeded bool
	Amount    int64
	Currency  string
	PaidAt    *time.Time
}

// CreateOrderCommand is the checkout payload. Totals are client-supplied and
// bounded by the verified intent amount.
type CreateOrderCommand struct {
	UserID          string
	Items           []CreateOrderItem
	Shipping        ShippingAddress
	PaymentIntentID string
	ItemsPrice      int64
	ShippingPrice   int64
	TaxPrice        int64
	TotalPrice      int64
}

// CreateOrderItem is a single checkout line.
type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

// LowStockProduct is a catalog entry running out of stock.
type LowStockProduct struct {
	ProductID    string
	Name         string
	CountInStock int
}

// DashboardOverview is the back-office landing page dataset. Monetary totals
// are kuruş; TotalSales covers completed orders only.
type DashboardOverview struct {
	TotalSales     int64
	TotalOrders    int64
	TotalProducts  int64
	TotalCustomers int64
	DailySales     []DailySalesPoint
	RecentOrders   []Order
	LowStock       []LowStockProduct
}

// RegisterCommand carries self-service registration fields.
type RegisterCommand struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileCommand updates the caller's own account. Empty fields are kept.
type UpdateProfileCommand struct {
	Name     string
	Email    string
	Password string
}

// AdminCreateUserCommand creates an account from the back office.
type AdminCreateUserCommand struct {
	Name     string
	Email    string
	Password string
	Role     domain.UserRole
}

// AdminUpdateUserCommand updates an account from the back office. Empty fields are kept.
type AdminUpdateUserCommand struct {
	Name  string
	Email string
	Role  domain.UserRole
}

// AuthenticatedUser pairs an account with a freshly issued bearer token.
type AuthenticatedUser struct {
	User  User
	Token string
}
