package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/repositories"
)

const (
	dashboardSalesWindow   = 7 * 24 * time.Hour
	dashboardRecentOrders  = 5
	dashboardLowStockLevel = 10
	dashboardLowStockLimit = 5
)

var (
	errDashboardOrdersRequired   = errors.New("dashboard service: order repository is required")
	errDashboardProductsRequired = errors.New("dashboard service: product repository is required")
	errDashboardUsersRequired    = errors.New("dashboard service: user repository is required")
	errDashboardClockRequired    = errors.New("dashboard service: clock is required")
)

// ErrDashboardUnavailable indicates a backend failure while aggregating stats.
var ErrDashboardUnavailable = errors.New("dashboard service: unavailable")

// DashboardServiceDeps wires the repositories the overview aggregates over.
type DashboardServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Users    repositories.UserRepository
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type dashboardService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewDashboardService constructs a DashboardService enforcing dependency validation.
func NewDashboardService(deps DashboardServiceDeps) (DashboardService, error) {
	if deps.Orders == nil {
		return nil, errDashboardOrdersRequired
	}
	if deps.Products == nil {
		return nil, errDashboardProductsRequired
	}
	if deps.Users == nil {
		return nil, errDashboardUsersRequired
	}
	if deps.Clock == nil {
		return nil, errDashboardClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &dashboardService{
		orders:   deps.Orders,
		products: deps.Products,
		users:    deps.Users,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

// Overview collects order volume, completed revenue with a seven day daily
// breakdown, customer and catalog counts, the latest orders, and the products
// about to run out.
func (s *dashboardService) Overview(ctx context.Context) (DashboardOverview, error) {
	if s == nil || s.orders == nil {
		return DashboardOverview{}, ErrDashboardUnavailable
	}
	now := s.now()

	sales, err := s.orders.SalesStats(ctx, now.Add(-dashboardSalesWindow))
	if err != nil {
		return DashboardOverview{}, s.fail(ctx, "sales", err)
	}
	productStats, err := s.products.Stats(ctx, now)
	if err != nil {
		return DashboardOverview{}, s.fail(ctx, "products", err)
	}
	customers, err := s.users.CountByRole(ctx, domain.RoleCustomer)
	if err != nil {
		return DashboardOverview{}, s.fail(ctx, "customers", err)
	}
	recent, err := s.orders.List(ctx, domain.PageQuery{Page: 1, Limit: dashboardRecentOrders})
	if err != nil {
		return DashboardOverview{}, s.fail(ctx, "recentOrders", err)
	}
	lowStock, err := s.products.ListLowStock(ctx, dashboardLowStockLevel, dashboardLowStockLimit)
	if err != nil {
		return DashboardOverview{}, s.fail(ctx, "lowStock", err)
	}

	overview := DashboardOverview{
		TotalSales:     sales.CompletedSales,
		TotalOrders:    sales.TotalOrders,
		TotalProducts:  productStats.Total,
		TotalCustomers: customers,
		DailySales:     sales.Daily,
		RecentOrders:   recent.Items,
	}
	for _, product := range lowStock {
		overview.LowStock = append(overview.LowStock, LowStockProduct{
			ProductID:    product.ID,
			Name:         product.Name,
			CountInStock: product.CountInStock,
		})
	}
	return overview, nil
}

func (s *dashboardService) fail(ctx context.Context, section string, err error) error {
	s.logger(ctx, "dashboard.section_failed", map[string]any{
		"section": section,
		"error":   err.Error(),
	})
	return ErrDashboardUnavailable
}
