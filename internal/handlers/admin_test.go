package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/services"
)

type stubDashboardService struct {
	overviewFunc func(ctx context.Context) (services.DashboardOverview, error)
}

func (s *stubDashboardService) Overview(ctx context.Context) (services.DashboardOverview, error) {
	if s.overviewFunc != nil {
		return s.overviewFunc(ctx)
	}
	return services.DashboardOverview{}, nil
}

func newAdminRouter(t *testing.T, dashboard services.DashboardService) chi.Router {
	t.Helper()
	handler := NewAdminHandlers(newTestAuthenticator(t), dashboard)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func TestAdminDashboardReturnsOverview(t *testing.T) {
	dashboard := &stubDashboardService{
		overviewFunc: func(ctx context.Context) (services.DashboardOverview, error) {
			return services.DashboardOverview{
				TotalSales:     1250000,
				TotalOrders:    42,
				TotalProducts:  120,
				TotalCustomers: 314,
				DailySales: []services.DailySalesPoint{
					{Date: "2025-03-09", Total: 950000, Orders: 7},
				},
				RecentOrders: []services.Order{{ID: "ord_new", Number: "CC-2025-000099"}},
				LowStock: []services.LowStockProduct{
					{ProductID: "prd_low", Name: "Fincan", CountInStock: 2},
				},
			}, nil
		},
	}
	router := newAdminRouter(t, dashboard)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Stats struct {
			TotalSales     int64 `json:"totalSales"`
			TotalOrders    int64 `json:"totalOrders"`
			TotalProducts  int64 `json:"totalProducts"`
			TotalCustomers int64 `json:"totalCustomers"`
		} `json:"stats"`
		DailySales []struct {
			Date  string `json:"date"`
			Total int64  `json:"total"`
		} `json:"dailySales"`
		RecentOrders []struct {
			Number string `json:"number"`
		} `json:"recentOrders"`
		LowStock []struct {
			ID           string `json:"id"`
			CountInStock int    `json:"countInStock"`
		} `json:"lowStockProducts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Stats.TotalSales != 1250000 || resp.Stats.TotalOrders != 42 {
		t.Fatalf("unexpected sales stats %+v", resp.Stats)
	}
	if resp.Stats.TotalProducts != 120 || resp.Stats.TotalCustomers != 314 {
		t.Fatalf("unexpected catalog stats %+v", resp.Stats)
	}
	if len(resp.DailySales) != 1 || resp.DailySales[0].Date != "2025-03-09" || resp.DailySales[0].Total != 950000 {
		t.Fatalf("unexpected daily sales %+v", resp.DailySales)
	}
	if len(resp.RecentOrders) != 1 || resp.RecentOrders[0].Number != "CC-2025-000099" {
		t.Fatalf("unexpected recent orders %+v", resp.RecentOrders)
	}
	if len(resp.LowStock) != 1 || resp.LowStock[0].ID != "prd_low" || resp.LowStock[0].CountInStock != 2 {
		t.Fatalf("unexpected low stock list %+v", resp.LowStock)
	}
}

func TestAdminDashboardRequiresAdminRole(t *testing.T) {
	router := newAdminRouter(t, &stubDashboardService{})

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAdminDashboardRequiresAuthentication(t *testing.T) {
	router := newAdminRouter(t, &stubDashboardService{})

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestAdminDashboardServiceFailure(t *testing.T) {
	dashboard := &stubDashboardService{
		overviewFunc: func(ctx context.Context) (services.DashboardOverview, error) {
			return services.DashboardOverview{}, services.ErrDashboardUnavailable
		},
	}
	router := newAdminRouter(t, dashboard)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	body := decodeErrorBody(t, rr)
	if body["error"] != "dashboard_error" {
		t.Fatalf("unexpected error body %+v", body)
	}
}

var _ services.DashboardService = (*stubDashboardService)(nil)
