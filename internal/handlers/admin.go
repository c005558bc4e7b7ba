package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

// AdminHandlers exposes the back-office overview.
type AdminHandlers struct {
	authn     *auth.Authenticator
	dashboard services.DashboardService
}

// NewAdminHandlers constructs handlers backed by the dashboard service.
func NewAdminHandlers(authn *auth.Authenticator, dashboard services.DashboardService) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		dashboard: dashboard,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil || h.authn == nil {
		return
	}
	r.Group(func(admin chi.Router) {
		admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
		admin.Get("/dashboard", h.getDashboard)
	})
}

type dashboardStatsPayload struct {
	TotalSales     int64 `json:"totalSales"`
	TotalOrders    int64 `json:"totalOrders"`
	TotalProducts  int64 `json:"totalProducts"`
	TotalCustomers int64 `json:"totalCustomers"`
}

type dailySalesPayload struct {
	Date   string `json:"date"`
	Total  int64  `json:"total"`
	Orders int64  `json:"orders"`
}

type lowStockPayload struct {
	ProductID    string `json:"id"`
	Name         string `json:"name"`
	CountInStock int    `json:"countInStock"`
}

type dashboardPayload struct {
	Stats        dashboardStatsPayload `json:"stats"`
	DailySales   []dailySalesPayload   `json:"dailySales"`
	RecentOrders []orderPayload        `json:"recentOrders"`
	LowStock     []lowStockPayload     `json:"lowStockProducts"`
}

func (h *AdminHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_unavailable", "dashboard service is unavailable", http.StatusServiceUnavailable))
		return
	}

	overview, err := h.dashboard.Overview(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("dashboard_error", "İstatistikler yüklenemedi", http.StatusInternalServerError))
		return
	}

	payload := dashboardPayload{
		Stats: dashboardStatsPayload{
			TotalSales:     overview.TotalSales,
			TotalOrders:    overview.TotalOrders,
			TotalProducts:  overview.TotalProducts,
			TotalCustomers: overview.TotalCustomers,
		},
		DailySales:   make([]dailySalesPayload, 0, len(overview.DailySales)),
		RecentOrders: make([]orderPayload, 0, len(overview.RecentOrders)),
		LowStock:     make([]lowStockPayload, 0, len(overview.LowStock)),
	}
	for _, point := range overview.DailySales {
		payload.DailySales = append(payload.DailySales, dailySalesPayload{
			Date:   point.Date,
			Total:  point.Total,
			Orders: point.Orders,
		})
	}
	for _, order := range overview.RecentOrders {
		payload.RecentOrders = append(payload.RecentOrders, buildOrderPayload(order))
	}
	for _, product := range overview.LowStock {
		payload.LowStock = append(payload.LowStock, lowStockPayload{
			ProductID:    product.ProductID,
			Name:         product.Name,
			CountInStock: product.CountInStock,
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}
