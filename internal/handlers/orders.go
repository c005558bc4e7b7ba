package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/payments"
	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes checkout, order history, and admin order management.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	payments    services.PaymentService
	idempotency func(http.Handler) http.Handler
}

// NewOrderHandlers constructs handlers backed by the order and payment services.
// The idempotency middleware, when provided, guards checkout and intent creation.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, paymentSvc services.PaymentService, idempotency func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		authn:       authn,
		orders:      orders,
		payments:    paymentSvc,
		idempotency: idempotency,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn == nil {
		return
	}

	r.Group(func(authed chi.Router) {
		authed.Use(h.authn.RequireAuth())

		if h.idempotency != nil {
			authed.Group(func(guarded chi.Router) {
				guarded.Use(h.idempotency)
				guarded.Post("/", h.createOrder)
				guarded.Post("/create-payment-intent", h.createPaymentIntent)
			})
		} else {
			authed.Post("/", h.createOrder)
			authed.Post("/create-payment-intent", h.createPaymentIntent)
		}

		authed.Get("/myorders", h.listMyOrders)
		authed.Get("/{id}", h.getOrder)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
		admin.Get("/", h.listOrders)
		admin.Put("/{id}/status", h.updateStatus)
	})
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type shippingPayload struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

type orderPayload struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	UserID string `json:"userId"`

	Items    []orderItemPayload `json:"items"`
	Shipping shippingPayload    `json:"shipping"`

	ItemsPrice    int64 `json:"itemsPrice"`
	ShippingPrice int64 `json:"shippingPrice"`
	TaxPrice      int64 `json:"taxPrice"`
	TotalPrice    int64 `json:"totalPrice"`

	Status      string `json:"status"`
	IsPaid      bool   `json:"isPaid"`
	PaidAt      string `json:"paidAt,omitempty"`
	IsDelivered bool   `json:"isDelivered"`
	DeliveredAt string `json:"deliveredAt,omitempty"`
	CancelledAt string `json:"cancelledAt,omitempty"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:     order.ID,
		Number: order.Number,
		UserID: order.UserID,
		Items:  make([]orderItemPayload, 0, len(order.Items)),
		Shipping: shippingPayload{
			Address:    order.Shipping.Address,
			City:       order.Shipping.City,
			District:   order.Shipping.District,
			PostalCode: order.Shipping.PostalCode,
			Country:    order.Shipping.Country,
		},
		ItemsPrice:    order.ItemsPrice,
		ShippingPrice: order.ShippingPrice,
		TaxPrice:      order.TaxPrice,
		TotalPrice:    order.TotalPrice,
		Status:        string(order.Status),
		IsPaid:        order.IsPaid,
		PaidAt:        formatTimePtr(order.PaidAt),
		IsDelivered:   order.IsDelivered,
		DeliveredAt:   formatTimePtr(order.DeliveredAt),
		CancelledAt:   formatTimePtr(order.CancelledAt),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return payload
}

type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Shipping        shippingPayload `json:"shipping"`
	PaymentIntentID string          `json:"paymentIntentId"`
	ItemsPrice      int64           `json:"itemsPrice"`
	ShippingPrice   int64           `json:"shippingPrice"`
	TaxPrice        int64           `json:"taxPrice"`
	TotalPrice      int64           `json:"totalPrice"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.CreateOrderCommand{
		UserID: identity.UserID,
		Shipping: services.ShippingAddress{
			Address:    req.Shipping.Address,
			City:       req.Shipping.City,
			District:   req.Shipping.District,
			PostalCode: req.Shipping.PostalCode,
			Country:    req.Shipping.Country,
		},
		PaymentIntentID: req.PaymentIntentID,
		ItemsPrice:      req.ItemsPrice,
		ShippingPrice:   req.ShippingPrice,
		TaxPrice:        req.TaxPrice,
		TotalPrice:      req.TotalPrice,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

type orderListPayload struct {
	Orders []orderPayload `json:"orders"`
	pageMeta
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.orders.ListMyOrders(ctx, identity.UserID, parsePageQuery(r))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page.Items, pageMeta{Page: page.Page, Pages: page.Pages, Total: page.Total}))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.orders.ListOrders(ctx, parsePageQuery(r))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page.Items, pageMeta{Page: page.Page, Pages: page.Pages, Total: page.Total}))
}

func buildOrderListPayload(orders []services.Order, meta pageMeta) orderListPayload {
	payload := orderListPayload{
		Orders:   make([]orderPayload, 0, len(orders)),
		pageMeta: meta,
	}
	for _, order := range orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	return payload
}

// getOrder serves the order to its owner or to an admin; anyone else gets 404
// rather than confirmation the order exists.
func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, trimmedURLParam(r, "id"))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	if order.UserID != identity.UserID && !identity.IsAdmin() {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Sipariş bulunamadı", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(ctx, trimmedURLParam(r, "id"), services.OrderStatus(req.Status))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type createPaymentIntentRequest struct {
	Amount float64 `json:"amount"`
}

func (h *OrderHandlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createPaymentIntentRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	result, err := h.payments.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		Amount:         req.Amount,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		CustomerID:     identity.UserID,
	})
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"paymentIntentId": result.IntentID,
		"clientSecret":    result.ClientSecret,
		"amount":          result.Amount,
		"currency":        result.Currency,
	})
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Geçersiz sipariş bilgileri", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Sipariş bulunamadı", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "Siparişteki ürün bulunamadı", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "Yeterli stok yok", http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentNotVerified):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_verified", "Ödeme doğrulanamadı", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", "Geçersiz sipariş durumu geçişi", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "Sipariş işlemi başarısız", http.StatusInternalServerError))
	}
}

func (h *OrderHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var gwErr *payments.GatewayError
	switch {
	case errors.Is(err, services.ErrPaymentInvalidAmount):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_amount", "Tutar sıfırdan büyük olmalı", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidIntent):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_intent", "Geçersiz ödeme referansı", http.StatusBadRequest))
	case errors.As(err, &gwErr):
		status := http.StatusPaymentRequired
		if gwErr.Retryable {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", "Ödeme reddedildi", status).WithDetails(map[string]any{
			"reason":    gwErr.Reason,
			"retryable": gwErr.Retryable,
		}))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "Ödeme işlemi başarısız", http.StatusInternalServerError))
	}
}
