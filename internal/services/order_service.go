package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/repositories"
)

const (
	orderIDPrefix    = "ord_"
	orderCounterName = "orders"
)

var (
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderProductsRequired   = errors.New("order service: product repository is required")
	errOrderVerifierRequired   = errors.New("order service: payment verifier is required")
	errOrderCountersRequired   = errors.New("order service: counter repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the checkout payload is invalid.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderProductNotFound indicates a checkout line references a missing product.
var ErrOrderProductNotFound = errors.New("order service: product not found")

// ErrOrderInsufficientStock indicates a checkout line exceeds remaining stock.
var ErrOrderInsufficientStock = errors.New("order service: insufficient stock")

// ErrOrderPaymentNotVerified indicates the payment intent is not a settled
// payment covering the order total. Orders are never persisted on this path.
var ErrOrderPaymentNotVerified = errors.New("order service: payment not verified")

// ErrOrderInvalidTransition indicates the lifecycle forbids the requested status.
var ErrOrderInvalidTransition = errors.New("order service: invalid status transition")

// ErrOrderUnavailable indicates a backend failure while accessing orders.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// paymentIntentVerifier is the slice of PaymentService checkout depends on.
type paymentIntentVerifier interface {
	VerifyPaymentIntent(ctx context.Context, intentID string) (PaymentVerification, error)
}

// cartClearer empties the buyer's cart once the order is persisted.
type cartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// OrderServiceDeps wires persistence, payment verification, and eventing for orders.
type OrderServiceDeps struct {
	Repository  repositories.OrderRepository
	Products    repositories.ProductRepository
	Counters    repositories.CounterRepository
	Payments    paymentIntentVerifier
	Carts       cartClearer
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	repo     repositories.OrderRepository
	products repositories.ProductRepository
	counters repositories.CounterRepository
	payments paymentIntentVerifier
	carts    cartClearer
	events   OrderEventPublisher
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errOrderProductsRequired
	}
	if deps.Counters == nil {
		return nil, errOrderCountersRequired
	}
	if deps.Payments == nil {
		return nil, errOrderVerifierRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		repo:     deps.Repository,
		products: deps.Products,
		counters: deps.Counters,
		payments: deps.Payments,
		carts:    deps.Carts,
		events:   deps.Events,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// CreateOrder materialises a checkout. The payment intent is verified with the
// gateway before anything is written, the stock decrement and the order insert
// share one transaction, and the buyer's cart is emptied on success.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if len(cmd.Items) == 0 {
		return Order{}, ErrOrderInvalidInput
	}
	if cmd.TotalPrice <= 0 || cmd.ItemsPrice < 0 || cmd.ShippingPrice < 0 || cmd.TaxPrice < 0 {
		return Order{}, ErrOrderInvalidInput
	}
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return Order{}, ErrOrderPaymentNotVerified
	}

	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity < 1 {
			return Order{}, ErrOrderInvalidInput
		}
	}

	verification, err := s.payments.VerifyPaymentIntent(ctx, intentID)
	if err != nil {
		s.logger(ctx, "orders.payment_verification_failed", map[string]any{
			"paymentIntent": intentID,
			"error":         err.Error(),
		})
		return Order{}, ErrOrderPaymentNotVerified
	}
	if !verification.Succeeded || verification.Amount < cmd.TotalPrice {
		return Order{}, ErrOrderPaymentNotVerified
	}

	now := s.now()
	items, err := s.snapshotLines(ctx, cmd.Items, now)
	if err != nil {
		return Order{}, err
	}

	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}

	paidAt := verification.PaidAt
	if paidAt == nil {
		paidAt = &now
	}

	order := Order{
		ID:       s.newID(),
		Number:   number,
		UserID:   userID,
		Items:    items,
		Shipping: cmd.Shipping,
		Payment: PaymentResult{
			IntentID: verification.IntentID,
			Status:   "succeeded",
			Amount:   verification.Amount,
			Currency: verification.Currency,
			PaidAt:   paidAt,
		},
		ItemsPrice:    cmd.ItemsPrice,
		ShippingPrice: cmd.ShippingPrice,
		TaxPrice:      cmd.TaxPrice,
		TotalPrice:    cmd.TotalPrice,
		Status:        domain.OrderStatusPending,
		IsPaid:        true,
		PaidAt:        paidAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateWithStockDecrement(ctx, order)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	if s.carts != nil {
		if err := s.carts.ClearCart(ctx, userID); err != nil {
			s.logger(ctx, "orders.cart_clear_failed", map[string]any{
				"orderID": created.ID,
				"error":   err.Error(),
			})
		}
	}
	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, created); err != nil {
			s.logger(ctx, "orders.event_publish_failed", map[string]any{
				"orderID": created.ID,
				"event":   "order.created",
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "orders.created", map[string]any{
		"orderID": created.ID,
		"number":  created.Number,
		"total":   created.TotalPrice,
	})
	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, userID string, pager PageQuery) (domain.Page[Order], error) {
	if s == nil || s.repo == nil {
		return domain.Page[Order]{}, ErrOrderUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[Order]{}, ErrOrderInvalidInput
	}
	page, err := s.repo.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.Page[Order]{}, s.translateOrderError(err)
	}
	return page, nil
}

func (s *orderService) ListOrders(ctx context.Context, pager PageQuery) (domain.Page[Order], error) {
	if s == nil || s.repo == nil {
		return domain.Page[Order]{}, ErrOrderUnavailable
	}
	page, err := s.repo.List(ctx, pager)
	if err != nil {
		return domain.Page[Order]{}, s.translateOrderError(err)
	}
	return page, nil
}

// UpdateStatus applies a lifecycle transition. Re-applying the current status
// changes nothing and publishes nothing.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if !status.Valid() {
		return Order{}, ErrOrderInvalidTransition
	}

	result, err := s.repo.UpdateStatus(ctx, orderID, status, s.now())
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	if result.Changed {
		if s.events != nil {
			if err := s.events.PublishOrderStatusChanged(ctx, result.Order, result.Previous); err != nil {
				s.logger(ctx, "orders.event_publish_failed", map[string]any{
					"orderID": result.Order.ID,
					"event":   "order.status.changed",
					"error":   err.Error(),
				})
			}
		}
		s.logger(ctx, "orders.status_changed", map[string]any{
			"orderID": result.Order.ID,
			"from":    string(result.Previous),
			"to":      string(result.Order.Status),
		})
	}
	return result.Order, nil
}

// ReconcilePaymentIntent marks the order holding the given intent as paid once
// the gateway confirms settlement. Webhook payloads are never trusted for the
// paid flag; the gateway is consulted directly.
func (s *orderService) ReconcilePaymentIntent(ctx context.Context, intentID string) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}
	if order.IsPaid {
		return order, nil
	}

	verification, err := s.payments.VerifyPaymentIntent(ctx, intentID)
	if err != nil {
		s.logger(ctx, "orders.payment_verification_failed", map[string]any{
			"paymentIntent": intentID,
			"error":         err.Error(),
		})
		return Order{}, ErrOrderPaymentNotVerified
	}
	if !verification.Succeeded || verification.Amount < order.TotalPrice {
		return Order{}, ErrOrderPaymentNotVerified
	}

	now := s.now()
	paidAt := verification.PaidAt
	if paidAt == nil {
		paidAt = &now
	}
	updated, err := s.repo.MarkPaid(ctx, order.ID, PaymentResult{
		IntentID: verification.IntentID,
		Status:   "succeeded",
		Amount:   verification.Amount,
		Currency: verification.Currency,
		PaidAt:   paidAt,
	}, now)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.logger(ctx, "orders.payment_reconciled", map[string]any{
		"orderID":       updated.ID,
		"paymentIntent": intentID,
	})
	return updated, nil
}

// snapshotLines copies name/image and the effective unit price into order
// items so later catalog changes never touch the order.
func (s *orderService) snapshotLines(ctx context.Context, items []CreateOrderItem, now time.Time) ([]OrderItem, error) {
	lines := make([]OrderItem, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return nil, fmt.Errorf("%w: %s", ErrOrderProductNotFound, productID)
			}
			return nil, ErrOrderUnavailable
		}
		lines = append(lines, OrderItem{
			ProductID: productID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  item.Quantity,
			UnitPrice: product.EffectiveUnitPrice(now),
		})
	}
	return lines, nil
}

// nextOrderNumber formats the transactional sequence as CC-<year>-<seq>.
func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderCounterName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CC-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}

	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorNotFound:
			return ErrOrderNotFound
		case repositories.OrderErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrOrderProductNotFound, orderErr.ProductID)
		case repositories.OrderErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrOrderInsufficientStock, orderErr.ProductID)
		case repositories.OrderErrorInvalidTransition:
			return ErrOrderInvalidTransition
		}
		return ErrOrderUnavailable
	}
	if isRepoNotFound(err) {
		return ErrOrderNotFound
	}
	return ErrOrderUnavailable
}
