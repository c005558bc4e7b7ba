package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/carsi-commerce/api/internal/domain"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

const ordersCollection = "orders"

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

type orderDocument struct {
	Number  string              `firestore:"number"`
	UserRef string              `firestore:"userRef"`
	Items   []orderItemDocument `firestore:"items"`

	Shipping shippingAddressDocument `firestore:"shipping"`
	Payment  paymentResultDocument   `firestore:"payment"`

	ItemsPrice    int64 `firestore:"itemsPrice"`
	ShippingPrice int64 `firestore:"shippingPrice"`
	TaxPrice      int64 `firestore:"taxPrice"`
	TotalPrice    int64 `firestore:"totalPrice"`

	Status      string     `firestore:"status"`
	IsPaid      bool       `firestore:"isPaid"`
	PaidAt      *time.Time `firestore:"paidAt,omitempty"`
	IsDelivered bool       `firestore:"isDelivered"`
	DeliveredAt *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	Image      string `firestore:"image"`
	Quantity   int    `firestore:"qty"`
	UnitPrice  int64  `firestore:"unitPrice"`
}

type shippingAddressDocument struct {
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	District   string `firestore:"district"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type paymentResultDocument struct {
	IntentRef string     `firestore:"intentRef"`
	Status    string     `firestore:"status"`
	Amount    int64      `firestore:"amount"`
	Currency  string     `firestore:"currency"`
	PaidAt    *time.Time `firestore:"paidAt,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductRef: strings.TrimSpace(item.ProductID),
			Name:       item.Name,
			Image:      item.Image,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		}
	}
	return orderDocument{
		Number:  strings.TrimSpace(order.Number),
		UserRef: strings.TrimSpace(order.UserID),
		Items:   items,
		Shipping: shippingAddressDocument{
			Address:    order.Shipping.Address,
			City:       order.Shipping.City,
			District:   order.Shipping.District,
			PostalCode: order.Shipping.PostalCode,
			Country:    order.Shipping.Country,
		},
		Payment: paymentResultDocument{
			IntentRef: order.Payment.IntentID,
			Status:    order.Payment.Status,
			Amount:    order.Payment.Amount,
			Currency:  order.Payment.Currency,
			PaidAt:    utcTimePtr(order.Payment.PaidAt),
		},
		ItemsPrice:    order.ItemsPrice,
		ShippingPrice: order.ShippingPrice,
		TaxPrice:      order.TaxPrice,
		TotalPrice:    order.TotalPrice,
		Status:        string(order.Status),
		IsPaid:        order.IsPaid,
		PaidAt:        utcTimePtr(order.PaidAt),
		IsDelivered:   order.IsDelivered,
		DeliveredAt:   utcTimePtr(order.DeliveredAt),
		CancelledAt:   utcTimePtr(order.CancelledAt),
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductRef,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return domain.Order{
		ID:     id,
		Number: d.Number,
		UserID: d.UserRef,
		Items:  items,
		Shipping: domain.ShippingAddress{
			Address:    d.Shipping.Address,
			City:       d.Shipping.City,
			District:   d.Shipping.District,
			PostalCode: d.Shipping.PostalCode,
			Country:    d.Shipping.Country,
		},
		Payment: domain.PaymentResult{
			IntentID: d.Payment.IntentRef,
			Status:   d.Payment.Status,
			Amount:   d.Payment.Amount,
			Currency: d.Payment.Currency,
			PaidAt:   d.Payment.PaidAt,
		},
		ItemsPrice:    d.ItemsPrice,
		ShippingPrice: d.ShippingPrice,
		TaxPrice:      d.TaxPrice,
		TotalPrice:    d.TotalPrice,
		Status:        domain.OrderStatus(d.Status),
		IsPaid:        d.IsPaid,
		PaidAt:        d.PaidAt,
		IsDelivered:   d.IsDelivered,
		DeliveredAt:   d.DeliveredAt,
		CancelledAt:   d.CancelledAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
// Stock movements are applied in the same transaction as the order writes.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

func (r *OrderRepository) CreateWithStockDecrement(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order create: id is required", nil)
	}
	if len(order.Items) == 0 {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order create: at least one item is required", nil)
	}

	doc := newOrderDocument(order)
	var created domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}

		// Requested quantities aggregated per product so duplicate lines are
		// validated against the combined demand.
		requested := make(map[string]int, len(order.Items))
		productIDs := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			productID := strings.TrimSpace(item.ProductID)
			if productID == "" {
				return repositories.NewOrderError(repositories.OrderErrorProductNotFound, "order create: item product id is required", nil)
			}
			if item.Quantity <= 0 {
				return repositories.NewOrderError(repositories.OrderErrorUnknown, fmt.Sprintf("order create: quantity for %s must be > 0", productID), nil)
			}
			if _, seen := requested[productID]; !seen {
				productIDs = append(productIDs, productID)
			}
			requested[productID] += item.Quantity
		}

		// All reads happen before the first write; the client rejects reads
		// issued after a buffered write.
		refs := make([]*firestore.DocumentRef, 0, len(productIDs))
		decremented := make([]productDocument, 0, len(productIDs))
		for _, productID := range productIDs {
			productRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return orderProductError(repositories.OrderErrorProductNotFound, productID, fmt.Sprintf("product %s not found", productID), err)
				}
				return err
			}
			var productDoc productDocument
			if err := snap.DataTo(&productDoc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}

			quantity := requested[productID]
			if productDoc.CountInStock < quantity {
				return orderProductError(repositories.OrderErrorInsufficientStock, productID,
					fmt.Sprintf("insufficient stock for %s: requested %d, available %d", productID, quantity, productDoc.CountInStock), nil)
			}
			productDoc.CountInStock -= quantity
			productDoc.UpdatedAt = doc.CreatedAt
			refs = append(refs, productRef)
			decremented = append(decremented, productDoc)
		}

		for i, productRef := range refs {
			if err := tx.Set(productRef, decremented[i]); err != nil {
				return err
			}
		}

		if err := tx.Create(orderRef, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewOrderError(repositories.OrderErrorUnknown, fmt.Sprintf("order %s already exists", order.ID), err)
			}
			return err
		}

		created = doc.toDomain(order.ID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.create", err)
	}
	return created, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, orderNotFound(orderID, err)
		}
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByPaymentIntent resolves the order holding the given gateway intent.
// Intent ids are unique per checkout, so the first match is the order.
func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order lookup: intent id is required", nil)
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("payment.intentRef", "==", intentID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("no order for intent %s", intentID), nil)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, pager domain.PageQuery) (domain.Page[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Page[domain.Order]{}, errors.New("order list: user id is required")
	}
	return r.list(ctx, pager, func(query firestore.Query) firestore.Query {
		return query.Where("userRef", "==", userID)
	})
}

func (r *OrderRepository) List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	return r.list(ctx, pager, nil)
}

func (r *OrderRepository) list(ctx context.Context, pager domain.PageQuery, build pfirestore.QueryBuilder) (domain.Page[domain.Order], error) {
	page := pager.Page
	if page <= 0 {
		page = 1
	}
	limit := pager.Limit
	if limit <= 0 {
		limit = defaultOrderPageSize
	}
	if limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}

	base := func(query firestore.Query) firestore.Query {
		if build != nil {
			query = build(query)
		}
		return query
	}

	total, err := r.orders.Count(ctx, base)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return base(query).
			OrderBy("createdAt", firestore.Desc).
			Offset((page - 1) * limit).
			Limit(limit)
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	return domain.Page[domain.Order]{
		Items: items,
		Page:  page,
		Pages: pageCount(total, limit),
		Total: total,
	}, nil
}

// SalesStats aggregates order volume and completed revenue. Daily buckets are
// grouped in memory since Firestore cannot bucket by calendar day.
func (r *OrderRepository) SalesStats(ctx context.Context, since time.Time) (repositories.OrderSalesStats, error) {
	if r == nil || r.orders == nil {
		return repositories.OrderSalesStats{}, errors.New("order repository not initialised")
	}

	completed := func(query firestore.Query) firestore.Query {
		return query.Where("status", "==", string(domain.OrderStatusCompleted))
	}

	total, err := r.orders.Count(ctx, nil)
	if err != nil {
		return repositories.OrderSalesStats{}, err
	}
	sales, err := r.orders.Sum(ctx, "totalPrice", completed)
	if err != nil {
		return repositories.OrderSalesStats{}, err
	}

	cutoff := since.UTC()
	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return completed(query).Where("createdAt", ">=", cutoff)
	})
	if err != nil {
		return repositories.OrderSalesStats{}, err
	}

	byDay := make(map[string]*repositories.DailySalesPoint)
	for _, doc := range docs {
		day := doc.Data.CreatedAt.UTC().Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &repositories.DailySalesPoint{Date: day}
			byDay[day] = point
		}
		point.Total += doc.Data.TotalPrice
		point.Orders++
	}
	daily := make([]repositories.DailySalesPoint, 0, len(byDay))
	for _, point := range byDay {
		daily = append(daily, *point)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	return repositories.OrderSalesStats{
		TotalOrders:    total,
		CompletedSales: sales,
		Daily:          daily,
	}, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus, now time.Time) (repositories.OrderStatusUpdateResult, error) {
	if r == nil || r.provider == nil {
		return repositories.OrderStatusUpdateResult{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return repositories.OrderStatusUpdateResult{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order status: id is required", nil)
	}
	if !next.Valid() {
		return repositories.OrderStatusUpdateResult{}, repositories.NewOrderError(repositories.OrderErrorInvalidTransition, fmt.Sprintf("unknown status %q", next), nil)
	}

	stamp := now.UTC()
	var result repositories.OrderStatusUpdateResult

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return orderNotFound(orderID, err)
			}
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		current := domain.OrderStatus(doc.Status)
		if current == next {
			// Re-applying the current status is a full no-op.
			result = repositories.OrderStatusUpdateResult{Order: doc.toDomain(orderID), Previous: current, Changed: false}
			return nil
		}
		if !current.CanTransitionTo(next) {
			return repositories.NewOrderError(repositories.OrderErrorInvalidTransition,
				fmt.Sprintf("order %s cannot move from %q to %q", orderID, current, next), nil)
		}

		if next == domain.OrderStatusCancelled {
			if err := r.restoreStock(ctx, tx, doc.Items, stamp); err != nil {
				return err
			}
			doc.CancelledAt = &stamp
		}
		if next == domain.OrderStatusCompleted {
			doc.IsDelivered = true
			doc.DeliveredAt = &stamp
		}

		doc.Status = string(next)
		doc.UpdatedAt = stamp
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		result = repositories.OrderStatusUpdateResult{Order: doc.toDomain(orderID), Previous: current, Changed: true}
		return nil
	})
	if err != nil {
		return repositories.OrderStatusUpdateResult{}, wrapOrderError("orders.updateStatus", err)
	}
	return result, nil
}

// restoreStock returns cancelled quantities to the catalog. Products removed
// from the catalog after the sale are skipped; the order record still holds
// the historical line.
func (r *OrderRepository) restoreStock(ctx context.Context, tx *firestore.Transaction, items []orderItemDocument, now time.Time) error {
	restored := make(map[string]int, len(items))
	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductRef)
		if productID == "" || item.Quantity <= 0 {
			continue
		}
		if _, seen := restored[productID]; !seen {
			productIDs = append(productIDs, productID)
		}
		restored[productID] += item.Quantity
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	docs := make([]productDocument, 0, len(productIDs))
	for _, productID := range productIDs {
		productRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(productRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return err
		}
		var productDoc productDocument
		if err := snap.DataTo(&productDoc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		productDoc.CountInStock += restored[productID]
		productDoc.UpdatedAt = now
		refs = append(refs, productRef)
		docs = append(docs, productDoc)
	}

	for i, productRef := range refs {
		if err := tx.Set(productRef, docs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, payment domain.PaymentResult, now time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorUnknown, "order mark paid: id is required", nil)
	}

	stamp := now.UTC()
	var updated domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return orderNotFound(orderID, err)
			}
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		paidAt := utcTimePtr(payment.PaidAt)
		if paidAt == nil {
			paidAt = &stamp
		}
		doc.Payment = paymentResultDocument{
			IntentRef: payment.IntentID,
			Status:    payment.Status,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			PaidAt:    paidAt,
		}
		doc.IsPaid = true
		doc.PaidAt = paidAt
		doc.UpdatedAt = stamp
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		updated = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, wrapOrderError("orders.markPaid", err)
	}
	return updated, nil
}

func orderNotFound(orderID string, err error) *repositories.OrderError {
	return repositories.NewOrderError(repositories.OrderErrorNotFound, fmt.Sprintf("order %s not found", orderID), err)
}

func orderProductError(code repositories.OrderErrorCode, productID, message string, err error) *repositories.OrderError {
	orderErr := repositories.NewOrderError(code, message, err)
	orderErr.ProductID = productID
	return orderErr
}

func wrapOrderError(op string, err error) error {
	if err == nil {
		return nil
	}
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		if orderErr.Op == "" {
			orderErr.Op = op
		}
		return orderErr
	}
	return pfirestore.WrapError(op, err)
}
