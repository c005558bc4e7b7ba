package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

const cartsCollection = "carts"

type cartDocument struct {
	UserRef   string             `firestore:"userRef"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductRef string     `firestore:"productRef"`
	Quantity   int        `firestore:"qty"`
	UnitPrice  int64      `firestore:"unitPrice"`
	AddedAt    time.Time  `firestore:"addedAt"`
	UpdatedAt  *time.Time `firestore:"updatedAt,omitempty"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = cartItemDocument{
			ProductRef: strings.TrimSpace(item.ProductID),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			AddedAt:    item.AddedAt.UTC(),
			UpdatedAt:  utcTimePtr(item.UpdatedAt),
		}
	}
	return cartDocument{
		UserRef:   strings.TrimSpace(cart.UserID),
		Items:     items,
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
}

func (d cartDocument) toDomain(id string) domain.Cart {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CartItem{
			ProductID: item.ProductRef,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		}
	}
	return domain.Cart{
		ID:        id,
		UserID:    d.UserRef,
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CartRepository implements repositories.CartRepository backed by Firestore.
// The cart document ID is the owning user ID, keeping one cart per user.
type CartRepository struct {
	carts *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		carts: pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart get: user id is required")
	}
	doc, err := r.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.carts == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart save: user id is required")
	}
	doc := newCartDocument(cart)
	if _, err := r.carts.Set(ctx, userID, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(userID), nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.carts == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart clear: user id is required")
	}
	return r.carts.Delete(ctx, userID)
}
