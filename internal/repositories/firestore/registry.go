package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	products   *ProductRepository
	categories *CategoryRepository
	carts      *CartRepository
	orders     *OrderRepository
	users      *UserRepository
	counters   *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every Firestore repository over a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		products:   products,
		categories: categories,
		carts:      carts,
		orders:     orders,
		users:      users,
		counters:   counters,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Carts() repositories.CartRepository          { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Users() repositories.UserRepository          { return r.users }
func (r *Registry) Counters() repositories.CounterRepository    { return r.counters }
