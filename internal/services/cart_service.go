package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/carsi-commerce/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartProductsRequired   = errors.New("cart service: product repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the user has no cart.
var ErrCartNotFound = errors.New("cart service: cart not found")

// ErrCartProductNotFound indicates the referenced product does not exist.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartItemNotFound indicates the cart has no line for the product.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartInsufficientStock indicates the requested quantity exceeds live stock.
var ErrCartInsufficientStock = errors.New("cart service: insufficient stock")

// ErrCartUnavailable indicates a backend failure while accessing the cart.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// CartServiceDeps wires the cart and product repositories for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Products   repositories.ProductRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	products repositories.ProductRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:     deps.Repository,
		products: deps.Products,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

// GetCart returns the user's cart hydrated with current catalog display data.
// A missing cart is an empty cart, not an error.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	if s == nil || s.repo == nil {
		return CartView{}, ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{UserID: userID, Items: []CartLine{}}, nil
		}
		return CartView{}, ErrCartUnavailable
	}
	return s.hydrate(ctx, cart), nil
}

// AddItem adds quantity onto an existing line or opens a new one. The unit
// price is captured at first add, the discount price when a discount is
// running, and keeps that value until the line is removed.
func (s *cartService) AddItem(ctx context.Context, userID, productID string, quantity int) (CartView, error) {
	if s == nil || s.repo == nil {
		return CartView{}, ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" || quantity < 1 {
		return CartView{}, ErrCartInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{}, ErrCartProductNotFound
		}
		return CartView{}, ErrCartUnavailable
	}

	cart, err := s.loadOrNewCart(ctx, userID)
	if err != nil {
		return CartView{}, err
	}

	now := s.now()
	index := findCartItem(cart.Items, productID)
	newQuantity := quantity
	if index >= 0 {
		newQuantity += cart.Items[index].Quantity
	}
	if newQuantity > product.CountInStock {
		return CartView{}, ErrCartInsufficientStock
	}

	if index >= 0 {
		cart.Items[index].Quantity = newQuantity
		cart.Items[index].UpdatedAt = &now
	} else {
		unitPrice := product.Price
		if product.DiscountActive(now) {
			unitPrice = product.DiscountPrice
		}
		cart.Items = append(cart.Items, CartItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			AddedAt:   now,
		})
	}
	cart.UpdatedAt = now

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return CartView{}, ErrCartUnavailable
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"userID":    userID,
		"productID": productID,
		"quantity":  quantity,
	})
	return s.hydrate(ctx, saved), nil
}

// RemoveItem deletes the product's line. Removing an absent line is a no-op;
// only a missing cart is an error.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (CartView, error) {
	if s == nil || s.repo == nil {
		return CartView{}, ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{}, ErrCartNotFound
		}
		return CartView{}, ErrCartUnavailable
	}

	index := findCartItem(cart.Items, productID)
	if index < 0 {
		return s.hydrate(ctx, cart), nil
	}

	cart.Items = append(cart.Items[:index], cart.Items[index+1:]...)
	cart.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return CartView{}, ErrCartUnavailable
	}
	return s.hydrate(ctx, saved), nil
}

// UpdateQuantity sets the line quantity to an absolute value.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (CartView, error) {
	if s == nil || s.repo == nil {
		return CartView{}, ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return CartView{}, ErrCartInvalidInput
	}
	if quantity < 1 {
		return CartView{}, ErrCartInvalidInput
	}

	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{}, ErrCartNotFound
		}
		return CartView{}, ErrCartUnavailable
	}

	index := findCartItem(cart.Items, productID)
	if index < 0 {
		return CartView{}, ErrCartItemNotFound
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartView{}, ErrCartItemNotFound
		}
		return CartView{}, ErrCartUnavailable
	}
	if quantity > product.CountInStock {
		return CartView{}, ErrCartInsufficientStock
	}

	now := s.now()
	cart.Items[index].Quantity = quantity
	cart.Items[index].UpdatedAt = &now
	cart.UpdatedAt = now

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return CartView{}, ErrCartUnavailable
	}
	return s.hydrate(ctx, saved), nil
}

// ClearCart drops every line, typically after a successful checkout.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrCartInvalidInput
	}
	if err := s.repo.Clear(ctx, userID); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return ErrCartUnavailable
	}
	return nil
}

func (s *cartService) loadOrNewCart(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			now := s.now()
			return Cart{ID: userID, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		return Cart{}, ErrCartUnavailable
	}
	return cart, nil
}

// hydrate joins cart lines with the current catalog record for display.
// Lines whose product vanished keep their stored values with zero stock.
func (s *cartService) hydrate(ctx context.Context, cart Cart) CartView {
	view := CartView{
		UserID:    cart.UserID,
		Items:     make([]CartLine, 0, len(cart.Items)),
		UpdatedAt: cart.UpdatedAt,
	}

	for _, item := range cart.Items {
		line := CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice * int64(item.Quantity),
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		}
		if product, err := s.products.FindByID(ctx, item.ProductID); err == nil {
			line.Name = product.Name
			line.Image = product.Image
			line.CountInStock = product.CountInStock
		}
		view.Items = append(view.Items, line)
		view.ItemsTotal += line.LineTotal
	}
	return view
}

func findCartItem(items []CartItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
