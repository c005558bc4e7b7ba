package services

import (
	"context"
	"time"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/repositories"
)

// fixedNow is the reference instant shared by the service tests.
var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// stubRepoError satisfies repositories.RepositoryError with explicit flags.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr() error    { return &stubRepoError{msg: "not found", notFound: true} }
func unavailableErr() error { return &stubRepoError{msg: "unavailable", unavailable: true} }

type stubProductRepository struct {
	InsertFunc                func(ctx context.Context, product domain.Product) error
	UpdateFunc                func(ctx context.Context, product domain.Product) error
	DeleteFunc                func(ctx context.Context, productID string) error
	FindByIDFunc              func(ctx context.Context, productID string) (domain.Product, error)
	ListFunc                  func(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error)
	ListFlashSaleFunc         func(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	ListDiscountedFunc        func(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	StatsFunc                 func(ctx context.Context, now time.Time) (repositories.ProductStats, error)
	ListLowStockFunc          func(ctx context.Context, threshold, limit int) ([]domain.Product, error)
	ListExpiredPromotionsFunc func(ctx context.Context, now time.Time, limit int) ([]domain.Product, error)
	ClearExpiredFunc          func(ctx context.Context, productID string, now time.Time) (domain.Product, error)
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.InsertFunc == nil {
		return nil
	}
	return s.InsertFunc(ctx, product)
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.UpdateFunc == nil {
		return nil
	}
	return s.UpdateFunc(ctx, product)
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error {
	if s.DeleteFunc == nil {
		return nil
	}
	return s.DeleteFunc(ctx, productID)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.FindByIDFunc == nil {
		return domain.Product{}, notFoundErr()
	}
	return s.FindByIDFunc(ctx, productID)
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	if s.ListFunc == nil {
		return domain.Page[domain.Product]{}, nil
	}
	return s.ListFunc(ctx, filter)
}

func (s *stubProductRepository) ListFlashSale(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if s.ListFlashSaleFunc == nil {
		return nil, nil
	}
	return s.ListFlashSaleFunc(ctx, now, limit)
}

func (s *stubProductRepository) ListDiscounted(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if s.ListDiscountedFunc == nil {
		return nil, nil
	}
	return s.ListDiscountedFunc(ctx, now, limit)
}

func (s *stubProductRepository) Stats(ctx context.Context, now time.Time) (repositories.ProductStats, error) {
	if s.StatsFunc == nil {
		return repositories.ProductStats{}, nil
	}
	return s.StatsFunc(ctx, now)
}

func (s *stubProductRepository) ListLowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	if s.ListLowStockFunc == nil {
		return nil, nil
	}
	return s.ListLowStockFunc(ctx, threshold, limit)
}

func (s *stubProductRepository) ListExpiredPromotions(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if s.ListExpiredPromotionsFunc == nil {
		return nil, nil
	}
	return s.ListExpiredPromotionsFunc(ctx, now, limit)
}

func (s *stubProductRepository) ClearExpiredPromotions(ctx context.Context, productID string, now time.Time) (domain.Product, error) {
	if s.ClearExpiredFunc == nil {
		return domain.Product{}, nil
	}
	return s.ClearExpiredFunc(ctx, productID, now)
}

type stubCategoryRepository struct {
	InsertFunc     func(ctx context.Context, category domain.Category) error
	UpdateFunc     func(ctx context.Context, category domain.Category) error
	DeleteFunc     func(ctx context.Context, categoryID string) error
	FindByIDFunc   func(ctx context.Context, categoryID string) (domain.Category, error)
	FindBySlugFunc func(ctx context.Context, slug string) (domain.Category, error)
	ListFunc       func(ctx context.Context, includeInactive bool) ([]domain.Category, error)
}

func (s *stubCategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if s.InsertFunc == nil {
		return nil
	}
	return s.InsertFunc(ctx, category)
}

func (s *stubCategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if s.UpdateFunc == nil {
		return nil
	}
	return s.UpdateFunc(ctx, category)
}

func (s *stubCategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if s.DeleteFunc == nil {
		return nil
	}
	return s.DeleteFunc(ctx, categoryID)
}

func (s *stubCategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if s.FindByIDFunc == nil {
		return domain.Category{}, notFoundErr()
	}
	return s.FindByIDFunc(ctx, categoryID)
}

func (s *stubCategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if s.FindBySlugFunc == nil {
		return domain.Category{}, notFoundErr()
	}
	return s.FindBySlugFunc(ctx, slug)
}

func (s *stubCategoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if s.ListFunc == nil {
		return nil, nil
	}
	return s.ListFunc(ctx, includeInactive)
}

type stubCartRepository struct {
	GetFunc   func(ctx context.Context, userID string) (domain.Cart, error)
	SaveFunc  func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ClearFunc func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.GetFunc == nil {
		return domain.Cart{}, notFoundErr()
	}
	return s.GetFunc(ctx, userID)
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.SaveFunc == nil {
		return cart, nil
	}
	return s.SaveFunc(ctx, cart)
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	if s.ClearFunc == nil {
		return nil
	}
	return s.ClearFunc(ctx, userID)
}

type stubOrderRepository struct {
	CreateFunc              func(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByIDFunc            func(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentIntentFunc func(ctx context.Context, intentID string) (domain.Order, error)
	ListByUserFunc          func(ctx context.Context, userID string, pager domain.PageQuery) (domain.Page[domain.Order], error)
	ListFunc                func(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.Order], error)
	SalesStatsFunc          func(ctx context.Context, since time.Time) (repositories.OrderSalesStats, error)
	UpdateStatusFunc        func(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (repositories.OrderStatusUpdateResult, error)
	MarkPaidFunc            func(ctx context.Context, orderID string, payment domain.PaymentResult, now time.Time) (domain.Order, error)
}

func (s *stubOrderRepository) CreateWithStockDecrement(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.CreateFunc == nil {
		return order, nil
	}
	return s.CreateFunc(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.FindByIDFunc == nil {
		return domain.Order{}, notFoundErr()
	}
	return s.FindByIDFunc(ctx, orderID)
}

func (s *stubOrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (domain.Order, error) {
	if s.FindByPaymentIntentFunc == nil {
		return domain.Order{}, notFoundErr()
	}
	return s.FindByPaymentIntentFunc(ctx, intentID)
}

func (s *stubOrderRepository) SalesStats(ctx context.Context, since time.Time) (repositories.OrderSalesStats, error) {
	if s.SalesStatsFunc == nil {
		return repositories.OrderSalesStats{}, nil
	}
	return s.SalesStatsFunc(ctx, since)
}

func (s *stubOrderRepository) ListByUser(ctx context.Context, userID string, pager domain.PageQuery) (domain.Page[domain.Order], error) {
	if s.ListByUserFunc == nil {
		return domain.Page[domain.Order]{}, nil
	}
	return s.ListByUserFunc(ctx, userID, pager)
}

func (s *stubOrderRepository) List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.Order], error) {
	if s.ListFunc == nil {
		return domain.Page[domain.Order]{}, nil
	}
	return s.ListFunc(ctx, pager)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (repositories.OrderStatusUpdateResult, error) {
	if s.UpdateStatusFunc == nil {
		return repositories.OrderStatusUpdateResult{}, notFoundErr()
	}
	return s.UpdateStatusFunc(ctx, orderID, status, now)
}

func (s *stubOrderRepository) MarkPaid(ctx context.Context, orderID string, payment domain.PaymentResult, now time.Time) (domain.Order, error) {
	if s.MarkPaidFunc == nil {
		return domain.Order{}, notFoundErr()
	}
	return s.MarkPaidFunc(ctx, orderID, payment, now)
}

type stubUserRepository struct {
	InsertFunc      func(ctx context.Context, user domain.User) error
	UpdateFunc      func(ctx context.Context, user domain.User) error
	DeleteFunc      func(ctx context.Context, userID string) error
	FindByIDFunc    func(ctx context.Context, userID string) (domain.User, error)
	FindByEmailFunc func(ctx context.Context, email string) (domain.User, error)
	ListFunc        func(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.User], error)
	CountByRoleFunc func(ctx context.Context, role domain.UserRole) (int64, error)
}

func (s *stubUserRepository) Insert(ctx context.Context, user domain.User) error {
	if s.InsertFunc == nil {
		return nil
	}
	return s.InsertFunc(ctx, user)
}

func (s *stubUserRepository) Update(ctx context.Context, user domain.User) error {
	if s.UpdateFunc == nil {
		return nil
	}
	return s.UpdateFunc(ctx, user)
}

func (s *stubUserRepository) Delete(ctx context.Context, userID string) error {
	if s.DeleteFunc == nil {
		return nil
	}
	return s.DeleteFunc(ctx, userID)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.FindByIDFunc == nil {
		return domain.User{}, repositories.ErrUserNotFound
	}
	return s.FindByIDFunc(ctx, userID)
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if s.FindByEmailFunc == nil {
		return domain.User{}, repositories.ErrUserNotFound
	}
	return s.FindByEmailFunc(ctx, email)
}

func (s *stubUserRepository) List(ctx context.Context, pager domain.PageQuery) (domain.Page[domain.User], error) {
	if s.ListFunc == nil {
		return domain.Page[domain.User]{}, nil
	}
	return s.ListFunc(ctx, pager)
}

func (s *stubUserRepository) CountByRole(ctx context.Context, role domain.UserRole) (int64, error) {
	if s.CountByRoleFunc == nil {
		return 0, nil
	}
	return s.CountByRoleFunc(ctx, role)
}

type stubCounterRepository struct {
	NextFunc func(ctx context.Context, counterID string) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string) (int64, error) {
	if s.NextFunc == nil {
		return 1, nil
	}
	return s.NextFunc(ctx, counterID)
}

type stubPaymentVerifier struct {
	VerifyFunc func(ctx context.Context, intentID string) (PaymentVerification, error)
}

func (s *stubPaymentVerifier) VerifyPaymentIntent(ctx context.Context, intentID string) (PaymentVerification, error) {
	if s.VerifyFunc == nil {
		return PaymentVerification{}, ErrPaymentUnavailable
	}
	return s.VerifyFunc(ctx, intentID)
}

type stubCartClearer struct {
	ClearFunc func(ctx context.Context, userID string) error
}

func (s *stubCartClearer) ClearCart(ctx context.Context, userID string) error {
	if s.ClearFunc == nil {
		return nil
	}
	return s.ClearFunc(ctx, userID)
}

type stubEventPublisher struct {
	CreatedFunc       func(ctx context.Context, order Order) error
	StatusChangedFunc func(ctx context.Context, order Order, previous OrderStatus) error
}

func (s *stubEventPublisher) PublishOrderCreated(ctx context.Context, order Order) error {
	if s.CreatedFunc == nil {
		return nil
	}
	return s.CreatedFunc(ctx, order)
}

func (s *stubEventPublisher) PublishOrderStatusChanged(ctx context.Context, order Order, previous OrderStatus) error {
	if s.StatusChangedFunc == nil {
		return nil
	}
	return s.StatusChangedFunc(ctx, order, previous)
}

type stubTokenIssuer struct {
	IssueFunc func(identity auth.Identity) (string, error)
}

func (s *stubTokenIssuer) Issue(identity auth.Identity) (string, error) {
	if s.IssueFunc == nil {
		return "token", nil
	}
	return s.IssueFunc(identity)
}
