package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/carsi-commerce/api/internal/domain"
	"github.com/carsi-commerce/api/internal/repositories"
)

const (
	productIDPrefix = "prd_"
	defaultBrand    = "Varsayılan Marka"

	flashSaleLimit  = 8
	discountedLimit = 12
)

var (
	errCatalogRepositoryRequired = errors.New("catalog service: repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

// ErrCatalogInvalidInput indicates the caller supplied invalid product fields.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrProductNotFound indicates the requested product does not exist.
var ErrProductNotFound = errors.New("catalog service: product not found")

// ErrCatalogUnavailable indicates a backend failure while accessing the catalog.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// CatalogServiceDeps wires the repository and ambient dependencies for catalog operations.
type CatalogServiceDeps struct {
	Repository  repositories.ProductRepository
	Categories  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
	now        func() time.Time
	newID      func() string
	sanitizer  *bluemonday.Policy
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return productIDPrefix + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		repo:       deps.Repository,
		categories: deps.Categories,
		now:        func() time.Time { return deps.Clock().UTC() },
		newID:      idGen,
		sanitizer:  bluemonday.UGCPolicy(),
		logger:     logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error) {
	if s == nil || s.repo == nil {
		return domain.Page[Product]{}, ErrCatalogUnavailable
	}

	page, err := s.repo.List(ctx, repositories.ProductListFilter{
		Keyword:        strings.TrimSpace(filter.Keyword),
		CategoryID:     strings.TrimSpace(filter.CategoryID),
		OnlyDiscounted: filter.OnlyDiscounted,
		OnlyFlash:      filter.OnlyFlash,
		Page:           filter.Page,
		Limit:          filter.Limit,
	})
	if err != nil {
		return domain.Page[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd ProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	product, err := s.buildProduct(cmd)
	if err != nil {
		return Product{}, err
	}
	if err := s.checkCategory(ctx, product.CategoryID); err != nil {
		return Product{}, err
	}

	now := s.now()
	product.ID = s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.repo.Insert(ctx, product); err != nil {
		return Product{}, s.translateRepoError(err)
	}

	s.logger(ctx, "catalog.product.created", map[string]any{"productID": product.ID})
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd ProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	existing, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}

	product, err := s.buildProduct(cmd)
	if err != nil {
		return Product{}, err
	}
	if err := s.checkCategory(ctx, product.CategoryID); err != nil {
		return Product{}, err
	}

	product.ID = existing.ID
	product.Rating = existing.Rating
	product.NumReviews = existing.NumReviews
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s == nil || s.repo == nil {
		return ErrCatalogUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *catalogService) ListFlashSale(ctx context.Context) ([]Product, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}
	products, err := s.repo.ListFlashSale(ctx, s.now(), flashSaleLimit)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return products, nil
}

func (s *catalogService) ListDiscounted(ctx context.Context) ([]Product, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}
	products, err := s.repo.ListDiscounted(ctx, s.now(), discountedLimit)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return products, nil
}

func (s *catalogService) Stats(ctx context.Context) (ProductStats, error) {
	if s == nil || s.repo == nil {
		return ProductStats{}, ErrCatalogUnavailable
	}
	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return ProductStats{}, s.translateRepoError(err)
	}
	return stats, nil
}

// buildProduct validates and normalises admin input. Promotion invariants:
// discount and flash are mutually exclusive, a discount price undercuts the
// list price, and flash rates stay inside (0,100).
func (s *catalogService) buildProduct(cmd ProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.Price <= 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.CountInStock < 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.IsDiscount && cmd.IsFlash {
		return Product{}, ErrCatalogInvalidInput
	}
	if cmd.IsDiscount {
		if cmd.DiscountPrice <= 0 || cmd.DiscountPrice >= cmd.Price || cmd.DiscountEndDate == nil {
			return Product{}, ErrCatalogInvalidInput
		}
	}
	if cmd.IsFlash {
		if cmd.FlashDiscountRate <= 0 || cmd.FlashDiscountRate >= 100 || cmd.FlashEndDate == nil {
			return Product{}, ErrCatalogInvalidInput
		}
	}

	brand := strings.TrimSpace(cmd.Brand)
	if brand == "" {
		brand = defaultBrand
	}

	product := Product{
		Name:         name,
		Description:  s.sanitizer.Sanitize(cmd.Description),
		Image:        strings.TrimSpace(cmd.Image),
		Brand:        brand,
		CategoryID:   strings.TrimSpace(cmd.CategoryID),
		Price:        cmd.Price,
		CountInStock: cmd.CountInStock,
	}
	if cmd.IsDiscount {
		product.IsDiscount = true
		product.DiscountPrice = cmd.DiscountPrice
		end := cmd.DiscountEndDate.UTC()
		product.DiscountEndDate = &end
	}
	if cmd.IsFlash {
		product.IsFlash = true
		product.FlashDiscountRate = cmd.FlashDiscountRate
		end := cmd.FlashEndDate.UTC()
		product.FlashEndDate = &end
	}
	return product, nil
}

func (s *catalogService) checkCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" || s.categories == nil {
		return nil
	}
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		if isRepoNotFound(err) {
			return ErrCatalogInvalidInput
		}
		return ErrCatalogUnavailable
	}
	return nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrProductNotFound
	}
	return ErrCatalogUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}
