package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/carsi-commerce/api/internal/domain"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

const productsCollection = "products"

const (
	defaultProductPageSize = 12
	maxProductPageSize     = 100
)

type productDocument struct {
	Name         string  `firestore:"name"`
	Description  string  `firestore:"description"`
	Image        string  `firestore:"image"`
	Brand        string  `firestore:"brand"`
	CategoryRef  string  `firestore:"categoryRef"`
	Price        int64   `firestore:"price"`
	Rating       float64 `firestore:"rating"`
	NumReviews   int     `firestore:"numReviews"`
	CountInStock int     `firestore:"countInStock"`

	IsDiscount      bool       `firestore:"isDiscount"`
	DiscountPrice   int64      `firestore:"discountPrice"`
	DiscountEndDate *time.Time `firestore:"discountEndDate,omitempty"`

	IsFlash           bool       `firestore:"isFlash"`
	FlashDiscountRate float64    `firestore:"flashDiscountRate"`
	FlashEndDate      *time.Time `firestore:"flashEndDate,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		Name:              strings.TrimSpace(product.Name),
		Description:       product.Description,
		Image:             strings.TrimSpace(product.Image),
		Brand:             strings.TrimSpace(product.Brand),
		CategoryRef:       strings.TrimSpace(product.CategoryID),
		Price:             product.Price,
		Rating:            product.Rating,
		NumReviews:        product.NumReviews,
		CountInStock:      product.CountInStock,
		IsDiscount:        product.IsDiscount,
		DiscountPrice:     product.DiscountPrice,
		DiscountEndDate:   utcTimePtr(product.DiscountEndDate),
		IsFlash:           product.IsFlash,
		FlashDiscountRate: product.FlashDiscountRate,
		FlashEndDate:      utcTimePtr(product.FlashEndDate),
		CreatedAt:         product.CreatedAt.UTC(),
		UpdatedAt:         product.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:                id,
		Name:              d.Name,
		Description:       d.Description,
		Image:             d.Image,
		Brand:             d.Brand,
		CategoryID:        d.CategoryRef,
		Price:             d.Price,
		Rating:            d.Rating,
		NumReviews:        d.NumReviews,
		CountInStock:      d.CountInStock,
		IsDiscount:        d.IsDiscount,
		DiscountPrice:     d.DiscountPrice,
		DiscountEndDate:   d.DiscountEndDate,
		IsFlash:           d.IsFlash,
		FlashDiscountRate: d.FlashDiscountRate,
		FlashEndDate:      d.FlashEndDate,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
	}, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product insert: id is required")
	}
	_, err := r.products.Create(ctx, product.ID, newProductDocument(product))
	return err
}

func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product update: id is required")
	}
	_, err := r.products.Set(ctx, product.ID, newProductDocument(product))
	return err
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	return r.products.Delete(ctx, productID, firestore.Exists)
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.Page[domain.Product]{}, errors.New("product repository not initialised")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}

	build := func(query firestore.Query) firestore.Query {
		if category := strings.TrimSpace(filter.CategoryID); category != "" {
			query = query.Where("categoryRef", "==", category)
		}
		if filter.OnlyDiscounted {
			query = query.Where("isDiscount", "==", true)
		}
		if filter.OnlyFlash {
			query = query.Where("isFlash", "==", true)
		}
		return query
	}

	keyword := strings.TrimSpace(filter.Keyword)
	if keyword != "" {
		return r.listByKeyword(ctx, build, keyword, page, limit)
	}

	total, err := r.products.Count(ctx, build)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return build(query).
			OrderBy("createdAt", firestore.Desc).
			Offset((page - 1) * limit).
			Limit(limit)
	})
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(doc.ID))
	}

	return domain.Page[domain.Product]{
		Items: items,
		Page:  page,
		Pages: pageCount(total, limit),
		Total: total,
	}, nil
}

// listByKeyword matches names case-insensitively in memory since Firestore has
// no substring operator. The filtered result set is paged after matching.
func (r *ProductRepository) listByKeyword(ctx context.Context, build pfirestore.QueryBuilder, keyword string, page, limit int) (domain.Page[domain.Product], error) {
	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return build(query).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	needle := strings.ToLower(keyword)
	var matched []domain.Product
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Data.Name), needle) ||
			strings.Contains(strings.ToLower(doc.Data.Brand), needle) {
			matched = append(matched, doc.Data.toDomain(doc.ID))
		}
	}

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return domain.Page[domain.Product]{
		Items: matched[start:end],
		Page:  page,
		Pages: pageCount(total, limit),
		Total: total,
	}, nil
}

// ListFlashSale filters the running window and stock in memory; the flash set
// is small and Firestore cannot order by rate under an end-date inequality.
func (r *ProductRepository) ListFlashSale(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	if limit <= 0 {
		limit = 8
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("isFlash", "==", true)
	})
	if err != nil {
		return nil, err
	}

	cutoff := now.UTC()
	var products []domain.Product
	for _, doc := range docs {
		if doc.Data.CountInStock <= 0 {
			continue
		}
		if doc.Data.FlashEndDate == nil || !doc.Data.FlashEndDate.After(cutoff) {
			continue
		}
		products = append(products, doc.Data.toDomain(doc.ID))
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].FlashDiscountRate > products[j].FlashDiscountRate
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// ListDiscounted mirrors ListFlashSale for plain discounts, cheapest first.
func (r *ProductRepository) ListDiscounted(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	if limit <= 0 {
		limit = 12
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("isDiscount", "==", true)
	})
	if err != nil {
		return nil, err
	}

	cutoff := now.UTC()
	var products []domain.Product
	for _, doc := range docs {
		if doc.Data.CountInStock <= 0 {
			continue
		}
		if doc.Data.DiscountEndDate == nil || !doc.Data.DiscountEndDate.After(cutoff) {
			continue
		}
		products = append(products, doc.Data.toDomain(doc.ID))
	}

	sort.Slice(products, func(i, j int) bool {
		return products[i].DiscountPrice < products[j].DiscountPrice
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (r *ProductRepository) Stats(ctx context.Context, now time.Time) (repositories.ProductStats, error) {
	if r == nil || r.products == nil {
		return repositories.ProductStats{}, errors.New("product repository not initialised")
	}
	cutoff := now.UTC()

	total, err := r.products.Count(ctx, nil)
	if err != nil {
		return repositories.ProductStats{}, err
	}
	outOfStock, err := r.products.Count(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("countInStock", "==", 0)
	})
	if err != nil {
		return repositories.ProductStats{}, err
	}
	activeDiscounts, err := r.products.Count(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("isDiscount", "==", true).Where("discountEndDate", ">", cutoff)
	})
	if err != nil {
		return repositories.ProductStats{}, err
	}
	activeFlash, err := r.products.Count(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("isFlash", "==", true).Where("flashEndDate", ">", cutoff)
	})
	if err != nil {
		return repositories.ProductStats{}, err
	}

	return repositories.ProductStats{
		Total:            total,
		OutOfStock:       outOfStock,
		ActiveDiscounts:  activeDiscounts,
		ActiveFlashSales: activeFlash,
	}, nil
}

// ListLowStock returns products under the stock threshold, scarcest first.
func (r *ProductRepository) ListLowStock(ctx context.Context, threshold, limit int) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	if threshold <= 0 {
		threshold = 10
	}
	if limit <= 0 {
		limit = 5
	}

	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("countInStock", "<", threshold).
			OrderBy("countInStock", firestore.Asc).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

func (r *ProductRepository) ListExpiredPromotions(ctx context.Context, now time.Time, limit int) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	cutoff := now.UTC()

	expiredDiscounts, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("isDiscount", "==", true).
			Where("discountEndDate", "<=", cutoff).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	expiredFlash, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("isFlash", "==", true).
			Where("flashEndDate", "<=", cutoff).
			Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(expiredDiscounts)+len(expiredFlash))
	var products []domain.Product
	for _, doc := range append(expiredDiscounts, expiredFlash...) {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		seen[doc.ID] = struct{}{}
		products = append(products, doc.Data.toDomain(doc.ID))
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (r *ProductRepository) ClearExpiredPromotions(ctx context.Context, productID string, now time.Time) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product clear promotions: id is required")
	}

	cutoff := now.UTC()
	var updated domain.Product

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}

		changed := false
		if doc.IsDiscount && doc.DiscountEndDate != nil && !doc.DiscountEndDate.After(cutoff) {
			doc.IsDiscount = false
			doc.DiscountPrice = 0
			doc.DiscountEndDate = nil
			changed = true
		}
		if doc.IsFlash && doc.FlashEndDate != nil && !doc.FlashEndDate.After(cutoff) {
			doc.IsFlash = false
			doc.FlashDiscountRate = 0
			doc.FlashEndDate = nil
			changed = true
		}
		if changed {
			doc.UpdatedAt = cutoff
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
		}
		updated = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.clearPromotions", err)
	}
	return updated, nil
}

func pageCount(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return pages
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
