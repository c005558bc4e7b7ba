package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/carsi-commerce/api/internal/domain"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/repositories"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Slug        string    `firestore:"slug"`
	IsActive    bool      `firestore:"isActive"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newCategoryDocument(category domain.Category) categoryDocument {
	return categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Description: category.Description,
		Slug:        strings.TrimSpace(category.Slug),
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt.UTC(),
		UpdatedAt:   category.UpdatedAt.UTC(),
	}
}

func (d categoryDocument) toDomain(id string) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Slug:        d.Slug,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// CategoryRepository implements repositories.CategoryRepository backed by Firestore.
type CategoryRepository struct {
	categories *pfirestore.BaseRepository[categoryDocument]
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		categories: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
	}, nil
}

func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.categories == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category insert: id is required")
	}
	_, err := r.categories.Create(ctx, category.ID, newCategoryDocument(category))
	return err
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if r == nil || r.categories == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category update: id is required")
	}
	_, err := r.categories.Set(ctx, category.ID, newCategoryDocument(category))
	return err
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.categories == nil {
		return errors.New("category repository not initialised")
	}
	return r.categories.Delete(ctx, categoryID, firestore.Exists)
}

func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.categories == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	doc, err := r.categories.Get(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string) (domain.Category, error) {
	if r == nil || r.categories == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Category{}, errors.New("category find by slug: slug is required")
	}

	docs, err := r.categories.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(docs) == 0 {
		return domain.Category{}, pfirestore.NewNotFoundError("categories.findBySlug", slug)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	if r == nil || r.categories == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.categories.Query(ctx, func(query firestore.Query) firestore.Query {
		if !includeInactive {
			query = query.Where("isActive", "==", true)
		}
		return query.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Data.toDomain(doc.ID))
	}
	return categories, nil
}
