package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/carsi-commerce/api/internal/platform/textutil"
	"github.com/carsi-commerce/api/internal/repositories"
)

const categoryIDPrefix = "cat_"

var (
	errCategoryRepositoryRequired = errors.New("category service: repository is required")
	errCategoryClockRequired      = errors.New("category service: clock is required")
)

// ErrCategoryInvalidInput indicates the caller supplied invalid category fields.
var ErrCategoryInvalidInput = errors.New("category service: invalid input")

// ErrCategoryNotFound indicates the requested category does not exist.
var ErrCategoryNotFound = errors.New("category service: not found")

// ErrCategorySlugTaken indicates another category already owns the derived slug.
var ErrCategorySlugTaken = errors.New("category service: slug already in use")

// ErrCategoryUnavailable indicates a backend failure while accessing categories.
var ErrCategoryUnavailable = errors.New("category service: unavailable")

// CategoryServiceDeps wires the repository and ambient dependencies for category operations.
type CategoryServiceDeps struct {
	Repository  repositories.CategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type categoryService struct {
	repo      repositories.CategoryRepository
	now       func() time.Time
	newID     func() string
	sanitizer *bluemonday.Policy
}

// NewCategoryService constructs a CategoryService enforcing dependency validation.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Repository == nil {
		return nil, errCategoryRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCategoryClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return categoryIDPrefix + ulid.Make().String() }
	}

	return &categoryService{
		repo:      deps.Repository,
		now:       func() time.Time { return deps.Clock().UTC() },
		newID:     idGen,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

func (s *categoryService) ListCategories(ctx context.Context, includeInactive bool) ([]Category, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCategoryUnavailable
	}
	categories, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

func (s *categoryService) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	if s == nil || s.repo == nil {
		return Category{}, ErrCategoryUnavailable
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, ErrCategoryInvalidInput
	}
	category, err := s.repo.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

func (s *categoryService) CreateCategory(ctx context.Context, cmd CategoryCommand) (Category, error) {
	if s == nil || s.repo == nil {
		return Category{}, ErrCategoryUnavailable
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, ErrCategoryInvalidInput
	}
	slug := textutil.Slugify(name)
	if slug == "" {
		return Category{}, ErrCategoryInvalidInput
	}
	if err := s.ensureSlugFree(ctx, slug, ""); err != nil {
		return Category{}, err
	}

	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}

	now := s.now()
	category := Category{
		ID:          s.newID(),
		Name:        name,
		Description: s.sanitizer.Sanitize(cmd.Description),
		Slug:        slug,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, category); err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, categoryID string, cmd CategoryCommand) (Category, error) {
	if s == nil || s.repo == nil {
		return Category{}, ErrCategoryUnavailable
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return Category{}, ErrCategoryInvalidInput
	}

	existing, err := s.repo.FindByID(ctx, categoryID)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, ErrCategoryInvalidInput
	}
	slug := textutil.Slugify(name)
	if slug == "" {
		return Category{}, ErrCategoryInvalidInput
	}
	if slug != existing.Slug {
		if err := s.ensureSlugFree(ctx, slug, categoryID); err != nil {
			return Category{}, err
		}
	}

	existing.Name = name
	existing.Description = s.sanitizer.Sanitize(cmd.Description)
	existing.Slug = slug
	if cmd.IsActive != nil {
		existing.IsActive = *cmd.IsActive
	}
	existing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, existing); err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return existing, nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s == nil || s.repo == nil {
		return ErrCategoryUnavailable
	}
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return ErrCategoryInvalidInput
	}
	if err := s.repo.Delete(ctx, categoryID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *categoryService) ensureSlugFree(ctx context.Context, slug, excludeID string) error {
	existing, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return ErrCategoryUnavailable
	}
	if existing.ID != excludeID {
		return ErrCategorySlugTaken
	}
	return nil
}

func (s *categoryService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrCategoryNotFound
	}
	return ErrCategoryUnavailable
}
