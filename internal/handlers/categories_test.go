package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/services"
)

type stubCategoryService struct {
	listCategoriesFunc func(ctx context.Context, includeInactive bool) ([]services.Category, error)
	getCategoryFunc    func(ctx context.Context, categoryID string) (services.Category, error)
	createCategoryFunc func(ctx context.Context, cmd services.CategoryCommand) (services.Category, error)
	updateCategoryFunc func(ctx context.Context, categoryID string, cmd services.CategoryCommand) (services.Category, error)
	deleteCategoryFunc func(ctx context.Context, categoryID string) error
}

func (s *stubCategoryService) ListCategories(ctx context.Context, includeInactive bool) ([]services.Category, error) {
	if s.listCategoriesFunc != nil {
		return s.listCategoriesFunc(ctx, includeInactive)
	}
	return nil, nil
}

func (s *stubCategoryService) GetCategory(ctx context.Context, categoryID string) (services.Category, error) {
	if s.getCategoryFunc != nil {
		return s.getCategoryFunc(ctx, categoryID)
	}
	return services.Category{}, nil
}

func (s *stubCategoryService) CreateCategory(ctx context.Context, cmd services.CategoryCommand) (services.Category, error) {
	if s.createCategoryFunc != nil {
		return s.createCategoryFunc(ctx, cmd)
	}
	return services.Category{}, nil
}

func (s *stubCategoryService) UpdateCategory(ctx context.Context, categoryID string, cmd services.CategoryCommand) (services.Category, error) {
	if s.updateCategoryFunc != nil {
		return s.updateCategoryFunc(ctx, categoryID, cmd)
	}
	return services.Category{}, nil
}

func (s *stubCategoryService) DeleteCategory(ctx context.Context, categoryID string) error {
	if s.deleteCategoryFunc != nil {
		return s.deleteCategoryFunc(ctx, categoryID)
	}
	return nil
}

func newCategoryRouter(t *testing.T, service services.CategoryService) chi.Router {
	t.Helper()
	handler := NewCategoryHandlers(newTestAuthenticator(t), service)
	router := chi.NewRouter()
	router.Route("/categories", handler.Routes)
	return router
}

func TestCategoriesListHidesInactiveByDefault(t *testing.T) {
	var gotIncludeInactive bool
	service := &stubCategoryService{
		listCategoriesFunc: func(ctx context.Context, includeInactive bool) ([]services.Category, error) {
			gotIncludeInactive = includeInactive
			return []services.Category{{ID: "cat_1", Name: "Çay", Slug: "cay", IsActive: true}}, nil
		},
	}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/categories?all=true", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotIncludeInactive {
		t.Fatalf("anonymous callers must not see inactive categories")
	}
}

func TestCategoriesListIncludesInactiveForAdmin(t *testing.T) {
	var gotIncludeInactive bool
	service := &stubCategoryService{
		listCategoriesFunc: func(ctx context.Context, includeInactive bool) ([]services.Category, error) {
			gotIncludeInactive = includeInactive
			return nil, nil
		},
	}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/categories?all=true", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !gotIncludeInactive {
		t.Fatalf("admin with all=true must see inactive categories")
	}
}

func TestCategoriesCreateSlugConflict(t *testing.T) {
	service := &stubCategoryService{
		createCategoryFunc: func(ctx context.Context, cmd services.CategoryCommand) (services.Category, error) {
			return services.Category{}, services.ErrCategorySlugTaken
		},
	}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":"Çay"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	resp := decodeErrorBody(t, rr)
	if resp["message"] != "Bu isimde bir kategori zaten var" {
		t.Fatalf("unexpected message %v", resp["message"])
	}
}

func TestCategoriesCreateRequiresAdminRole(t *testing.T) {
	router := newCategoryRouter(t, &stubCategoryService{})

	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":"Çay"}`))
	req.Header.Set("Authorization", "Bearer customer-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestCategoriesUpdateForwardsActiveFlag(t *testing.T) {
	var gotCmd services.CategoryCommand
	service := &stubCategoryService{
		updateCategoryFunc: func(ctx context.Context, categoryID string, cmd services.CategoryCommand) (services.Category, error) {
			if categoryID != "cat_1" {
				t.Fatalf("unexpected category id %q", categoryID)
			}
			gotCmd = cmd
			return services.Category{ID: categoryID, Name: cmd.Name}, nil
		},
	}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodPut, "/categories/cat_1", strings.NewReader(`{"name":"Kahve","isActive":false}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.IsActive == nil || *gotCmd.IsActive {
		t.Fatalf("expected isActive=false forwarded, got %v", gotCmd.IsActive)
	}
}

func TestCategoriesGetNotFound(t *testing.T) {
	service := &stubCategoryService{
		getCategoryFunc: func(ctx context.Context, categoryID string) (services.Category, error) {
			return services.Category{}, services.ErrCategoryNotFound
		},
	}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodGet, "/categories/cat_missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	resp := decodeErrorBody(t, rr)
	if resp["message"] != "Kategori bulunamadı" {
		t.Fatalf("unexpected message %v", resp["message"])
	}
}

func TestCategoriesDeleteRespondsWithMessage(t *testing.T) {
	service := &stubCategoryService{}
	router := newCategoryRouter(t, service)

	req := httptest.NewRequest(http.MethodDelete, "/categories/cat_1", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Kategori silindi" {
		t.Fatalf("unexpected message %q", resp["message"])
	}
}

var _ services.CategoryService = (*stubCategoryService)(nil)
