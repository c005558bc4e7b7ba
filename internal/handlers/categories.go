package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

const maxCategoryBodySize = 16 * 1024

// CategoryHandlers exposes category listing publicly and writes to admins.
type CategoryHandlers struct {
	authn      *auth.Authenticator
	categories services.CategoryService
}

// NewCategoryHandlers constructs handlers backed by the category service.
func NewCategoryHandlers(authn *auth.Authenticator, categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{
		authn:      authn,
		categories: categories,
	}
}

// Routes wires the /categories endpoints onto the provided router.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Get("/", h.listCategories)
	r.Get("/{id}", h.getCategory)

	if h.authn != nil {
		r.Group(func(admin chi.Router) {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
			admin.Post("/", h.createCategory)
			admin.Put("/{id}", h.updateCategory)
			admin.Delete("/{id}", h.deleteCategory)
		})
	}
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Slug:        category.Slug,
		IsActive:    category.IsActive,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
}

func (h *CategoryHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return
	}

	// Inactive categories stay hidden from the storefront; admins may opt in.
	includeInactive := false
	if r.URL.Query().Get("all") == "true" {
		if identity, ok := auth.IdentityFromContext(ctx); ok && identity.IsAdmin() {
			includeInactive = true
		} else if h.authn != nil {
			if identity, err := h.authn.VerifyRequest(r); err == nil && identity.IsAdmin() {
				includeInactive = true
			}
		}
	}

	categories, err := h.categories.ListCategories(ctx, includeInactive)
	if err != nil {
		h.writeCategoryError(ctx, w, err)
		return
	}

	payload := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": payload})
}

func (h *CategoryHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return
	}

	category, err := h.categories.GetCategory(ctx, trimmedURLParam(r, "id"))
	if err != nil {
		h.writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"isActive"`
}

func (h *CategoryHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req categoryRequest
	if err := decodeJSONBody(r, maxCategoryBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	category, err := h.categories.CreateCategory(ctx, services.CategoryCommand{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CategoryHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req categoryRequest
	if err := decodeJSONBody(r, maxCategoryBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	category, err := h.categories.UpdateCategory(ctx, trimmedURLParam(r, "id"), services.CategoryCommand{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.categories.DeleteCategory(ctx, trimmedURLParam(r, "id")); err != nil {
		h.writeCategoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Kategori silindi"})
}

func (h *CategoryHandlers) writeCategoryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCategoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Geçersiz kategori bilgileri", http.StatusBadRequest))
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "Kategori bulunamadı", http.StatusNotFound))
	case errors.Is(err, services.ErrCategorySlugTaken):
		httpx.WriteError(ctx, w, httpx.NewError("slug_in_use", "Bu isimde bir kategori zaten var", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("category_error", "Kategori işlemi başarısız", http.StatusInternalServerError))
	}
}
