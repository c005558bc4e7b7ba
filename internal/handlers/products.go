package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/httpx"
	"github.com/carsi-commerce/api/internal/services"
)

const maxProductBodySize = 64 * 1024

// ProductHandlers exposes the public catalog, admin catalog management, and
// the per-user cart endpoints nested under /products.
type ProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	carts   services.CartService
}

// NewProductHandlers constructs handlers backed by the catalog and cart services.
func NewProductHandlers(authn *auth.Authenticator, catalog services.CatalogService, carts services.CartService) *ProductHandlers {
	return &ProductHandlers{
		authn:   authn,
		catalog: catalog,
		carts:   carts,
	}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Get("/", h.listProducts)
	r.Get("/flash-sale", h.listFlashSale)
	r.Get("/discounted", h.listDiscounted)

	if h.authn != nil {
		r.Group(func(authed chi.Router) {
			authed.Use(h.authn.RequireAuth())
			authed.Get("/cart", h.getCart)
			authed.Post("/{id}/add-to-cart", h.addToCart)
			authed.Delete("/{id}/remove-from-cart", h.removeFromCart)
			authed.Put("/{id}/update-quantity", h.updateQuantity)
		})
		r.Group(func(admin chi.Router) {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
			admin.Get("/stats", h.stats)
			admin.Post("/", h.createProduct)
			admin.Put("/{id}", h.updateProduct)
			admin.Delete("/{id}", h.deleteProduct)
		})
	}

	r.Get("/{id}", h.getProduct)
}

type productPayload struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
	Brand        string  `json:"brand"`
	CategoryID   string  `json:"categoryId,omitempty"`
	Price        int64   `json:"price"`
	CountInStock int     `json:"countInStock"`
	Rating       float64 `json:"rating"`
	NumReviews   int     `json:"numReviews"`

	IsDiscount      bool   `json:"isDiscount"`
	DiscountPrice   int64  `json:"discountPrice,omitempty"`
	DiscountEndDate string `json:"discountEndDate,omitempty"`

	IsFlash           bool    `json:"isFlash"`
	FlashDiscountRate float64 `json:"flashDiscountRate,omitempty"`
	FlashEndDate      string  `json:"flashEndDate,omitempty"`

	EffectivePrice int64  `json:"effectivePrice"`
	CreatedAt      string `json:"createdAt,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

func buildProductPayload(product services.Product, now time.Time) productPayload {
	return productPayload{
		ID:                product.ID,
		Name:              product.Name,
		Description:       product.Description,
		Image:             product.Image,
		Brand:             product.Brand,
		CategoryID:        product.CategoryID,
		Price:             product.Price,
		CountInStock:      product.CountInStock,
		Rating:            product.Rating,
		NumReviews:        product.NumReviews,
		IsDiscount:        product.IsDiscount,
		DiscountPrice:     product.DiscountPrice,
		DiscountEndDate:   formatTimePtr(product.DiscountEndDate),
		IsFlash:           product.IsFlash,
		FlashDiscountRate: product.FlashDiscountRate,
		FlashEndDate:      formatTimePtr(product.FlashEndDate),
		EffectivePrice:    product.EffectiveUnitPrice(now),
		CreatedAt:         formatTime(product.CreatedAt),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
}

type productListPayload struct {
	Products []productPayload `json:"products"`
	pageMeta
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager := parsePageQuery(r)
	page, err := h.catalog.ListProducts(ctx, services.ProductListFilter{
		Keyword:        query.Get("keyword"),
		CategoryID:     query.Get("category"),
		OnlyDiscounted: query.Get("discounted") == "true",
		OnlyFlash:      query.Get("flash") == "true",
		Page:           pager.Page,
		Limit:          pager.Limit,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	now := time.Now()
	payload := productListPayload{
		Products: make([]productPayload, 0, len(page.Items)),
		pageMeta: pageMeta{Page: page.Page, Pages: page.Pages, Total: page.Total},
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product, now))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ProductHandlers) listFlashSale(w http.ResponseWriter, r *http.Request) {
	h.writeProductSlice(w, r, func(ctx context.Context) ([]services.Product, error) {
		return h.catalog.ListFlashSale(ctx)
	})
}

func (h *ProductHandlers) listDiscounted(w http.ResponseWriter, r *http.Request) {
	h.writeProductSlice(w, r, func(ctx context.Context) ([]services.Product, error) {
		return h.catalog.ListDiscounted(ctx)
	})
}

func (h *ProductHandlers) writeProductSlice(w http.ResponseWriter, r *http.Request, load func(context.Context) ([]services.Product, error)) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := load(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	now := time.Now()
	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, buildProductPayload(product, now))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": payload})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, trimmedURLParam(r, "id"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product, time.Now()))
}

func (h *ProductHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{
		"total":            stats.Total,
		"outOfStock":       stats.OutOfStock,
		"activeDiscounts":  stats.ActiveDiscounts,
		"activeFlashSales": stats.ActiveFlashSales,
	})
}

type productRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	Brand        string `json:"brand"`
	CategoryID   string `json:"categoryId"`
	Price        int64  `json:"price"`
	CountInStock int    `json:"countInStock"`

	IsDiscount      bool       `json:"isDiscount"`
	DiscountPrice   int64      `json:"discountPrice"`
	DiscountEndDate *time.Time `json:"discountEndDate"`

	IsFlash           bool       `json:"isFlash"`
	FlashDiscountRate float64    `json:"flashDiscountRate"`
	FlashEndDate      *time.Time `json:"flashEndDate"`
}

func (req productRequest) toCommand() services.ProductCommand {
	return services.ProductCommand{
		Name:              req.Name,
		Description:       req.Description,
		Image:             req.Image,
		Brand:             req.Brand,
		CategoryID:        req.CategoryID,
		Price:             req.Price,
		CountInStock:      req.CountInStock,
		IsDiscount:        req.IsDiscount,
		DiscountPrice:     req.DiscountPrice,
		DiscountEndDate:   req.DiscountEndDate,
		IsFlash:           req.IsFlash,
		FlashDiscountRate: req.FlashDiscountRate,
		FlashEndDate:      req.FlashEndDate,
	}
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, maxProductBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.toCommand())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product, time.Now()))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, maxProductBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, trimmedURLParam(r, "id"), req.toCommand())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product, time.Now()))
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if err := h.catalog.DeleteProduct(ctx, trimmedURLParam(r, "id")); err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Ürün silindi"})
}

type cartLinePayload struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name,omitempty"`
	Image        string `json:"image,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	LineTotal    int64  `json:"lineTotal"`
	CountInStock int    `json:"countInStock"`
	AddedAt      string `json:"addedAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

type cartPayload struct {
	UserID     string            `json:"userId"`
	Items      []cartLinePayload `json:"items"`
	ItemsTotal int64             `json:"itemsTotal"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
}

func buildCartPayload(view services.CartView) cartPayload {
	payload := cartPayload{
		UserID:     view.UserID,
		Items:      make([]cartLinePayload, 0, len(view.Items)),
		ItemsTotal: view.ItemsTotal,
		UpdatedAt:  formatTime(view.UpdatedAt),
	}
	for _, line := range view.Items {
		payload.Items = append(payload.Items, cartLinePayload{
			ProductID:    line.ProductID,
			Name:         line.Name,
			Image:        line.Image,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.LineTotal,
			CountInStock: line.CountInStock,
			AddedAt:      formatTime(line.AddedAt),
			UpdatedAt:    formatTimePtr(line.UpdatedAt),
		})
	}
	return payload
}

func (h *ProductHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UserID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *ProductHandlers) addToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	req := quantityRequest{Quantity: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, maxProductBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
			writeBodyError(w, r, err)
			return
		}
	}

	cart, err := h.carts.AddItem(ctx, identity.UserID, trimmedURLParam(r, "id"), req.Quantity)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *ProductHandlers) removeFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, identity.UserID, trimmedURLParam(r, "id"))
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *ProductHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req quantityRequest
	if err := decodeJSONBody(r, maxProductBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, identity.UserID, trimmedURLParam(r, "id"), req.Quantity)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *ProductHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Geçersiz ürün bilgileri", http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "Ürün bulunamadı", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "Katalog işlemi başarısız", http.StatusInternalServerError))
	}
}

func (h *ProductHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Geçersiz sepet isteği", http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "Ürün bulunamadı", http.StatusNotFound))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "Sepet bulunamadı", http.StatusNotFound))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "Sepette böyle bir ürün yok", http.StatusNotFound))
	case errors.Is(err, services.ErrCartInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "Yeterli stok yok", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "Sepet işlemi başarısız", http.StatusInternalServerError))
	}
}
