package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/platform/pagination"
	"github.com/adega-club/api/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

var productSortFields = []string{"name", "price"}

// CatalogHandlers exposes the public, unauthenticated catalog read surface.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	params, err := pagination.ParseQuery(query, pagination.Limits{
		DefaultPageSize: defaultProductPageSize,
		MaxPageSize:     maxProductPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		return
	}
	sort, err := pagination.ParseSort(query, productSortFields)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ProductFilter{
		CategoryID: strings.TrimSpace(query.Get("category_id")),
		ActiveOnly: true,
		SortBy:     sort.Field,
		SortOrder:  domain.SortAsc,
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if sort.Descending {
		filter.SortOrder = domain.SortDesc
	}

	if raw := strings.TrimSpace(query.Get("combo_eligible")); raw != "" {
		eligible, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "combo_eligible must be a boolean", http.StatusBadRequest))
			return
		}
		filter.ComboEligible = &eligible
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := productListPayload{
		Products:      make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := categoryListPayload{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		payload.Categories = append(payload.Categories, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "catalog entry not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "catalog entry was modified concurrently", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	}
}

// Payloads shared by the catalog, combo, and admin handlers ------------------

type productPayload struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Price         int64             `json:"price"`
	PriceDisplay  string            `json:"price_display,omitempty"`
	Currency      string            `json:"currency"`
	CategoryID    string            `json:"category_id,omitempty"`
	CategoryName  string            `json:"category_name,omitempty"`
	Active        bool              `json:"active"`
	Stock         int               `json:"stock"`
	ComboEligible bool              `json:"combo_eligible"`
	Prepared      bool              `json:"prepared"`
	ImagePath     string            `json:"image_path,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	UpdatedAt     string            `json:"updated_at,omitempty"`
}

type categoryPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type productListPayload struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type categoryListPayload struct {
	Categories []categoryPayload `json:"categories"`
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:            product.ID,
		Name:          product.Name,
		Description:   product.Description,
		Price:         product.Price,
		PriceDisplay:  domain.FormatAmount(product.Price, product.Currency),
		Currency:      product.Currency,
		CategoryID:    product.CategoryID,
		CategoryName:  product.CategoryName,
		Active:        product.Active,
		Stock:         product.Stock,
		ComboEligible: product.ComboEligible,
		Prepared:      product.Prepared,
		ImagePath:     product.ImagePath,
		Metadata:      product.Metadata,
		UpdatedAt:     formatTime(product.UpdatedAt),
	}
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:     category.ID,
		Name:   category.Name,
		Active: category.Active,
	}
}
