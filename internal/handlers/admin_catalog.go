package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/services"
)

const maxAdminBodySize = 64 * 1024

// AdminCatalogHandlers exposes staff-only catalog write endpoints.
type AdminCatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs handlers requiring staff or admin roles.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes wires the /admin/catalog endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Route("/catalog", func(cr chi.Router) {
		cr.Post("/products", h.upsertProduct)
		cr.Put("/products/{productID}", h.upsertProduct)
		cr.Post("/products/{productID}/image-upload", h.issueImageUpload)
		cr.Post("/categories", h.upsertCategory)
		cr.Put("/categories/{categoryID}", h.upsertCategory)
	})
}

type upsertProductRequest struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Price         int64             `json:"price"`
	Currency      string            `json:"currency"`
	CategoryID    string            `json:"category_id"`
	Active        bool              `json:"active"`
	Stock         int               `json:"stock"`
	ComboEligible bool              `json:"combo_eligible"`
	Prepared      bool              `json:"prepared"`
	ImagePath     string            `json:"image_path"`
	Metadata      map[string]string `json:"metadata"`
	UpdatedAt     string            `json:"updated_at"`
}

func (h *AdminCatalogHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	var req upsertProductRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	cmd := services.UpsertProductCommand{
		ProductID:     chi.URLParam(r, "productID"),
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Currency:      req.Currency,
		CategoryID:    req.CategoryID,
		Active:        req.Active,
		Stock:         req.Stock,
		ComboEligible: req.ComboEligible,
		Prepared:      req.Prepared,
		ImagePath:     req.ImagePath,
		Metadata:      req.Metadata,
	}
	if raw := strings.TrimSpace(req.UpdatedAt); raw != "" {
		expected, err := parseRFC3339(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "updated_at must be RFC 3339", http.StatusBadRequest))
			return
		}
		cmd.ExpectedUpdate = &expected
	}

	product, err := h.catalog.UpsertProduct(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if cmd.ProductID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, buildProductPayload(product))
}

func (h *AdminCatalogHandlers) upsertCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	var req struct {
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	category, err := h.catalog.UpsertCategory(ctx, services.UpsertCategoryCommand{
		CategoryID: chi.URLParam(r, "categoryID"),
		Name:       req.Name,
		Active:     req.Active,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if chi.URLParam(r, "categoryID") == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, buildCategoryPayload(category))
}

type imageUploadResponse struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ObjectPath string            `json:"object_path"`
	ExpiresAt  string            `json:"expires_at"`
}

func (h *AdminCatalogHandlers) issueImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	var req struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
	}
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	response, err := h.catalog.IssueProductImageUpload(ctx, services.ProductImageUploadCommand{
		ProductID:   chi.URLParam(r, "productID"),
		FileName:    req.FileName,
		ContentType: req.ContentType,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, imageUploadResponse{
		URL:        response.URL,
		Method:     response.Method,
		Headers:    response.Headers,
		ObjectPath: response.ObjectPath,
		ExpiresAt:  response.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *AdminCatalogHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *AdminCatalogHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dest any) bool {
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}
