package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/services"
)

type stubCatalogService struct {
	snapshotFunc       func(ctx context.Context) (services.CatalogSnapshot, error)
	candidatesFunc     func(ctx context.Context) (services.CatalogSnapshot, services.ComboCandidates, error)
	listProductsFunc   func(ctx context.Context, filter services.ProductFilter) (domain.CursorPage[services.Product], error)
	getProductFunc     func(ctx context.Context, productID string) (services.Product, error)
	listCategoriesFunc func(ctx context.Context) ([]services.Category, error)
	upsertProductFunc  func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	upsertCategoryFunc func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error)
	imageUploadFunc    func(ctx context.Context, cmd services.ProductImageUploadCommand) (services.SignedUploadResponse, error)
	invalidateFunc     func(ctx context.Context) error
}

func (s *stubCatalogService) Snapshot(ctx context.Context) (services.CatalogSnapshot, error) {
	if s.snapshotFunc != nil {
		return s.snapshotFunc(ctx)
	}
	return services.CatalogSnapshot{}, errors.New("not implemented")
}

func (s *stubCatalogService) Candidates(ctx context.Context) (services.CatalogSnapshot, services.ComboCandidates, error) {
	if s.candidatesFunc != nil {
		return s.candidatesFunc(ctx)
	}
	return services.CatalogSnapshot{}, services.ComboCandidates{}, errors.New("not implemented")
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductFilter) (domain.CursorPage[services.Product], error) {
	if s.listProductsFunc != nil {
		return s.listProductsFunc(ctx, filter)
	}
	return domain.CursorPage[services.Product]{}, errors.New("not implemented")
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProductFunc != nil {
		return s.getProductFunc(ctx, productID)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]services.Category, error) {
	if s.listCategoriesFunc != nil {
		return s.listCategoriesFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.upsertProductFunc != nil {
		return s.upsertProductFunc(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) UpsertCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	if s.upsertCategoryFunc != nil {
		return s.upsertCategoryFunc(ctx, cmd)
	}
	return services.Category{}, errors.New("not implemented")
}

func (s *stubCatalogService) IssueProductImageUpload(ctx context.Context, cmd services.ProductImageUploadCommand) (services.SignedUploadResponse, error) {
	if s.imageUploadFunc != nil {
		return s.imageUploadFunc(ctx, cmd)
	}
	return services.SignedUploadResponse{}, errors.New("not implemented")
}

func (s *stubCatalogService) InvalidateSnapshot(ctx context.Context) error {
	if s.invalidateFunc != nil {
		return s.invalidateFunc(ctx)
	}
	return errors.New("not implemented")
}

func catalogTestRouter(service services.CatalogService) http.Handler {
	router := chi.NewRouter()
	router.Route("/catalog", NewCatalogHandlers(service).Routes)
	return router
}

func TestCatalogHandlersListProductsParsesQuery(t *testing.T) {
	var captured services.ProductFilter
	service := &stubCatalogService{
		listProductsFunc: func(_ context.Context, filter services.ProductFilter) (domain.CursorPage[services.Product], error) {
			captured = filter
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{ID: "p-1", Name: "Gin Tanqueray", Price: 5000, Currency: "BRL", Active: true},
				},
				NextPageToken: "token-2",
			}, nil
		},
	}
	router := catalogTestRouter(service)

	rr := httptest.NewRecorder()
	target := "/catalog/products?category_id=cat-gin&combo_eligible=true&page_size=500&sort_by=price&sort_order=desc&page_token=token-1"
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CategoryID != "cat-gin" {
		t.Fatalf("expected category filter, got %q", captured.CategoryID)
	}
	if captured.ComboEligible == nil || !*captured.ComboEligible {
		t.Fatalf("expected combo_eligible true, got %v", captured.ComboEligible)
	}
	if captured.Pagination.PageSize != 100 {
		t.Fatalf("expected page size clamped to 100, got %d", captured.Pagination.PageSize)
	}
	if captured.Pagination.PageToken != "token-1" {
		t.Fatalf("expected page token forwarded, got %q", captured.Pagination.PageToken)
	}
	if captured.SortBy != "price" || captured.SortOrder != domain.SortDesc {
		t.Fatalf("unexpected sort %+v", captured)
	}
	if !captured.ActiveOnly {
		t.Fatalf("public listing must be active-only")
	}

	var resp productListPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].PriceDisplay != "R$ 50.00" {
		t.Fatalf("unexpected payload %+v", resp)
	}
	if resp.NextPageToken != "token-2" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
}

func TestCatalogHandlersListProductsRejectsBadQuery(t *testing.T) {
	router := catalogTestRouter(&stubCatalogService{})

	targets := []string{
		"/catalog/products?combo_eligible=maybe",
		"/catalog/products?page_size=0",
		"/catalog/products?page_size=abc",
		"/catalog/products?sort_order=sideways",
	}
	for _, target := range targets {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, rr.Code)
		}
	}
}

func TestCatalogHandlersGetProduct(t *testing.T) {
	service := &stubCatalogService{
		getProductFunc: func(_ context.Context, productID string) (services.Product, error) {
			if productID != "p-1" {
				return services.Product{}, services.ErrCatalogNotFound
			}
			return services.Product{ID: "p-1", Name: "Gin Tanqueray", Price: 5000, Currency: "BRL"}, nil
		},
	}
	router := catalogTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products/p-1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp productPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "p-1" || resp.PriceDisplay != "R$ 50.00" {
		t.Fatalf("unexpected payload %+v", resp)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersListCategories(t *testing.T) {
	service := &stubCatalogService{
		listCategoriesFunc: func(context.Context) ([]services.Category, error) {
			return []services.Category{
				{ID: "cat-gin", Name: "Gin", Active: true},
				{ID: "cat-vodka", Name: "Vodka", Active: true},
			}, nil
		},
	}
	router := catalogTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/categories", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp categoryListPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Categories) != 2 || resp.Categories[0].ID != "cat-gin" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestCatalogHandlersServiceUnavailable(t *testing.T) {
	router := catalogTestRouter(&stubCatalogService{
		listCategoriesFunc: func(context.Context) ([]services.Category, error) {
			return nil, services.ErrCatalogUnavailable
		},
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/categories", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
