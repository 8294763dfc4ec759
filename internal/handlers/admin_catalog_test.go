package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adega-club/api/internal/services"
)

func adminTestRouter(service services.CatalogService) http.Handler {
	router := chi.NewRouter()
	router.Route("/admin", NewAdminCatalogHandlers(nil, service).Routes)
	return router
}

func TestAdminCatalogHandlersCreateProduct(t *testing.T) {
	var captured services.UpsertProductCommand
	service := &stubCatalogService{
		upsertProductFunc: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			captured = cmd
			product := services.Product{
				ID:       "p-new",
				Name:     cmd.Name,
				Price:    cmd.Price,
				Currency: "BRL",
				Active:   cmd.Active,
			}
			return product, nil
		},
	}
	router := adminTestRouter(service)

	body := `{"name":"Gin Tanqueray","price":5000,"category_id":"cat-gin","active":true,"stock":12,"combo_eligible":true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/catalog/products", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if captured.ProductID != "" {
		t.Fatalf("create must not carry a product id, got %q", captured.ProductID)
	}
	if captured.Name != "Gin Tanqueray" || captured.Stock != 12 || !captured.ComboEligible {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.ExpectedUpdate != nil {
		t.Fatalf("create must not carry an optimistic lock timestamp")
	}
}

func TestAdminCatalogHandlersUpdateProductWithLock(t *testing.T) {
	var captured services.UpsertProductCommand
	service := &stubCatalogService{
		upsertProductFunc: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			captured = cmd
			return services.Product{ID: cmd.ProductID, Name: cmd.Name, Currency: "BRL"}, nil
		},
	}
	router := adminTestRouter(service)

	body := `{"name":"Gin Tanqueray","price":5200,"active":true,"updated_at":"2026-03-10T12:00:00Z"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/catalog/products/p-1", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.ProductID != "p-1" {
		t.Fatalf("expected product id from path, got %q", captured.ProductID)
	}
	want := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if captured.ExpectedUpdate == nil || !captured.ExpectedUpdate.Equal(want) {
		t.Fatalf("expected optimistic lock %v, got %v", want, captured.ExpectedUpdate)
	}
}

func TestAdminCatalogHandlersRejectsBadTimestamp(t *testing.T) {
	router := adminTestRouter(&stubCatalogService{})

	body := `{"name":"Gin","price":100,"updated_at":"yesterday"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/catalog/products/p-1", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminCatalogHandlersConflictMapsTo409(t *testing.T) {
	service := &stubCatalogService{
		upsertProductFunc: func(context.Context, services.UpsertProductCommand) (services.Product, error) {
			return services.Product{}, services.ErrCatalogConflict
		},
	}
	router := adminTestRouter(service)

	body := `{"name":"Gin","price":100}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/catalog/products/p-1", body))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminCatalogHandlersUpsertCategory(t *testing.T) {
	service := &stubCatalogService{
		upsertCategoryFunc: func(_ context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
			return services.Category{ID: "cat-new", Name: cmd.Name, Active: cmd.Active}, nil
		},
	}
	router := adminTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/catalog/categories", `{"name":"Gin","active":true}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var resp categoryPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "cat-new" || resp.Name != "Gin" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestAdminCatalogHandlersImageUpload(t *testing.T) {
	expires := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)
	service := &stubCatalogService{
		imageUploadFunc: func(_ context.Context, cmd services.ProductImageUploadCommand) (services.SignedUploadResponse, error) {
			if cmd.ProductID != "p-1" || cmd.ContentType != "image/png" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.SignedUploadResponse{
				URL:        "https://storage.example/signed",
				Method:     "PUT",
				Headers:    map[string]string{"Content-Type": "image/png"},
				ObjectPath: "catalog/products/p-1/images/u-1/label.png",
				ExpiresAt:  expires,
			}, nil
		},
	}
	router := adminTestRouter(service)

	body := `{"file_name":"label.png","content_type":"image/png"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/catalog/products/p-1/image-upload", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var resp imageUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Method != "PUT" || resp.ObjectPath == "" {
		t.Fatalf("unexpected payload %+v", resp)
	}
	if resp.ExpiresAt != expires.Format(time.RFC3339) {
		t.Fatalf("unexpected expiry %q", resp.ExpiresAt)
	}
}

func TestAdminCatalogHandlersServiceUnavailable(t *testing.T) {
	router := adminTestRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/catalog/products", `{"name":"Gin"}`))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
