package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/storage"
	"github.com/adega-club/api/internal/repositories"
)

type stubProductRepository struct {
	listAllFunc func(ctx context.Context) ([]domain.Product, error)
	listFunc    func(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
	findFunc    func(ctx context.Context, productID string) (domain.Product, error)
	upsertFunc  func(ctx context.Context, product domain.Product, expectedUpdate *time.Time) (domain.Product, error)
}

func (s *stubProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	if s.listAllFunc != nil {
		return s.listAllFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Product]{}, errors.New("not implemented")
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, productID)
	}
	return domain.Product{}, errors.New("not implemented")
}

func (s *stubProductRepository) Upsert(ctx context.Context, product domain.Product, expectedUpdate *time.Time) (domain.Product, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, product, expectedUpdate)
	}
	return domain.Product{}, errors.New("not implemented")
}

type stubCategoryRepository struct {
	listAllFunc func(ctx context.Context) ([]domain.Category, error)
	findFunc    func(ctx context.Context, categoryID string) (domain.Category, error)
	upsertFunc  func(ctx context.Context, category domain.Category) (domain.Category, error)
}

func (s *stubCategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	if s.listAllFunc != nil {
		return s.listAllFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubCategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if s.findFunc != nil {
		return s.findFunc(ctx, categoryID)
	}
	return domain.Category{}, errors.New("not implemented")
}

func (s *stubCategoryRepository) Upsert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, category)
	}
	return domain.Category{}, errors.New("not implemented")
}

type uploadSigner struct{}

func (uploadSigner) Email() string { return "signer@test.iam.gserviceaccount.com" }

func (uploadSigner) SignBytes(_ context.Context, _ []byte) ([]byte, error) {
	return []byte("signature"), nil
}

func newCatalogFixture(t *testing.T, now *time.Time, products *stubProductRepository, categories *stubCategoryRepository) CatalogService {
	t.Helper()
	service, err := NewCatalogService(CatalogServiceDeps{
		Products:     products,
		Categories:   categories,
		Clock:        func() time.Time { return *now },
		IDGenerator:  func() string { return "generated-id" },
		Currency:     "BRL",
		IceSlotCount: 4,
		CanPackSizes: []int{4, 5},
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return service
}

func TestNewCatalogServiceValidatesDeps(t *testing.T) {
	_, err := NewCatalogService(CatalogServiceDeps{
		Categories: &stubCategoryRepository{},
		Clock:      time.Now,
	})
	if err == nil {
		t.Fatalf("expected error without product repository")
	}

	_, err = NewCatalogService(CatalogServiceDeps{
		Products:   &stubProductRepository{},
		Categories: &stubCategoryRepository{},
	})
	if err == nil {
		t.Fatalf("expected error without clock")
	}
}

func TestCatalogServiceSnapshotCaching(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fetches := 0
	products := &stubProductRepository{
		listAllFunc: func(context.Context) ([]domain.Product, error) {
			fetches++
			product := eligibleProduct("p-1", "Gin Tanqueray")
			product.CategoryID = "cat-gin"
			product.CategoryName = "Gin"
			return []domain.Product{product}, nil
		},
	}
	categories := &stubCategoryRepository{
		listAllFunc: func(context.Context) ([]domain.Category, error) {
			return []domain.Category{{ID: "cat-gin", Name: "Gin"}}, nil
		},
	}
	service := newCatalogFixture(t, &now, products, categories)

	if _, _, err := service.Candidates(context.Background()); err != nil {
		t.Fatalf("first Candidates: %v", err)
	}
	if _, _, err := service.Candidates(context.Background()); err != nil {
		t.Fatalf("second Candidates: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch within the cache window, got %d", fetches)
	}

	now = now.Add(31 * time.Second)
	snapshot, candidates, err := service.Candidates(context.Background())
	if err != nil {
		t.Fatalf("stale Candidates: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after the cache window, got %d fetches", fetches)
	}
	if len(snapshot.Products) != 1 || len(candidates.Spirits) != 1 {
		t.Fatalf("unexpected snapshot %+v candidates %+v", snapshot, candidates)
	}
}

func TestCatalogServiceSnapshotRetriesTransientFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	attempts := 0
	products := &stubProductRepository{
		listAllFunc: func(context.Context) ([]domain.Product, error) {
			attempts++
			if attempts == 1 {
				return nil, &repositoryErrorStub{unavailable: true}
			}
			return []domain.Product{eligibleProduct("p-1", "Gin Tanqueray")}, nil
		},
	}
	categories := &stubCategoryRepository{
		listAllFunc: func(context.Context) ([]domain.Category, error) { return nil, nil },
	}
	service, err := NewCatalogService(CatalogServiceDeps{
		Products:        products,
		Categories:      categories,
		Clock:           func() time.Time { return now },
		SnapshotRetries: 2,
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	if _, err := service.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot should recover after a transient failure: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestCatalogServiceSnapshotExhaustedRetriesTranslate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	products := &stubProductRepository{
		listAllFunc: func(context.Context) ([]domain.Product, error) {
			return nil, &repositoryErrorStub{unavailable: true}
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{
		Products:   products,
		Categories: &stubCategoryRepository{},
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	_, err = service.Snapshot(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestCatalogServiceGetProduct(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	products := &stubProductRepository{
		findFunc: func(_ context.Context, productID string) (domain.Product, error) {
			if productID != "p-1" {
				return domain.Product{}, &repositoryErrorStub{notFound: true}
			}
			return domain.Product{ID: "p-1", Name: "Gin Tanqueray"}, nil
		},
	}
	service := newCatalogFixture(t, &now, products, &stubCategoryRepository{})

	product, err := service.GetProduct(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Name != "Gin Tanqueray" {
		t.Fatalf("unexpected product %+v", product)
	}

	if _, err := service.GetProduct(context.Background(), "missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
	if _, err := service.GetProduct(context.Background(), "  "); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for blank id, got %v", err)
	}
}

func TestCatalogServiceUpsertProductSanitisesAndDenormalises(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var saved domain.Product
	products := &stubProductRepository{
		upsertFunc: func(_ context.Context, product domain.Product, _ *time.Time) (domain.Product, error) {
			saved = product
			return product, nil
		},
	}
	categories := &stubCategoryRepository{
		findFunc: func(_ context.Context, categoryID string) (domain.Category, error) {
			if categoryID != "cat-gin" {
				return domain.Category{}, &repositoryErrorStub{notFound: true}
			}
			return domain.Category{ID: "cat-gin", Name: "Gin"}, nil
		},
	}
	service := newCatalogFixture(t, &now, products, categories)

	product, err := service.UpsertProduct(context.Background(), UpsertProductCommand{
		Name:        "<b>Gin</b> Tanqueray",
		Description: "<p>London dry</p>",
		Price:       5000,
		CategoryID:  "cat-gin",
		Active:      true,
		Stock:       10,
	})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if product.Name != "Gin Tanqueray" {
		t.Fatalf("expected markup stripped from name, got %q", product.Name)
	}
	if !strings.Contains(product.Description, "London dry") {
		t.Fatalf("expected description preserved, got %q", product.Description)
	}
	if product.ID != "generated-id" {
		t.Fatalf("expected generated id, got %q", product.ID)
	}
	if product.CategoryName != "Gin" {
		t.Fatalf("expected denormalised category name, got %q", product.CategoryName)
	}
	if product.Currency != "BRL" {
		t.Fatalf("expected default currency BRL, got %q", product.Currency)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %v, got %v", now, saved.UpdatedAt)
	}
}

func TestCatalogServiceUpsertProductValidation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	categories := &stubCategoryRepository{
		findFunc: func(context.Context, string) (domain.Category, error) {
			return domain.Category{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newCatalogFixture(t, &now, &stubProductRepository{}, categories)

	cases := []UpsertProductCommand{
		{Name: "  ", Price: 100},
		{Name: "<script></script>", Price: 100},
		{Name: "Gin", Price: -1},
		{Name: "Gin", Price: 100, Stock: -1},
		{Name: "Gin", Price: 100, CategoryID: "missing"},
	}
	for i, cmd := range cases {
		if _, err := service.UpsertProduct(context.Background(), cmd); !errors.Is(err, ErrCatalogInvalidInput) {
			t.Fatalf("case %d: expected ErrCatalogInvalidInput, got %v", i, err)
		}
	}
}

func TestCatalogServiceUpsertProductInvalidatesCache(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fetches := 0
	products := &stubProductRepository{
		listAllFunc: func(context.Context) ([]domain.Product, error) {
			fetches++
			return nil, nil
		},
		upsertFunc: func(_ context.Context, product domain.Product, _ *time.Time) (domain.Product, error) {
			return product, nil
		},
	}
	categories := &stubCategoryRepository{
		listAllFunc: func(context.Context) ([]domain.Category, error) { return nil, nil },
	}
	service := newCatalogFixture(t, &now, products, categories)

	if _, err := service.Snapshot(context.Background()); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := service.UpsertProduct(context.Background(), UpsertProductCommand{Name: "Gin", Price: 100}); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if _, err := service.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after write: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected write to invalidate the snapshot cache, got %d fetches", fetches)
	}
}

func TestCatalogServiceUpsertCategory(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var saved domain.Category
	categories := &stubCategoryRepository{
		upsertFunc: func(_ context.Context, category domain.Category) (domain.Category, error) {
			saved = category
			return category, nil
		},
	}
	service := newCatalogFixture(t, &now, &stubProductRepository{}, categories)

	category, err := service.UpsertCategory(context.Background(), UpsertCategoryCommand{Name: "<em>Vodka</em>", Active: true})
	if err != nil {
		t.Fatalf("UpsertCategory: %v", err)
	}
	if category.Name != "Vodka" {
		t.Fatalf("expected markup stripped, got %q", category.Name)
	}
	if category.ID != "generated-id" {
		t.Fatalf("expected generated id, got %q", category.ID)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected UpdatedAt %v, got %v", now, saved.UpdatedAt)
	}

	if _, err := service.UpsertCategory(context.Background(), UpsertCategoryCommand{Name: " "}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for blank name, got %v", err)
	}
}

func TestCatalogServiceIssueProductImageUpload(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store, err := storage.NewClient(uploadSigner{}, storage.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("storage.NewClient: %v", err)
	}
	service, err := NewCatalogService(CatalogServiceDeps{
		Products:      &stubProductRepository{},
		Categories:    &stubCategoryRepository{},
		Storage:       store,
		CatalogBucket: "catalog-assets",
		Clock:         func() time.Time { return now },
		IDGenerator:   func() string { return "upload-01" },
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}

	resp, err := service.IssueProductImageUpload(context.Background(), ProductImageUploadCommand{
		ProductID:   "p-1",
		FileName:    "label.png",
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("IssueProductImageUpload: %v", err)
	}
	if resp.URL == "" || resp.Method != "PUT" {
		t.Fatalf("unexpected signed response %+v", resp)
	}
	if !strings.Contains(resp.ObjectPath, "p-1") {
		t.Fatalf("object path should reference the product, got %q", resp.ObjectPath)
	}
	if resp.Headers["Content-Type"] != "image/png" {
		t.Fatalf("expected content type header, got %v", resp.Headers)
	}
	if want := now.Add(15 * time.Minute); !resp.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, resp.ExpiresAt)
	}

	if _, err := service.IssueProductImageUpload(context.Background(), ProductImageUploadCommand{
		ProductID:   "p-1",
		FileName:    "notes.pdf",
		ContentType: "application/pdf",
	}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected non-image content type rejected, got %v", err)
	}
}

func TestCatalogServiceIssueProductImageUploadNeedsSigner(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newCatalogFixture(t, &now, &stubProductRepository{}, &stubCategoryRepository{})

	_, err := service.IssueProductImageUpload(context.Background(), ProductImageUploadCommand{
		ProductID:   "p-1",
		ContentType: "image/png",
	})
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable without storage, got %v", err)
	}
}

func TestCatalogServiceInvalidateSnapshotForcesRefetch(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fetches := 0
	products := &stubProductRepository{
		listAllFunc: func(context.Context) ([]domain.Product, error) {
			fetches++
			return nil, nil
		},
	}
	categories := &stubCategoryRepository{
		listAllFunc: func(context.Context) ([]domain.Category, error) { return nil, nil },
	}
	service := newCatalogFixture(t, &now, products, categories)
	ctx := context.Background()

	if _, err := service.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, err := service.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected cached snapshot, got %d fetches", fetches)
	}

	if err := service.InvalidateSnapshot(ctx); err != nil {
		t.Fatalf("InvalidateSnapshot: %v", err)
	}
	if _, err := service.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected refetch after invalidation, got %d fetches", fetches)
	}
}
