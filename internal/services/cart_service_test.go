package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/adega-club/api/internal/domain"
)

type stubCartRepository struct {
	getFunc     func(ctx context.Context, userID string) (domain.Cart, error)
	upsertFunc  func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error)
	replaceFunc func(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return domain.Cart{}, errors.New("not implemented")
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cart, expected)
	}
	return domain.Cart{}, errors.New("not implemented")
}

func (s *stubCartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if s.replaceFunc != nil {
		return s.replaceFunc(ctx, userID, items)
	}
	return domain.Cart{}, errors.New("not implemented")
}

type stubProductFinder struct {
	getFunc func(ctx context.Context, productID string) (Product, error)
}

func (s *stubProductFinder) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, productID)
	}
	return Product{}, errors.New("not implemented")
}

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	return "repository error"
}

func (e *repositoryErrorStub) IsNotFound() bool {
	return e.notFound
}

func (e *repositoryErrorStub) IsConflict() bool {
	return e.conflict
}

func (e *repositoryErrorStub) IsUnavailable() bool {
	return e.unavailable
}

func passthroughUpsert(captured *domain.Cart, expectedOut **time.Time) func(ctx context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
	return func(_ context.Context, cart domain.Cart, expected *time.Time) (domain.Cart, error) {
		if captured != nil {
			*captured = cart
		}
		if expectedOut != nil {
			*expectedOut = expected
		}
		return cart, nil
	}
}

func TestCartServiceGetOrCreateCartLazyCreates(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	var upserted domain.Cart

	repo := &stubCartRepository{
		getFunc: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: passthroughUpsert(&upserted, nil),
	}

	service, err := NewCartService(CartServiceDeps{
		Repository:      repo,
		Clock:           func() time.Time { return now },
		DefaultCurrency: "brl",
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	cart, err := service.GetOrCreateCart(context.Background(), " user-7 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upserted.ID != "user-7" || upserted.UserID != "user-7" {
		t.Fatalf("expected fresh cart keyed by user, got %+v", upserted)
	}
	if cart.Currency != "BRL" {
		t.Fatalf("expected default currency BRL, got %q", cart.Currency)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestCartServiceAddProductMergesLines(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:       "user-7",
		UserID:   "user-7",
		Currency: "BRL",
		Items: []domain.CartItem{
			{ID: "item-1", Kind: domain.CartItemProduct, ProductID: "gin", Name: "Gin Tanqueray", Quantity: 1, UnitPrice: 5000, LineTotal: 5000, Currency: "BRL"},
		},
		UpdatedAt: now.Add(-time.Hour),
	}

	var saved domain.Cart
	var expected *time.Time
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return existing, nil
		},
		upsertFunc: passthroughUpsert(&saved, &expected),
	}
	finder := &stubProductFinder{
		getFunc: func(_ context.Context, productID string) (Product, error) {
			return Product{ID: productID, Name: "Gin Tanqueray", Price: 5000, Currency: "BRL", Active: true}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Catalog:    finder,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	cart, err := service.AddProduct(context.Background(), AddCartProductCommand{UserID: "user-7", ProductID: "gin", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected merged single line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 || cart.Items[0].LineTotal != 15000 {
		t.Fatalf("unexpected merged line %+v", cart.Items[0])
	}
	if expected == nil || !expected.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected optimistic lock on previous update time, got %v", expected)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected refreshed update time, got %v", saved.UpdatedAt)
	}
}

func TestCartServiceAddProductRejectsInactive(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{}
	finder := &stubProductFinder{
		getFunc: func(_ context.Context, productID string) (Product, error) {
			return Product{ID: productID, Active: false}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Catalog:    finder,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	_, err = service.AddProduct(context.Background(), AddCartProductCommand{UserID: "user-7", ProductID: "gin"})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for inactive product, got %v", err)
	}
}

func TestCartServiceAddProductUnknownProduct(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	finder := &stubProductFinder{
		getFunc: func(context.Context, string) (Product, error) {
			return Product{}, ErrCatalogNotFound
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: &stubCartRepository{},
		Catalog:    finder,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	_, err = service.AddProduct(context.Background(), AddCartProductCommand{UserID: "user-7", ProductID: "ghost"})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for unknown product, got %v", err)
	}
}

func TestCartServiceAddComboAppendsDiscountedLine(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{ID: "user-7", UserID: "user-7", Currency: "BRL", UpdatedAt: now.Add(-time.Minute)}, nil
		},
		upsertFunc: passthroughUpsert(&saved, nil),
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	record := domain.ComboRecord{
		ID:              "combo-1",
		Currency:        "BRL",
		Spirit:          domain.ComboLine{Product: domain.Product{ID: "gin", Name: "Gin Tanqueray"}},
		EnergyDrink:     domain.ComboLine{Product: domain.Product{ID: "can"}},
		Ice:             []domain.ComboLine{{Product: domain.Product{ID: "ice-1"}}},
		OriginalTotal:   8600,
		DiscountedTotal: 8170,
		DiscountAmount:  430,
	}

	cart, err := service.AddCombo(context.Background(), AddCartComboCommand{UserID: "user-7", Record: record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one combo line, got %d", len(cart.Items))
	}
	item := cart.Items[0]
	if item.Kind != domain.CartItemCombo {
		t.Fatalf("expected combo kind, got %q", item.Kind)
	}
	if item.Name != "Combo Gin Tanqueray" {
		t.Fatalf("unexpected combo name %q", item.Name)
	}
	if item.UnitPrice != 8170 || item.LineTotal != 8170 {
		t.Fatalf("combo line must be priced at the discounted total, got %+v", item)
	}
	if item.Combo == nil || item.Combo.ID != "combo-1" {
		t.Fatalf("expected embedded record, got %+v", item.Combo)
	}
	if saved.Subtotal() != 8170 {
		t.Fatalf("unexpected subtotal %d", saved.Subtotal())
	}
}

func TestCartServiceAddComboRejectsDuplicateRecord(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	record := domain.ComboRecord{ID: "combo-1"}
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID: "user-7", UserID: "user-7",
				Items: []domain.CartItem{
					{ID: "item-1", Kind: domain.CartItemCombo, Combo: &record},
				},
			}, nil
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	full := domain.ComboRecord{
		ID:          "combo-1",
		Spirit:      domain.ComboLine{Product: domain.Product{ID: "gin"}},
		EnergyDrink: domain.ComboLine{Product: domain.Product{ID: "can"}},
		Ice:         []domain.ComboLine{{Product: domain.Product{ID: "ice-1"}}},
	}
	_, err = service.AddCombo(context.Background(), AddCartComboCommand{UserID: "user-7", Record: full})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected duplicate combo rejection, got %v", err)
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	var saved domain.Cart
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID: "user-7", UserID: "user-7", UpdatedAt: now.Add(-time.Minute),
				Items: []domain.CartItem{
					{ID: "item-1"},
					{ID: "item-2"},
				},
			}, nil
		},
		upsertFunc: passthroughUpsert(&saved, nil),
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	cart, err := service.RemoveItem(context.Background(), RemoveCartItemCommand{UserID: "user-7", ItemID: "item-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ID != "item-2" {
		t.Fatalf("expected item-1 removed, got %v", cart.Items)
	}

	_, err = service.RemoveItem(context.Background(), RemoveCartItemCommand{UserID: "user-7", ItemID: "ghost"})
	if !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
}

func TestCartServiceClearCartToleratesMissingCart(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	if err := service.ClearCart(context.Background(), "user-7"); err != nil {
		t.Fatalf("clearing a missing cart should be a no-op, got %v", err)
	}
}

func TestCartServiceTranslatesRepositoryErrors(t *testing.T) {
	now := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{UpdatedAt: now.Add(-time.Minute), Items: []domain.CartItem{{ID: "item-1"}}}, nil
		},
		upsertFunc: func(context.Context, domain.Cart, *time.Time) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{conflict: true}
		},
	}

	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}

	_, err = service.RemoveItem(context.Background(), RemoveCartItemCommand{UserID: "user-7", ItemID: "item-1"})
	if !errors.Is(err, ErrCartConflict) {
		t.Fatalf("expected conflict translation, got %v", err)
	}
}
