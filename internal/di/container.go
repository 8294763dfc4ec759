package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adega-club/api/internal/payments"
	"github.com/adega-club/api/internal/platform/config"
	"github.com/adega-club/api/internal/platform/storage"
	"github.com/adega-club/api/internal/repositories"
	"github.com/adega-club/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Combo    services.ComboService
	Checkout services.CheckoutService
	System   services.SystemService
}

// Deps carries the infrastructure the container wires into services. Repositories are
// mandatory; storage, payments, and event publishing are optional and disable the
// dependent capabilities when absent.
type Deps struct {
	Products   repositories.ProductRepository
	Categories repositories.CategoryRepository
	Carts      repositories.CartRepository
	Health     repositories.HealthRepository

	Storage  *storage.Client
	Payments *payments.Manager
	Events   services.ComboEventPublisher

	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
	Build  services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config   config.Config
	Services Services
}

// NewContainer constructs the runtime service graph. Production wiring provides real
// repositories, while tests can supply in-memory implementations.
func NewContainer(ctx context.Context, cfg config.Config, deps Deps) (*Container, error) {
	if deps.Products == nil || deps.Categories == nil {
		return nil, errors.New("catalog repositories are required")
	}
	if deps.Carts == nil {
		return nil, errors.New("cart repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	var svc Services

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:        deps.Products,
		Categories:      deps.Categories,
		Storage:         deps.Storage,
		CatalogBucket:   cfg.Storage.CatalogBucket,
		Clock:           clock,
		Logger:          deps.Logger,
		Currency:        cfg.Catalog.Currency,
		SnapshotTimeout: cfg.Catalog.SnapshotTimeout,
		SnapshotRetries: cfg.Catalog.SnapshotRetries,
		IceSlotCount:    cfg.Combo.IceSlotCount,
		CanPackSizes:    cfg.Combo.CanPackSizes,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository:      deps.Carts,
		Catalog:         catalogSvc,
		Clock:           clock,
		DefaultCurrency: cfg.Catalog.Currency,
		Logger:          deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	comboSvc, err := services.NewComboService(services.ComboServiceDeps{
		Catalog:      catalogSvc,
		Cart:         cartSvc,
		Events:       deps.Events,
		Clock:        clock,
		Logger:       deps.Logger,
		IceSlotCount: cfg.Combo.IceSlotCount,
		CanPackSizes: cfg.Combo.CanPackSizes,
		SessionTTL:   cfg.Combo.SessionTTL,
		Currency:     cfg.Catalog.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("build combo service: %w", err)
	}
	svc.Combo = comboSvc

	if deps.Payments != nil && cfg.Features.EnableCheckout {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Cart:     cartSvc,
			Payments: deps.Payments,
			Clock:    clock,
			Logger:   deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	if deps.Health != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: deps.Health,
			Clock:            clock,
			Build:            deps.Build,
		})
		if err != nil {
			return nil, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return &Container{
		Config:   cfg,
		Services: svc,
	}, nil
}
