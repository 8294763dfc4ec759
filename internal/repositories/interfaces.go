package repositories

import (
	"context"
	"time"

	domain "github.com/adega-club/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Carts() CartRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products and serves the snapshot reads
// the combo configurator builds its candidate lists from.
type ProductRepository interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	Upsert(ctx context.Context, product domain.Product, expectedUpdate *time.Time) (domain.Product, error)
}

// CategoryRepository persists catalog categories.
type CategoryRepository interface {
	ListAll(ctx context.Context) ([]domain.Category, error)
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	Upsert(ctx context.Context, category domain.Category) (domain.Category, error)
}

// CartRepository owns cart header + items persistence with optimistic locking guarantees.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// ProductListFilter narrows catalog product listings for the public read surface.
type ProductListFilter struct {
	CategoryID    string
	ActiveOnly    bool
	ComboEligible *bool
	SortBy        string
	SortOrder     domain.SortOrder
	Pagination    domain.Pagination
}
