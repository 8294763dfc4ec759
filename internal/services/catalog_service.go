package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/pagination"
	"github.com/adega-club/api/internal/platform/storage"
	"github.com/adega-club/api/internal/repositories"
)

var (
	errCatalogProductsRequired   = errors.New("catalog service: product repository is required")
	errCatalogCategoriesRequired = errors.New("catalog service: category repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested catalog entry does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogConflict indicates a concurrent modification was detected.
var ErrCatalogConflict = errors.New("catalog service: conflict")

// ErrCatalogUnavailable indicates the catalog backend cannot be reached.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// snapshotCacheTTL bounds how long one classified snapshot serves candidate
// reads before the next access refetches the catalog.
const snapshotCacheTTL = 30 * time.Second

const signedUploadExpiry = 15 * time.Minute

// CatalogServiceDeps wires repositories and storage for catalog operations.
type CatalogServiceDeps struct {
	Products        repositories.ProductRepository
	Categories      repositories.CategoryRepository
	Storage         *storage.Client
	CatalogBucket   string
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(context.Context, string, map[string]any)
	Currency        string
	SnapshotTimeout time.Duration
	SnapshotRetries int
	IceSlotCount    int
	CanPackSizes    []int
}

type catalogService struct {
	products      repositories.ProductRepository
	categories    repositories.CategoryRepository
	store         *storage.Client
	catalogBucket string
	newID         func() string
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)
	currency      string
	fetchTimeout  time.Duration
	fetchRetries  int
	iceSlotCount  int
	canPackSizes  []int

	namePolicy *bluemonday.Policy
	descPolicy *bluemonday.Policy

	mu         sync.Mutex
	snapshot   domain.CatalogSnapshot
	candidates domain.ComboCandidates
	cachedAt   time.Time
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errCatalogProductsRequired
	}
	if deps.Categories == nil {
		return nil, errCatalogCategoriesRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "BRL"
	}
	fetchTimeout := deps.SnapshotTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	fetchRetries := deps.SnapshotRetries
	if fetchRetries < 0 {
		fetchRetries = 0
	}
	iceSlotCount := deps.IceSlotCount
	if iceSlotCount <= 0 {
		iceSlotCount = 4
	}
	canPackSizes := append([]int(nil), deps.CanPackSizes...)
	if len(canPackSizes) == 0 {
		canPackSizes = []int{4, 5}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &catalogService{
		products:      deps.Products,
		categories:    deps.Categories,
		store:         deps.Storage,
		catalogBucket: strings.TrimSpace(deps.CatalogBucket),
		newID:         idGen,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		currency:      currency,
		fetchTimeout:  fetchTimeout,
		fetchRetries:  fetchRetries,
		iceSlotCount:  iceSlotCount,
		canPackSizes:  canPackSizes,
		namePolicy:    bluemonday.StrictPolicy(),
		descPolicy:    bluemonday.UGCPolicy(),
	}, nil
}

// Snapshot returns a point-in-time view of the catalog, served from the cache
// when fresh enough.
func (s *catalogService) Snapshot(ctx context.Context) (CatalogSnapshot, error) {
	snapshot, _, err := s.Candidates(ctx)
	return snapshot, err
}

// Candidates returns the cached snapshot together with its role-classified
// candidate lists, refetching when the cache has gone stale.
func (s *catalogService) Candidates(ctx context.Context) (CatalogSnapshot, ComboCandidates, error) {
	if s == nil {
		return CatalogSnapshot{}, ComboCandidates{}, ErrCatalogUnavailable
	}

	now := s.now()
	s.mu.Lock()
	if !s.cachedAt.IsZero() && now.Sub(s.cachedAt) < snapshotCacheTTL {
		snapshot, candidates := s.snapshot, s.candidates
		s.mu.Unlock()
		return snapshot, candidates, nil
	}
	s.mu.Unlock()

	snapshot, err := s.fetchSnapshot(ctx)
	if err != nil {
		return CatalogSnapshot{}, ComboCandidates{}, err
	}
	candidates := BuildCandidates(snapshot, s.canPackSizes, s.iceSlotCount)

	s.mu.Lock()
	s.snapshot = snapshot
	s.candidates = candidates
	s.cachedAt = now
	s.mu.Unlock()

	return snapshot, candidates, nil
}

// ListProducts serves the paginated public catalog listing.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}

	page, err := s.products.List(ctx, repositories.ProductListFilter{
		CategoryID:    strings.TrimSpace(filter.CategoryID),
		ActiveOnly:    filter.ActiveOnly,
		ComboEligible: filter.ComboEligible,
		SortBy:        filter.SortBy,
		SortOrder:     filter.SortOrder,
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

// GetProduct loads one product by ID.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// ListCategories returns every catalog category.
func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	if s == nil || s.categories == nil {
		return nil, ErrCatalogUnavailable
	}
	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

// UpsertProduct creates or updates a product. Display fields pass through the
// HTML sanitiser before persisting.
func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.products == nil {
		return Product{}, ErrCatalogUnavailable
	}

	name := strings.TrimSpace(s.namePolicy.Sanitize(cmd.Name))
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	categoryName := ""
	if categoryID := strings.TrimSpace(cmd.CategoryID); categoryID != "" {
		category, err := s.categories.FindByID(ctx, categoryID)
		if err != nil {
			if errors.Is(s.translateRepoError(err), ErrCatalogNotFound) {
				return Product{}, fmt.Errorf("%w: category %q does not exist", ErrCatalogInvalidInput, categoryID)
			}
			return Product{}, s.translateRepoError(err)
		}
		categoryName = category.Name
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		productID = s.newID()
	}

	now := s.now()
	product := domain.Product{
		ID:            productID,
		Name:          name,
		Description:   strings.TrimSpace(s.descPolicy.Sanitize(cmd.Description)),
		Price:         cmd.Price,
		Currency:      currency,
		CategoryID:    strings.TrimSpace(cmd.CategoryID),
		CategoryName:  categoryName,
		Active:        cmd.Active,
		Stock:         cmd.Stock,
		ComboEligible: cmd.ComboEligible,
		Prepared:      cmd.Prepared,
		ImagePath:     strings.TrimSpace(cmd.ImagePath),
		Metadata:      cmd.Metadata,
		UpdatedAt:     now,
	}

	saved, err := s.products.Upsert(ctx, product, cmd.ExpectedUpdate)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}

	s.invalidateCache()
	s.logger(ctx, "catalog.product_upserted", map[string]any{
		"productID": saved.ID,
		"active":    saved.Active,
	})
	return saved, nil
}

// UpsertCategory creates or updates a category.
func (s *catalogService) UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	if s == nil || s.categories == nil {
		return Category{}, ErrCatalogUnavailable
	}

	name := strings.TrimSpace(s.namePolicy.Sanitize(cmd.Name))
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	categoryID := strings.TrimSpace(cmd.CategoryID)
	if categoryID == "" {
		categoryID = s.newID()
	}

	saved, err := s.categories.Upsert(ctx, domain.Category{
		ID:        categoryID,
		Name:      name,
		Active:    cmd.Active,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}

	s.invalidateCache()
	return saved, nil
}

// IssueProductImageUpload signs a time-limited upload URL for a product image.
func (s *catalogService) IssueProductImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (SignedUploadResponse, error) {
	if s == nil {
		return SignedUploadResponse{}, ErrCatalogUnavailable
	}
	if s.store == nil || s.catalogBucket == "" {
		return SignedUploadResponse{}, fmt.Errorf("%w: storage signing is not configured", ErrCatalogUnavailable)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return SignedUploadResponse{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	contentType := strings.TrimSpace(cmd.ContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return SignedUploadResponse{}, fmt.Errorf("%w: content type must be an image", ErrCatalogInvalidInput)
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposeProductImage, storage.PathParams{
		ProductID: productID,
		UploadID:  s.newID(),
		FileName:  cmd.FileName,
	})
	if err != nil {
		return SignedUploadResponse{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}

	result, err := s.store.SignedURL(ctx, s.catalogBucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:      "PUT",
			ContentType: contentType,
			ExpiresIn:   signedUploadExpiry,
		},
	})
	if err != nil {
		s.logger(ctx, "catalog.sign_upload_failed", map[string]any{
			"productID": productID,
			"error":     err.Error(),
		})
		return SignedUploadResponse{}, ErrCatalogUnavailable
	}

	return SignedUploadResponse{
		URL:        result.URL,
		Method:     result.Method,
		Headers:    result.Headers,
		ObjectPath: objectPath,
		ExpiresAt:  result.ExpiresAt,
	}, nil
}

func (s *catalogService) fetchSnapshot(ctx context.Context) (domain.CatalogSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	backoff := gax.Backoff{
		Initial:    200 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2,
	}

	var lastErr error
	for attempt := 0; attempt <= s.fetchRetries; attempt++ {
		if attempt > 0 {
			if err := gax.Sleep(fetchCtx, backoff.Pause()); err != nil {
				break
			}
		}

		products, err := s.products.ListAll(fetchCtx)
		if err != nil {
			lastErr = err
			continue
		}
		categories, err := s.categories.ListAll(fetchCtx)
		if err != nil {
			lastErr = err
			continue
		}

		return domain.CatalogSnapshot{
			FetchedAt:  s.now(),
			Products:   products,
			Categories: categories,
		}, nil
	}

	s.logger(ctx, "catalog.snapshot_failed", map[string]any{
		"retries": s.fetchRetries,
		"error":   errString(lastErr),
	})
	return domain.CatalogSnapshot{}, s.translateRepoError(lastErr)
}

// InvalidateSnapshot drops the cached snapshot so the next read refetches.
// Exposed for the catalog webhook fired by out-of-band stock imports.
func (s *catalogService) InvalidateSnapshot(ctx context.Context) error {
	if s == nil {
		return ErrCatalogUnavailable
	}
	s.invalidateCache()
	s.logger(ctx, "catalog.snapshot_invalidated", nil)
	return nil
}

func (s *catalogService) invalidateCache() {
	s.mu.Lock()
	s.cachedAt = time.Time{}
	s.mu.Unlock()
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return ErrCatalogUnavailable
	}
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return fmt.Errorf("%w: page token is not valid", ErrCatalogInvalidInput)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogNotFound
		case repoErr.IsConflict():
			return ErrCatalogConflict
		case repoErr.IsUnavailable():
			return ErrCatalogUnavailable
		}
	}
	return ErrCatalogUnavailable
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
