package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

const maxCartQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart or item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

type cartProductFinder interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Catalog         cartProductFinder
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo     repositories.CartRepository
	catalog  cartProductFinder
	newID    func() string
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "BRL"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:     deps.Repository,
		catalog:  deps.Catalog,
		newID:    idGen,
		now:      func() time.Time { return deps.Clock().UTC() },
		currency: defaultCurrency,
		logger:   logger,
	}, nil
}

// GetOrCreateCart loads the active cart for the user, creating one when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.loadOrCreate(ctx, uid)
}

// AddProduct appends a plain product line, merging quantities when the product
// is already in the cart.
func (s *cartService) AddProduct(ctx context.Context, cmd AddCartProductCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > maxCartQuantity {
		return Cart{}, fmt.Errorf("%w: quantity exceeds %d", ErrCartInvalidInput, maxCartQuantity)
	}
	if s.catalog == nil {
		return Cart{}, ErrCartUnavailable
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrCatalogNotFound) {
			return Cart{}, fmt.Errorf("%w: product %q does not exist", ErrCartInvalidInput, productID)
		}
		return Cart{}, ErrCartUnavailable
	}
	if !product.Active {
		return Cart{}, fmt.Errorf("%w: product %q is not for sale", ErrCartInvalidInput, productID)
	}

	cart, err := s.loadOrCreate(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	merged := false
	for i, item := range cart.Items {
		if item.Kind == domain.CartItemProduct && item.ProductID == productID {
			item.Quantity += quantity
			if item.Quantity > maxCartQuantity {
				return Cart{}, fmt.Errorf("%w: quantity exceeds %d", ErrCartInvalidInput, maxCartQuantity)
			}
			item.LineTotal = item.UnitPrice * int64(item.Quantity)
			cart.Items[i] = item
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        s.newID(),
			Kind:      domain.CartItemProduct,
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  quantity,
			UnitPrice: product.Price,
			LineTotal: product.Price * int64(quantity),
			Currency:  product.Currency,
			AddedAt:   now,
		})
	}

	return s.save(ctx, cart, now)
}

// AddCombo appends an assembled combo record as one cart line priced at the
// discounted total. Combo lines never merge.
func (s *cartService) AddCombo(ctx context.Context, cmd AddCartComboCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	record := cmd.Record
	if record.ID == "" {
		return Cart{}, fmt.Errorf("%w: combo record id is required", ErrCartInvalidInput)
	}
	if record.Spirit.Product.ID == "" || record.EnergyDrink.Product.ID == "" || len(record.Ice) == 0 {
		return Cart{}, fmt.Errorf("%w: combo record is missing lines", ErrCartInvalidInput)
	}

	cart, err := s.loadOrCreate(ctx, uid)
	if err != nil {
		return Cart{}, err
	}
	for _, item := range cart.Items {
		if item.Kind == domain.CartItemCombo && item.Combo != nil && item.Combo.ID == record.ID {
			return Cart{}, fmt.Errorf("%w: combo %q already in cart", ErrCartInvalidInput, record.ID)
		}
	}

	now := s.now()
	recordCopy := record
	recordCopy.Ice = append([]domain.ComboLine(nil), record.Ice...)
	cart.Items = append(cart.Items, domain.CartItem{
		ID:        s.newID(),
		Kind:      domain.CartItemCombo,
		Name:      fmt.Sprintf("Combo %s", record.Spirit.Product.Name),
		Quantity:  1,
		UnitPrice: record.DiscountedTotal,
		LineTotal: record.DiscountedTotal,
		Currency:  record.Currency,
		Combo:     &recordCopy,
		AddedAt:   now,
	})

	saved, err := s.save(ctx, cart, now)
	if err != nil {
		return Cart{}, err
	}

	s.logger(ctx, "cart.combo_added", map[string]any{
		"userID":  uid,
		"comboID": record.ID,
		"total":   record.DiscountedTotal,
	})
	return saved, nil
}

// RemoveItem removes one line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	kept := make([]domain.CartItem, 0, len(cart.Items))
	removed := false
	for _, item := range cart.Items {
		if item.ID == itemID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return Cart{}, ErrCartNotFound
	}
	cart.Items = kept

	return s.save(ctx, cart, s.now())
}

// ClearCart drops every item from the cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	cart.Items = nil

	if _, err := s.save(ctx, cart, s.now()); err != nil {
		return err
	}
	return nil
}

func (s *cartService) loadOrCreate(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, s.translateRepoError(err)
		}
		now := s.now()
		fresh := domain.Cart{
			ID:        userID,
			UserID:    userID,
			Currency:  s.currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
		saved, err := s.repo.UpsertCart(ctx, fresh, nil)
		if err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		cart = saved
	}
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart Cart, now time.Time) (Cart, error) {
	expected := cart.UpdatedAt
	cart.UpdatedAt = now
	var expectedUpdate *time.Time
	if !expected.IsZero() {
		expectedUpdate = &expected
	}
	saved, err := s.repo.UpsertCart(ctx, cart, expectedUpdate)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
