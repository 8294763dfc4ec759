package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/payments"
)

var (
	errCheckoutCartRequired     = errors.New("checkout service: cart service is required")
	errCheckoutPaymentsRequired = errors.New("checkout service: payments manager is required")
	errCheckoutClockRequired    = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates checkout was requested with nothing to pay for.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutUnavailable indicates the PSP or a dependency cannot be reached.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

type checkoutCartReader interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
}

type checkoutPayments interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// CheckoutServiceDeps wires the cart reader and PSP manager for checkout.
type CheckoutServiceDeps struct {
	Cart     checkoutCartReader
	Payments checkoutPayments
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
	Locale   string
}

type checkoutService struct {
	cart     checkoutCartReader
	payments checkoutPayments
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
	locale   string
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	if deps.Payments == nil {
		return nil, errCheckoutPaymentsRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	locale := strings.TrimSpace(deps.Locale)
	if locale == "" {
		locale = "pt-BR"
	}

	return &checkoutService{
		cart:     deps.Cart,
		payments: deps.Payments,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
		locale:   locale,
	}, nil
}

// CreateCheckoutSession opens a PSP-hosted checkout for the user's cart contents.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSessionResult, error) {
	if s == nil || s.cart == nil || s.payments == nil {
		return CheckoutSessionResult{}, ErrCheckoutUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CheckoutSessionResult{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	successURL := strings.TrimSpace(cmd.SuccessURL)
	cancelURL := strings.TrimSpace(cmd.CancelURL)
	if successURL == "" || cancelURL == "" {
		return CheckoutSessionResult{}, fmt.Errorf("%w: success and cancel URLs are required", ErrCheckoutInvalidInput)
	}

	cart, err := s.cart.GetOrCreateCart(ctx, uid)
	if err != nil {
		return CheckoutSessionResult{}, ErrCheckoutUnavailable
	}
	if len(cart.Items) == 0 {
		return CheckoutSessionResult{}, ErrCheckoutEmptyCart
	}

	total := cart.Subtotal()
	if total <= 0 {
		return CheckoutSessionResult{}, ErrCheckoutEmptyCart
	}

	items := make([]payments.CheckoutLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lineItem := payments.CheckoutLineItem{
			Name:     item.Name,
			SKU:      item.ProductID,
			Quantity: int64(item.Quantity),
			Amount:   item.UnitPrice,
			Currency: item.Currency,
		}
		if item.Kind == domain.CartItemCombo && item.Combo != nil {
			lineItem.SKU = item.Combo.ID
			lineItem.Description = fmt.Sprintf("Combo discount %d%%", item.Combo.DiscountBasisPoints/100)
		}
		items = append(items, lineItem)
	}

	session, err := s.payments.CreateCheckoutSession(ctx,
		payments.PaymentContext{Currency: cart.Currency},
		payments.CheckoutSessionRequest{
			Amount:         total,
			Currency:       cart.Currency,
			CustomerID:     uid,
			SuccessURL:     successURL,
			CancelURL:      cancelURL,
			Locale:         s.locale,
			IdempotencyKey: fmt.Sprintf("checkout-%s-%d", uid, cart.UpdatedAt.UnixNano()),
			Items:          items,
			Metadata: map[string]string{
				"userId":     uid,
				"itemsCount": fmt.Sprintf("%d", len(cart.Items)),
			},
		})
	if err != nil {
		s.logger(ctx, "checkout.session_failed", map[string]any{
			"userID": uid,
			"error":  err.Error(),
		})
		return CheckoutSessionResult{}, ErrCheckoutUnavailable
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"userID":    uid,
		"sessionID": session.ID,
		"amount":    total,
	})

	return CheckoutSessionResult{
		SessionID:   session.ID,
		CheckoutURL: session.RedirectURL,
		Amount:      total,
		Currency:    cart.Currency,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}
