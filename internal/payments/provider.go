// Package payments fronts the PSPs that collect money for the store's carts.
// The shop only ever sends the customer to a hosted checkout page; capture,
// refunds, and reconciliation happen on the PSP dashboard.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedProvider is returned when no registered provider can take the
// payment.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// CheckoutLineItem is one cart line rendered on the hosted checkout page. A
// combo cart line arrives pre-discounted, so Amount is the final unit price.
type CheckoutLineItem struct {
	Name        string
	Description string
	SKU         string
	Quantity    int64
	Amount      int64
	Currency    string
}

// CheckoutSessionRequest carries everything needed to open a hosted checkout
// for a cart.
type CheckoutSessionRequest struct {
	Amount         int64
	Currency       string
	CustomerID     string
	SuccessURL     string
	CancelURL      string
	Locale         string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession points the shopper at the PSP-hosted payment page.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	ExpiresAt   time.Time
}

// Provider is the contract a PSP adapter implements.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
}

// Manager picks a provider per payment and delegates to it.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	currencyRoutes  map[string]string
}

// ManagerOption configures optional Manager behaviour.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the provider used when no route matches.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes maps currencies to providers, e.g. BRL to a local PSP.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for currency, provider := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(currency))] = strings.TrimSpace(provider)
		}
	}
}

// NewManager registers the supplied providers. Stripe becomes the default
// when present.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	registered := make(map[string]Provider, len(providers))
	for name, provider := range providers {
		key := strings.TrimSpace(strings.ToLower(name))
		if key == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", name)
		}
		registered[key] = provider
	}
	m := &Manager{providers: registered}
	if _, ok := registered["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext carries the routing hints for one payment.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if preferred := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); preferred != "" {
		if p, ok := m.providers[preferred]; ok {
			return preferred, p, nil
		}
	}
	if currency := strings.ToUpper(strings.TrimSpace(ctx.Currency)); currency != "" && m.currencyRoutes != nil {
		if route, ok := m.currencyRoutes[currency]; ok {
			key := strings.TrimSpace(strings.ToLower(route))
			if p, ok := m.providers[key]; ok {
				return key, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateCheckoutSession routes the request and stamps the chosen provider on
// the returned session.
func (m *Manager) CreateCheckoutSession(ctx context.Context, paymentCtx PaymentContext, req CheckoutSessionRequest) (CheckoutSession, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return CheckoutSession{}, err
	}
	session, err := provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Provider = key
	return session, nil
}
