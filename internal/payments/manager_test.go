package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	calls   int
	lastReq CheckoutSessionRequest
	session CheckoutSession
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	f.calls++
	f.lastReq = req
	return f.session, f.err
}

func TestManagerUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{session: CheckoutSession{ID: "sess_stripe"}}
	pix := &fakeProvider{session: CheckoutSession{ID: "sess_pix"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"pix":    pix,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(ctx, PaymentContext{PreferredProvider: "pix"}, CheckoutSessionRequest{Currency: "BRL"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != "pix" {
		t.Fatalf("expected provider 'pix', got %q", session.Provider)
	}
	if pix.calls != 1 || stripe.calls != 0 {
		t.Fatalf("expected only the pix provider to handle the call")
	}
}

func TestManagerRoutesByCurrency(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{session: CheckoutSession{ID: "sess_stripe"}}
	pix := &fakeProvider{session: CheckoutSession{ID: "sess_pix"}}

	mgr, err := NewManager(
		map[string]Provider{
			"stripe": stripe,
			"pix":    pix,
		},
		WithCurrencyRoutes(map[string]string{"BRL": "pix"}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(ctx, PaymentContext{Currency: "BRL"}, CheckoutSessionRequest{Currency: "BRL"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != "pix" {
		t.Fatalf("expected provider 'pix', got %q", session.Provider)
	}
}

func TestManagerFallsBackToStripeDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{session: CheckoutSession{ID: "sess_stripe"}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	session, err := mgr.CreateCheckoutSession(ctx, PaymentContext{Currency: "BRL"}, CheckoutSessionRequest{Currency: "BRL"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Provider != "stripe" || stripe.calls != 1 {
		t.Fatalf("expected stripe default to handle the call, got %+v", session)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(
		map[string]Provider{"stripe": &fakeProvider{}, "pix": &fakeProvider{}},
		WithDefaultProvider(""),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err = mgr.CreateCheckoutSession(ctx, PaymentContext{PreferredProvider: "unknown"}, CheckoutSessionRequest{Currency: "BRL"}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}
