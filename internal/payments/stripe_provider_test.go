package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubSessionAPI struct {
	lastParams *stripe.CheckoutSessionParams
	session    *stripe.CheckoutSession
	err        error
}

func (s *stubSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.lastParams = params
	return s.session, s.err
}

func TestStripeProviderBuildsCartLineItems(t *testing.T) {
	api := &stubSessionAPI{
		session: &stripe.CheckoutSession{
			ID:        "cs_test_1",
			URL:       "https://checkout.stripe.test/cs_test_1",
			ExpiresAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
		},
	}
	provider, err := NewStripeProvider(StripeProviderConfig{
		Sessions: api,
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Amount:     13170,
		Currency:   "BRL",
		CustomerID: "user-1",
		SuccessURL: "https://adega.club/checkout/success",
		CancelURL:  "https://adega.club/checkout/cancel",
		Locale:     "pt-BR",
		Items: []CheckoutLineItem{
			{Name: "Gin Tanqueray", SKU: "p-1", Quantity: 1, Amount: 5000, Currency: "BRL"},
			{Name: "Combo Gin Tanqueray", SKU: "combo-1", Description: "Combo discount 5%", Quantity: 1, Amount: 8170, Currency: "BRL"},
		},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if session.ID != "cs_test_1" || session.RedirectURL != "https://checkout.stripe.test/cs_test_1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.ExpiresAt != time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) {
		t.Fatalf("expected PSP expiry to win, got %v", session.ExpiresAt)
	}

	params := api.lastParams
	if params == nil || len(params.LineItems) != 2 {
		t.Fatalf("expected two line items, got %+v", params)
	}
	combo := params.LineItems[1]
	if got := combo.PriceData.ProductData.Metadata["sku"]; got != "combo-1" {
		t.Fatalf("expected combo sku metadata, got %q", got)
	}
	if *combo.PriceData.UnitAmount != 8170 {
		t.Fatalf("expected discounted unit amount 8170, got %d", *combo.PriceData.UnitAmount)
	}
	if *combo.PriceData.Currency != "brl" {
		t.Fatalf("expected lowercase currency, got %q", *combo.PriceData.Currency)
	}
}

func TestStripeProviderFallsBackToCartTotal(t *testing.T) {
	api := &stubSessionAPI{session: &stripe.CheckoutSession{ID: "cs_test_2"}}
	provider, err := NewStripeProvider(StripeProviderConfig{Sessions: api})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Amount:     9900,
		Currency:   "BRL",
		SuccessURL: "https://adega.club/ok",
		CancelURL:  "https://adega.club/no",
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	params := api.lastParams
	if len(params.LineItems) != 1 {
		t.Fatalf("expected single fallback line, got %d", len(params.LineItems))
	}
	if *params.LineItems[0].PriceData.UnitAmount != 9900 {
		t.Fatalf("expected cart total on fallback line, got %d", *params.LineItems[0].PriceData.UnitAmount)
	}
}

func TestNewStripeProviderRequiresKeyOrClient(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatalf("expected error without api key or sessions client")
	}
}
