package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/services"
)

const maxCheckoutBodySize = 8 * 1024

// CheckoutHandlers exposes the authenticated checkout endpoint.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers enforcing Firebase authentication before invoking checkout.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/sessions", h.createSession)
}

type checkoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req struct {
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		UserID:     identity.UID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrCheckoutEmptyCart):
			httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has nothing to pay for", http.StatusUnprocessableEntity))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutSessionResponse{
		SessionID:   session.SessionID,
		CheckoutURL: session.CheckoutURL,
		Amount:      session.Amount,
		Currency:    session.Currency,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
