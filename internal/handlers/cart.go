package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/services"
)

const maxCartBodySize = 16 * 1024

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Delete("/", h.clearCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, identity.UID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
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
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.AddProduct(ctx, services.AddCartProductCommand{
		UserID:    identity.UID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID: identity.UID,
		ItemID: chi.URLParam(r, "itemID"),
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ctx, identity.UID); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h == nil || h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "cart item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "cart was modified concurrently", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	}
}

// Payloads -------------------------------------------------------------------

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID        string            `json:"id"`
	Currency  string            `json:"currency"`
	Items     []cartItemPayload `json:"items"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ID        string              `json:"id"`
	Kind      string              `json:"kind"`
	ProductID string              `json:"product_id,omitempty"`
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	UnitPrice int64               `json:"unit_price"`
	LineTotal int64               `json:"line_total"`
	Currency  string              `json:"currency"`
	Combo     *comboRecordPayload `json:"combo,omitempty"`
	AddedAt   string              `json:"added_at,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{
		ID:        cart.ID,
		Currency:  cart.Currency,
		Items:     make([]cartItemPayload, 0, len(cart.Items)),
		Subtotal:  cart.Subtotal(),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		itemPayload := cartItemPayload{
			ID:        item.ID,
			Kind:      string(item.Kind),
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Currency:  item.Currency,
			AddedAt:   formatTime(item.AddedAt),
		}
		if item.Combo != nil {
			record := buildComboRecordPayload(*item.Combo)
			itemPayload.Combo = &record
		}
		payload.Items = append(payload.Items, itemPayload)
	}
	return payload
}
