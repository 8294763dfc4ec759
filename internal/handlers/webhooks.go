package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/services"
)

// WebhookHandlers receives signed out-of-band notifications. Authentication
// (HMAC or OIDC) is applied by the router's webhook group middleware; the
// handlers themselves only act on the payload.
type WebhookHandlers struct {
	catalog services.CatalogService
}

// NewWebhookHandlers constructs the webhook endpoint handlers.
func NewWebhookHandlers(catalog services.CatalogService) *WebhookHandlers {
	return &WebhookHandlers{catalog: catalog}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/catalog/refresh", h.catalogRefresh)
}

// catalogRefresh drops the cached catalog snapshot. Stock imports and price
// syncs fire it so the next configurator session sees fresh data without
// waiting out the cache TTL.
func (h *WebhookHandlers) catalogRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service not configured", http.StatusServiceUnavailable))
		return
	}

	// The body is informational only; a malformed one is still a refresh.
	var payload struct {
		Source string `json:"source"`
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	if err := h.catalog.InvalidateSnapshot(ctx); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog refresh failed", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"source": payload.Source,
	})
}
