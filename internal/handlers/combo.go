package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/httpx"
	"github.com/adega-club/api/internal/services"
)

const maxComboBodySize = 8 * 1024

// ComboHandlers exposes the authenticated configurator endpoints.
type ComboHandlers struct {
	authn      *auth.Authenticator
	combos     services.ComboService
	confirmMWs []func(http.Handler) http.Handler
}

// ComboHandlerOption customises handler construction.
type ComboHandlerOption func(*ComboHandlers)

// WithConfirmMiddlewares applies middlewares to the confirm route only. Used
// for the idempotency guard, which must not burden the other session verbs.
func WithConfirmMiddlewares(mw ...func(http.Handler) http.Handler) ComboHandlerOption {
	return func(h *ComboHandlers) {
		h.confirmMWs = append(h.confirmMWs, mw...)
	}
}

// NewComboHandlers constructs handlers enforcing Firebase authentication before
// invoking the combo service.
func NewComboHandlers(authn *auth.Authenticator, combos services.ComboService, opts ...ComboHandlerOption) *ComboHandlers {
	h := &ComboHandlers{
		authn:  authn,
		combos: combos,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /combo endpoints onto the provided router.
func (h *ComboHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/sessions", h.openSession)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.getSession)
		sr.Delete("/", h.discardSession)
		sr.Put("/category", h.selectCategory)
		sr.Put("/spirit", h.selectSpirit)
		sr.Put("/pack-option", h.selectPackOption)
		sr.Put("/energy-drink", h.selectEnergyDrink)
		sr.Put("/ice/{slot}", h.selectIce)
		sr.Post("/reset", h.resetSession)
		confirm := sr.With()
		for _, mw := range h.confirmMWs {
			if mw != nil {
				confirm = confirm.With(mw)
			}
		}
		confirm.Post("/confirm", h.confirmSession)
	})
}

func (h *ComboHandlers) openSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.combos.OpenSession(ctx, services.OpenComboSessionCommand{UserID: identity.UID})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildComboSessionPayload(view))
}

func (h *ComboHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	view, err := h.combos.GetSession(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) discardSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	if err := h.combos.Discard(ctx, chi.URLParam(r, "sessionID")); err != nil {
		writeComboError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ComboHandlers) selectCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	var req struct {
		CategoryID string `json:"category_id"`
	}
	if !decodeComboBody(ctx, w, r, &req) {
		return
	}

	view, err := h.combos.SelectCategory(ctx, services.SelectCategoryCommand{
		SessionID:  chi.URLParam(r, "sessionID"),
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) selectSpirit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if !decodeComboBody(ctx, w, r, &req) {
		return
	}

	view, err := h.combos.SelectSpirit(ctx, services.SelectSpiritCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		ProductID: req.ProductID,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) selectPackOption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	var req struct {
		Kind     string `json:"kind"`
		PackSize int    `json:"pack_size"`
	}
	if !decodeComboBody(ctx, w, r, &req) {
		return
	}

	option, err := parsePackOption(req.Kind, req.PackSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	view, err := h.combos.SelectPackOption(ctx, services.SelectPackOptionCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Option:    option,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) selectEnergyDrink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if !decodeComboBody(ctx, w, r, &req) {
		return
	}

	view, err := h.combos.SelectEnergyDrink(ctx, services.SelectEnergyDrinkCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		ProductID: req.ProductID,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) selectIce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "slot must be an integer", http.StatusBadRequest))
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
	}
	if !decodeComboBody(ctx, w, r, &req) {
		return
	}

	view, err := h.combos.SelectIce(ctx, services.SelectIceCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Slot:      slot,
		ProductID: req.ProductID,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) resetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireIdentity(ctx, w); !ok {
		return
	}

	view, err := h.combos.Reset(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildComboSessionPayload(view))
}

func (h *ComboHandlers) confirmSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	confirmation, err := h.combos.Confirm(ctx, services.ConfirmComboCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		UserID:    identity.UID,
	})
	if err != nil {
		writeComboError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, comboConfirmationPayload{
		Record: buildComboRecordPayload(confirmation.Record),
		Cart:   buildCartPayload(confirmation.Cart),
	})
}

func (h *ComboHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h == nil || h.combos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("combo_service_unavailable", "combo service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func decodeComboBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dest any) bool {
	body, err := readLimitedBody(r, maxComboBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func parsePackOption(kind string, packSize int) (domain.PackOption, error) {
	switch strings.TrimSpace(kind) {
	case string(domain.PackKindSingleBottle), "":
		return domain.SingleLargeBottle(), nil
	case string(domain.PackKindCanPack):
		return domain.MultiCanPack(packSize), nil
	default:
		return domain.PackOption{}, errors.New("kind must be single_bottle or can_pack")
	}
}

func writeComboError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrComboIncomplete):
		message := strings.TrimSpace(strings.TrimPrefix(err.Error(), services.ErrComboIncomplete.Error()+":"))
		if message == "" {
			message = "selection incomplete"
		}
		httpx.WriteError(ctx, w, httpx.NewError("combo_incomplete", message, http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrComboInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrComboNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "combo session not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("combo_service_unavailable", "combo service is unavailable", http.StatusServiceUnavailable))
	}
}

// Payload builders ------------------------------------------------------------

type comboSessionPayload struct {
	SessionID  string               `json:"session_id"`
	UserID     string               `json:"user_id"`
	CreatedAt  string               `json:"created_at"`
	ExpiresAt  string               `json:"expires_at"`
	Selection  comboSelection       `json:"selection"`
	Quote      comboQuotePayload    `json:"quote"`
	Candidates comboCandidatePanels `json:"candidates"`
}

type comboSelection struct {
	CategoryID   string            `json:"category_id,omitempty"`
	Spirit       *productPayload   `json:"spirit,omitempty"`
	PackOption   packOptionPayload `json:"pack_option"`
	EnergyDrink  *productPayload   `json:"energy_drink,omitempty"`
	IceSlots     []*productPayload `json:"ice_slots"`
	Complete     bool              `json:"complete"`
	IceSlotCount int               `json:"ice_slot_count"`
}

type packOptionPayload struct {
	Kind     string `json:"kind"`
	PackSize int    `json:"pack_size,omitempty"`
	Quantity int    `json:"quantity"`
}

type comboQuotePayload struct {
	Complete             bool               `json:"complete"`
	Currency             string             `json:"currency"`
	Lines                []comboLinePayload `json:"lines,omitempty"`
	OriginalTotal        int64              `json:"original_total"`
	DiscountedTotal      int64              `json:"discounted_total"`
	DiscountAmount       int64              `json:"discount_amount"`
	DiscountBasisPoints  int                `json:"discount_basis_points"`
	OriginalDisplay      string             `json:"original_display,omitempty"`
	DiscountedDisplay    string             `json:"discounted_display,omitempty"`
	DiscountPercentLabel string             `json:"discount_percent_label,omitempty"`
}

type comboLinePayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type comboCandidatePanels struct {
	Categories   []categoryPayload  `json:"categories"`
	Spirits      []productPayload   `json:"spirits"`
	EnergyDrinks []productPayload   `json:"energy_drinks"`
	PackSizes    []int              `json:"pack_sizes"`
	IceBySlot    [][]productPayload `json:"ice_by_slot"`
}

type comboRecordPayload struct {
	ID                  string             `json:"id"`
	CreatedAt           string             `json:"created_at"`
	Currency            string             `json:"currency"`
	CategoryID          string             `json:"category_id,omitempty"`
	PackOption          packOptionPayload  `json:"pack_option"`
	Lines               []comboLinePayload `json:"lines"`
	OriginalTotal       int64              `json:"original_total"`
	DiscountedTotal     int64              `json:"discounted_total"`
	DiscountAmount      int64              `json:"discount_amount"`
	DiscountBasisPoints int                `json:"discount_basis_points"`
}

type comboConfirmationPayload struct {
	Record comboRecordPayload `json:"record"`
	Cart   cartPayload        `json:"cart"`
}

func buildComboSessionPayload(view services.ComboSessionView) comboSessionPayload {
	selection := comboSelection{
		CategoryID:   view.Selection.CategoryID,
		PackOption:   buildPackOptionPayload(view.Selection.PackOption),
		IceSlots:     make([]*productPayload, len(view.Selection.IceSlots)),
		Complete:     view.Selection.IsComplete(),
		IceSlotCount: view.IceSlotSize,
	}
	if view.Selection.Spirit != nil {
		p := buildProductPayload(*view.Selection.Spirit)
		selection.Spirit = &p
	}
	if view.Selection.EnergyDrink != nil {
		p := buildProductPayload(*view.Selection.EnergyDrink)
		selection.EnergyDrink = &p
	}
	for i, slot := range view.Selection.IceSlots {
		if slot.Filled() {
			p := buildProductPayload(*slot.Product)
			selection.IceSlots[i] = &p
		}
	}

	return comboSessionPayload{
		SessionID:  view.SessionID,
		UserID:     view.UserID,
		CreatedAt:  formatTime(view.CreatedAt),
		ExpiresAt:  formatTime(view.ExpiresAt),
		Selection:  selection,
		Quote:      buildComboQuotePayload(view.Quote),
		Candidates: buildCandidatePanels(view.Candidates),
	}
}

func buildPackOptionPayload(option domain.PackOption) packOptionPayload {
	return packOptionPayload{
		Kind:     string(option.Kind),
		PackSize: option.PackSize,
		Quantity: option.Quantity(),
	}
}

func buildComboQuotePayload(quote domain.ComboQuote) comboQuotePayload {
	payload := comboQuotePayload{
		Complete:            quote.Complete,
		Currency:            quote.Currency,
		OriginalTotal:       quote.OriginalTotal,
		DiscountedTotal:     quote.DiscountedTotal,
		DiscountAmount:      quote.DiscountAmount,
		DiscountBasisPoints: quote.DiscountBasisPoints,
	}
	if quote.Complete {
		payload.OriginalDisplay = domain.FormatAmount(quote.OriginalTotal, quote.Currency)
		payload.DiscountedDisplay = domain.FormatAmount(quote.DiscountedTotal, quote.Currency)
		payload.DiscountPercentLabel = strconv.Itoa(quote.DiscountBasisPoints/100) + "%"
	}
	for _, line := range quote.Lines {
		payload.Lines = append(payload.Lines, buildComboLinePayload(line))
	}
	return payload
}

func buildComboLinePayload(line domain.ComboLine) comboLinePayload {
	return comboLinePayload{
		ProductID: line.Product.ID,
		Name:      line.Product.Name,
		Role:      string(line.Role),
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		LineTotal: line.LineTotal,
	}
}

func buildCandidatePanels(view services.ComboCandidateView) comboCandidatePanels {
	panels := comboCandidatePanels{
		PackSizes: view.PackSizes,
		IceBySlot: make([][]productPayload, len(view.IceBySlot)),
	}
	for _, category := range view.Categories {
		panels.Categories = append(panels.Categories, buildCategoryPayload(category))
	}
	for _, product := range view.Spirits {
		panels.Spirits = append(panels.Spirits, buildProductPayload(product))
	}
	for _, product := range view.EnergyDrinks {
		panels.EnergyDrinks = append(panels.EnergyDrinks, buildProductPayload(product))
	}
	for i, slotProducts := range view.IceBySlot {
		panels.IceBySlot[i] = make([]productPayload, 0, len(slotProducts))
		for _, product := range slotProducts {
			panels.IceBySlot[i] = append(panels.IceBySlot[i], buildProductPayload(product))
		}
	}
	return panels
}

func buildComboRecordPayload(record domain.ComboRecord) comboRecordPayload {
	payload := comboRecordPayload{
		ID:                  record.ID,
		CreatedAt:           formatTime(record.CreatedAt),
		Currency:            record.Currency,
		CategoryID:          record.CategoryID,
		PackOption:          buildPackOptionPayload(record.PackOption),
		OriginalTotal:       record.OriginalTotal,
		DiscountedTotal:     record.DiscountedTotal,
		DiscountAmount:      record.DiscountAmount,
		DiscountBasisPoints: record.DiscountBasisPoints,
	}
	for _, line := range record.Lines() {
		payload.Lines = append(payload.Lines, buildComboLinePayload(line))
	}
	return payload
}
