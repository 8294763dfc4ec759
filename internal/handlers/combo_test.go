package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/auth"
	"github.com/adega-club/api/internal/platform/idempotency"
	"github.com/adega-club/api/internal/services"
)

type stubComboService struct {
	openFunc        func(ctx context.Context, cmd services.OpenComboSessionCommand) (services.ComboSessionView, error)
	getFunc         func(ctx context.Context, sessionID string) (services.ComboSessionView, error)
	categoryFunc    func(ctx context.Context, cmd services.SelectCategoryCommand) (services.ComboSessionView, error)
	spiritFunc      func(ctx context.Context, cmd services.SelectSpiritCommand) (services.ComboSessionView, error)
	packOptionFunc  func(ctx context.Context, cmd services.SelectPackOptionCommand) (services.ComboSessionView, error)
	energyDrinkFunc func(ctx context.Context, cmd services.SelectEnergyDrinkCommand) (services.ComboSessionView, error)
	iceFunc         func(ctx context.Context, cmd services.SelectIceCommand) (services.ComboSessionView, error)
	resetFunc       func(ctx context.Context, sessionID string) (services.ComboSessionView, error)
	confirmFunc     func(ctx context.Context, cmd services.ConfirmComboCommand) (services.ComboConfirmation, error)
	discardFunc     func(ctx context.Context, sessionID string) error
}

func (s *stubComboService) OpenSession(ctx context.Context, cmd services.OpenComboSessionCommand) (services.ComboSessionView, error) {
	if s.openFunc != nil {
		return s.openFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) GetSession(ctx context.Context, sessionID string) (services.ComboSessionView, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, sessionID)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) SelectCategory(ctx context.Context, cmd services.SelectCategoryCommand) (services.ComboSessionView, error) {
	if s.categoryFunc != nil {
		return s.categoryFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) SelectSpirit(ctx context.Context, cmd services.SelectSpiritCommand) (services.ComboSessionView, error) {
	if s.spiritFunc != nil {
		return s.spiritFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) SelectPackOption(ctx context.Context, cmd services.SelectPackOptionCommand) (services.ComboSessionView, error) {
	if s.packOptionFunc != nil {
		return s.packOptionFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) SelectEnergyDrink(ctx context.Context, cmd services.SelectEnergyDrinkCommand) (services.ComboSessionView, error) {
	if s.energyDrinkFunc != nil {
		return s.energyDrinkFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) SelectIce(ctx context.Context, cmd services.SelectIceCommand) (services.ComboSessionView, error) {
	if s.iceFunc != nil {
		return s.iceFunc(ctx, cmd)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) Reset(ctx context.Context, sessionID string) (services.ComboSessionView, error) {
	if s.resetFunc != nil {
		return s.resetFunc(ctx, sessionID)
	}
	return services.ComboSessionView{}, errors.New("not implemented")
}

func (s *stubComboService) Confirm(ctx context.Context, cmd services.ConfirmComboCommand) (services.ComboConfirmation, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, cmd)
	}
	return services.ComboConfirmation{}, errors.New("not implemented")
}

func (s *stubComboService) Discard(ctx context.Context, sessionID string) error {
	if s.discardFunc != nil {
		return s.discardFunc(ctx, sessionID)
	}
	return errors.New("not implemented")
}

func comboTestView(sessionID string) services.ComboSessionView {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return services.ComboSessionView{
		SessionID: sessionID,
		UserID:    "user-1",
		CreatedAt: created,
		ExpiresAt: created.Add(30 * time.Minute),
		Selection: domain.NewComboSelection(4),
		Quote: domain.ComboQuote{
			Currency:            "BRL",
			DiscountBasisPoints: domain.ComboDiscountBasisPoints,
		},
		Candidates: services.ComboCandidateView{
			Categories: []services.Category{{ID: "cat-gin", Name: "Gin", Active: true}},
			Spirits:    []services.Product{{ID: "spirit-1", Name: "Gin Tanqueray", Price: 5000, Currency: "BRL"}},
			PackSizes:  []int{4, 5},
			IceBySlot:  make([][]services.Product, 4),
		},
		IceSlotSize: 4,
	}
}

func comboTestRouter(service services.ComboService) http.Handler {
	router := chi.NewRouter()
	router.Route("/combo", NewComboHandlers(nil, service).Routes)
	return router
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-1"}))
}

func TestComboHandlersOpenSession(t *testing.T) {
	service := &stubComboService{
		openFunc: func(_ context.Context, cmd services.OpenComboSessionCommand) (services.ComboSessionView, error) {
			if cmd.UserID != "user-1" {
				t.Fatalf("unexpected user id %q", cmd.UserID)
			}
			return comboTestView("sess-1"), nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/combo/sessions", ""))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var resp comboSessionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Fatalf("expected session id sess-1, got %q", resp.SessionID)
	}
	if resp.Selection.PackOption.Kind != string(domain.PackKindSingleBottle) {
		t.Fatalf("expected default single bottle option, got %q", resp.Selection.PackOption.Kind)
	}
	if resp.Selection.IceSlotCount != 4 || len(resp.Selection.IceSlots) != 4 {
		t.Fatalf("expected 4 ice slots, got %+v", resp.Selection)
	}
	if len(resp.Candidates.PackSizes) != 2 {
		t.Fatalf("expected pack sizes in candidates, got %+v", resp.Candidates)
	}
}

func TestComboHandlersOpenSessionUnauthenticated(t *testing.T) {
	router := comboTestRouter(&stubComboService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/combo/sessions", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestComboHandlersSelectSpirit(t *testing.T) {
	service := &stubComboService{
		spiritFunc: func(_ context.Context, cmd services.SelectSpiritCommand) (services.ComboSessionView, error) {
			if cmd.SessionID != "sess-1" || cmd.ProductID != "spirit-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return comboTestView("sess-1"), nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/spirit", `{"product_id":"spirit-1"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestComboHandlersSelectSpiritInvalidJSON(t *testing.T) {
	router := comboTestRouter(&stubComboService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/spirit", "{not json"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestComboHandlersSelectPackOption(t *testing.T) {
	service := &stubComboService{
		packOptionFunc: func(_ context.Context, cmd services.SelectPackOptionCommand) (services.ComboSessionView, error) {
			if cmd.Option != domain.MultiCanPack(4) {
				t.Fatalf("expected 4-can pack option, got %+v", cmd.Option)
			}
			return comboTestView("sess-1"), nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/pack-option", `{"kind":"can_pack","pack_size":4}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestComboHandlersSelectPackOptionUnknownKind(t *testing.T) {
	router := comboTestRouter(&stubComboService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/pack-option", `{"kind":"bundle"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestComboHandlersSelectIce(t *testing.T) {
	service := &stubComboService{
		iceFunc: func(_ context.Context, cmd services.SelectIceCommand) (services.ComboSessionView, error) {
			if cmd.Slot != 2 || cmd.ProductID != "ice-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return comboTestView("sess-1"), nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/ice/2", `{"product_id":"ice-1"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestComboHandlersSelectIceRejectsNonIntegerSlot(t *testing.T) {
	router := comboTestRouter(&stubComboService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/combo/sessions/sess-1/ice/left", `{"product_id":"ice-1"}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestComboHandlersConfirm(t *testing.T) {
	service := &stubComboService{
		confirmFunc: func(_ context.Context, cmd services.ConfirmComboCommand) (services.ComboConfirmation, error) {
			if cmd.SessionID != "sess-1" || cmd.UserID != "user-1" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.ComboConfirmation{
				Record: domain.ComboRecord{
					ID:                  "combo-1",
					Currency:            "BRL",
					PackOption:          domain.MultiCanPack(4),
					OriginalTotal:       8600,
					DiscountedTotal:     8170,
					DiscountAmount:      430,
					DiscountBasisPoints: 500,
				},
				Cart: domain.Cart{ID: "cart-1", Currency: "BRL"},
			}, nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/combo/sessions/sess-1/confirm", ""))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	var resp comboConfirmationPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Record.ID != "combo-1" || resp.Record.DiscountedTotal != 8170 {
		t.Fatalf("unexpected record payload %+v", resp.Record)
	}
	if resp.Cart.ID != "cart-1" {
		t.Fatalf("unexpected cart payload %+v", resp.Cart)
	}
}

func TestComboHandlersConfirmIncomplete(t *testing.T) {
	incomplete := &stubComboService{
		confirmFunc: func(context.Context, services.ConfirmComboCommand) (services.ComboConfirmation, error) {
			return services.ComboConfirmation{}, services.ErrComboIncomplete
		},
	}
	router := comboTestRouter(incomplete)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/combo/sessions/sess-1/confirm", ""))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "combo_incomplete" {
		t.Fatalf("expected combo_incomplete error code, got %v", resp["error"])
	}
}

func TestComboHandlersGetSessionNotFound(t *testing.T) {
	service := &stubComboService{
		getFunc: func(context.Context, string) (services.ComboSessionView, error) {
			return services.ComboSessionView{}, services.ErrComboNotFound
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/combo/sessions/missing/", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestComboHandlersDiscard(t *testing.T) {
	service := &stubComboService{
		discardFunc: func(_ context.Context, sessionID string) error {
			if sessionID != "sess-1" {
				t.Fatalf("unexpected session id %q", sessionID)
			}
			return nil
		},
	}
	router := comboTestRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/combo/sessions/sess-1/", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}

func TestComboHandlersServiceUnavailable(t *testing.T) {
	router := comboTestRouter(&stubComboService{
		openFunc: func(context.Context, services.OpenComboSessionCommand) (services.ComboSessionView, error) {
			return services.ComboSessionView{}, services.ErrComboUnavailable
		},
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/combo/sessions", ""))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestComboHandlersConfirmIdempotencyReplay(t *testing.T) {
	calls := 0
	service := &stubComboService{
		confirmFunc: func(_ context.Context, cmd services.ConfirmComboCommand) (services.ComboConfirmation, error) {
			calls++
			return services.ComboConfirmation{
				Record: domain.ComboRecord{ID: "combo-1", Currency: "BRL", DiscountedTotal: 8170},
				Cart:   services.Cart{ID: "cart-1", UserID: cmd.UserID},
			}, nil
		},
		openFunc: func(context.Context, services.OpenComboSessionCommand) (services.ComboSessionView, error) {
			return comboTestView("sess-1"), nil
		},
	}
	guard := idempotency.Middleware(idempotency.NewMemoryStore())
	router := chi.NewRouter()
	router.Route("/combo", NewComboHandlers(nil, service, WithConfirmMiddlewares(guard)).Routes)

	confirm := func() *httptest.ResponseRecorder {
		req := authedRequest(http.MethodPost, "/combo/sessions/sess-1/confirm", "")
		req.Header.Set("Idempotency-Key", "confirm-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := confirm()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", first.Code)
	}
	second := confirm()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", second.Code)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replay marker on the second response")
	}
	if calls != 1 {
		t.Fatalf("expected the service to run once, got %d", calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay must return the stored body")
	}
}

func TestComboHandlersConfirmRequiresIdempotencyKey(t *testing.T) {
	service := &stubComboService{
		confirmFunc: func(context.Context, services.ConfirmComboCommand) (services.ComboConfirmation, error) {
			return services.ComboConfirmation{Record: domain.ComboRecord{ID: "combo-1"}}, nil
		},
		openFunc: func(context.Context, services.OpenComboSessionCommand) (services.ComboSessionView, error) {
			return comboTestView("sess-1"), nil
		},
	}
	guard := idempotency.Middleware(idempotency.NewMemoryStore())
	router := chi.NewRouter()
	router.Route("/combo", NewComboHandlers(nil, service, WithConfirmMiddlewares(guard)).Routes)

	req := authedRequest(http.MethodPost, "/combo/sessions/sess-1/confirm", "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without a key, got %d", rr.Code)
	}

	// The guard is scoped to confirm; opening a session needs no key.
	open := authedRequest(http.MethodPost, "/combo/sessions", "")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, open)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 opening a session, got %d", rr.Code)
	}
}
