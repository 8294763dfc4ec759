package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adega-club/api/internal/domain"
)

var (
	errComboCatalogRequired = errors.New("combo service: catalog is required")
	errComboCartRequired    = errors.New("combo service: cart is required")
	errComboClockRequired   = errors.New("combo service: clock is required")
)

// ErrComboInvalidInput indicates the caller supplied invalid input.
var ErrComboInvalidInput = errors.New("combo service: invalid input")

// ErrComboNotFound indicates the session does not exist or has expired.
var ErrComboNotFound = errors.New("combo service: session not found")

// ErrComboUnavailable indicates the combo service cannot fulfil the request due to missing dependencies or backend issues.
var ErrComboUnavailable = errors.New("combo service: unavailable")

// ErrComboIncomplete indicates a confirmation attempt on a selection that is
// still missing picks. This is an expected user-input condition, not a fault.
var ErrComboIncomplete = errors.New("combo service: selection incomplete")

type comboCatalogProvider interface {
	Candidates(ctx context.Context) (CatalogSnapshot, ComboCandidates, error)
}

type comboCartSink interface {
	AddCombo(ctx context.Context, cmd AddCartComboCommand) (Cart, error)
}

// ComboServiceDeps wires the catalog, cart, and event dependencies for the configurator.
type ComboServiceDeps struct {
	Catalog      comboCatalogProvider
	Cart         comboCartSink
	Events       ComboEventPublisher
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(context.Context, string, map[string]any)
	IceSlotCount int
	CanPackSizes []int
	SessionTTL   time.Duration
	Currency     string
}

// comboSession owns the catalog snapshot it was opened against. Candidate
// lists and validation use the captured snapshot for the session's whole
// lifetime; a fresh snapshot is only taken by opening a new session.
type comboSession struct {
	id         string
	userID     string
	createdAt  time.Time
	expiresAt  time.Time
	selection  domain.ComboSelection
	snapshot   CatalogSnapshot
	candidates ComboCandidates
}

type comboService struct {
	catalog      comboCatalogProvider
	cart         comboCartSink
	events       ComboEventPublisher
	newID        func() string
	now          func() time.Time
	logger       func(context.Context, string, map[string]any)
	iceSlotCount int
	canPackSizes []int
	sessionTTL   time.Duration
	currency     string

	mu       sync.Mutex
	sessions map[string]*comboSession
}

// NewComboService constructs a ComboService enforcing dependency validation.
func NewComboService(deps ComboServiceDeps) (ComboService, error) {
	if deps.Catalog == nil {
		return nil, errComboCatalogRequired
	}
	if deps.Cart == nil {
		return nil, errComboCartRequired
	}
	if deps.Clock == nil {
		return nil, errComboClockRequired
	}

	iceSlotCount := deps.IceSlotCount
	if iceSlotCount <= 0 {
		iceSlotCount = 4
	}
	canPackSizes := make([]int, 0, len(deps.CanPackSizes))
	for _, size := range deps.CanPackSizes {
		if size >= 2 {
			canPackSizes = append(canPackSizes, size)
		}
	}
	if len(canPackSizes) == 0 {
		canPackSizes = []int{4, 5}
	}
	sort.Ints(canPackSizes)

	sessionTTL := deps.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "BRL"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &comboService{
		catalog:      deps.Catalog,
		cart:         deps.Cart,
		events:       deps.Events,
		newID:        idGen,
		now:          func() time.Time { return deps.Clock().UTC() },
		logger:       logger,
		iceSlotCount: iceSlotCount,
		canPackSizes: canPackSizes,
		sessionTTL:   sessionTTL,
		currency:     currency,
		sessions:     make(map[string]*comboSession),
	}, nil
}

// OpenSession starts an empty configurator session for the shopper.
func (s *comboService) OpenSession(ctx context.Context, cmd OpenComboSessionCommand) (ComboSessionView, error) {
	if s == nil {
		return ComboSessionView{}, ErrComboUnavailable
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return ComboSessionView{}, fmt.Errorf("%w: user id is required", ErrComboInvalidInput)
	}

	snapshot, candidates, err := s.catalog.Candidates(ctx)
	if err != nil {
		return ComboSessionView{}, s.translateCatalogError(ctx, err)
	}

	now := s.now()
	session := &comboSession{
		id:         s.newID(),
		userID:     userID,
		createdAt:  now,
		expiresAt:  now.Add(s.sessionTTL),
		selection:  domain.NewComboSelection(s.iceSlotCount),
		snapshot:   snapshot,
		candidates: candidates,
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[session.id] = session
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// GetSession returns the current view of an open session.
func (s *comboService) GetSession(_ context.Context, sessionID string) (ComboSessionView, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return ComboSessionView{}, err
	}
	return s.renderSession(session), nil
}

// SelectCategory narrows spirit candidates to one category and clears a spirit
// picked under a previous category.
func (s *comboService) SelectCategory(_ context.Context, cmd SelectCategoryCommand) (ComboSessionView, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	categoryID := strings.TrimSpace(cmd.CategoryID)

	s.mu.Lock()
	if session.selection.CategoryID != categoryID {
		session.selection.CategoryID = categoryID
		session.selection.Spirit = nil
	}
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// SelectSpirit sets, toggles, or clears the spirit pick. An empty product id
// clears; selecting the current spirit again deselects it.
func (s *comboService) SelectSpirit(_ context.Context, cmd SelectSpiritCommand) (ComboSessionView, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)

	s.mu.Lock()
	if productID == "" || (session.selection.Spirit != nil && session.selection.Spirit.ID == productID) {
		session.selection.Spirit = nil
		s.mu.Unlock()
		return s.renderSession(session), nil
	}
	product, ok := findProduct(SpiritsInCategory(session.candidates, session.selection.CategoryID), productID)
	if !ok {
		s.mu.Unlock()
		return ComboSessionView{}, fmt.Errorf("%w: product %q is not a spirit candidate", ErrComboInvalidInput, productID)
	}
	session.selection.Spirit = &product
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// SelectPackOption switches the energy-drink purchase unit. The chosen energy
// drink is always cleared since it may not satisfy the new unit's constraints.
func (s *comboService) SelectPackOption(_ context.Context, cmd SelectPackOptionCommand) (ComboSessionView, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	option := cmd.Option
	if !option.Valid() {
		return ComboSessionView{}, fmt.Errorf("%w: unsupported pack option", ErrComboInvalidInput)
	}
	if option.Kind == domain.PackKindCanPack && !containsInt(s.canPackSizes, option.PackSize) {
		return ComboSessionView{}, fmt.Errorf("%w: unsupported pack size %d", ErrComboInvalidInput, option.PackSize)
	}

	s.mu.Lock()
	session.selection.PackOption = option
	session.selection.EnergyDrink = nil
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// SelectEnergyDrink sets, toggles, or clears the energy-drink pick within the
// candidate list implied by the current pack option. An empty product id
// clears.
func (s *comboService) SelectEnergyDrink(_ context.Context, cmd SelectEnergyDrinkCommand) (ComboSessionView, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	productID := strings.TrimSpace(cmd.ProductID)

	s.mu.Lock()
	if productID == "" || (session.selection.EnergyDrink != nil && session.selection.EnergyDrink.ID == productID) {
		session.selection.EnergyDrink = nil
		s.mu.Unlock()
		return s.renderSession(session), nil
	}
	product, ok := findProduct(session.candidates.EnergyDrinksFor(session.selection.PackOption), productID)
	if !ok {
		s.mu.Unlock()
		return ComboSessionView{}, fmt.Errorf("%w: product %q is not an energy drink candidate for the current pack option", ErrComboInvalidInput, productID)
	}
	session.selection.EnergyDrink = &product
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// SelectIce sets or clears exactly one ice slot. An empty product id empties
// the slot, and re-selecting the slot's own product toggles it empty. Products
// already filling another slot are rejected so no two slots ever hold the
// same product.
func (s *comboService) SelectIce(_ context.Context, cmd SelectIceCommand) (ComboSessionView, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	if cmd.Slot < 0 || cmd.Slot >= s.iceSlotCount {
		return ComboSessionView{}, fmt.Errorf("%w: slot %d out of range", ErrComboInvalidInput, cmd.Slot)
	}
	productID := strings.TrimSpace(cmd.ProductID)

	s.mu.Lock()
	slot := &session.selection.IceSlots[cmd.Slot]
	if productID == "" || (slot.Filled() && slot.Product.ID == productID) {
		slot.Product = nil
		s.mu.Unlock()
		return s.renderSession(session), nil
	}
	for i, other := range session.selection.IceSlots {
		if i != cmd.Slot && other.Filled() && other.Product.ID == productID {
			s.mu.Unlock()
			return ComboSessionView{}, fmt.Errorf("%w: product %q already fills another ice slot", ErrComboInvalidInput, productID)
		}
	}
	product, ok := findProduct(session.candidates.StandardIce, productID)
	if !ok {
		s.mu.Unlock()
		return ComboSessionView{}, fmt.Errorf("%w: product %q is not an ice candidate", ErrComboInvalidInput, productID)
	}
	session.selection.IceSlots[cmd.Slot].Product = &product
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// Reset returns the session to its initial empty state.
func (s *comboService) Reset(_ context.Context, sessionID string) (ComboSessionView, error) {
	session, err := s.loadSession(sessionID)
	if err != nil {
		return ComboSessionView{}, err
	}

	s.mu.Lock()
	session.selection = domain.NewComboSelection(s.iceSlotCount)
	s.mu.Unlock()

	return s.renderSession(session), nil
}

// Confirm validates the selection, assembles an immutable combo record, hands
// it to the cart, publishes the lifecycle event, and resets the session.
func (s *comboService) Confirm(ctx context.Context, cmd ConfirmComboCommand) (ComboConfirmation, error) {
	session, err := s.loadSession(cmd.SessionID)
	if err != nil {
		return ComboConfirmation{}, err
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		userID = session.userID
	}
	if userID != session.userID {
		return ComboConfirmation{}, fmt.Errorf("%w: session belongs to another user", ErrComboInvalidInput)
	}

	now := s.now()

	s.mu.Lock()
	selection := cloneSelection(session.selection)
	s.mu.Unlock()

	if reasons := missingSelections(selection); len(reasons) > 0 {
		s.publishRejected(ctx, session, reasons, now)
		return ComboConfirmation{}, fmt.Errorf("%w: %s", ErrComboIncomplete, strings.Join(reasons, ", "))
	}

	quote := QuoteSelection(selection, s.currency)
	record := domain.ComboRecord{
		ID:                  s.newID(),
		CreatedAt:           now,
		Currency:            quote.Currency,
		CategoryID:          selection.CategoryID,
		PackOption:          selection.PackOption,
		Spirit:              quote.Lines[0],
		EnergyDrink:         quote.Lines[1],
		Ice:                 append([]domain.ComboLine(nil), quote.Lines[2:]...),
		OriginalTotal:       quote.OriginalTotal,
		DiscountedTotal:     quote.DiscountedTotal,
		DiscountAmount:      quote.DiscountAmount,
		DiscountBasisPoints: quote.DiscountBasisPoints,
	}

	cart, err := s.cart.AddCombo(ctx, AddCartComboCommand{UserID: session.userID, Record: record})
	if err != nil {
		s.logger(ctx, "combo.cart_add_failed", map[string]any{
			"sessionID": session.id,
			"userID":    session.userID,
			"error":     err.Error(),
		})
		return ComboConfirmation{}, err
	}

	s.publishConfirmed(ctx, session, record, now)

	s.mu.Lock()
	session.selection = domain.NewComboSelection(s.iceSlotCount)
	s.mu.Unlock()

	s.logger(ctx, "combo.confirmed", map[string]any{
		"sessionID":       session.id,
		"userID":          session.userID,
		"comboID":         record.ID,
		"originalTotal":   record.OriginalTotal,
		"discountedTotal": record.DiscountedTotal,
	})

	return ComboConfirmation{Record: record, Cart: cart}, nil
}

// Discard drops the session entirely.
func (s *comboService) Discard(_ context.Context, sessionID string) error {
	if s == nil {
		return ErrComboUnavailable
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return fmt.Errorf("%w: session id is required", ErrComboInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrComboNotFound
	}
	delete(s.sessions, id)
	return nil
}

// StartSweeper launches a background loop removing expired sessions until the
// context is cancelled. Expired sessions are also dropped lazily on access.
func (s *comboService) StartSweeper(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := s.now()
				s.mu.Lock()
				s.sweepLocked(now)
				s.mu.Unlock()
			}
		}
	}()
}

func (s *comboService) loadSession(sessionID string) (*comboSession, error) {
	if s == nil {
		return nil, ErrComboUnavailable
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrComboInvalidInput)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrComboNotFound
	}
	if now.After(session.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrComboNotFound
	}
	session.expiresAt = now.Add(s.sessionTTL)
	return session, nil
}

func (s *comboService) sweepLocked(now time.Time) {
	for id, session := range s.sessions {
		if now.After(session.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

func (s *comboService) renderSession(session *comboSession) ComboSessionView {
	s.mu.Lock()
	selection := cloneSelection(session.selection)
	view := ComboSessionView{
		SessionID:   session.id,
		UserID:      session.userID,
		CreatedAt:   session.createdAt,
		ExpiresAt:   session.expiresAt,
		Selection:   selection,
		IceSlotSize: s.iceSlotCount,
	}
	s.mu.Unlock()

	view.Quote = QuoteSelection(selection, s.currency)
	view.Candidates = s.buildCandidateView(session.snapshot, session.candidates, selection)
	return view
}

func (s *comboService) buildCandidateView(snapshot CatalogSnapshot, candidates ComboCandidates, selection domain.ComboSelection) ComboCandidateView {
	view := ComboCandidateView{
		Spirits:      SpiritsInCategory(candidates, selection.CategoryID),
		EnergyDrinks: candidates.EnergyDrinksFor(selection.PackOption),
		PackSizes:    append([]int(nil), s.canPackSizes...),
	}

	// Only categories that actually contain spirit candidates are offered.
	seen := make(map[string]bool, len(candidates.Spirits))
	for _, spirit := range candidates.Spirits {
		if spirit.CategoryID == "" || seen[spirit.CategoryID] {
			continue
		}
		seen[spirit.CategoryID] = true
		if category, ok := snapshot.CategoryByID(spirit.CategoryID); ok {
			view.Categories = append(view.Categories, category)
		}
	}
	sort.Slice(view.Categories, func(i, j int) bool { return view.Categories[i].Name < view.Categories[j].Name })

	// Per-slot candidates exclude other slots' picks but keep the slot's own
	// selection visible so it can be toggled off.
	view.IceBySlot = make([][]domain.Product, s.iceSlotCount)
	for slot := 0; slot < s.iceSlotCount; slot++ {
		taken := make(map[string]bool, s.iceSlotCount)
		for i, other := range selection.IceSlots {
			if i != slot && other.Filled() {
				taken[other.Product.ID] = true
			}
		}
		offered := make([]domain.Product, 0, len(candidates.StandardIce))
		for _, product := range candidates.StandardIce {
			if !taken[product.ID] {
				offered = append(offered, product)
			}
		}
		view.IceBySlot[slot] = offered
	}
	return view
}

func (s *comboService) publishConfirmed(ctx context.Context, session *comboSession, record domain.ComboRecord, now time.Time) {
	if s.events == nil {
		return
	}
	event := ComboConfirmedEvent{
		Record:    record,
		UserID:    session.userID,
		SessionID: session.id,
		Timestamp: now,
	}
	if err := s.events.ComboConfirmed(ctx, event); err != nil {
		s.logger(ctx, "combo.event_publish_failed", map[string]any{
			"sessionID": session.id,
			"comboID":   record.ID,
			"error":     err.Error(),
		})
	}
}

func (s *comboService) publishRejected(ctx context.Context, session *comboSession, reasons []string, now time.Time) {
	if s.events == nil {
		return
	}
	event := ComboRejectedEvent{
		SessionID: session.id,
		UserID:    session.userID,
		Reasons:   reasons,
		Timestamp: now,
	}
	if err := s.events.ComboRejected(ctx, event); err != nil {
		s.logger(ctx, "combo.event_publish_failed", map[string]any{
			"sessionID": session.id,
			"error":     err.Error(),
		})
	}
}

func (s *comboService) translateCatalogError(ctx context.Context, err error) error {
	s.logger(ctx, "combo.catalog_unavailable", map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: catalog snapshot failed", ErrComboUnavailable)
}

func missingSelections(selection domain.ComboSelection) []string {
	var reasons []string
	if selection.Spirit == nil {
		reasons = append(reasons, "select a spirit")
	}
	if selection.EnergyDrink == nil {
		reasons = append(reasons, "select an energy drink")
	}
	if missing := len(selection.IceSlots) - selection.FilledIceSlots(); missing > 0 {
		reasons = append(reasons, fmt.Sprintf("fill %d more ice slot(s)", missing))
	}
	return reasons
}

func cloneSelection(selection domain.ComboSelection) domain.ComboSelection {
	dup := selection
	if selection.Spirit != nil {
		spirit := *selection.Spirit
		dup.Spirit = &spirit
	}
	if selection.EnergyDrink != nil {
		drink := *selection.EnergyDrink
		dup.EnergyDrink = &drink
	}
	dup.IceSlots = make([]domain.IceSlot, len(selection.IceSlots))
	for i, slot := range selection.IceSlots {
		if slot.Filled() {
			product := *slot.Product
			dup.IceSlots[i] = domain.IceSlot{Product: &product}
		}
	}
	return dup
}

func findProduct(products []domain.Product, productID string) (domain.Product, bool) {
	for _, product := range products {
		if product.ID == productID {
			return product, true
		}
	}
	return domain.Product{}, false
}

func containsInt(values []int, needle int) bool {
	for _, value := range values {
		if value == needle {
			return true
		}
	}
	return false
}
