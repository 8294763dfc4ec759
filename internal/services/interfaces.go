package services

import (
	"context"
	"time"

	domain "github.com/adega-club/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Product            = domain.Product
	Category           = domain.Category
	CatalogSnapshot    = domain.CatalogSnapshot
	ComboCandidates    = domain.ComboCandidates
	ComboSelection     = domain.ComboSelection
	ComboQuote         = domain.ComboQuote
	ComboRecord        = domain.ComboRecord
	ComboLine          = domain.ComboLine
	PackOption         = domain.PackOption
	RoleClass          = domain.RoleClass
	RoleSet            = domain.RoleSet
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	SystemHealthReport = domain.SystemHealthReport
)

// ComboService drives configurator sessions from opening through confirmation.
// Selection calls return the refreshed session view so handlers render
// candidates and quote from one state read.
type ComboService interface {
	OpenSession(ctx context.Context, cmd OpenComboSessionCommand) (ComboSessionView, error)
	GetSession(ctx context.Context, sessionID string) (ComboSessionView, error)
	SelectCategory(ctx context.Context, cmd SelectCategoryCommand) (ComboSessionView, error)
	SelectSpirit(ctx context.Context, cmd SelectSpiritCommand) (ComboSessionView, error)
	SelectPackOption(ctx context.Context, cmd SelectPackOptionCommand) (ComboSessionView, error)
	SelectEnergyDrink(ctx context.Context, cmd SelectEnergyDrinkCommand) (ComboSessionView, error)
	SelectIce(ctx context.Context, cmd SelectIceCommand) (ComboSessionView, error)
	Reset(ctx context.Context, sessionID string) (ComboSessionView, error)
	Confirm(ctx context.Context, cmd ConfirmComboCommand) (ComboConfirmation, error)
	Discard(ctx context.Context, sessionID string) error
}

// CatalogService serves catalog reads, snapshot fetching, and admin writes.
type CatalogService interface {
	Snapshot(ctx context.Context) (CatalogSnapshot, error)
	Candidates(ctx context.Context) (CatalogSnapshot, ComboCandidates, error)
	InvalidateSnapshot(ctx context.Context) error
	ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	IssueProductImageUpload(ctx context.Context, cmd ProductImageUploadCommand) (SignedUploadResponse, error)
}

// CartService manages mutable cart state for the shopper.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (Cart, error)
	AddProduct(ctx context.Context, cmd AddCartProductCommand) (Cart, error)
	AddCombo(ctx context.Context, cmd AddCartComboCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// CheckoutService coordinates PSP session creation for the cart contents.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSessionResult, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// ComboEventPublisher emits combo lifecycle events to interested consumers.
type ComboEventPublisher interface {
	ComboConfirmed(ctx context.Context, event ComboConfirmedEvent) error
	ComboRejected(ctx context.Context, event ComboRejectedEvent) error
}

// Command and result DTOs -----------------------------------------------------

// OpenComboSessionCommand starts a configurator session for a shopper.
type OpenComboSessionCommand struct {
	UserID string
}

// SelectCategoryCommand narrows spirit candidates to one category. An empty
// CategoryID clears the filter.
type SelectCategoryCommand struct {
	SessionID  string
	CategoryID string
}

// SelectSpiritCommand picks or toggles the spirit for the session.
type SelectSpiritCommand struct {
	SessionID string
	ProductID string
}

// SelectPackOptionCommand switches the energy-drink purchase unit.
type SelectPackOptionCommand struct {
	SessionID string
	Option    PackOption
}

// SelectEnergyDrinkCommand picks or toggles the energy drink for the session.
type SelectEnergyDrinkCommand struct {
	SessionID string
	ProductID string
}

// SelectIceCommand picks or toggles an ice product in one slot. Slot indexes
// are zero-based.
type SelectIceCommand struct {
	SessionID string
	Slot      int
	ProductID string
}

// ConfirmComboCommand assembles the session into an immutable record.
type ConfirmComboCommand struct {
	SessionID string
	UserID    string
}

// ComboSessionView is the full read model handlers render after any mutation.
type ComboSessionView struct {
	SessionID   string
	UserID      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Selection   ComboSelection
	Quote       ComboQuote
	Candidates  ComboCandidateView
	IceSlotSize int
}

// ComboCandidateView lists the pickable products for each pending role given
// the current selection.
type ComboCandidateView struct {
	Categories   []Category
	Spirits      []Product
	EnergyDrinks []Product
	PackSizes    []int
	IceBySlot    [][]Product
}

// ComboConfirmation is the outcome of a successful Confirm call.
type ComboConfirmation struct {
	Record ComboRecord
	Cart   Cart
}

// ComboConfirmedEvent is published after a combo lands in a cart.
type ComboConfirmedEvent struct {
	Record    ComboRecord
	UserID    string
	SessionID string
	Timestamp time.Time
}

// ComboRejectedEvent is published when a confirmation attempt fails validation.
type ComboRejectedEvent struct {
	SessionID string
	UserID    string
	Reasons   []string
	Timestamp time.Time
}

// ProductFilter narrows the public product listing.
type ProductFilter struct {
	CategoryID    string
	ActiveOnly    bool
	ComboEligible *bool
	SortBy        string
	SortOrder     SortOrder
	Pagination    Pagination
}

// UpsertProductCommand creates or updates a catalog product.
type UpsertProductCommand struct {
	ProductID      string
	Name           string
	Description    string
	Price          int64
	Currency       string
	CategoryID     string
	Active         bool
	Stock          int
	ComboEligible  bool
	Prepared       bool
	ImagePath      string
	Metadata       map[string]string
	ExpectedUpdate *time.Time
}

// UpsertCategoryCommand creates or updates a catalog category.
type UpsertCategoryCommand struct {
	CategoryID string
	Name       string
	Active     bool
}

// ProductImageUploadCommand requests a signed upload URL for a product image.
type ProductImageUploadCommand struct {
	ProductID   string
	FileName    string
	ContentType string
}

// SignedUploadResponse carries a time-limited upload URL and the object path
// the caller should store back on the product.
type SignedUploadResponse struct {
	URL        string
	Method     string
	Headers    map[string]string
	ObjectPath string
	ExpiresAt  time.Time
}

// AddCartProductCommand appends a plain product line to the cart.
type AddCartProductCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// AddCartComboCommand appends an assembled combo record to the cart.
type AddCartComboCommand struct {
	UserID string
	Record ComboRecord
}

// RemoveCartItemCommand removes one line from the cart.
type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

// CreateCheckoutSessionCommand opens a PSP checkout for the user's cart.
type CreateCheckoutSessionCommand struct {
	UserID     string
	SuccessURL string
	CancelURL  string
}

// CheckoutSessionResult references the PSP-hosted checkout page.
type CheckoutSessionResult struct {
	SessionID   string
	CheckoutURL string
	Amount      int64
	Currency    string
	ExpiresAt   time.Time
}
