package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Product is a catalog entry as sold by the shop, priced in minor currency units.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         int64
	Currency      string
	CategoryID    string
	CategoryName  string
	Active        bool
	Stock         int
	ComboEligible bool
	Prepared      bool
	ImagePath     string
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Category groups catalog products for browsing and combo spirit selection.
type Category struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleClass tags a product with the combo role it can fill.
type RoleClass string

const (
	// RoleSpirit marks base spirits such as gin, vodka, or cachaça.
	RoleSpirit RoleClass = "spirit"
	// RoleEnergyDrink2L marks large-bottle energy drink variants.
	RoleEnergyDrink2L RoleClass = "energy_drink_2l"
	// RoleEnergyDrinkPack marks energy drinks sold as multi-can packs.
	RoleEnergyDrinkPack RoleClass = "energy_drink_pack"
	// RoleIce marks ice products usable in combo slots.
	RoleIce RoleClass = "ice"
)

// RoleSet lists the combo roles a single product qualifies for.
type RoleSet []RoleClass

// Has reports whether the set contains the given role.
func (s RoleSet) Has(role RoleClass) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// IceSizeClass partitions ice candidates by sales unit.
type IceSizeClass string

const (
	// IceSizeStandard is a single-unit bag suitable for one combo slot.
	IceSizeStandard IceSizeClass = "standard"
	// IceSizeBulkBag is a large multi-kilo bag, browse-only for combos.
	IceSizeBulkBag IceSizeClass = "bulk_bag"
)

// PackKind distinguishes the energy-drink purchase units.
type PackKind string

const (
	// PackKindSingleBottle is one large bottle.
	PackKindSingleBottle PackKind = "single_bottle"
	// PackKindCanPack is a pack of individual cans.
	PackKindCanPack PackKind = "can_pack"
)

// PackOption describes the energy-drink purchase unit chosen for a combo.
type PackOption struct {
	Kind PackKind
	// PackSize is the number of cans for PackKindCanPack, zero otherwise.
	PackSize int
}

// SingleLargeBottle returns the large-bottle pack option, the configurator default.
func SingleLargeBottle() PackOption {
	return PackOption{Kind: PackKindSingleBottle}
}

// MultiCanPack returns a can-pack option of the given size.
func MultiCanPack(size int) PackOption {
	return PackOption{Kind: PackKindCanPack, PackSize: size}
}

// Quantity resolves the stock units one combo consumes for this option.
func (o PackOption) Quantity() int {
	if o.Kind == PackKindCanPack && o.PackSize > 0 {
		return o.PackSize
	}
	return 1
}

// Role resolves the candidate role implied by this option.
func (o PackOption) Role() RoleClass {
	if o.Kind == PackKindCanPack {
		return RoleEnergyDrinkPack
	}
	return RoleEnergyDrink2L
}

// Valid reports whether the option is one of the supported shapes.
func (o PackOption) Valid() bool {
	switch o.Kind {
	case PackKindSingleBottle:
		return o.PackSize == 0
	case PackKindCanPack:
		return o.PackSize >= 2
	default:
		return false
	}
}

// IceSlot is one of the fixed ice positions in a combo selection.
type IceSlot struct {
	Product *Product
}

// Filled reports whether the slot holds a product.
func (s IceSlot) Filled() bool {
	return s.Product != nil
}

// ComboSelection is the in-progress working state of one configurator session.
type ComboSelection struct {
	CategoryID  string
	Spirit      *Product
	PackOption  PackOption
	EnergyDrink *Product
	IceSlots    []IceSlot
}

// NewComboSelection returns an empty selection with the default pack option
// and the given number of ice slots.
func NewComboSelection(iceSlots int) ComboSelection {
	if iceSlots < 0 {
		iceSlots = 0
	}
	return ComboSelection{
		PackOption: SingleLargeBottle(),
		IceSlots:   make([]IceSlot, iceSlots),
	}
}

// FilledIceSlots counts the slots currently holding a product.
func (s ComboSelection) FilledIceSlots() int {
	filled := 0
	for _, slot := range s.IceSlots {
		if slot.Filled() {
			filled++
		}
	}
	return filled
}

// IsComplete derives completeness from the fields; no status flag is stored.
func (s ComboSelection) IsComplete() bool {
	if s.Spirit == nil || s.EnergyDrink == nil {
		return false
	}
	return len(s.IceSlots) > 0 && s.FilledIceSlots() == len(s.IceSlots)
}

// CatalogSnapshot is an immutable point-in-time view of the catalog.
type CatalogSnapshot struct {
	FetchedAt  time.Time
	Products   []Product
	Categories []Category
}

// CategoryByID looks up a category within the snapshot.
func (s CatalogSnapshot) CategoryByID(id string) (Category, bool) {
	for _, category := range s.Categories {
		if category.ID == id {
			return category, true
		}
	}
	return Category{}, false
}

// ProductByID looks up a product within the snapshot.
func (s CatalogSnapshot) ProductByID(id string) (Product, bool) {
	for _, product := range s.Products {
		if product.ID == id {
			return product, true
		}
	}
	return Product{}, false
}

// ComboCandidates holds the role-tagged subsets derived from one snapshot.
type ComboCandidates struct {
	Spirits      []Product
	LargeBottles []Product
	CanPacks     map[int][]Product
	StandardIce  []Product
	BulkIce      []Product
	Roles        map[string]RoleSet
}

// EnergyDrinksFor returns the candidate list implied by the pack option.
func (c ComboCandidates) EnergyDrinksFor(option PackOption) []Product {
	if option.Kind == PackKindCanPack {
		return c.CanPacks[option.Quantity()]
	}
	return c.LargeBottles
}

// Cart carries the items a shopper has staged for checkout.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal sums the line totals of the cart items.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal
	}
	return total
}

// CartItemKind distinguishes plain products from assembled combos in a cart.
type CartItemKind string

const (
	// CartItemProduct is a single catalog product line.
	CartItemProduct CartItemKind = "product"
	// CartItemCombo is an assembled combo record line.
	CartItemCombo CartItemKind = "combo"
)

// CartItem is one priced line within a cart.
type CartItem struct {
	ID        string
	Kind      CartItemKind
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
	LineTotal int64
	Currency  string
	Combo     *ComboRecord
	AddedAt   time.Time
}

// CursorPage wraps a result page together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
