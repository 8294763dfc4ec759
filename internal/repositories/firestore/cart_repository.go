package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/adega-club/api/internal/domain"
	pfirestore "github.com/adega-club/api/internal/platform/firestore"
	"github.com/adega-club/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts within Firestore. Items, including assembled
// combo records, are embedded in the cart document so a single optimistic lock
// covers the whole cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// GetCart loads the cart for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(doc.ID, doc.Data, doc.UpdateTime), nil
}

// UpsertCart persists the whole cart document using the user ID as identifier.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}

	cartID := strings.TrimSpace(cart.ID)
	if cartID == "" {
		cartID = strings.TrimSpace(cart.UserID)
	}
	if cartID == "" {
		return domain.Cart{}, errors.New("cart repository: cart id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:      encodeCartItems(cart.Items),
		ItemsCount: len(cart.Items),
		Metadata:   cloneStringMap(cart.Metadata),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}

	var (
		result pfirestore.MutationResult
		err    error
	)
	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err = r.base.Set(ctx, cartID, doc)
	} else {
		updates := []firestore.Update{
			{Path: "currency", Value: doc.Currency},
			{Path: "items", Value: doc.Items},
			{Path: "itemsCount", Value: doc.ItemsCount},
			{Path: "updatedAt", Value: doc.UpdatedAt},
		}
		if len(doc.Metadata) == 0 {
			updates = append(updates, firestore.Update{Path: "metadata", Value: firestore.Delete})
		} else {
			updates = append(updates, firestore.Update{Path: "metadata", Value: doc.Metadata})
		}
		result, err = r.base.Update(ctx, cartID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	}
	if err != nil {
		return domain.Cart{}, err
	}

	saved := decodeCartDocument(cartID, doc, result.UpdateTime)
	return saved, nil
}

// ReplaceItems swaps the item array of an existing cart document in a single write.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	updates := []firestore.Update{
		{Path: "items", Value: encodeCartItems(items)},
		{Path: "itemsCount", Value: len(items)},
		{Path: "updatedAt", Value: now},
	}
	if _, err := r.base.Update(ctx, uid, updates); err != nil {
		return domain.Cart{}, err
	}
	return r.GetCart(ctx, uid)
}

func decodeCartDocument(id string, doc cartDocument, updateTime time.Time) domain.Cart {
	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = doc.UpdatedAt
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	return domain.Cart{
		ID:        id,
		UserID:    id,
		Currency:  strings.ToUpper(strings.TrimSpace(doc.Currency)),
		Items:     decodeCartItems(doc.Items),
		Metadata:  cloneStringMap(doc.Metadata),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	out := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		doc := cartItemDocument{
			ID:        strings.TrimSpace(item.ID),
			Kind:      string(item.Kind),
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Currency:  strings.ToUpper(strings.TrimSpace(item.Currency)),
			AddedAt:   item.AddedAt.UTC(),
		}
		if item.Combo != nil {
			doc.Combo = encodeComboRecord(*item.Combo)
		}
		out = append(out, doc)
	}
	return out
}

func decodeCartItems(docs []cartItemDocument) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		item := domain.CartItem{
			ID:        doc.ID,
			Kind:      domain.CartItemKind(doc.Kind),
			ProductID: doc.ProductID,
			Name:      doc.Name,
			Quantity:  doc.Quantity,
			UnitPrice: doc.UnitPrice,
			LineTotal: doc.LineTotal,
			Currency:  doc.Currency,
			AddedAt:   doc.AddedAt,
		}
		if item.Kind == "" {
			item.Kind = domain.CartItemProduct
		}
		if doc.Combo != nil {
			combo := decodeComboRecord(*doc.Combo)
			item.Combo = &combo
		}
		items = append(items, item)
	}
	return items
}

func encodeComboRecord(record domain.ComboRecord) *comboRecordDocument {
	doc := &comboRecordDocument{
		ID:                  record.ID,
		CreatedAt:           record.CreatedAt.UTC(),
		Currency:            record.Currency,
		CategoryID:          record.CategoryID,
		PackKind:            string(record.PackOption.Kind),
		PackSize:            record.PackOption.PackSize,
		Spirit:              encodeComboLine(record.Spirit),
		EnergyDrink:         encodeComboLine(record.EnergyDrink),
		OriginalTotal:       record.OriginalTotal,
		DiscountedTotal:     record.DiscountedTotal,
		DiscountAmount:      record.DiscountAmount,
		DiscountBasisPoints: record.DiscountBasisPoints,
	}
	doc.Ice = make([]comboLineDocument, 0, len(record.Ice))
	for _, line := range record.Ice {
		doc.Ice = append(doc.Ice, encodeComboLine(line))
	}
	return doc
}

func decodeComboRecord(doc comboRecordDocument) domain.ComboRecord {
	record := domain.ComboRecord{
		ID:         doc.ID,
		CreatedAt:  doc.CreatedAt,
		Currency:   doc.Currency,
		CategoryID: doc.CategoryID,
		PackOption: domain.PackOption{
			Kind:     domain.PackKind(doc.PackKind),
			PackSize: doc.PackSize,
		},
		Spirit:              decodeComboLine(doc.Spirit),
		EnergyDrink:         decodeComboLine(doc.EnergyDrink),
		OriginalTotal:       doc.OriginalTotal,
		DiscountedTotal:     doc.DiscountedTotal,
		DiscountAmount:      doc.DiscountAmount,
		DiscountBasisPoints: doc.DiscountBasisPoints,
	}
	record.Ice = make([]domain.ComboLine, 0, len(doc.Ice))
	for _, line := range doc.Ice {
		record.Ice = append(record.Ice, decodeComboLine(line))
	}
	return record
}

func encodeComboLine(line domain.ComboLine) comboLineDocument {
	return comboLineDocument{
		ProductID:    line.Product.ID,
		ProductName:  line.Product.Name,
		CategoryID:   line.Product.CategoryID,
		CategoryName: line.Product.CategoryName,
		Role:         string(line.Role),
		Quantity:     line.Quantity,
		UnitPrice:    line.UnitPrice,
		LineTotal:    line.LineTotal,
		Currency:     line.Product.Currency,
	}
}

func decodeComboLine(doc comboLineDocument) domain.ComboLine {
	return domain.ComboLine{
		Product: domain.Product{
			ID:           doc.ProductID,
			Name:         doc.ProductName,
			Price:        doc.UnitPrice,
			Currency:     doc.Currency,
			CategoryID:   doc.CategoryID,
			CategoryName: doc.CategoryName,
		},
		Role:      domain.RoleClass(doc.Role),
		Quantity:  doc.Quantity,
		UnitPrice: doc.UnitPrice,
		LineTotal: doc.LineTotal,
	}
}

type cartDocument struct {
	Currency   string             `firestore:"currency"`
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	Metadata   map[string]string  `firestore:"metadata,omitempty"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID        string               `firestore:"id"`
	Kind      string               `firestore:"kind"`
	ProductID string               `firestore:"productId,omitempty"`
	Name      string               `firestore:"name"`
	Quantity  int                  `firestore:"quantity"`
	UnitPrice int64                `firestore:"unitPrice"`
	LineTotal int64                `firestore:"lineTotal"`
	Currency  string               `firestore:"currency"`
	Combo     *comboRecordDocument `firestore:"combo,omitempty"`
	AddedAt   time.Time            `firestore:"addedAt"`
}

type comboRecordDocument struct {
	ID                  string              `firestore:"id"`
	CreatedAt           time.Time           `firestore:"createdAt"`
	Currency            string              `firestore:"currency"`
	CategoryID          string              `firestore:"categoryId,omitempty"`
	PackKind            string              `firestore:"packKind"`
	PackSize            int                 `firestore:"packSize,omitempty"`
	Spirit              comboLineDocument   `firestore:"spirit"`
	EnergyDrink         comboLineDocument   `firestore:"energyDrink"`
	Ice                 []comboLineDocument `firestore:"ice"`
	OriginalTotal       int64               `firestore:"originalTotal"`
	DiscountedTotal     int64               `firestore:"discountedTotal"`
	DiscountAmount      int64               `firestore:"discountAmount"`
	DiscountBasisPoints int                 `firestore:"discountBasisPoints"`
}

type comboLineDocument struct {
	ProductID    string `firestore:"productId"`
	ProductName  string `firestore:"productName"`
	CategoryID   string `firestore:"categoryId,omitempty"`
	CategoryName string `firestore:"categoryName,omitempty"`
	Role         string `firestore:"role"`
	Quantity     int    `firestore:"quantity"`
	UnitPrice    int64  `firestore:"unitPrice"`
	LineTotal    int64  `firestore:"lineTotal"`
	Currency     string `firestore:"currency"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
