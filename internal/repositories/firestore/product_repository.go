package firestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/adega-club/api/internal/domain"
	pfirestore "github.com/adega-club/api/internal/platform/firestore"
	"github.com/adega-club/api/internal/platform/pagination"
	"github.com/adega-club/api/internal/repositories"
)

const (
	productCollection = "catalog_products"

	productSortName  = "name"
	productSortPrice = "price"
)

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{
		base:     base,
		provider: provider,
	}, nil
}

// ListAll returns every product document without paging. Snapshot fetches use
// this so the configurator classifies against a single consistent read.
func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, decodeProductDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return products, nil
}

// List returns a filtered, ordered page of products for the public catalog surface.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	sortField := productSortName
	switch strings.ToLower(strings.TrimSpace(filter.SortBy)) {
	case "", productSortName:
		sortField = productSortName
	case productSortPrice:
		sortField = productSortPrice
	default:
		return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: unsupported sort field %q", filter.SortBy)
	}
	direction := firestore.Asc
	if filter.SortOrder == domain.SortDesc {
		direction = firestore.Desc
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: %w", err)
		}
		startAfter, err = productStartAfter(cursor, sortField)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: %w", err)
		}
	}

	categoryID := strings.TrimSpace(filter.CategoryID)
	comboEligible := filter.ComboEligible

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		if comboEligible != nil {
			q = q.Where("comboEligible", "==", *comboEligible)
		}
		q = q.OrderBy(sortField, direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		token, err := pagination.EncodeToken(productListCursor(sortField, last.Data, last.ID))
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: %w", err)
		}
		nextToken = token
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Product, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Product]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// FindByID loads a single product document.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// Upsert writes the product document, enforcing the optimistic lock when an
// expected update time is supplied.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product, expectedUpdate *time.Time) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	now := time.Now().UTC()
	if !product.UpdatedAt.IsZero() {
		now = product.UpdatedAt.UTC()
	}
	createdAt := product.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := productDocument{
		Name:          strings.TrimSpace(product.Name),
		Description:   strings.TrimSpace(product.Description),
		Price:         product.Price,
		Currency:      strings.ToUpper(strings.TrimSpace(product.Currency)),
		CategoryID:    strings.TrimSpace(product.CategoryID),
		CategoryName:  strings.TrimSpace(product.CategoryName),
		Active:        product.Active,
		Stock:         product.Stock,
		ComboEligible: product.ComboEligible,
		Prepared:      product.Prepared,
		ImagePath:     strings.TrimSpace(product.ImagePath),
		Metadata:      cloneStringMap(product.Metadata),
		CreatedAt:     createdAt,
		UpdatedAt:     now,
	}

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, id, doc)
		if err != nil {
			return domain.Product{}, err
		}
		return decodeProductDocument(id, doc, createdAt, result.UpdateTime), nil
	}

	updates := []firestore.Update{
		{Path: "name", Value: doc.Name},
		{Path: "price", Value: doc.Price},
		{Path: "currency", Value: doc.Currency},
		{Path: "categoryId", Value: doc.CategoryID},
		{Path: "categoryName", Value: doc.CategoryName},
		{Path: "active", Value: doc.Active},
		{Path: "stock", Value: doc.Stock},
		{Path: "comboEligible", Value: doc.ComboEligible},
		{Path: "prepared", Value: doc.Prepared},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	appendOptionalString := func(path, value string) {
		if value == "" {
			updates = append(updates, firestore.Update{Path: path, Value: firestore.Delete})
		} else {
			updates = append(updates, firestore.Update{Path: path, Value: value})
		}
	}
	appendOptionalString("description", doc.Description)
	appendOptionalString("imagePath", doc.ImagePath)
	if len(doc.Metadata) == 0 {
		updates = append(updates, firestore.Update{Path: "metadata", Value: firestore.Delete})
	} else {
		updates = append(updates, firestore.Update{Path: "metadata", Value: doc.Metadata})
	}

	result, err := r.base.Update(ctx, id, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(id, doc, createdAt, result.UpdateTime), nil
}

func decodeProductDocument(id string, doc productDocument, createTime, updateTime time.Time) domain.Product {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = createTime
	}
	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = doc.UpdatedAt
	}
	return domain.Product{
		ID:            id,
		Name:          strings.TrimSpace(doc.Name),
		Description:   strings.TrimSpace(doc.Description),
		Price:         doc.Price,
		Currency:      strings.ToUpper(strings.TrimSpace(doc.Currency)),
		CategoryID:    strings.TrimSpace(doc.CategoryID),
		CategoryName:  strings.TrimSpace(doc.CategoryName),
		Active:        doc.Active,
		Stock:         doc.Stock,
		ComboEligible: doc.ComboEligible,
		Prepared:      doc.Prepared,
		ImagePath:     strings.TrimSpace(doc.ImagePath),
		Metadata:      cloneStringMap(doc.Metadata),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// productListCursor records the sort value and document id of the last
// product served so the next page resumes after it.
func productListCursor(sortField string, doc productDocument, docID string) pagination.Cursor {
	value := doc.Name
	if sortField == productSortPrice {
		value = strconv.FormatInt(doc.Price, 10)
	}
	return pagination.Cursor{Field: sortField, Value: value, DocID: docID}
}

// productStartAfter converts a decoded cursor back into Firestore StartAfter
// values. Tokens minted under a different sort field are rejected.
func productStartAfter(cursor pagination.Cursor, sortField string) ([]any, error) {
	if cursor.Field != sortField {
		return nil, fmt.Errorf("%w: token was issued for sort field %q", pagination.ErrInvalidPageToken, cursor.Field)
	}
	if sortField == productSortPrice {
		price, err := strconv.ParseInt(cursor.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed price cursor", pagination.ErrInvalidPageToken)
		}
		return []any{price, cursor.DocID}, nil
	}
	return []any{cursor.Value, cursor.DocID}, nil
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

type productDocument struct {
	Name          string            `firestore:"name"`
	Description   string            `firestore:"description,omitempty"`
	Price         int64             `firestore:"price"`
	Currency      string            `firestore:"currency"`
	CategoryID    string            `firestore:"categoryId"`
	CategoryName  string            `firestore:"categoryName,omitempty"`
	Active        bool              `firestore:"active"`
	Stock         int               `firestore:"stock"`
	ComboEligible bool              `firestore:"comboEligible"`
	Prepared      bool              `firestore:"prepared"`
	ImagePath     string            `firestore:"imagePath,omitempty"`
	Metadata      map[string]string `firestore:"metadata,omitempty"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	UpdatedAt     time.Time         `firestore:"updatedAt"`
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
