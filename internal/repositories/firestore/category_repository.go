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

const categoryCollection = "catalog_categories"

// CategoryRepository persists catalog categories within Firestore.
type CategoryRepository struct {
	base     *pfirestore.BaseRepository[categoryDocument]
	provider *pfirestore.Provider
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil)
	return &CategoryRepository{
		base:     base,
		provider: provider,
	}, nil
}

// ListAll returns every category ordered by name.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, decodeCategoryDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return categories, nil
}

// FindByID loads a single category document.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategoryDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// Upsert writes the category document keyed by its identifier.
func (r *CategoryRepository) Upsert(ctx context.Context, category domain.Category) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return domain.Category{}, errors.New("category repository: category id is required")
	}

	now := time.Now().UTC()
	if !category.UpdatedAt.IsZero() {
		now = category.UpdatedAt.UTC()
	}
	createdAt := category.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := categoryDocument{
		Name:      strings.TrimSpace(category.Name),
		Active:    category.Active,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategoryDocument(id, doc, createdAt, result.UpdateTime), nil
}

func decodeCategoryDocument(id string, doc categoryDocument, createTime, updateTime time.Time) domain.Category {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = createTime
	}
	updatedAt := updateTime
	if updatedAt.IsZero() {
		updatedAt = doc.UpdatedAt
	}
	return domain.Category{
		ID:        id,
		Name:      strings.TrimSpace(doc.Name),
		Active:    doc.Active,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

type categoryDocument struct {
	Name      string    `firestore:"name"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
