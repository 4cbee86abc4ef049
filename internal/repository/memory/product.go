package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.ProductStore = (*ProductRepository)(nil)

// ProductRepository is the in-memory product catalog.
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(_ context.Context, product model.Product) (model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.productSeq++
	now := r.db.now()
	product.ID = r.db.productSeq
	product.CreatedAt = now
	product.UpdatedAt = now
	product = cloneProduct(product)
	r.db.products[product.ID] = product

	return cloneProduct(product), nil
}

func (r *ProductRepository) Update(_ context.Context, product model.Product) (model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.products[product.ID]
	if !ok {
		return model.Product{}, model.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = r.db.now()
	product = cloneProduct(product)
	r.db.products[product.ID] = product

	if existing.Category != product.Category {
		r.db.reslot(product.ID, product.Category)
	}

	return cloneProduct(product), nil
}

// reslot evicts other products of category from every routine holding
// productID. Callers must hold mu and have stored the updated product.
func (db *DB) reslot(productID int64, category model.Category) {
	for _, rec := range db.routines {
		if !slices.Contains(rec.productIDs, productID) {
			continue
		}
		rec.productIDs = slices.DeleteFunc(rec.productIDs, func(id int64) bool {
			p, ok := db.products[id]
			return ok && id != productID && p.Category == category
		})
	}
}

// Delete removes the product and every reference to it.
func (r *ProductRepository) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.db.products, id)

	for _, rec := range r.db.routines {
		rec.productIDs = slices.DeleteFunc(rec.productIDs, func(pid int64) bool { return pid == id })
	}
	for _, rec := range r.db.users {
		for c, ids := range rec.collections {
			rec.collections[c] = slices.DeleteFunc(ids, func(pid int64) bool { return pid == id })
		}
	}
	return nil
}

func (r *ProductRepository) GetByID(_ context.Context, id int64) (model.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.products[id]
	if !ok {
		return model.Product{}, model.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *ProductRepository) GetSummaryByID(ctx context.Context, id int64) (model.ProductSummary, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return model.ProductSummary{}, err
	}
	return p.Summary(), nil
}

func (r *ProductRepository) Find(_ context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.Product], error) {
	r.db.mu.RLock()
	matched := make([]model.Product, 0)
	for _, p := range r.db.products {
		if filter.Matches(p) {
			matched = append(matched, cloneProduct(p))
		}
	}
	r.db.mu.RUnlock()

	return paginate(matched, page)
}

func (r *ProductRepository) FindSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	products, err := r.Find(ctx, filter, page)
	if err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	summaries := make([]model.ProductSummary, 0, len(products.Content))
	for _, p := range products.Content {
		summaries = append(summaries, p.Summary())
	}
	return model.NewPage(summaries, page, products.TotalElements), nil
}

func paginate(products []model.Product, page model.PageRequest) (model.Page[model.Product], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.Product]{}, err
	}
	sortProducts(products, page)

	total := int64(len(products))
	start := min(page.Offset(), len(products))
	end := min(start+page.Size, len(products))

	return model.NewPage(products[start:end], page, total), nil
}

// sortProducts orders by the requested field with id as the tie-break, matching
// the ORDER BY the postgres store issues.
func sortProducts(products []model.Product, page model.PageRequest) {
	key := func(p model.Product) string {
		switch page.Sort {
		case model.SortByName:
			return strings.ToLower(p.Name)
		case model.SortByBrand:
			return strings.ToLower(p.Brand)
		default:
			return ""
		}
	}
	slices.SortFunc(products, func(a, b model.Product) int {
		c := cmp.Compare(key(a), key(b))
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if page.Desc {
			return -c
		}
		return c
	})
}

func cloneProduct(p model.Product) model.Product {
	p.SkinTypes = slices.Clone(p.SkinTypes)
	p.Goals = slices.Clone(p.Goals)
	if p.SkinTypes == nil {
		p.SkinTypes = []model.SkinType{}
	}
	if p.Goals == nil {
		p.Goals = []model.Goal{}
	}
	return p
}
