package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.ProductStore = (*ProductRepository)(nil)

const (
	productColumns = `id, name, brand, image_url, image_key, description, category, application_time,
        skin_types, goals, created_at, updated_at`
	summaryColumns = `id, name, brand, image_url, category`
)

type ProductRepository struct {
	db *Connection
}

func NewProductRepository(db *Connection) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product model.Product) (model.Product, error) {
	query := `
        INSERT INTO products (name, brand, image_url, image_key, description, category, application_time, skin_types, goals)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING ` + productColumns

	row := r.db.QueryRow(ctx, query,
		product.Name, product.Brand, product.ImageURL, product.ImageKey, product.Description,
		string(product.Category), string(product.ApplicationTime),
		skinTypeStrings(product.SkinTypes), goalStrings(product.Goals),
	)
	created, err := scanProduct(row)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to create product: %w", translate(err))
	}
	return created, nil
}

// Update rewrites the product. When its category changes, every routine holding
// it is locked, any other product of the new category is evicted from those
// routines, and the slot copies of the category are refreshed, so routines stay
// category-exclusive.
func (r *ProductRepository) Update(ctx context.Context, product model.Product) (model.Product, error) {
	query := `
        UPDATE products SET
            name = $2, brand = $3, image_url = $4, image_key = $5, description = $6,
            category = $7, application_time = $8, skin_types = $9, goals = $10, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + productColumns

	var updated model.Product
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `SELECT category FROM products WHERE id = $1 FOR UPDATE`, product.ID).Scan(&previous)
		if err != nil {
			return translate(err)
		}

		updated, err = scanProduct(tx.QueryRow(ctx, query,
			product.ID, product.Name, product.Brand, product.ImageURL, product.ImageKey, product.Description,
			string(product.Category), string(product.ApplicationTime),
			skinTypeStrings(product.SkinTypes), goalStrings(product.Goals),
		))
		if err != nil {
			return translate(err)
		}

		if previous == string(updated.Category) {
			return nil
		}
		return reslotProduct(ctx, tx, updated.ID, string(updated.Category))
	})
	if err != nil {
		return model.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

// reslotProduct moves productID to category in every routine holding it. Routine
// rows are locked in id order, the same lock AddProduct takes.
func reslotProduct(ctx context.Context, tx pgx.Tx, productID int64, category string) error {
	_, err := tx.Exec(ctx, `
        SELECT id FROM routines
        WHERE id IN (SELECT routine_id FROM routine_products WHERE product_id = $1)
        ORDER BY id
        FOR UPDATE`, productID)
	if err != nil {
		return fmt.Errorf("failed to lock routines: %w", err)
	}

	_, err = tx.Exec(ctx, `
        DELETE FROM routine_products
        WHERE category = $2 AND product_id <> $1
          AND routine_id IN (SELECT routine_id FROM routine_products WHERE product_id = $1)`,
		productID, category)
	if err != nil {
		return fmt.Errorf("failed to evict routine slots: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE routine_products SET category = $2 WHERE product_id = $1`, productID, category)
	if err != nil {
		return fmt.Errorf("failed to refresh routine slots: %w", err)
	}
	return nil
}

// Delete removes the product; routine slots and collection entries go with it
// through ON DELETE CASCADE.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return model.Product{}, translateGet("product", err)
	}
	return product, nil
}

func (r *ProductRepository) GetSummaryByID(ctx context.Context, id int64) (model.ProductSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM products WHERE id = $1`

	summary, err := scanSummary(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return model.ProductSummary{}, translateGet("product summary", err)
	}
	return summary, nil
}

func (r *ProductRepository) Find(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.Product], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.Product]{}, err
	}

	w := productWhere(filter)
	total, err := r.count(ctx, w)
	if err != nil {
		return model.Page[model.Product]{}, err
	}
	if total == 0 {
		return model.NewPage([]model.Product{}, page, 0), nil
	}

	query := `SELECT ` + productColumns + ` FROM products` + w.String() + orderBy(page, "") +
		` LIMIT ` + w.next(page.Size) + ` OFFSET ` + w.next(page.Offset())

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return model.Page[model.Product]{}, fmt.Errorf("failed to query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return model.Page[model.Product]{}, fmt.Errorf("failed to scan products: %w", err)
	}

	return model.NewPage(products, page, total), nil
}

func (r *ProductRepository) FindSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.ProductSummary]{}, err
	}

	w := productWhere(filter)
	total, err := r.count(ctx, w)
	if err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	if total == 0 {
		return model.NewPage([]model.ProductSummary{}, page, 0), nil
	}

	query := `SELECT ` + summaryColumns + ` FROM products` + w.String() + orderBy(page, "") +
		` LIMIT ` + w.next(page.Size) + ` OFFSET ` + w.next(page.Offset())

	summaries, err := querySummaries(ctx, r.db, query, w.args...)
	if err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	return model.NewPage(summaries, page, total), nil
}

func (r *ProductRepository) count(ctx context.Context, w *where) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+w.String(), w.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p         model.Product
		category  string
		appTime   string
		skinTypes []string
		goals     []string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.ImageURL, &p.ImageKey, &p.Description, &category, &appTime,
		&skinTypes, &goals, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Product{}, err
	}
	p.Category = model.Category(category)
	p.ApplicationTime = model.ApplicationTime(appTime)
	p.SkinTypes = toSkinTypes(skinTypes)
	p.Goals = toGoals(goals)
	return p, nil
}

func scanSummary(row pgx.Row) (model.ProductSummary, error) {
	var (
		s        model.ProductSummary
		category string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Brand, &s.ImageURL, &category); err != nil {
		return model.ProductSummary{}, err
	}
	s.Category = model.Category(category)
	return s, nil
}

func querySummaries(ctx context.Context, q querier, query string, args ...any) ([]model.ProductSummary, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query product summaries: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ProductSummary, error) {
		return scanSummary(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan product summaries: %w", err)
	}
	return summaries, nil
}

// translateGet maps a single-row lookup failure, keeping ErrNotFound unwrapped
// like the other stores.
func translateGet(what string, err error) error {
	err = translate(err)
	if errors.Is(err, model.ErrNotFound) {
		return err
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
