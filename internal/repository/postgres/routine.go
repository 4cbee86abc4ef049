package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.RoutineStore = (*RoutineRepository)(nil)

const routineColumns = `id, user_id, routine_type, active, created_at`

// RoutineRepository stores routines. The partial unique index
// routines_one_active_per_type keeps one active routine per owner and type, and
// UNIQUE (routine_id, category) keeps routine slots category exclusive.
type RoutineRepository struct {
	db *Connection
}

func NewRoutineRepository(db *Connection) *RoutineRepository {
	return &RoutineRepository{db: db}
}

func (r *RoutineRepository) Create(ctx context.Context, routine model.Routine) (model.Routine, error) {
	var created model.Routine
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO routines (user_id, routine_type, active) VALUES ($1, $2, $3) RETURNING `+routineColumns,
			routine.OwnerID, string(routine.Type), routine.Active,
		)
		var err error
		created, err = scanRoutine(row)
		if err != nil {
			return translate(err)
		}

		for _, p := range routine.Products {
			if err := insertRoutineProduct(ctx, tx, created.ID, p.ID); err != nil {
				return err
			}
		}

		loaded, err := loadProducts(ctx, tx, []model.Routine{created})
		if err != nil {
			return err
		}
		created = loaded[0]
		return nil
	})
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to create routine: %w", err)
	}
	return created, nil
}

func (r *RoutineRepository) GetByID(ctx context.Context, id int64) (model.Routine, error) {
	routine, err := scanRoutine(r.db.QueryRow(ctx, `SELECT `+routineColumns+` FROM routines WHERE id = $1`, id))
	if err != nil {
		return model.Routine{}, translateGet("routine", err)
	}

	loaded, err := loadProducts(ctx, r.db, []model.Routine{routine})
	if err != nil {
		return model.Routine{}, err
	}
	return loaded[0], nil
}

func (r *RoutineRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Routine, error) {
	return r.list(ctx, `WHERE user_id = $1`, ownerID)
}

func (r *RoutineRepository) GetActiveByType(ctx context.Context, ownerID int64, routineType model.RoutineType) (model.Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = $1 AND routine_type = $2 AND active`

	routine, err := scanRoutine(r.db.QueryRow(ctx, query, ownerID, string(routineType)))
	if err != nil {
		return model.Routine{}, translateGet("active routine", err)
	}

	loaded, err := loadProducts(ctx, r.db, []model.Routine{routine})
	if err != nil {
		return model.Routine{}, err
	}
	return loaded[0], nil
}

func (r *RoutineRepository) ListInactiveByType(ctx context.Context, ownerID int64, routineType model.RoutineType) ([]model.Routine, error) {
	return r.list(ctx, `WHERE user_id = $1 AND routine_type = $2 AND NOT active`, ownerID, string(routineType))
}

// Delete drops the product slots before the routine row; routine_products
// carries no cascade on routine_id.
func (r *RoutineRepository) Delete(ctx context.Context, id int64) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := lockRoutine(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM routine_products WHERE routine_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete routine products: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM routines WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete routine: %w", err)
		}
		return nil
	})
}

// AddProduct holds the routine row lock while it evicts the same-category slot,
// so concurrent adds to one routine are serialized. The product row is share
// locked first, matching the product-then-routine order of a category update.
func (r *RoutineRepository) AddProduct(ctx context.Context, routineID int64, product model.ProductSummary) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var category string
		err := tx.QueryRow(ctx, `SELECT category FROM products WHERE id = $1 FOR SHARE`, product.ID).Scan(&category)
		if err != nil {
			return translateGet("product", err)
		}

		if err := lockRoutine(ctx, tx, routineID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM routine_products WHERE routine_id = $1 AND (category = $2 OR product_id = $3)`,
			routineID, category, product.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to evict routine slot: %w", err)
		}

		return insertRoutineProduct(ctx, tx, routineID, product.ID)
	})
}

func (r *RoutineRepository) RemoveProduct(ctx context.Context, routineID int64, productID int64) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := lockRoutine(ctx, tx, routineID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`DELETE FROM routine_products WHERE routine_id = $1 AND product_id = $2`, routineID, productID,
		)
		if err != nil {
			return fmt.Errorf("failed to remove routine product: %w", err)
		}
		return nil
	})
}

func (r *RoutineRepository) SetActive(ctx context.Context, routineID int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE routines SET active = $2 WHERE id = $1`, routineID, active)
	if err != nil {
		return fmt.Errorf("failed to set routine active: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *RoutineRepository) list(ctx context.Context, cond string, args ...any) ([]model.Routine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+routineColumns+` FROM routines `+cond+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	routines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Routine, error) {
		return scanRoutine(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan routines: %w", err)
	}
	return loadProducts(ctx, r.db, routines)
}

func lockRoutine(ctx context.Context, tx pgx.Tx, id int64) error {
	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM routines WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return translateGet("routine", err)
	}
	return nil
}

func insertRoutineProduct(ctx context.Context, q querier, routineID, productID int64) error {
	tag, err := q.Exec(ctx,
		`INSERT INTO routine_products (routine_id, product_id, category)
         SELECT $1, id, category FROM products WHERE id = $2 FOR SHARE`,
		routineID, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert routine product: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// loadProducts fills each routine's products in slot order.
func loadProducts(ctx context.Context, q querier, routines []model.Routine) ([]model.Routine, error) {
	if len(routines) == 0 {
		return routines, nil
	}

	ids := make([]int64, 0, len(routines))
	index := make(map[int64]int, len(routines))
	for i := range routines {
		routines[i].Products = []model.ProductSummary{}
		ids = append(ids, routines[i].ID)
		index[routines[i].ID] = i
	}

	rows, err := q.Query(ctx, `
        SELECT rp.routine_id, p.id, p.name, p.brand, p.image_url, p.category
        FROM routine_products rp JOIN products p ON p.id = rp.product_id
        WHERE rp.routine_id = ANY($1)
        ORDER BY rp.position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query routine products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			routineID int64
			s         model.ProductSummary
			category  string
		)
		if err := rows.Scan(&routineID, &s.ID, &s.Name, &s.Brand, &s.ImageURL, &category); err != nil {
			return nil, fmt.Errorf("failed to scan routine product: %w", err)
		}
		s.Category = model.Category(category)
		i := index[routineID]
		routines[i].Products = append(routines[i].Products, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routine products: %w", err)
	}
	return routines, nil
}

func scanRoutine(row pgx.Row) (model.Routine, error) {
	var (
		routine     model.Routine
		routineType string
	)
	if err := row.Scan(&routine.ID, &routine.OwnerID, &routineType, &routine.Active, &routine.CreatedAt); err != nil {
		return model.Routine{}, err
	}
	routine.Type = model.RoutineType(routineType)
	return routine, nil
}
