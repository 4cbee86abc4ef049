package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, username, email, password_hash, skin_type, goals, created_at, updated_at`

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (username, email, password_hash, skin_type, goals)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + userColumns

	saved, err := scanUser(r.db.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.SkinType), goalStrings(user.Goals),
	))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", translate(err))
	}

	return saved, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return model.User{}, translateGet("user by id", err)
	}

	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return model.User{}, translateGet("user by email", err)
	}

	return user, nil
}

func (r *UserRepository) SetSkinType(ctx context.Context, id int64, skinType model.SkinType) error {
	query := `UPDATE users SET skin_type = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(skinType))
	if err != nil {
		return fmt.Errorf("failed to set skin type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// AddGoal appends the goal unless the user already has it.
func (r *UserRepository) AddGoal(ctx context.Context, id int64, goal model.Goal) error {
	query := `UPDATE users
			  SET goals = CASE WHEN $2 = ANY(goals) THEN goals ELSE array_append(goals, $2) END,
			      updated_at = NOW()
			  WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(goal))
	if err != nil {
		return fmt.Errorf("failed to add goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RemoveGoal locks the user row so that two concurrent removals cannot empty the goal set.
func (r *UserRepository) RemoveGoal(ctx context.Context, id int64, goal model.Goal) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		var goals []string
		err := tx.QueryRow(ctx, `SELECT goals FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&goals)
		if err != nil {
			return translateGet("user goals", err)
		}
		if !slices.Contains(goals, string(goal)) {
			return nil
		}
		if len(goals) == 1 {
			return fmt.Errorf("cannot remove the last goal: %w", model.ErrInvalidInput)
		}

		_, err = tx.Exec(ctx,
			`UPDATE users SET goals = array_remove(goals, $2), updated_at = NOW() WHERE id = $1`,
			id, string(goal),
		)
		if err != nil {
			return fmt.Errorf("failed to remove goal: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) AddToCollection(ctx context.Context, id int64, collection model.Collection, productID int64) error {
	query := `INSERT INTO user_products (user_id, collection, product_id)
			  VALUES ($1, $2, $3)
			  ON CONFLICT DO NOTHING`

	if _, err := r.db.Exec(ctx, query, id, string(collection), productID); err != nil {
		return fmt.Errorf("failed to add to %s: %w", collection, translate(err))
	}
	return nil
}

func (r *UserRepository) RemoveFromCollection(ctx context.Context, id int64, collection model.Collection, productID int64) error {
	if err := r.ensureUser(ctx, id); err != nil {
		return err
	}

	query := `DELETE FROM user_products WHERE user_id = $1 AND collection = $2 AND product_id = $3`
	if _, err := r.db.Exec(ctx, query, id, string(collection), productID); err != nil {
		return fmt.Errorf("failed to remove from %s: %w", collection, err)
	}
	return nil
}

func (r *UserRepository) InCollection(ctx context.Context, id int64, collection model.Collection, productID int64) (bool, error) {
	if err := r.ensureUser(ctx, id); err != nil {
		return false, err
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM user_products WHERE user_id = $1 AND collection = $2 AND product_id = $3
			  )`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id, string(collection), productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", collection, err)
	}
	return exists, nil
}

// ListCollection pages through the collection, optionally narrowed to one category.
func (r *UserRepository) ListCollection(ctx context.Context, id int64, collection model.Collection, category *model.Category, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	if err := page.Validate(); err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	if err := r.ensureUser(ctx, id); err != nil {
		return model.Page[model.ProductSummary]{}, err
	}

	w := &where{}
	w.add("up.user_id = ?", id)
	w.add("up.collection = ?", string(collection))
	if category != nil {
		w.add("p.category = ?", string(*category))
	}
	from := ` FROM user_products up JOIN products p ON p.id = up.product_id`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+from+w.String(), w.args...).Scan(&total); err != nil {
		return model.Page[model.ProductSummary]{}, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	if total == 0 {
		return model.NewPage([]model.ProductSummary{}, page, 0), nil
	}

	query := `SELECT p.id, p.name, p.brand, p.image_url, p.category` + from + w.String() + orderBy(page, "p.") +
		` LIMIT ` + w.next(page.Size) + ` OFFSET ` + w.next(page.Offset())

	summaries, err := querySummaries(ctx, r.db, query, w.args...)
	if err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	return model.NewPage(summaries, page, total), nil
}

func (r *UserRepository) ensureUser(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		user     model.User
		skinType string
		goals    []string
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &skinType, &goals,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, err
	}
	user.SkinType = model.SkinType(skinType)
	user.Goals = toGoals(goals)
	return user, nil
}
