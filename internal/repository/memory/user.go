package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository is the in-memory user store.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(_ context.Context, user model.User) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, taken := r.db.emails[email]; taken {
		return model.User{}, model.ErrConflict
	}
	for _, rec := range r.db.users {
		if strings.EqualFold(rec.user.Username, user.Username) {
			return model.User{}, model.ErrConflict
		}
	}

	r.db.userSeq++
	now := r.db.now()
	user.ID = r.db.userSeq
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Goals = slices.Clone(user.Goals)

	r.db.users[user.ID] = &userRecord{
		user:        user,
		collections: make(map[model.Collection][]int64),
	}
	r.db.emails[email] = user.ID

	return cloneUser(user), nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (model.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rec, ok := r.db.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return cloneUser(rec.user), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	r.db.mu.RLock()
	id, ok := r.db.emails[strings.ToLower(email)]
	r.db.mu.RUnlock()
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) SetSkinType(_ context.Context, id int64, skinType model.SkinType) error {
	return r.mutate(id, func(rec *userRecord) error {
		rec.user.SkinType = skinType
		return nil
	})
}

func (r *UserRepository) AddGoal(_ context.Context, id int64, goal model.Goal) error {
	return r.mutate(id, func(rec *userRecord) error {
		if !slices.Contains(rec.user.Goals, goal) {
			rec.user.Goals = append(rec.user.Goals, goal)
		}
		return nil
	})
}

func (r *UserRepository) RemoveGoal(_ context.Context, id int64, goal model.Goal) error {
	return r.mutate(id, func(rec *userRecord) error {
		if !slices.Contains(rec.user.Goals, goal) {
			return nil
		}
		if len(rec.user.Goals) == 1 {
			return model.ErrInvalidInput
		}
		rec.user.Goals = slices.DeleteFunc(rec.user.Goals, func(g model.Goal) bool { return g == goal })
		return nil
	})
}

func (r *UserRepository) AddToCollection(_ context.Context, id int64, collection model.Collection, productID int64) error {
	return r.mutate(id, func(rec *userRecord) error {
		if _, ok := r.db.products[productID]; !ok {
			return model.ErrNotFound
		}
		if !slices.Contains(rec.collections[collection], productID) {
			rec.collections[collection] = append(rec.collections[collection], productID)
		}
		return nil
	})
}

func (r *UserRepository) RemoveFromCollection(_ context.Context, id int64, collection model.Collection, productID int64) error {
	return r.mutate(id, func(rec *userRecord) error {
		rec.collections[collection] = slices.DeleteFunc(rec.collections[collection], func(pid int64) bool { return pid == productID })
		return nil
	})
}

func (r *UserRepository) InCollection(_ context.Context, id int64, collection model.Collection, productID int64) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rec, ok := r.db.users[id]
	if !ok {
		return false, model.ErrNotFound
	}
	return slices.Contains(rec.collections[collection], productID), nil
}

// ListCollection pages through the collection, optionally narrowed to one category.
func (r *UserRepository) ListCollection(_ context.Context, id int64, collection model.Collection, category *model.Category, page model.PageRequest) (model.Page[model.ProductSummary], error) {
	r.db.mu.RLock()
	rec, ok := r.db.users[id]
	if !ok {
		r.db.mu.RUnlock()
		return model.Page[model.ProductSummary]{}, model.ErrNotFound
	}
	matched := make([]model.Product, 0)
	for _, pid := range rec.collections[collection] {
		p, ok := r.db.products[pid]
		if ok && (category == nil || p.Category == *category) {
			matched = append(matched, p)
		}
	}
	r.db.mu.RUnlock()

	products, err := paginate(matched, page)
	if err != nil {
		return model.Page[model.ProductSummary]{}, err
	}
	summaries := make([]model.ProductSummary, 0, len(products.Content))
	for _, p := range products.Content {
		summaries = append(summaries, p.Summary())
	}
	return model.NewPage(summaries, page, products.TotalElements), nil
}

// mutate runs fn against the user's record under the write lock.
func (r *UserRepository) mutate(id int64, fn func(rec *userRecord) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rec, ok := r.db.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if err := fn(rec); err != nil {
		return err
	}
	rec.user.UpdatedAt = r.db.now()
	return nil
}

func cloneUser(u model.User) model.User {
	u.Goals = slices.Clone(u.Goals)
	if u.Goals == nil {
		u.Goals = []model.Goal{}
	}
	return u
}
