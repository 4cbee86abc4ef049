package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.RoutineStore = (*RoutineRepository)(nil)

// RoutineRepository is the in-memory routine store. The active index enforces
// at most one active routine per owner and type.
type RoutineRepository struct {
	db *DB
}

func NewRoutineRepository(db *DB) *RoutineRepository {
	return &RoutineRepository{db: db}
}

func (r *RoutineRepository) Create(_ context.Context, routine model.Routine) (model.Routine, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := activeKey{ownerID: routine.OwnerID, routineType: routine.Type}
	if routine.Active {
		if _, taken := r.db.activeRoutine[key]; taken {
			return model.Routine{}, model.ErrConflict
		}
	}

	ids := make([]int64, 0, len(routine.Products))
	for _, p := range routine.Products {
		if _, ok := r.db.products[p.ID]; !ok {
			return model.Routine{}, model.ErrNotFound
		}
		ids = append(ids, p.ID)
	}

	r.db.routineSeq++
	routine.ID = r.db.routineSeq
	routine.CreatedAt = r.db.now()

	rec := &routineRecord{routine: routine, productIDs: ids}
	r.db.routines[routine.ID] = rec
	if routine.Active {
		r.db.activeRoutine[key] = routine.ID
	}

	return r.view(rec), nil
}

func (r *RoutineRepository) GetByID(_ context.Context, id int64) (model.Routine, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rec, ok := r.db.routines[id]
	if !ok {
		return model.Routine{}, model.ErrNotFound
	}
	return r.view(rec), nil
}

func (r *RoutineRepository) ListByOwner(_ context.Context, ownerID int64) ([]model.Routine, error) {
	return r.list(func(rt model.Routine) bool { return rt.OwnerID == ownerID }), nil
}

func (r *RoutineRepository) GetActiveByType(_ context.Context, ownerID int64, routineType model.RoutineType) (model.Routine, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.activeRoutine[activeKey{ownerID: ownerID, routineType: routineType}]
	if !ok {
		return model.Routine{}, model.ErrNotFound
	}
	return r.view(r.db.routines[id]), nil
}

func (r *RoutineRepository) ListInactiveByType(_ context.Context, ownerID int64, routineType model.RoutineType) ([]model.Routine, error) {
	return r.list(func(rt model.Routine) bool {
		return rt.OwnerID == ownerID && rt.Type == routineType && !rt.Active
	}), nil
}

func (r *RoutineRepository) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rec, ok := r.db.routines[id]
	if !ok {
		return model.ErrNotFound
	}
	rec.productIDs = nil
	if rec.routine.Active {
		delete(r.db.activeRoutine, activeKey{ownerID: rec.routine.OwnerID, routineType: rec.routine.Type})
	}
	delete(r.db.routines, id)
	return nil
}

func (r *RoutineRepository) AddProduct(_ context.Context, routineID int64, product model.ProductSummary) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rec, ok := r.db.routines[routineID]
	if !ok {
		return model.ErrNotFound
	}
	stored, ok := r.db.products[product.ID]
	if !ok {
		return model.ErrNotFound
	}

	routine := model.Routine{Products: r.db.summaries(rec.productIDs)}
	routine.PutProduct(stored.Summary())

	rec.productIDs = rec.productIDs[:0]
	for _, p := range routine.Products {
		rec.productIDs = append(rec.productIDs, p.ID)
	}
	return nil
}

func (r *RoutineRepository) RemoveProduct(_ context.Context, routineID int64, productID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rec, ok := r.db.routines[routineID]
	if !ok {
		return model.ErrNotFound
	}
	rec.productIDs = slices.DeleteFunc(rec.productIDs, func(id int64) bool { return id == productID })
	return nil
}

func (r *RoutineRepository) SetActive(_ context.Context, routineID int64, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rec, ok := r.db.routines[routineID]
	if !ok {
		return model.ErrNotFound
	}
	if rec.routine.Active == active {
		return nil
	}

	key := activeKey{ownerID: rec.routine.OwnerID, routineType: rec.routine.Type}
	if active {
		if _, taken := r.db.activeRoutine[key]; taken {
			return model.ErrConflict
		}
		r.db.activeRoutine[key] = routineID
	} else {
		delete(r.db.activeRoutine, key)
	}
	rec.routine.Active = active
	return nil
}

func (r *RoutineRepository) list(keep func(model.Routine) bool) []model.Routine {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]model.Routine, 0)
	for _, rec := range r.db.routines {
		if keep(rec.routine) {
			out = append(out, r.view(rec))
		}
	}
	slices.SortFunc(out, func(a, b model.Routine) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// view materializes the routine with current product summaries. Callers must hold mu.
func (r *RoutineRepository) view(rec *routineRecord) model.Routine {
	routine := rec.routine
	routine.Products = r.db.summaries(rec.productIDs)
	return routine
}
