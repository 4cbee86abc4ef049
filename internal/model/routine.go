package model

import (
	"context"
	"time"
)

// RoutineStore defines persistence operations for routines.
//
// Implementations must make AddProduct atomic with respect to other mutators of
// the same routine, and must reject a second active routine for the same
// (owner, type) with ErrConflict regardless of what the caller checked first.
type RoutineStore interface {
	// Create inserts the routine together with its products.
	Create(ctx context.Context, routine Routine) (Routine, error)
	GetByID(ctx context.Context, id int64) (Routine, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Routine, error)
	GetActiveByType(ctx context.Context, ownerID int64, routineType RoutineType) (Routine, error)
	ListInactiveByType(ctx context.Context, ownerID int64, routineType RoutineType) ([]Routine, error)
	// Delete clears the routine's product associations, then the routine itself.
	Delete(ctx context.Context, id int64) error
	// AddProduct evicts any product sharing the new product's category, then appends it.
	AddProduct(ctx context.Context, routineID int64, product ProductSummary) error
	// RemoveProduct is a no-op when the product is not in the routine.
	RemoveProduct(ctx context.Context, routineID int64, productID int64) error
	SetActive(ctx context.Context, routineID int64, active bool) error
}

// Routine is an ordered, category-exclusive set of products owned by one user.
type Routine struct {
	ID        int64            `json:"id"`
	OwnerID   int64            `json:"ownerId"`
	Type      RoutineType      `json:"routineType"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
	Products  []ProductSummary `json:"products"`
}

// PutProduct applies category-exclusive slot semantics in memory: any product of
// the same category is replaced and the new product goes last.
func (r *Routine) PutProduct(p ProductSummary) {
	kept := r.Products[:0:0]
	for _, existing := range r.Products {
		if existing.Category != p.Category && existing.ID != p.ID {
			kept = append(kept, existing)
		}
	}
	r.Products = append(kept, p)
}

// DropProduct removes the product with the given id and reports whether it was present.
func (r *Routine) DropProduct(productID int64) bool {
	for i, existing := range r.Products {
		if existing.ID == productID {
			r.Products = append(r.Products[:i:i], r.Products[i+1:]...)
			return true
		}
	}
	return false
}
