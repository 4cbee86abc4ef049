package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/klari-app/klari-server/internal/access"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// ConflictRecorder counts rejected duplicate active routines.
type ConflictRecorder interface {
	IncrementRoutineConflict()
}

// Routine applies ownership rules on top of the RoutineStore. Every operation
// takes the authenticated caller explicitly. Operations addressed by routine id
// resolve the routine first, so a missing routine reports ErrNotFound before any
// ownership check.
type Routine struct {
	routineStore model.RoutineStore
	productStore model.ProductStore
	conflicts    ConflictRecorder
	logger       *logger.Logger
}

// NewRoutine creates a Routine service. conflicts may be nil.
func NewRoutine(
	routineStore model.RoutineStore,
	productStore model.ProductStore,
	conflicts ConflictRecorder,
	logger *logger.Logger,
) *Routine {
	return &Routine{
		routineStore: routineStore,
		productStore: productStore,
		conflicts:    conflicts,
		logger:       logger,
	}
}

// Create starts an empty, active routine of the given type for ownerID.
func (s *Routine) Create(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) (model.Routine, error) {
	if err := access.AssertSelf(caller, ownerID); err != nil {
		return model.Routine{}, err
	}
	if err := s.ensureNoActive(ctx, ownerID, routineType); err != nil {
		return model.Routine{}, err
	}

	return s.persist(ctx, model.Routine{OwnerID: ownerID, Type: routineType, Active: true})
}

// Get returns the routine when caller owns it.
func (s *Routine) Get(ctx context.Context, caller, routineID int64) (model.Routine, error) {
	return s.owned(ctx, caller, routineID)
}

// ListByOwner lists every routine of ownerID, active or not.
func (s *Routine) ListByOwner(ctx context.Context, caller, ownerID int64) ([]model.Routine, error) {
	if err := access.AssertSelf(caller, ownerID); err != nil {
		return nil, err
	}

	routines, err := s.routineStore.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	return routines, nil
}

// GetActiveByType returns the owner's active routine of routineType, or
// ErrNotFound when none is active.
func (s *Routine) GetActiveByType(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) (model.Routine, error) {
	if err := access.AssertSelf(caller, ownerID); err != nil {
		return model.Routine{}, err
	}

	routine, err := s.routineStore.GetActiveByType(ctx, ownerID, routineType)
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to get active %s routine: %w", routineType, err)
	}
	return routine, nil
}

// ListInactiveByType lists the owner's inactive routines of routineType.
func (s *Routine) ListInactiveByType(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) ([]model.Routine, error) {
	if err := access.AssertSelf(caller, ownerID); err != nil {
		return nil, err
	}

	routines, err := s.routineStore.ListInactiveByType(ctx, ownerID, routineType)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive %s routines: %w", routineType, err)
	}
	return routines, nil
}

// Remove deletes the routine and its product slots.
func (s *Routine) Remove(ctx context.Context, caller, routineID int64) error {
	if _, err := s.owned(ctx, caller, routineID); err != nil {
		return err
	}

	if err := s.routineStore.Delete(ctx, routineID); err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}

	s.logger.Info("Routine service: routine removed",
		"routine_id", routineID,
		"user_id", caller)
	return nil
}

// AddProduct puts the product into the routine, replacing any product of the
// same category.
func (s *Routine) AddProduct(ctx context.Context, caller, routineID, productID int64) (model.Routine, error) {
	if _, err := s.owned(ctx, caller, routineID); err != nil {
		return model.Routine{}, err
	}

	product, err := s.productStore.GetSummaryByID(ctx, productID)
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to get product %d: %w", productID, err)
	}

	if err := s.routineStore.AddProduct(ctx, routineID, product); err != nil {
		return model.Routine{}, fmt.Errorf("failed to add product to routine: %w", err)
	}

	s.logger.Info("Routine service: product added",
		"routine_id", routineID,
		"product_id", productID,
		"category", product.Category)

	return s.reload(ctx, routineID)
}

// RemoveProduct drops the product from the routine. Removing a product that is
// not in the routine is not an error.
func (s *Routine) RemoveProduct(ctx context.Context, caller, routineID, productID int64) (model.Routine, error) {
	if _, err := s.owned(ctx, caller, routineID); err != nil {
		return model.Routine{}, err
	}

	if err := s.routineStore.RemoveProduct(ctx, routineID, productID); err != nil {
		return model.Routine{}, fmt.Errorf("failed to remove product from routine: %w", err)
	}

	return s.reload(ctx, routineID)
}

// Activate marks the routine active. Activating an active routine is a no-op;
// activating while another routine of the same type is active fails with
// ErrConflict.
func (s *Routine) Activate(ctx context.Context, caller, routineID int64) (model.Routine, error) {
	return s.setActive(ctx, caller, routineID, true)
}

// Deactivate marks the routine inactive. It is idempotent.
func (s *Routine) Deactivate(ctx context.Context, caller, routineID int64) (model.Routine, error) {
	return s.setActive(ctx, caller, routineID, false)
}

func (s *Routine) setActive(ctx context.Context, caller, routineID int64, active bool) (model.Routine, error) {
	routine, err := s.owned(ctx, caller, routineID)
	if err != nil {
		return model.Routine{}, err
	}
	if routine.Active == active {
		return routine, nil
	}

	err = s.routineStore.SetActive(ctx, routineID, active)
	if errors.Is(err, model.ErrConflict) {
		s.conflict()
		return model.Routine{}, fmt.Errorf("an active %s routine already exists: %w", routine.Type, err)
	}
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to update routine state: %w", err)
	}

	s.logger.Info("Routine service: routine state changed",
		"routine_id", routineID,
		"active", active)

	routine.Active = active
	return routine, nil
}

// owned resolves the routine and asserts the caller owns it.
func (s *Routine) owned(ctx context.Context, caller, routineID int64) (model.Routine, error) {
	routine, err := s.routineStore.GetByID(ctx, routineID)
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to get routine %d: %w", routineID, err)
	}
	if err := access.AssertOwner(caller, routine); err != nil {
		s.logger.Info("Routine service: access denied",
			"routine_id", routineID,
			"user_id", caller)
		return model.Routine{}, err
	}
	return routine, nil
}

func (s *Routine) reload(ctx context.Context, routineID int64) (model.Routine, error) {
	routine, err := s.routineStore.GetByID(ctx, routineID)
	if err != nil {
		return model.Routine{}, fmt.Errorf("failed to reload routine: %w", err)
	}
	return routine, nil
}

// ensureNoActive rejects early when an active routine of the type exists. The
// store still enforces uniqueness on insert.
func (s *Routine) ensureNoActive(ctx context.Context, ownerID int64, routineType model.RoutineType) error {
	_, err := s.routineStore.GetActiveByType(ctx, ownerID, routineType)
	if err == nil {
		s.conflict()
		return fmt.Errorf("an active %s routine already exists: %w", routineType, model.ErrConflict)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("failed to check active routine: %w", err)
	}
	return nil
}

func (s *Routine) persist(ctx context.Context, routine model.Routine) (model.Routine, error) {
	created, err := s.routineStore.Create(ctx, routine)
	if errors.Is(err, model.ErrConflict) {
		s.conflict()
		return model.Routine{}, fmt.Errorf("an active %s routine already exists: %w", routine.Type, err)
	}
	if err != nil {
		s.logger.Error("Routine service: failed to create routine",
			"user_id", routine.OwnerID,
			"type", routine.Type,
			"error", err.Error())
		return model.Routine{}, fmt.Errorf("failed to create routine: %w", err)
	}

	s.logger.Info("Routine service: routine created",
		"routine_id", created.ID,
		"user_id", created.OwnerID,
		"type", created.Type,
		"products", len(created.Products))

	return created, nil
}

func (s *Routine) conflict() {
	if s.conflicts != nil {
		s.conflicts.IncrementRoutineConflict()
	}
}
