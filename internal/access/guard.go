// Package access resolves the authenticated caller and enforces that users only
// touch their own profile and routines.
package access

import (
	"context"

	"github.com/klari-app/klari-server/internal/model"
)

// Guard checks caller identity against resource ownership.
type Guard struct {
	contextManager model.ContextManager
}

// NewGuard creates a Guard reading identities through contextManager.
func NewGuard(contextManager model.ContextManager) *Guard {
	return &Guard{contextManager: contextManager}
}

// Caller returns the authenticated user id carried by ctx.
func (g *Guard) Caller(ctx context.Context) (int64, error) {
	id, ok := g.contextManager.GetUserIDFromContext(ctx)
	if !ok || id <= 0 {
		return 0, model.ErrUnauthenticated
	}
	return id, nil
}

// AssertSelf fails with ErrForbidden unless caller is the target user.
func AssertSelf(caller, target int64) error {
	if caller <= 0 {
		return model.ErrUnauthenticated
	}
	if caller != target {
		return model.ErrForbidden
	}
	return nil
}

// AssertOwner fails with ErrForbidden unless caller owns the routine.
func AssertOwner(caller int64, routine model.Routine) error {
	return AssertSelf(caller, routine.OwnerID)
}
