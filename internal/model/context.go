package model

import "context"

// ContextManager carries the authenticated caller identity through a request context.
type ContextManager interface {
	SetUserIDToContext(ctx context.Context, userID int64) context.Context
	GetUserIDFromContext(ctx context.Context) (int64, bool)
}
