package context

import (
	"context"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.ContextManager = (*Manager)(nil)

type contextKey int

const (
	userIDKey contextKey = iota
	requestIDKey
)

// Manager stores the authenticated user id in the request context.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// SetUserIDToContext returns a copy of ctx carrying userID.
func (m *Manager) SetUserIDToContext(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext reports the user id set by the authentication middleware.
func (m *Manager) GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	if !ok || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
