package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/klari-app/klari-server/internal/model"
)

// TokenManager is a mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateAccessToken(userID int64) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) GenerateRefreshToken(userID int64) (string, string, error) {
	args := m.Called(userID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *TokenManager) ParseAccessToken(token string) (int64, error) {
	args := m.Called(token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TokenManager) ParseRefreshToken(token string) (int64, string, error) {
	args := m.Called(token)
	return args.Get(0).(int64), args.String(1), args.Error(2)
}

// RefreshTokenStore is a mock of model.RefreshTokenStore.
type RefreshTokenStore struct {
	mock.Mock
}

func (m *RefreshTokenStore) Create(ctx context.Context, token model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *RefreshTokenStore) GetByJTI(ctx context.Context, jti string) (model.RefreshToken, error) {
	args := m.Called(ctx, jti)
	return args.Get(0).(model.RefreshToken), args.Error(1)
}

func (m *RefreshTokenStore) RevokeByJTI(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

func (m *RefreshTokenStore) RevokeAllByUser(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// ContextManager is a mock of model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func (m *ContextManager) SetUserIDToContext(ctx context.Context, userID int64) context.Context {
	args := m.Called(ctx, userID)
	return args.Get(0).(context.Context)
}

func (m *ContextManager) GetUserIDFromContext(ctx context.Context) (int64, bool) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Bool(1)
}
