package memory

import (
	"context"

	"github.com/klari-app/klari-server/internal/model"
)

var _ model.RefreshTokenStore = (*RefreshTokenRepository)(nil)

type RefreshTokenRepository struct {
	db *DB
}

func NewRefreshTokenRepository(db *DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token model.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.refreshTokens[token.JTI]; exists {
		return model.ErrConflict
	}
	now := r.db.now()
	token.CreatedAt = now
	token.UpdatedAt = now
	r.db.refreshTokens[token.JTI] = token
	return nil
}

func (r *RefreshTokenRepository) GetByJTI(_ context.Context, jti string) (model.RefreshToken, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	token, ok := r.db.refreshTokens[jti]
	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return token, nil
}

func (r *RefreshTokenRepository) RevokeByJTI(_ context.Context, jti string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	token, ok := r.db.refreshTokens[jti]
	if !ok || token.RevokedAt != nil {
		return nil
	}
	now := r.db.now()
	token.RevokedAt = &now
	token.UpdatedAt = now
	r.db.refreshTokens[jti] = token
	return nil
}

func (r *RefreshTokenRepository) RevokeAllByUser(_ context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	for jti, token := range r.db.refreshTokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			token.UpdatedAt = now
			r.db.refreshTokens[jti] = token
		}
	}
	return nil
}
