package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// TokenService provides high-level operations for issuing, refreshing,
// and revoking tokens. It composes the TokenManager and RefreshTokenStore.
type TokenService struct {
	manager    model.TokenManager
	store      model.RefreshTokenStore
	refreshTTL time.Duration
	logger     *logger.Logger
}

// NewTokenService creates a TokenService. refreshTTL must match the lifetime the
// manager signs into refresh tokens; it only drives the stored expiry used for
// revocation checks.
func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, refreshTTL time.Duration, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, store: store, refreshTTL: refreshTTL, logger: logger}
}

func (s *TokenService) Issue(ctx context.Context, userID int64) (accessToken string, refreshToken string, err error) {
	access, err := s.manager.GenerateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue access: %w", err)
	}

	refresh, err := s.persistRefresh(ctx, userID, nil)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (s *TokenService) Refresh(ctx context.Context, presentedRefresh string) (newAccess string, newRefresh string, err error) {
	userID, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return "", "", err
	}

	rt, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		return "", "", err
	}

	// Validate stored state vs presented token.
	if err := validateRecord(rt, hashRefresh(presentedRefresh), time.Now()); err != nil {
		s.logger.Info("Token service: refresh rejected",
			"user_id", userID,
			"jti", jti,
			"reason", err.Error())
		return "", "", err
	}

	// Revoke old token (rotation) and issue new pair.
	if err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return "", "", fmt.Errorf("revoke old refresh: %w", err)
	}

	access, err := s.manager.GenerateAccessToken(userID)
	if err != nil {
		return "", "", fmt.Errorf("issue new access: %w", err)
	}

	rotatedFrom := rt.JTI
	refresh, err := s.persistRefresh(ctx, userID, &rotatedFrom)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) error {
	_, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return err
	}
	return s.store.RevokeByJTI(ctx, jti)
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

func (s *TokenService) GetUserID(ctx context.Context, token string) (int64, error) {
	return s.manager.ParseAccessToken(token)
}

func (s *TokenService) persistRefresh(ctx context.Context, userID int64, rotatedFrom *string) (string, error) {
	refresh, jti, err := s.manager.GenerateRefreshToken(userID)
	if err != nil {
		return "", fmt.Errorf("issue refresh: %w", err)
	}

	now := time.Now()
	rt := model.RefreshToken{
		ID:             uuid.New(),
		JTI:            jti,
		UserID:         userID,
		TokenHash:      hashRefresh(refresh),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.refreshTTL),
		RotatedFromJTI: rotatedFrom,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, rt); err != nil {
		return "", fmt.Errorf("persist refresh: %w", err)
	}

	return refresh, nil
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(rt model.RefreshToken, presentedHash []byte, now time.Time) error {
	if rt.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if now.After(rt.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if subtle.ConstantTimeCompare(rt.TokenHash, presentedHash) != 1 {
		return model.ErrTokenMismatch
	}
	return nil
}
