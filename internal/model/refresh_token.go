package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore persists issued refresh tokens for rotation and revocation.
type RefreshTokenStore interface {
	Create(ctx context.Context, token RefreshToken) error
	GetByJTI(ctx context.Context, jti string) (RefreshToken, error)
	RevokeByJTI(ctx context.Context, jti string) error
	RevokeAllByUser(ctx context.Context, userID int64) error
}

// RefreshToken is the stored, hashed form of an issued refresh token.
type RefreshToken struct {
	ID             uuid.UUID
	JTI            string
	UserID         int64
	TokenHash      []byte
	IssuedAt       time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RotatedFromJTI *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
