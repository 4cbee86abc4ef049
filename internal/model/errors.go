package model

import "errors"

// Error taxonomy shared by stores, services and transports. Stores return these
// (optionally wrapped) and transports map them to status codes.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnavailable     = errors.New("unavailable")

	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh token rotation failures; all answer 401.
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)
