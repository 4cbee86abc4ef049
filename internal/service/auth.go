package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// RegisterParams carries a new account and its initial skin profile.
type RegisterParams struct {
	Username string
	Email    string
	Password string
	SkinType model.SkinType
	Goals    []model.Goal
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Auth struct {
	userStore    model.UserStore
	tokenService *TokenService
	hashCost     int
	logger       *logger.Logger
}

func NewAuth(
	userStore model.UserStore,
	tokenService *TokenService,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenService: tokenService,
		hashCost:     bcrypt.DefaultCost,
		logger:       logger,
	}
}

// Register creates the account and returns its profile. A profile needs at
// least one goal.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (model.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	a.logger.Debug("Auth service: starting user registration",
		"email", email)

	if len(params.Goals) == 0 {
		return model.Profile{}, fmt.Errorf("at least one goal is required: %w", model.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), a.hashCost)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password",
			"email", email,
			"error", err.Error())
		return model.Profile{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.userStore.Create(ctx, model.User{
		Username:     strings.TrimSpace(params.Username),
		Email:        email,
		PasswordHash: string(hash),
		SkinType:     params.SkinType,
		Goals:        params.Goals,
	})
	if errors.Is(err, model.ErrConflict) {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return model.Profile{}, fmt.Errorf("email or username is taken: %w", err)
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.Profile{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.logger.Info("Auth service: user registration completed successfully",
		"user_id", user.ID)

	return user.Profile(), nil
}

// Login verifies the credentials and issues a token pair. Unknown emails and
// wrong passwords fail identically.
func (a *Auth) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("Auth service: invalid password",
			"user_id", user.ID)
		return Session{}, model.ErrInvalidCredentials
	}

	accessToken, refreshToken, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue token: %w", err)
	}

	a.logger.Info("Auth service: login completed successfully",
		"user_id", user.ID)

	return Session{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates the refresh token.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	access, refresh, err := a.tokenService.Refresh(ctx, refreshToken)
	if err != nil {
		return Session{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return Session{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the presented refresh token.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	if err := a.tokenService.RevokeByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to its user id.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	return a.tokenService.GetUserID(ctx, accessToken)
}
