package handler

import (
	"context"
	"net/http"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/service"
)

// AuthService is the account and session API.
type AuthService interface {
	Register(ctx context.Context, params service.RegisterParams) (model.Profile, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (service.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Auth struct {
	auth      AuthService
	validator *Validator
	logger    *logger.Logger
}

func NewAuth(auth AuthService, validator *Validator, logger *logger.Logger) *Auth {
	return &Auth{auth: auth, validator: validator, logger: logger}
}

type registerRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50"`
	Email    string   `json:"email" validate:"required,email,max=254"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	SkinType string   `json:"skinType" validate:"required"`
	Goals    []string `json:"goals" validate:"required,min=1,max=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Register creates an account and answers with its profile.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	skinType, err := model.ParseSkinType(req.SkinType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	goals, err := model.ParseGoals(req.Goals)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := h.auth.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		SkinType: skinType,
		Goals:    goals,
	})
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.Created(w, profile, h.logger)
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, session, h.logger)
}

func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, session, h.logger)
}

func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.NoContent(w)
}
