package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

const defaultCollectionPageSize = 10

// CallerResolver yields the authenticated user id of a request.
type CallerResolver interface {
	Caller(ctx context.Context) (int64, error)
}

// ProfileService is the profile and collection API. Every call is checked
// against the caller.
type ProfileService interface {
	Get(ctx context.Context, caller, userID int64) (model.Profile, error)
	SetSkinType(ctx context.Context, caller, userID int64, skinType model.SkinType) (model.Profile, error)
	AddGoal(ctx context.Context, caller, userID int64, goal model.Goal) (model.Profile, error)
	RemoveGoal(ctx context.Context, caller, userID int64, goal model.Goal) (model.Profile, error)
	AddToCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) error
	RemoveFromCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) error
	InCollection(ctx context.Context, caller, userID int64, collection model.Collection, productID int64) (bool, error)
	ListCollection(ctx context.Context, caller, userID int64, collection model.Collection, category *model.Category, page model.PageRequest) (model.Page[model.ProductSummary], error)
}

type User struct {
	profiles ProfileService
	guard    CallerResolver
	logger   *logger.Logger
}

func NewUser(profiles ProfileService, guard CallerResolver, logger *logger.Logger) *User {
	return &User{profiles: profiles, guard: guard, logger: logger}
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type skinTypeResponse struct {
	SkinType model.SkinType `json:"skinType"`
}

type goalsResponse struct {
	Goals []model.Goal `json:"goals"`
}

// target resolves the caller and the {id} path parameter.
func (h *User) target(r *http.Request, param string) (caller, userID int64, err error) {
	caller, err = h.guard.Caller(r.Context())
	if err != nil {
		return 0, 0, err
	}
	userID, err = pathID(r, param)
	if err != nil {
		return 0, 0, err
	}
	return caller, userID, nil
}

func (h *User) Get(w http.ResponseWriter, r *http.Request) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := h.profiles.Get(r.Context(), caller, userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, profile, h.logger)
}

func (h *User) GetSkinType(w http.ResponseWriter, r *http.Request) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := h.profiles.Get(r.Context(), caller, userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, skinTypeResponse{SkinType: profile.SkinType}, h.logger)
}

// SetSkinType reads the new value from the skinType query parameter.
func (h *User) SetSkinType(w http.ResponseWriter, r *http.Request) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	skinType, err := model.ParseSkinType(r.URL.Query().Get("skinType"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := h.profiles.SetSkinType(r.Context(), caller, userID, skinType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, profile, h.logger)
}

func (h *User) GetGoals(w http.ResponseWriter, r *http.Request) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := h.profiles.Get(r.Context(), caller, userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, goalsResponse{Goals: profile.Goals}, h.logger)
}

func (h *User) AddGoal(w http.ResponseWriter, r *http.Request) {
	h.changeGoal(w, r, h.profiles.AddGoal)
}

func (h *User) RemoveGoal(w http.ResponseWriter, r *http.Request) {
	h.changeGoal(w, r, h.profiles.RemoveGoal)
}

func (h *User) changeGoal(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, caller, userID int64, goal model.Goal) (model.Profile, error),
) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	goal, err := model.ParseGoal(chi.URLParam(r, "goal"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	profile, err := change(r.Context(), caller, userID, goal)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, profile, h.logger)
}

// AddToCollection returns the handler for POST /{id}/<collection>/{productId}.
func (h *User) AddToCollection(collection model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, userID, productID, ok := h.collectionTarget(w, r)
		if !ok {
			return
		}
		if err := h.profiles.AddToCollection(r.Context(), caller, userID, collection, productID); err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		response.NoContent(w)
	}
}

func (h *User) RemoveFromCollection(collection model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, userID, productID, ok := h.collectionTarget(w, r)
		if !ok {
			return
		}
		if err := h.profiles.RemoveFromCollection(r.Context(), caller, userID, collection, productID); err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		response.NoContent(w)
	}
}

func (h *User) InCollection(collection model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, userID, productID, ok := h.collectionTarget(w, r)
		if !ok {
			return
		}
		exists, err := h.profiles.InCollection(r.Context(), caller, userID, collection, productID)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		response.OK(w, existsResponse{Exists: exists}, h.logger)
	}
}

// ListCollection pages the collection newest first, optionally by category.
func (h *User) ListCollection(collection model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, userID, err := h.target(r, "id")
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		category, err := optionalCategory(r)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		page, err := pageRequest(r, defaultCollectionPageSize, true)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}

		summaries, err := h.profiles.ListCollection(r.Context(), caller, userID, collection, category, page)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		response.OK(w, summaries, h.logger)
	}
}

func (h *User) collectionTarget(w http.ResponseWriter, r *http.Request) (caller, userID, productID int64, ok bool) {
	caller, userID, err := h.target(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return 0, 0, 0, false
	}
	productID, err = pathID(r, "productId")
	if err != nil {
		writeError(w, r, err, h.logger)
		return 0, 0, 0, false
	}
	return caller, userID, productID, true
}
