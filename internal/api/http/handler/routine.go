package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// RoutineService is the routine API. Every call is checked against the caller.
type RoutineService interface {
	Create(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) (model.Routine, error)
	Get(ctx context.Context, caller, routineID int64) (model.Routine, error)
	ListByOwner(ctx context.Context, caller, ownerID int64) ([]model.Routine, error)
	GetActiveByType(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) (model.Routine, error)
	ListInactiveByType(ctx context.Context, caller, ownerID int64, routineType model.RoutineType) ([]model.Routine, error)
	Remove(ctx context.Context, caller, routineID int64) error
	AddProduct(ctx context.Context, caller, routineID, productID int64) (model.Routine, error)
	RemoveProduct(ctx context.Context, caller, routineID, productID int64) (model.Routine, error)
	Activate(ctx context.Context, caller, routineID int64) (model.Routine, error)
	Deactivate(ctx context.Context, caller, routineID int64) (model.Routine, error)
}

// InitialBuilder assembles a first routine from recommendations.
type InitialBuilder interface {
	BuildInitial(ctx context.Context, caller, userID int64, routineType model.RoutineType) (model.Routine, error)
}

type Routine struct {
	routines  RoutineService
	builder   InitialBuilder
	guard     CallerResolver
	validator *Validator
	logger    *logger.Logger
}

func NewRoutine(
	routines RoutineService,
	builder InitialBuilder,
	guard CallerResolver,
	validator *Validator,
	logger *logger.Logger,
) *Routine {
	return &Routine{
		routines:  routines,
		builder:   builder,
		guard:     guard,
		validator: validator,
		logger:    logger,
	}
}

type createRoutineRequest struct {
	UserID      int64  `json:"userId" validate:"required,gt=0"`
	RoutineType string `json:"routineType" validate:"required"`
}

func (h *Routine) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := h.guard.Caller(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	var req createRoutineRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}
	routineType, err := model.ParseRoutineType(req.RoutineType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	routine, err := h.routines.Create(r.Context(), caller, req.UserID, routineType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.Created(w, routine, h.logger)
}

func (h *Routine) Get(w http.ResponseWriter, r *http.Request) {
	caller, routineID, ok := h.routineTarget(w, r, "id")
	if !ok {
		return
	}

	routine, err := h.routines.Get(r.Context(), caller, routineID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, routine, h.logger)
}

func (h *Routine) Delete(w http.ResponseWriter, r *http.Request) {
	caller, routineID, ok := h.routineTarget(w, r, "id")
	if !ok {
		return
	}

	if err := h.routines.Remove(r.Context(), caller, routineID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.NoContent(w)
}

// ListByOwner returns handlers for both /users/{id}/routines and
// /routines/user/{userId}; param names the owner path parameter.
func (h *Routine) ListByOwner(param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ownerID, ok := h.routineTarget(w, r, param)
		if !ok {
			return
		}

		routines, err := h.routines.ListByOwner(r.Context(), caller, ownerID)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		response.OK(w, routines, h.logger)
	}
}

func (h *Routine) Active(w http.ResponseWriter, r *http.Request) {
	caller, ownerID, routineType, ok := h.typedTarget(w, r)
	if !ok {
		return
	}

	routine, err := h.routines.GetActiveByType(r.Context(), caller, ownerID, routineType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, routine, h.logger)
}

func (h *Routine) Inactive(w http.ResponseWriter, r *http.Request) {
	caller, ownerID, routineType, ok := h.typedTarget(w, r)
	if !ok {
		return
	}

	routines, err := h.routines.ListInactiveByType(r.Context(), caller, ownerID, routineType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, routines, h.logger)
}

// Initial builds and stores the owner's first routine of the given type.
func (h *Routine) Initial(w http.ResponseWriter, r *http.Request) {
	caller, ownerID, routineType, ok := h.typedTarget(w, r)
	if !ok {
		return
	}

	routine, err := h.builder.BuildInitial(r.Context(), caller, ownerID, routineType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.Created(w, routine, h.logger)
}

func (h *Routine) AddProduct(w http.ResponseWriter, r *http.Request) {
	h.changeProduct(w, r, h.routines.AddProduct)
}

func (h *Routine) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	h.changeProduct(w, r, h.routines.RemoveProduct)
}

func (h *Routine) Activate(w http.ResponseWriter, r *http.Request) {
	h.changeActive(w, r, h.routines.Activate)
}

func (h *Routine) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.changeActive(w, r, h.routines.Deactivate)
}

func (h *Routine) changeProduct(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, caller, routineID, productID int64) (model.Routine, error),
) {
	caller, routineID, ok := h.routineTarget(w, r, "routineId")
	if !ok {
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	routine, err := change(r.Context(), caller, routineID, productID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, routine, h.logger)
}

func (h *Routine) changeActive(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, caller, routineID int64) (model.Routine, error),
) {
	caller, routineID, ok := h.routineTarget(w, r, "id")
	if !ok {
		return
	}

	routine, err := change(r.Context(), caller, routineID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, routine, h.logger)
}

func (h *Routine) routineTarget(w http.ResponseWriter, r *http.Request, param string) (caller, id int64, ok bool) {
	caller, err := h.guard.Caller(r.Context())
	if err != nil {
		writeError(w, r, err, h.logger)
		return 0, 0, false
	}
	id, err = pathID(r, param)
	if err != nil {
		writeError(w, r, err, h.logger)
		return 0, 0, false
	}
	return caller, id, true
}

func (h *Routine) typedTarget(w http.ResponseWriter, r *http.Request) (caller, ownerID int64, routineType model.RoutineType, ok bool) {
	caller, ownerID, ok = h.routineTarget(w, r, "userId")
	if !ok {
		return 0, 0, "", false
	}
	routineType, err := model.ParseRoutineType(chi.URLParam(r, "routineType"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return 0, 0, "", false
	}
	return caller, ownerID, routineType, true
}
