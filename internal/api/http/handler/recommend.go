package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/config"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
)

type Recommend struct {
	recommender recommend.Recommender
	limits      config.Recommend
	logger      *logger.Logger
}

func NewRecommend(recommender recommend.Recommender, limits config.Recommend, logger *logger.Logger) *Recommend {
	return &Recommend{recommender: recommender, limits: limits, logger: logger}
}

type topResponse struct {
	Tier     string                 `json:"tier"`
	Products []model.ProductSummary `json:"products"`
}

// Paged answers GET /routine/recommend with one page of the first matching tier.
func (h *Recommend) Paged(w http.ResponseWriter, r *http.Request) {
	q, err := recommendQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	page, err := pageRequest(r, h.limits.DefaultPageSize, false)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	result, err := h.recommender.Match(r.Context(), q, page)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, result, h.logger)
}

// Simple answers GET /routine/recommend/simple with up to limit products.
// Limits above the configured maximum are clamped.
func (h *Recommend) Simple(w http.ResponseWriter, r *http.Request) {
	q, err := recommendQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	limit := h.limits.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, r, fmt.Errorf("limit must be a positive integer: %w", model.ErrInvalidInput), h.logger)
			return
		}
	}
	limit = min(limit, h.limits.MaxLimit)

	result, err := recommend.Top(r.Context(), h.recommender, q, limit)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, topResponse{Tier: result.Tier, Products: result.Page.Content}, h.logger)
}

// recommendQuery reads category, time and skinType (all required) and goals.
// An absent goals parameter means the profile has no goals.
func recommendQuery(r *http.Request) (recommend.Query, error) {
	values := r.URL.Query()
	var q recommend.Query

	for _, name := range []string{"category", "time", "skinType"} {
		if values.Get(name) == "" {
			return q, fmt.Errorf("%s is required: %w", name, model.ErrInvalidInput)
		}
	}

	category, err := model.ParseCategory(values.Get("category"))
	if err != nil {
		return q, err
	}
	appTime, err := model.ParseApplicationTime(values.Get("time"))
	if err != nil {
		return q, err
	}
	skinType, err := model.ParseSkinType(values.Get("skinType"))
	if err != nil {
		return q, err
	}
	goals, err := model.ParseGoals(queryList(r, "goals"))
	if err != nil {
		return q, err
	}

	return recommend.Query{Category: category, Time: appTime, SkinType: skinType, Goals: goals}, nil
}
