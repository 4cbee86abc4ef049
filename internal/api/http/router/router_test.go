package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klari-app/klari-server/internal/access"
	httpctx "github.com/klari-app/klari-server/internal/api/http/context"
	"github.com/klari-app/klari-server/internal/api/http/handler"
	"github.com/klari-app/klari-server/internal/api/http/middleware"
	"github.com/klari-app/klari-server/internal/config"
	"github.com/klari-app/klari-server/internal/health"
	"github.com/klari-app/klari-server/internal/metrics"
	"github.com/klari-app/klari-server/internal/model"
	"github.com/klari-app/klari-server/internal/recommend"
	"github.com/klari-app/klari-server/internal/repository/memory"
	"github.com/klari-app/klari-server/internal/service"
	"github.com/klari-app/klari-server/internal/testutil"
	"github.com/klari-app/klari-server/internal/token"
)

type testAPI struct {
	handler http.Handler
	prober  *health.Prober
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := testutil.MakeNoopLogger()
	db := memory.New()
	userStore := memory.NewUserRepository(db)
	productStore := memory.NewProductRepository(db)
	routineStore := memory.NewRoutineRepository(db)
	refreshStore := memory.NewRefreshTokenRepository(db)
	m := metrics.New()

	tokens := service.NewTokenService(token.NewJWT("test-secret", time.Minute, time.Hour), refreshStore, time.Hour, log)
	authService := service.NewAuth(userStore, tokens, log)
	matcher := recommend.NewMatcher(productStore, m, log)
	productService := service.NewProduct(productStore, nil, nil, "", log)
	profileService := service.NewProfile(userStore, productStore, log)
	routineService := service.NewRoutine(routineStore, productStore, m, log)
	builder := service.NewRoutineBuilder(routineService, userStore, matcher, log)

	contextManager := httpctx.NewManager()
	guard := access.NewGuard(contextManager)
	validator := handler.NewValidator()
	prober := health.NewProber(nil, nil, time.Minute, log)

	rt := New(Handlers{
		Auth:      handler.NewAuth(authService, validator, log),
		Product:   handler.NewProduct(productService, validator, log),
		Recommend: handler.NewRecommend(matcher, config.Recommend{DefaultPageSize: 10, DefaultLimit: 10, MaxLimit: 50}, log),
		User:      handler.NewUser(profileService, guard, log),
		Routine:   handler.NewRoutine(routineService, builder, guard, validator, log),
		Ops:       handler.NewOps(prober, log),
		Metrics:   m.Handler(),
	}, authService, contextManager, m, []string{"*"}, log)

	return &testAPI{handler: rt.Register(), prober: prober}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns its id and access token.
func (a *testAPI) register(t *testing.T, name string, skinType string, goals ...string) (int64, string) {
	t.Helper()

	email := name + "@example.com"
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"username": name,
		"email":    email,
		"password": "correct-horse",
		"skinType": skinType,
		"goals":    goals,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var profile model.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))

	rec = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": "correct-horse",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session service.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)

	return profile.ID, session.AccessToken
}

func (a *testAPI) createProduct(t *testing.T, token string, body map[string]any) model.Product {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/products", body, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func product(name, category, appTime string, skinTypes, goals []string) map[string]any {
	return map[string]any{
		"name":            name,
		"brand":           "Acme",
		"category":        category,
		"applicationTime": appTime,
		"skinTypes":       skinTypes,
		"goals":           goals,
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Ops(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = api.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	api.prober.Probe(context.Background())
	rec = api.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[health.Report](t, rec)
	assert.True(t, report.Ready)

	// One request has been observed by now.
	rec = api.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "klari_http_request_duration_seconds")
}

func TestRouter_Auth(t *testing.T) {
	api := newTestAPI(t)

	t.Run("validation errors name fields", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]any{
			"username": "x",
			"email":    "not-an-email",
			"password": "short",
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string]any](t, rec)
		fields, ok := body["fields"].(map[string]any)
		require.True(t, ok, rec.Body.String())
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "password")
		assert.Contains(t, fields, "goals")
	})

	t.Run("missing body", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/login", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown skin type", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]any{
			"username": "ines",
			"email":    "ines@example.com",
			"password": "correct-horse",
			"skinType": "scaly",
			"goals":    []string{"pores"},
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("register login and duplicate", func(t *testing.T) {
		api.register(t, "mara", "oily", "pores")

		rec := api.do(t, http.MethodPost, "/api/auth/register", map[string]any{
			"username": "mara2",
			"email":    "MARA@example.com",
			"password": "correct-horse",
			"skinType": "dry",
			"goals":    []string{"hydration"},
		}, "")
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "mara@example.com",
			"password": "wrong-password",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh rotates and logout revokes", func(t *testing.T) {
		api.register(t, "zoe", "normal", "texture")
		rec := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "zoe@example.com",
			"password": "correct-horse",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		first := decodeBody[service.Session](t, rec)

		rec = api.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": first.RefreshToken}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		second := decodeBody[service.Session](t, rec)
		assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

		rec = api.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": first.RefreshToken}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": second.RefreshToken}, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": second.RefreshToken}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("protected routes need a valid token", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/users/1", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = api.do(t, http.MethodGet, "/api/users/1", nil, "garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_Catalog(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "nora", "dry", "hydration")

	rec := api.do(t, http.MethodPost, "/api/products", product("Gel", "cleanser", "both", nil, nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/products", map[string]any{"name": "No category"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/products", product("Gel", "shampoo", "both", nil, nil), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	gel := api.createProduct(t, token, product("Gel Cleanser", "cleanser", "both", []string{"dry"}, []string{"hydration"}))
	assert.Positive(t, gel.ID)

	rec = api.do(t, http.MethodPost, "/api/products/bulk", []map[string]any{
		product("Vitamin C", "serum", "day", []string{"normal"}, []string{"dark-spots"}),
		product("Retinal", "serum", "night", []string{"normal"}, []string{"fine-lines"}),
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[[]model.Product](t, rec), 2)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d", gel.ID), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/summary", gel.ID), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gel Cleanser", decodeBody[model.ProductSummary](t, rec).Name)

	rec = api.do(t, http.MethodGet, "/api/products/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/products/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/products?category=serum&sort=name", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[model.Page[model.Product]](t, rec)
	assert.EqualValues(t, 2, page.TotalElements)
	assert.Equal(t, "Retinal", page.Content[0].Name)

	rec = api.do(t, http.MethodGet, "/api/products/category/serum?time=night", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/products/brand/ACME", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody[model.Page[model.Product]](t, rec).TotalElements)

	rec = api.do(t, http.MethodGet, "/api/products/search?q=vitamin", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody[model.Page[model.ProductSummary]](t, rec).TotalElements)

	rec = api.do(t, http.MethodGet, "/api/products?size=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/products?sort=price", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	update := product("Gel Cleanser 2", "cleanser", "both", []string{"dry"}, []string{"hydration"})
	rec = api.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d", gel.ID), update, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Gel Cleanser 2", decodeBody[model.Product](t, rec).Name)

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/products/%d/image", gel.ID), strings.NewReader("\x89PNG\r\n\x1a\nrest"))
	req.Header.Set("Authorization", "Bearer "+token)
	img := httptest.NewRecorder()
	api.handler.ServeHTTP(img, req)
	assert.Equal(t, http.StatusServiceUnavailable, img.Code)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", gel.ID), nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", gel.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Recommend(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "lena", "oily", "pores")

	api.createProduct(t, token, product("Oil Control", "serum", "day", []string{"oily"}, []string{"pores"}))
	api.createProduct(t, token, product("Barrier", "serum", "night", []string{"dry"}, []string{"irritation"}))

	type result struct {
		Tier string                           `json:"tier"`
		Page model.Page[model.ProductSummary] `json:"page"`
	}

	tests := map[string]struct {
		query    string
		wantCode int
		wantTier string
		wantLen  int
	}{
		"full match": {
			query:    "category=serum&time=day&skinType=oily&goals=pores",
			wantCode: http.StatusOK, wantTier: recommend.TierFull, wantLen: 1,
		},
		"skin type tier": {
			query:    "category=serum&time=day&skinType=oily&goals=hydration",
			wantCode: http.StatusOK, wantTier: recommend.TierSkinType, wantLen: 1,
		},
		"no goals falls through to category and time": {
			query:    "category=serum&time=night&skinType=oily",
			wantCode: http.StatusOK, wantTier: recommend.TierCategoryTime, wantLen: 1,
		},
		"nothing in category": {
			query:    "category=mask&time=day&skinType=oily&goals=pores",
			wantCode: http.StatusOK, wantTier: recommend.TierNone, wantLen: 0,
		},
		"missing skin type": {
			query:    "category=serum&time=day",
			wantCode: http.StatusBadRequest,
		},
		"unknown goal": {
			query:    "category=serum&time=day&skinType=oily&goals=glow",
			wantCode: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/products/routine/recommend?"+tt.query, nil, "")
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			res := decodeBody[result](t, rec)
			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Len(t, res.Page.Content, tt.wantLen)
		})
	}

	t.Run("simple clamps the limit", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/products/routine/recommend/simple?category=serum&time=day&skinType=oily&goals=pores&limit=500", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody[map[string]any](t, rec)
		assert.Equal(t, recommend.TierFull, body["tier"])
		assert.Len(t, body["products"], 1)

		rec = api.do(t, http.MethodGet, "/api/products/routine/recommend/simple?category=serum&time=day&skinType=oily&limit=0", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Profile(t *testing.T) {
	api := newTestAPI(t)
	id, token := api.register(t, "ada", "combination", "texture")
	otherID, _ := api.register(t, "bea", "dry", "hydration")
	p := api.createProduct(t, token, product("Toner", "toner", "both", nil, nil))

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada", decodeBody[model.Profile](t, rec).Username)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", otherID), nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPatch, fmt.Sprintf("/api/users/%d/skin-type?skinType=sensitive", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/skin-type", id), nil, token)
	assert.JSONEq(t, `{"skinType":"sensitive"}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/goals/pores", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d/goals/texture", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d/goals/pores", id), nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/goals", id), nil, token)
	assert.JSONEq(t, `{"goals":["pores"]}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/favorites/%d", id, p.ID), nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/favorites/%d/exists", id, p.ID), nil, token)
	assert.JSONEq(t, `{"exists":true}`, rec.Body.String())
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/inventory/%d/exists", id, p.ID), nil, token)
	assert.JSONEq(t, `{"exists":false}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/favorites/summary?category=toner", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody[model.Page[model.ProductSummary]](t, rec).TotalElements)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/favorites/999", id), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d/favorites/%d", id, p.ID), nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_Routines(t *testing.T) {
	api := newTestAPI(t)
	id, token := api.register(t, "ola", "normal", "texture")
	otherID, otherToken := api.register(t, "pia", "normal", "texture")

	cleanser := api.createProduct(t, token, product("Foam", "cleanser", "both", []string{"normal"}, []string{"texture"}))
	api.createProduct(t, token, product("Shield", "sunscreen", "day", []string{"normal"}, nil))
	balm := api.createProduct(t, token, product("Balm", "cleanser", "both", []string{"dry"}, nil))

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/routines/user/%d/day/initial", id), nil, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	day := decodeBody[model.Routine](t, rec)
	assert.True(t, day.Active)
	require.Len(t, day.Products, 2)
	assert.Equal(t, cleanser.ID, day.Products[0].ID)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/routines/user/%d/day/initial", id), nil, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/routines", map[string]any{"userId": id, "routineType": "day"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/routines", map[string]any{"userId": otherID, "routineType": "night"}, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/%d", day.ID), nil, otherToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, fmt.Sprintf("/api/routines/%d/products/%d", day.ID, balm.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[model.Routine](t, rec)
	require.Len(t, updated.Products, 2)
	assert.Equal(t, balm.ID, updated.Products[1].ID)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/user/%d/day/active", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, day.ID, decodeBody[model.Routine](t, rec).ID)

	rec = api.do(t, http.MethodPatch, fmt.Sprintf("/api/routines/%d/deactivate", day.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[model.Routine](t, rec).Active)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/user/%d/day/active", id), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/routines", map[string]any{"userId": id, "routineType": "day"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, fmt.Sprintf("/api/routines/%d/activate", day.ID), nil, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/user/%d/day/inactive", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Routine](t, rec), 1)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/routines", id), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Routine](t, rec), 2)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/user/%d/brunch/active", id), nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/routines/%d", day.ID), nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/routines/%d", day.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
