// Package router assembles the REST API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/klari-app/klari-server/internal/api/http/handler"
	"github.com/klari-app/klari-server/internal/api/http/middleware"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth      *handler.Auth
	Product   *handler.Product
	Recommend *handler.Recommend
	User      *handler.User
	Routine   *handler.Routine
	Ops       *handler.Ops
	Metrics   http.Handler
}

type Router struct {
	handlers     Handlers
	authenticate *middleware.Authenticate
	logging      *middleware.Logging
	corsOrigins  []string
	logger       *logger.Logger
}

func New(
	handlers Handlers,
	authenticator middleware.Authenticator,
	contextManager model.ContextManager,
	observer middleware.HTTPObserver,
	corsOrigins []string,
	logger *logger.Logger,
) *Router {
	return &Router{
		handlers:     handlers,
		authenticate: middleware.NewAuthenticate(authenticator, contextManager, logger),
		logging:      middleware.NewLogging(logger, observer),
		corsOrigins:  corsOrigins,
		logger:       logger,
	}
}

// Register builds the chi mux with every route mounted.
func (rt *Router) Register() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(rt.logging.Handle)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := rt.handlers

	r.Get("/healthz", h.Ops.Live)
	r.Get("/readyz", h.Ops.Ready)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)
			r.Post("/logout", h.Auth.Logout)
		})

		r.Route("/products", func(r chi.Router) {
			// Catalog reads and recommendations are public.
			r.Get("/", h.Product.List)
			r.Get("/summary", h.Product.ListSummaries)
			r.Get("/search", h.Product.ListSummaries)
			r.Get("/category/{category}", h.Product.ByCategory)
			r.Get("/brand/{brand}", h.Product.ByBrand)
			r.Get("/routine/recommend", h.Recommend.Paged)
			r.Get("/routine/recommend/simple", h.Recommend.Simple)
			r.Get("/{id}", h.Product.Get)
			r.Get("/{id}/summary", h.Product.GetSummary)
			r.Get("/{id}/image", h.Product.Image)

			r.Group(func(r chi.Router) {
				r.Use(rt.authenticate.Handle)
				r.Post("/", h.Product.Create)
				r.Post("/bulk", h.Product.CreateBulk)
				r.Put("/{id}", h.Product.Update)
				r.Delete("/{id}", h.Product.Delete)
				r.Put("/{id}/image", h.Product.UploadImage)
				r.Post("/{id}/image", h.Product.UploadImage)
			})
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(rt.authenticate.Handle)
			r.Get("/", h.User.Get)
			r.Get("/skin-type", h.User.GetSkinType)
			r.Patch("/skin-type", h.User.SetSkinType)
			r.Get("/goals", h.User.GetGoals)
			r.Post("/goals/{goal}", h.User.AddGoal)
			r.Delete("/goals/{goal}", h.User.RemoveGoal)
			r.Get("/routines", h.Routine.ListByOwner("id"))

			for _, c := range []model.Collection{model.CollectionFavorites, model.CollectionInventory} {
				r.Route("/"+string(c), func(r chi.Router) {
					r.Get("/summary", h.User.ListCollection(c))
					r.Post("/{productId}", h.User.AddToCollection(c))
					r.Delete("/{productId}", h.User.RemoveFromCollection(c))
					r.Get("/{productId}/exists", h.User.InCollection(c))
				})
			}
		})

		r.Route("/routines", func(r chi.Router) {
			r.Use(rt.authenticate.Handle)
			r.Post("/", h.Routine.Create)
			r.Get("/{id}", h.Routine.Get)
			r.Delete("/{id}", h.Routine.Delete)
			r.Patch("/{id}/activate", h.Routine.Activate)
			r.Patch("/{id}/deactivate", h.Routine.Deactivate)
			r.Post("/{routineId}/products/{productId}", h.Routine.AddProduct)
			r.Delete("/{routineId}/products/{productId}", h.Routine.RemoveProduct)

			r.Route("/user/{userId}", func(r chi.Router) {
				r.Get("/", h.Routine.ListByOwner("userId"))
				r.Get("/{routineType}/active", h.Routine.Active)
				r.Get("/{routineType}/inactive", h.Routine.Inactive)
				r.Post("/{routineType}/initial", h.Routine.Initial)
			})
		})
	})

	return r
}
