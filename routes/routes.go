package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/fetchguard/app"
	"github.com/upb/fetchguard/auth"
	"github.com/upb/fetchguard/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) (http.Handler, error) {
	proxy, err := NewUpstreamProxy(deps.Config.Upstream.URL, deps.Config.Upstream.FlushInterval, deps.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)

	// Health check endpoints
	health := deps.HealthHandler()
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Admin API (bearer token, admin role)
	if deps.AuthMiddleware != nil {
		policies := deps.PolicyHandler()
		r.Route("/admin", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: deps.Config.Admin.AllowedOrigins,
				AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			}))
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireRole(auth.RoleAdmin))

			r.Get("/policy", policies.HandleGetPolicy)
			r.Put("/policy", policies.HandleUpdatePolicy)
			r.Post("/policy/reload", policies.HandleReloadPolicy)
			r.Get("/blocks", policies.HandleListBlocks)
			r.Get("/stats", policies.HandleStats)
		})
	}

	// Everything else is the protected application
	r.Group(func(r chi.Router) {
		r.Use(middleware.PolicyResolver(deps.Policies.Store()))
		r.Use(deps.Isolation.Enforce)
		r.Handle("/*", proxy)
	})

	return r, nil
}
