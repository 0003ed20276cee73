package router

import (
	"net/http"

	"school-inventory-api/internal/handler"
	"school-inventory-api/internal/middleware"
	"school-inventory-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	ItemHandler    *handler.ItemHandler
	RequestHandler *handler.RequestHandler
	ReportHandler  *handler.ReportHandler
	AdminHandler   *handler.AdminHandler
	AuthHandler    *handler.AuthHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	// Login is public; revoke/refresh only need the token itself
	if cfg.AuthHandler != nil {
		r.Route("/api/v1/auth", func(r chi.Router) {
			r.Post("/token", cfg.AuthHandler.GenerateToken)
			r.Post("/revoke", cfg.AuthHandler.RevokeToken)
			r.Post("/refresh", cfg.AuthHandler.RefreshToken)
		})
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		// Apply auth middleware only to this group
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Catalog endpoints
			if cfg.ItemHandler != nil {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.ListItems)
					r.Get("/{id}", cfg.ItemHandler.GetItem)

					// Mutations are restricted at the route level; the
					// service layer enforces the same rules again.
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRoles(model.RoleStockManager, model.RoleAdmin))
						r.Post("/", cfg.ItemHandler.CreateItem)
						r.Post("/{id}/adjust", cfg.ItemHandler.AdjustQuantity)
					})
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRoles(model.RoleAdmin))
						r.Delete("/{id}", cfg.ItemHandler.DeleteItem)
					})
				})
			}

			// Request lifecycle endpoints
			if cfg.RequestHandler != nil {
				r.Route("/requests", func(r chi.Router) {
					r.Post("/", cfg.RequestHandler.Submit)
					r.Get("/", cfg.RequestHandler.List)
					r.Get("/{id}", cfg.RequestHandler.Get)
					r.Post("/{id}/cancel", cfg.RequestHandler.Cancel)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRoles(
							model.RoleDepartmentHead, model.RoleStockManager, model.RoleAdmin))
						r.Post("/{id}/approve", cfg.RequestHandler.Approve)
						r.Post("/{id}/reject", cfg.RequestHandler.Reject)
					})
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRoles(model.RoleStockManager))
						r.Post("/{id}/fulfill", cfg.RequestHandler.Fulfill)
					})
				})
			}

			// Report endpoints
			if cfg.ReportHandler != nil {
				r.Get("/reports/summary", cfg.ReportHandler.GetSummary)
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireRoles(model.RoleAdmin))
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/activity", cfg.AdminHandler.ListActivity)
					r.Post("/activity/prune", cfg.AdminHandler.PruneActivity)
				})
			}
		})
	})

	return r
}
