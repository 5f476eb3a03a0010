// internal/app/features/users/routes.go
package users

import (
	"github.com/go-chi/chi/v5"

	"github.com/commonweal/volunteerhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Public profile is the one open route.
	r.Get("/{id}/public", h.ServePublicProfile)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity)
		r.Get("/profile", h.ServeProfile)
		r.Put("/profile", h.HandleUpdateProfile)
		r.Get("/dashboard", h.ServeDashboard)
		r.Get("/events", h.ServeEvents)
		r.Get("/stats", h.ServeStats)
		r.Delete("/account", h.HandleDeleteAccount)
	})

	return r
}
