// internal/app/features/events/routes.go
package events

import (
	"github.com/go-chi/chi/v5"

	"github.com/commonweal/volunteerhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Public reads. Detail handlers still look at the identity when one
	// is present so organizers can see their own drafts.
	r.Get("/", h.ServeList)
	r.Get("/meta/categories", h.ServeCategories)
	r.Get("/stats/overview", h.ServeStatsOverview)
	r.Get("/slug/{slug}", h.ServeEventBySlug)
	r.Get("/{id}", h.ServeEvent)

	// Writes require a signed-in caller.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity)
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/registrations", h.ServeRegistrations)
	})

	return r
}
