// internal/app/features/registrations/routes.go
package registrations

import (
	"github.com/go-chi/chi/v5"

	"github.com/commonweal/volunteerhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireIdentity)

	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeRegistration)
	r.Put("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleCancel)

	r.Post("/{id}/approve", h.HandleApprove)
	r.Post("/{id}/reject", h.HandleReject)
	r.Post("/{id}/checkin", h.HandleCheckIn)
	r.Post("/{id}/feedback", h.HandleFeedback)

	return r
}
