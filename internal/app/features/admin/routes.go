// internal/app/features/admin/routes.go
package admin

import (
	"github.com/go-chi/chi/v5"

	"github.com/commonweal/volunteerhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireIdentity)
	r.Post("/rebuild", h.HandleRebuild)
	return r
}
