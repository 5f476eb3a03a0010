// internal/app/features/authapi/routes.go
package authapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/commonweal/volunteerhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireIdentity)
		pr.Post("/login", h.HandleLogin)
		pr.Get("/verify", h.HandleVerify)
		pr.Post("/logout", h.HandleLogout)
	})
	return r
}
