// Package caller resolves the authenticated identity to its User row.
package caller

import (
	"net/http"

	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// Resolve returns the User row for the request's identity. Tokens issued
// before first login carry no user id, so the lookup goes through the
// stable subject id. Deactivated accounts are treated as gone.
func Resolve(r *http.Request, users *userstore.Store) (models.User, auth.Identity, error) {
	id, ok := auth.CurrentIdentity(r)
	if !ok {
		return models.User{}, auth.Identity{}, apperr.New(apperr.Unauthenticated, "authentication required")
	}

	u, err := users.GetBySubjectID(r.Context(), id.SubjectID)
	if err != nil {
		return models.User{}, id, err
	}
	if !u.IsActive {
		return models.User{}, id, apperr.New(apperr.Forbidden, "account is deactivated")
	}

	id.UserID = u.ID
	return u, id, nil
}
