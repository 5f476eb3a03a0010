// internal/app/features/authapi/handler.go
package authapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/features/shared/caller"
	"github.com/commonweal/volunteerhub/internal/app/features/shared/respond"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/app/system/timeouts"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// Handler serves the authentication endpoints. Identity verification
// itself happens in the auth middleware; these endpoints bind verified
// identities to User rows.
type Handler struct {
	Users *userstore.Store
	Auth  auth.Authenticator
	Log   *zap.Logger
}

func NewHandler(users *userstore.Store, authn auth.Authenticator, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Auth: authn, Log: logger}
}

type loginResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// HandleLogin finds or creates the User row for the verified identity
// and returns the profile plus a service token carrying the user id.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id, ok := auth.CurrentIdentity(r)
	if !ok {
		respond.Err(w, h.Log, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	u, err := h.Users.FindOrCreateLogin(ctx, id.SubjectID, id.Email, id.Name)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if !u.IsActive {
		respond.Err(w, h.Log, apperr.New(apperr.Forbidden, "account is deactivated"))
		return
	}

	id.UserID = u.ID
	id.Email = u.Email
	id.Name = u.Name
	token, expires, err := h.Auth.Issue(id)
	if err != nil {
		respond.Err(w, h.Log, apperr.Wrap(apperr.Internal, "failed to issue token", err))
		return
	}

	h.Log.Info("user logged in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("subject_id", u.SubjectID))

	respond.JSON(w, http.StatusOK, loginResponse{User: u, Token: token, ExpiresAt: expires})
}

// HandleVerify returns the current profile for a valid token.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"user": u})
}

// HandleLogout acknowledges the logout. Tokens are stateless; clients
// discard them.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}
