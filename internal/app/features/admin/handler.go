// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/features/shared/caller"
	"github.com/commonweal/volunteerhub/internal/app/features/shared/respond"
	syncstore "github.com/commonweal/volunteerhub/internal/app/store/sync"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/timeouts"
)

type Handler struct {
	Users *userstore.Store
	Sync  *syncstore.Store
	Log   *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Users: userstore.New(db),
		Sync:  syncstore.New(db),
		Log:   logger,
	}
}

// HandleRebuild handles POST /admin/rebuild: rescans every registration
// row and rewrites the event and user projections from scratch. The
// repair hatch for drift left behind by crashes or partial writes.
func (h *Handler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	events, users, err := h.Sync.RebuildAll(ctx)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("projection rebuild completed",
		zap.String("requested_by", u.ID.Hex()),
		zap.Int("events", events),
		zap.Int("users", users))

	respond.JSON(w, http.StatusOK, map[string]any{
		"events_rebuilt": events,
		"users_rebuilt":  users,
	})
}
