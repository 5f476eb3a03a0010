// internal/app/features/users/handler.go
package users

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/features/shared/caller"
	"github.com/commonweal/volunteerhub/internal/app/features/shared/respond"
	eventstore "github.com/commonweal/volunteerhub/internal/app/store/events"
	registrationstore "github.com/commonweal/volunteerhub/internal/app/store/registrations"
	syncstore "github.com/commonweal/volunteerhub/internal/app/store/sync"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/inputval"
	"github.com/commonweal/volunteerhub/internal/app/system/normalize"
	"github.com/commonweal/volunteerhub/internal/app/system/paging"
	"github.com/commonweal/volunteerhub/internal/app/system/timeouts"
	"github.com/commonweal/volunteerhub/internal/app/system/txn"
	"github.com/commonweal/volunteerhub/internal/domain/models"

	"github.com/dalemusser/waffle/pantry/query"
)

type Handler struct {
	DB            *mongo.Database
	Events        *eventstore.Store
	Users         *userstore.Store
	Registrations *registrationstore.Store
	Sync          *syncstore.Store
	Log           *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:            db,
		Events:        eventstore.New(db),
		Users:         userstore.New(db),
		Registrations: registrationstore.New(db),
		Sync:          syncstore.New(db),
		Log:           logger,
	}
}

// ServeProfile handles GET /users/profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
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

type updateProfileRequest struct {
	Name           *string                   `json:"name" validate:"omitempty,min=1,max=120"`
	ProfilePicture *string                   `json:"profile_picture" validate:"omitempty,max=2048"`
	Location       *models.UserLocation      `json:"location"`
	Interests      []string                  `json:"interests" validate:"omitempty,dive,category"`
	Skills         []string                  `json:"skills" validate:"omitempty,max=50"`
	Bio            *string                   `json:"bio" validate:"omitempty,max=5000"`
	Notifications  *models.UserNotifications `json:"notifications"`
}

// HandleUpdateProfile handles PUT /users/profile. Email and subject are
// not editable; they belong to the auth provider.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req updateProfileRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	updated, err := h.Users.UpdateProfile(ctx, u.ID, userstore.ProfilePatch{
		Name:           req.Name,
		ProfilePicture: req.ProfilePicture,
		Location:       req.Location,
		Interests:      req.Interests,
		Skills:         req.Skills,
		Bio:            req.Bio,
		Notifications:  req.Notifications,
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"user": updated})
}

// ServeDashboard handles GET /users/dashboard: the signed-in user's
// registrations joined with their events, split into upcoming and
// recent, plus the derived stats.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	regs, err := h.Registrations.AllByUser(ctx, u.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	events, err := h.eventsFor(ctx, regs)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	type entry struct {
		Registration models.Registration `json:"registration"`
		Event        *models.Event       `json:"event,omitempty"`
	}

	now := time.Now().UTC()
	var upcoming, recent []entry
	for _, reg := range regs {
		if reg.Status == models.StatusCancelled {
			continue
		}
		e := entry{Registration: reg, Event: events[reg.EventID]}
		if e.Event == nil {
			continue
		}
		if e.Event.StartDate.After(now) {
			upcoming = append(upcoming, e)
		} else {
			recent = append(recent, e)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Event.StartDate.Before(upcoming[j].Event.StartDate)
	})
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Event.StartDate.After(recent[j].Event.StartDate)
	})
	if len(recent) > 10 {
		recent = recent[:10]
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"upcoming": upcoming,
		"recent":   recent,
		"stats":    u.Stats,
		"totals": map[string]int{
			"registrations": len(regs),
			"events":        u.TotalEvents(),
		},
	})
}

// ServeEvents handles GET /users/events: the user's registrations with
// their events, filtered by type/status/timeframe.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	regType := normalize.Status(query.Get(r, "type"))
	status := normalize.Status(query.Get(r, "status"))
	timeframe := normalize.Status(query.Get(r, "timeframe")) // upcoming | past | active | all

	page := paging.Parse(r)
	regs, total, err := h.Registrations.ListByUser(ctx, u.ID, regType, status, page)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	events, err := h.eventsFor(ctx, regs)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	type entry struct {
		Registration models.Registration `json:"registration"`
		Event        *models.Event       `json:"event,omitempty"`
	}

	now := time.Now().UTC()
	out := make([]entry, 0, len(regs))
	for _, reg := range regs {
		ev := events[reg.EventID]
		switch timeframe {
		case "upcoming":
			if ev == nil || !ev.StartDate.After(now) {
				continue
			}
		case "past":
			if ev == nil || !ev.EndDate.Before(now) {
				continue
			}
		case "active":
			if ev == nil || ev.StartDate.After(now) || ev.EndDate.Before(now) {
				continue
			}
		}
		out = append(out, entry{Registration: reg, Event: ev})
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"events": out,
		"meta":   paging.BuildMeta(page, total),
	})
}

// ServeStats handles GET /users/stats: per-status counts, category
// distribution, and a trailing 12-month activity series.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	counts, err := h.Registrations.StatusCounts(ctx, u.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	categories, err := h.Registrations.CategoryDistribution(ctx, u.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	monthly, err := h.Registrations.MonthlyActivity(ctx, u.ID, time.Now().UTC())
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if monthly == nil {
		monthly = []registrationstore.MonthBucket{}
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"stats":            u.Stats,
		"by_status":        counts,
		"by_category":      categories,
		"monthly_activity": monthly,
	})
}

// HandleDeleteAccount handles DELETE /users/account. The user's
// registration rows are removed outright and every event they touched
// gets its projections rebuilt.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	regs, err := h.Registrations.AllByUser(rctx, u.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		if _, err := h.Registrations.DeleteByUser(ctx, u.ID); err != nil {
			return err
		}
		seen := map[primitive.ObjectID]bool{}
		for _, reg := range regs {
			if seen[reg.EventID] {
				continue
			}
			seen[reg.EventID] = true
			if err := h.Sync.RebuildEvent(ctx, reg.EventID); err != nil {
				return err
			}
		}
		return h.Users.Delete(ctx, u.ID)
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("account deleted",
		zap.String("user_id", u.ID.Hex()),
		zap.Int("registrations_removed", len(regs)))

	respond.JSON(w, http.StatusOK, map[string]any{"message": "account deleted"})
}

// publicProfile is the open subset of a user record.
type publicProfile struct {
	ID             primitive.ObjectID `json:"id"`
	Name           string             `json:"name"`
	ProfilePicture string             `json:"profile_picture,omitempty"`
	Bio            string             `json:"bio,omitempty"`
	Interests      []string           `json:"interests,omitempty"`
	Skills         []string           `json:"skills,omitempty"`
	Stats          models.UserStats   `json:"stats"`
	MemberSince    time.Time          `json:"member_since"`
	Achievements   []string           `json:"achievements,omitempty"`
}

// ServePublicProfile handles GET /users/{id}/public. Open route;
// deactivated accounts are invisible and achievements only surface from
// registrations whose owner consented to a public profile.
func (h *Handler) ServePublicProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Err(w, h.Log, apperr.New(apperr.Validation, "invalid user id"))
		return
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if !u.IsActive {
		respond.Err(w, h.Log, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	regs, err := h.Registrations.AllByUser(ctx, u.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	var achievements []string
	for _, reg := range regs {
		if !reg.Consent.PublicProfile {
			continue
		}
		achievements = append(achievements, reg.Recognition.BadgesEarned...)
	}

	respond.JSON(w, http.StatusOK, map[string]any{"user": publicProfile{
		ID:             u.ID,
		Name:           u.Name,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Interests:      u.Interests,
		Skills:         u.Skills,
		Stats:          u.Stats,
		MemberSince:    u.CreatedAt,
		Achievements:   achievements,
	}})
}

// eventsFor loads the distinct events behind a registration set.
func (h *Handler) eventsFor(ctx context.Context, regs []models.Registration) (map[primitive.ObjectID]*models.Event, error) {
	out := map[primitive.ObjectID]*models.Event{}
	for _, reg := range regs {
		if _, ok := out[reg.EventID]; ok {
			continue
		}
		ev, err := h.Events.GetByID(ctx, reg.EventID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				out[reg.EventID] = nil
				continue
			}
			return nil, err
		}
		out[reg.EventID] = &ev
	}
	return out, nil
}
