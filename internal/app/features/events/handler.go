// internal/app/features/events/handler.go
package events

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/features/shared/caller"
	"github.com/commonweal/volunteerhub/internal/app/features/shared/respond"
	"github.com/commonweal/volunteerhub/internal/app/policy/eventpolicy"
	eventstore "github.com/commonweal/volunteerhub/internal/app/store/events"
	registrationstore "github.com/commonweal/volunteerhub/internal/app/store/registrations"
	syncstore "github.com/commonweal/volunteerhub/internal/app/store/sync"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
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

func eventID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.Validation, "invalid event id")
	}
	return id, nil
}

type listResponse struct {
	Events []models.Event `json:"events"`
	Meta   paging.Meta    `json:"meta"`
}

// ServeList handles GET /events.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	f := eventstore.Filters{
		Category:        normalize.QueryParam(query.Get(r, "category")),
		Location:        normalize.QueryParam(query.Get(r, "location")),
		Search:          normalize.QueryParam(query.Get(r, "search")),
		OpportunityType: normalize.Status(query.Get(r, "type")),
		Status:          normalize.Status(query.Get(r, "status")),
		SortField:       normalize.QueryParam(query.Get(r, "sort")),
		SortAsc:         query.Get(r, "order") == "asc",
	}
	if f.Status == "" {
		f.Status = models.EventPublished
	}
	if org := query.Get(r, "organizer"); org != "" {
		id, err := primitive.ObjectIDFromHex(org)
		if err != nil {
			respond.Err(w, h.Log, apperr.New(apperr.Validation, "invalid organizer id"))
			return
		}
		f.Organizer = id
	}

	page := paging.Parse(r)
	events, total, err := h.Events.List(ctx, f, page)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respond.JSON(w, http.StatusOK, listResponse{
		Events: events,
		Meta:   paging.BuildMeta(page, total),
	})
}

// ServeEvent handles GET /events/{id}.
func (h *Handler) ServeEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	r = r.WithContext(ctx)

	id, err := eventID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	h.serveEventDetail(w, r, ev)
}

// ServeEventBySlug handles GET /events/slug/{slug}.
func (h *Handler) ServeEventBySlug(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	r = r.WithContext(ctx)

	ev, err := h.Events.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	h.serveEventDetail(w, r, ev)
}

func (h *Handler) serveEventDetail(w http.ResponseWriter, r *http.Request, ev models.Event) {
	id, authenticated := auth.CurrentIdentity(r)
	if authenticated {
		if u, uerr := h.Users.GetBySubjectID(r.Context(), id.SubjectID); uerr == nil {
			id.UserID = u.ID
		}
	}
	if !eventpolicy.CanView(id, authenticated, &ev) {
		// hide existence of non-visible events
		respond.Err(w, h.Log, apperr.New(apperr.NotFound, "event not found"))
		return
	}

	if err := h.Events.IncrementViews(r.Context(), ev.ID); err != nil {
		h.Log.Warn("failed to bump event views", zap.Error(err))
	} else {
		ev.Stats.Views++
	}

	respond.JSON(w, http.StatusOK, map[string]any{"event": ev})
}

type createEventRequest struct {
	Title            string   `json:"title" validate:"required,min=3,max=200"`
	Description      string   `json:"description" validate:"required"`
	ShortDescription string   `json:"short_description" validate:"max=500"`
	Category         string   `json:"category" validate:"required,category"`
	Tags             []string `json:"tags" validate:"max=20"`

	Location struct {
		Venue       string          `json:"venue"`
		Address     models.Address  `json:"address"`
		Coordinates *models.GeoPoint `json:"coordinates"`
		IsVirtual   bool            `json:"is_virtual"`
		VirtualLink string          `json:"virtual_link"`
	} `json:"location"`

	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	DurationHours float64   `json:"duration_hours"`
	Timezone      string    `json:"timezone"`

	OrganizerContact struct {
		Phone        string `json:"phone"`
		Organization string `json:"organization"`
		Website      string `json:"website"`
		Logo         string `json:"logo"`
	} `json:"organizer_contact"`

	VolunteerOpportunities   models.VolunteerOpportunities   `json:"volunteer_opportunities"`
	PartnershipOpportunities models.PartnershipOpportunities `json:"partnership_opportunities"`
	Media                    models.EventMedia               `json:"media"`
	Resources                []models.EventResource          `json:"resources"`
	Visibility               string                          `json:"visibility"`
}

// HandleCreate handles POST /events. The caller becomes the organizer:
// a stable user id plus a contact snapshot taken now.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req createEventRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	ev := models.Event{
		Title:            req.Title,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Category:         req.Category,
		Tags:             req.Tags,
		Location: models.EventLocation{
			Venue:       req.Location.Venue,
			Address:     req.Location.Address,
			Coordinates: req.Location.Coordinates,
			IsVirtual:   req.Location.IsVirtual,
			VirtualLink: req.Location.VirtualLink,
		},
		StartDate:     req.StartDate.UTC(),
		EndDate:       req.EndDate.UTC(),
		DurationHours: req.DurationHours,
		Timezone:      req.Timezone,
		Organizer: models.Organizer{
			UserID:       u.ID,
			Name:         u.Name,
			Email:        u.Email,
			Phone:        req.OrganizerContact.Phone,
			Organization: req.OrganizerContact.Organization,
			Website:      req.OrganizerContact.Website,
			Logo:         req.OrganizerContact.Logo,
		},
		VolunteerOpportunities:   req.VolunteerOpportunities,
		PartnershipOpportunities: req.PartnershipOpportunities,
		Media:                    req.Media,
		Resources:                req.Resources,
		Visibility:               req.Visibility,
	}
	// counters always start from a clean slate
	ev.VolunteerOpportunities.CurrentVolunteers = 0
	ev.PartnershipOpportunities.CurrentFunding = 0
	for i := range ev.PartnershipOpportunities.Types {
		ev.PartnershipOpportunities.Types[i].CurrentPartners = 0
	}

	created, err := h.Events.Create(ctx, ev)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("event created",
		zap.String("event_id", created.ID.Hex()),
		zap.String("organizer_id", u.ID.Hex()))

	respond.JSON(w, http.StatusCreated, map[string]any{"event": created})
}

type updateEventRequest struct {
	Title            *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Description      *string   `json:"description"`
	ShortDescription *string   `json:"short_description" validate:"omitempty,max=500"`
	Category         *string   `json:"category" validate:"omitempty,category"`
	Tags             []string  `json:"tags" validate:"omitempty,max=20"`
	Location         *models.EventLocation `json:"location"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	DurationHours    *float64   `json:"duration_hours"`
	Timezone         *string    `json:"timezone"`
	OrganizerContact *models.Organizer `json:"organizer_contact"`
	VolunteerOpportunities   *models.VolunteerOpportunities   `json:"volunteer_opportunities"`
	PartnershipOpportunities *models.PartnershipOpportunities `json:"partnership_opportunities"`
	Media      *models.EventMedia     `json:"media"`
	Resources  []models.EventResource `json:"resources"`
	Status     *string                `json:"status" validate:"omitempty,eventstatus"`
	Visibility *string                `json:"visibility"`
	SEO        *struct {
		MetaTitle       string   `json:"meta_title"`
		MetaDescription string   `json:"meta_description"`
		Keywords        []string `json:"keywords"`
	} `json:"seo"`
}

// HandleUpdate handles PUT /events/{id}. Organizer only.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	ev, _, err := h.requireOrganizer(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req updateEventRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		respond.Err(w, h.Log, apperr.New(apperr.Validation, "end_date must be after start_date"))
		return
	}

	patch := eventstore.Patch{
		Title:                    req.Title,
		Description:              req.Description,
		ShortDescription:         req.ShortDescription,
		Category:                 req.Category,
		Tags:                     req.Tags,
		Location:                 req.Location,
		StartDate:                req.StartDate,
		EndDate:                  req.EndDate,
		DurationHours:            req.DurationHours,
		Timezone:                 req.Timezone,
		OrganizerContact:         req.OrganizerContact,
		VolunteerOpportunities:   req.VolunteerOpportunities,
		PartnershipOpportunities: req.PartnershipOpportunities,
		Media:                    req.Media,
		Resources:                req.Resources,
		Status:                   req.Status,
		Visibility:               req.Visibility,
	}
	if req.SEO != nil {
		patch.SEO = &eventstore.SEOPatch{
			MetaTitle:       req.SEO.MetaTitle,
			MetaDescription: req.SEO.MetaDescription,
			Keywords:        req.SEO.Keywords,
		}
	}

	updated, err := h.Events.Update(ctx, ev.ID, patch)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"event": updated})
}

// HandleDelete handles DELETE /events/{id}. Organizer only. The event's
// registrations go with it and affected user mirrors are repaired.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	ev, _, err := h.requireOrganizer(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	regs, err := h.Registrations.AllByEvent(rctx, ev.ID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		if _, err := h.Registrations.DeleteByEvent(ctx, ev.ID); err != nil {
			return err
		}
		if err := h.Events.Delete(ctx, ev.ID); err != nil {
			return err
		}
		seen := map[primitive.ObjectID]bool{}
		for _, reg := range regs {
			if seen[reg.UserID] {
				continue
			}
			seen[reg.UserID] = true
			if err := h.Sync.RebuildUser(ctx, reg.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("event deleted",
		zap.String("event_id", ev.ID.Hex()),
		zap.Int("registrations_removed", len(regs)))

	respond.JSON(w, http.StatusOK, map[string]any{"message": "event deleted"})
}

// ServeRegistrations handles GET /events/{id}/registrations. Organizer
// only: these are the full rows, internal notes and all.
func (h *Handler) ServeRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	ev, _, err := h.requireOrganizer(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	page := paging.Parse(r)
	regs, total, err := h.Registrations.ListByEvent(ctx, ev.ID,
		normalize.Status(query.Get(r, "type")),
		normalize.Status(query.Get(r, "status")),
		page)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"registrations": regs,
		"meta":          paging.BuildMeta(page, total),
	})
}

// ServeCategories handles GET /events/meta/categories.
func (h *Handler) ServeCategories(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"categories": models.Categories})
}

// ServeStatsOverview handles GET /events/stats/overview.
func (h *Handler) ServeStatsOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ov, err := h.Events.StatsOverview(ctx, time.Now().UTC())
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, ov)
}

// requireOrganizer loads the event from the URL and verifies the caller
// organizes it.
func (h *Handler) requireOrganizer(r *http.Request) (models.Event, models.User, error) {
	id, err := eventID(r)
	if err != nil {
		return models.Event{}, models.User{}, err
	}
	u, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		return models.Event{}, models.User{}, err
	}
	ev, err := h.Events.GetByID(r.Context(), id)
	if err != nil {
		return models.Event{}, models.User{}, err
	}
	if !eventpolicy.IsOrganizer(ident, &ev) {
		return models.Event{}, models.User{}, apperr.New(apperr.Forbidden, "only the organizer may do this")
	}
	return ev, u, nil
}
