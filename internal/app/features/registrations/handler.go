// internal/app/features/registrations/handler.go
package registrations

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
	"github.com/commonweal/volunteerhub/internal/app/policy/registrationpolicy"
	eventstore "github.com/commonweal/volunteerhub/internal/app/store/events"
	registrationstore "github.com/commonweal/volunteerhub/internal/app/store/registrations"
	syncstore "github.com/commonweal/volunteerhub/internal/app/store/sync"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/inputval"
	"github.com/commonweal/volunteerhub/internal/app/system/normalize"
	"github.com/commonweal/volunteerhub/internal/app/system/timeouts"
	"github.com/commonweal/volunteerhub/internal/app/system/txn"
	"github.com/commonweal/volunteerhub/internal/domain/models"
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

func regID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.Validation, "invalid registration id")
	}
	return id, nil
}

type createRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=volunteer partner"`

	VolunteerDetails   *models.VolunteerDetails   `json:"volunteer_details"`
	PartnershipDetails *models.PartnershipDetails `json:"partnership_details"`
	CustomResponses    []models.CustomResponse    `json:"custom_responses"`
	UserNotes          string                     `json:"user_notes"`
	Consent            models.Consent             `json:"consent"`
	Source             string                     `json:"source" validate:"omitempty,oneof=web mobile api import admin"`
}

// HandleCreate handles POST /registrations. The row insert and the
// projection update share one logical operation: on a refusal (closed,
// full, unknown type) the row does not survive.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	u, _, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req createRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if !req.Consent.DataProcessing {
		respond.Err(w, h.Log, apperr.New(apperr.Validation, "data processing consent is required"))
		return
	}
	eventID, err := primitive.ObjectIDFromHex(req.EventID)
	if err != nil {
		respond.Err(w, h.Log, apperr.New(apperr.Validation, "invalid event id"))
		return
	}

	ev, err := h.Events.GetByID(rctx, eventID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if !eventpolicy.CanRegister(&ev) {
		respond.Err(w, h.Log, apperr.Newf(apperr.InvalidState, "event is %s and not open for registration", ev.Status))
		return
	}

	reg := models.Registration{
		UserID:          u.ID,
		EventID:         eventID,
		Type:            req.Type,
		CustomResponses: req.CustomResponses,
		Notes:           models.RegistrationNotes{User: req.UserNotes},
		Consent:         req.Consent,
		Source:          req.Source,
		IPAddress:       r.RemoteAddr,
		UserAgent:       r.UserAgent(),
	}
	if reg.Source == "" {
		reg.Source = "api"
	}

	switch req.Type {
	case models.TypeVolunteer:
		reg.VolunteerDetails = req.VolunteerDetails
		if reg.VolunteerDetails == nil {
			reg.VolunteerDetails = &models.VolunteerDetails{}
		}
	case models.TypePartner:
		if req.PartnershipDetails == nil || req.PartnershipDetails.PartnershipType == "" {
			respond.Err(w, h.Log, apperr.New(apperr.Validation, "partnership_details.partnership_type is required"))
			return
		}
		req.PartnershipDetails.PartnershipType = normalize.PartnershipType(req.PartnershipDetails.PartnershipType)
		reg.PartnershipDetails = req.PartnershipDetails
	}

	var created models.Registration
	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		var cerr error
		created, cerr = h.Registrations.Create(ctx, reg)
		if cerr != nil {
			return cerr
		}
		if serr := h.Sync.ApplyCreate(ctx, created); serr != nil {
			// Without a transaction the insert already landed; take it
			// back out so a refused registration leaves no row behind.
			if derr := h.Registrations.Delete(ctx, created.ID); derr != nil {
				h.Log.Error("failed to undo refused registration",
					zap.String("registration_id", created.ID.Hex()), zap.Error(derr))
			}
			return serr
		}
		return nil
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("registration created",
		zap.String("registration_id", created.ID.Hex()),
		zap.String("event_id", eventID.Hex()),
		zap.String("type", created.Type),
		zap.String("status", created.Status))

	respond.JSON(w, http.StatusCreated, map[string]any{"registration": created})
}

// ServeRegistration handles GET /registrations/{id}. Owner or the
// event's organizer.
func (h *Handler) ServeRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	r = r.WithContext(ctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	_, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(ctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	ev, err := h.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if !registrationpolicy.CanView(ident, &reg, &ev) {
		respond.Err(w, h.Log, apperr.New(apperr.NotFound, "registration not found"))
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"registration": reg})
}

type updateRequest struct {
	VolunteerDetails   *models.VolunteerDetails   `json:"volunteer_details"`
	PartnershipDetails *models.PartnershipDetails `json:"partnership_details"`
	CustomResponses    []models.CustomResponse    `json:"custom_responses"`
	UserNotes          *string                    `json:"user_notes"`
	Consent            *models.Consent            `json:"consent"`
}

// HandleUpdate handles PUT /registrations/{id}. Owner edits a limited
// field set; the partnership type itself is pinned once registered.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	_, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(rctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if err := registrationpolicy.CanModify(ident, &reg); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req updateRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if req.PartnershipDetails != nil {
		if reg.Type != models.TypePartner {
			respond.Err(w, h.Log, apperr.New(apperr.Validation, "volunteer registrations have no partnership details"))
			return
		}
		// slot assignment is capacity-checked at create; the type
		// cannot be swapped afterwards
		req.PartnershipDetails.PartnershipType = reg.PartnershipDetails.PartnershipType
	}
	if req.VolunteerDetails != nil && reg.Type != models.TypeVolunteer {
		respond.Err(w, h.Log, apperr.New(apperr.Validation, "partner registrations have no volunteer details"))
		return
	}

	updated, err := h.Registrations.Update(rctx, id, registrationstore.Patch{
		VolunteerDetails:   req.VolunteerDetails,
		PartnershipDetails: req.PartnershipDetails,
		CustomResponses:    req.CustomResponses,
		UserNotes:          req.UserNotes,
		Consent:            req.Consent,
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	// A partner edit can change the contribution amount; rebuilding the
	// projections keeps funding totals honest.
	if req.PartnershipDetails != nil {
		err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
			if err := h.Sync.RebuildEvent(ctx, updated.EventID); err != nil {
				return err
			}
			return h.Sync.RebuildUser(ctx, updated.UserID)
		})
		if err != nil {
			respond.Err(w, h.Log, err)
			return
		}
	}

	respond.JSON(w, http.StatusOK, map[string]any{"registration": updated})
}

// HandleCancel handles DELETE /registrations/{id}. Cancellation is a
// transition, not a row delete: the history survives, the mirrors go.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	u, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(rctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if err := registrationpolicy.CanCancel(ident, &reg); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var cancelled models.Registration
	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		var terr error
		cancelled, terr = h.Registrations.UpdateStatus(ctx, id, reg.Status, models.StatusCancelled, &u.ID, "")
		if terr != nil {
			return terr
		}
		return h.Sync.ApplyCancel(ctx, cancelled)
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("registration cancelled",
		zap.String("registration_id", id.Hex()),
		zap.String("event_id", reg.EventID.Hex()))

	respond.JSON(w, http.StatusOK, map[string]any{"registration": cancelled})
}

type decisionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// HandleApprove handles POST /registrations/{id}/approve. Organizer
// moves a pending partner to approved; its funding starts counting.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.StatusApproved)
}

// HandleReject handles POST /registrations/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.StatusRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, to string) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	u, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(rctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	ev, err := h.Events.GetByID(rctx, reg.EventID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if err := registrationpolicy.CanDecide(ident, &ev); err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if to == models.StatusApproved && reg.Type != models.TypePartner {
		respond.Err(w, h.Log, apperr.New(apperr.InvalidState, "volunteer registrations are approved automatically"))
		return
	}

	var req decisionRequest
	if r.ContentLength > 0 {
		if err := inputval.Decode(r, &req); err != nil {
			respond.Err(w, h.Log, err)
			return
		}
	}

	var updated models.Registration
	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		var terr error
		updated, terr = h.Registrations.UpdateStatus(ctx, id, reg.Status, to, &u.ID, req.Notes)
		if terr != nil {
			return terr
		}
		return h.Sync.ApplyStatusChange(ctx, updated, time.Now().UTC())
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("registration decided",
		zap.String("registration_id", id.Hex()),
		zap.String("status", to),
		zap.String("decided_by", u.ID.Hex()))

	respond.JSON(w, http.StatusOK, map[string]any{"registration": updated})
}

type checkinRequest struct {
	ActualRole       string  `json:"actual_role" validate:"max=200"`
	HoursContributed float64 `json:"hours_contributed" validate:"gte=0,lte=24"`
}

// HandleCheckIn handles POST /registrations/{id}/checkin. Organizer
// marks arrival: status is forced to attended regardless of where the
// registration sat, and volunteer hours land on the user's stats.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	rctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()
	r = r.WithContext(rctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	u, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(rctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	ev, err := h.Events.GetByID(rctx, reg.EventID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if err := registrationpolicy.CanCheckIn(ident, &reg, &ev); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req checkinRequest
	if r.ContentLength > 0 {
		if err := inputval.Decode(r, &req); err != nil {
			respond.Err(w, h.Log, err)
			return
		}
	}

	now := time.Now().UTC()
	ci := models.CheckIn{
		CheckedIn:        true,
		CheckedInAt:      &now,
		CheckedInBy:      &u.ID,
		ActualRole:       req.ActualRole,
		HoursContributed: req.HoursContributed,
	}

	var updated models.Registration
	err = txn.Run(rctx, h.DB, h.Log, func(ctx context.Context) error {
		if err := h.Registrations.SetCheckIn(ctx, id, ci); err != nil {
			return err
		}
		// Check-in overrides the normal transitions: present is present,
		// even if the approval flow never finished.
		var terr error
		updated, terr = h.Registrations.ForceStatus(ctx, id, models.StatusAttended, &u.ID, "checked in")
		if terr != nil {
			return terr
		}
		return h.Sync.ApplyCheckIn(ctx, updated, req.HoursContributed, now)
	})
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	h.Log.Info("registration checked in",
		zap.String("registration_id", id.Hex()),
		zap.Float64("hours", req.HoursContributed))

	respond.JSON(w, http.StatusOK, map[string]any{"registration": updated})
}

type feedbackRequest struct {
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	Comments       string `json:"comments" validate:"max=5000"`
	WouldRecommend bool   `json:"would_recommend"`
	Improvements   string `json:"improvements" validate:"max=5000"`
}

// HandleFeedback handles POST /registrations/{id}/feedback. Opens when
// the event ends; one submission per registration.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	r = r.WithContext(ctx)

	id, err := regID(r)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	_, ident, err := caller.Resolve(r, h.Users)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	reg, err := h.Registrations.GetByID(ctx, id)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	ev, err := h.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		respond.Err(w, h.Log, err)
		return
	}
	if err := registrationpolicy.CanSubmitFeedback(ident, &reg, &ev, time.Now().UTC()); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	var req feedbackRequest
	if err := inputval.Decode(r, &req); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	fb := models.Feedback{
		Rating:         req.Rating,
		Comments:       req.Comments,
		WouldRecommend: req.WouldRecommend,
		Improvements:   req.Improvements,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := h.Registrations.SetFeedback(ctx, id, fb); err != nil {
		respond.Err(w, h.Log, err)
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]any{"message": "feedback recorded"})
}
