// internal/app/store/sync/syncstore.go
//
// The sync store keeps the denormalized projections consistent with the
// registrations collection: the volunteer/partner summary arrays on
// Event documents, the volunteer_events/partnership_events mirrors on
// User documents, and every counter derived from them.
//
// Registrations are the source of truth. Each Apply* method makes one
// targeted projection change and then recomputes the derived counters
// from the projections, so replays converge; Rebuild* rebuilds the
// projections wholesale from a registration scan and repairs any drift.
package syncstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

type Store struct {
	events *mongo.Collection
	users  *mongo.Collection
	regs   *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		events: db.Collection("events"),
		users:  db.Collection("users"),
		regs:   db.Collection("registrations"),
	}
}

// ApplyCreate mirrors a freshly inserted registration onto its event
// and user documents. The event side is a capacity-gated conditional
// update; a zero match means the caller loses the race (or the event
// stopped accepting) and the registration must not stand.
func (s *Store) ApplyCreate(ctx context.Context, reg models.Registration) error {
	if reg.Type == models.TypePartner {
		return s.applyPartnerCreate(ctx, reg)
	}
	return s.applyVolunteerCreate(ctx, reg)
}

func (s *Store) applyVolunteerCreate(ctx context.Context, reg models.Registration) error {
	summary := volunteerSummary(reg)

	res, err := s.events.UpdateOne(ctx,
		bson.M{
			"_id":                               reg.EventID,
			"volunteer_opportunities.accepting": true,
			"$expr": bson.M{"$lt": bson.A{
				"$volunteer_opportunities.current_volunteers",
				"$volunteer_opportunities.max_volunteers",
			}},
		},
		bson.M{
			"$push": bson.M{"registrations.volunteers": summary},
			"$inc": bson.M{
				"volunteer_opportunities.current_volunteers": 1,
				"stats.total_registrations":                  1,
			},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.volunteerCreateRefusal(ctx, reg.EventID)
	}

	return s.pushUserVolunteerEvent(ctx, reg)
}

// volunteerCreateRefusal reads the event once to tell full from closed.
func (s *Store) volunteerCreateRefusal(ctx context.Context, eventID primitive.ObjectID) error {
	var ev models.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return err
	}
	if !ev.VolunteerOpportunities.Accepting {
		return apperr.New(apperr.InvalidState, "event is not accepting volunteers")
	}
	return apperr.New(apperr.CapacityExceeded, "volunteer capacity reached")
}

func (s *Store) applyPartnerCreate(ctx context.Context, reg models.Registration) error {
	ptype := reg.PartnershipType()
	if ptype == "" {
		return apperr.New(apperr.Validation, "partnership type is required")
	}
	summary := partnerSummary(reg, nil)

	// Capacity is per partnership type; max_partners 0 means unlimited.
	res, err := s.events.UpdateOne(ctx,
		bson.M{
			"_id": reg.EventID,
			"partnership_opportunities.accepting": true,
			"$expr": bson.M{"$anyElementTrue": bson.M{"$map": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$partnership_opportunities.types", bson.A{}}},
				"as":    "t",
				"in": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$$t.type", ptype}},
					bson.M{"$or": bson.A{
						bson.M{"$lte": bson.A{bson.M{"$ifNull": bson.A{"$$t.max_partners", 0}}, 0}},
						bson.M{"$lt": bson.A{"$$t.current_partners", "$$t.max_partners"}},
					}},
				}},
			}}},
		},
		bson.M{
			"$push": bson.M{"registrations.partners": summary},
			"$inc":  bson.M{"stats.total_registrations": 1},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.partnerCreateRefusal(ctx, reg.EventID, ptype)
	}

	return s.pushUserPartnershipEvent(ctx, reg)
}

func (s *Store) partnerCreateRefusal(ctx context.Context, eventID primitive.ObjectID, ptype string) error {
	var ev models.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return err
	}
	if !ev.PartnershipOpportunities.Accepting {
		return apperr.New(apperr.InvalidState, "event is not accepting partnerships")
	}
	t := ev.PartnershipTypeByName(ptype)
	if t == nil {
		return apperr.Newf(apperr.Validation, "event has no %s partnership type", ptype)
	}
	return apperr.Newf(apperr.CapacityExceeded, "%s partner capacity reached", ptype)
}

func (s *Store) pushUserVolunteerEvent(ctx context.Context, reg models.Registration) error {
	_, err := s.users.UpdateByID(ctx, reg.UserID, bson.M{
		"$push": bson.M{"volunteer_events": models.UserVolunteerEvent{
			EventID:      reg.EventID,
			RegisteredAt: reg.CreatedAt,
			Status:       models.UserVolunteerStatus(reg.Status),
		}},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (s *Store) pushUserPartnershipEvent(ctx context.Context, reg models.Registration) error {
	_, err := s.users.UpdateByID(ctx, reg.UserID, bson.M{
		"$push": bson.M{"partnership_events": userPartnershipEvent(reg)},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// ApplyStatusChange propagates a registration transition to both
// projections and refreshes the derived counters. The approved stamp
// lands on the event's partner summary when a partner is approved.
func (s *Store) ApplyStatusChange(ctx context.Context, reg models.Registration, at time.Time) error {
	if reg.Status == models.StatusCancelled {
		return s.ApplyCancel(ctx, reg)
	}

	if reg.Type == models.TypePartner {
		set := bson.M{
			"registrations.partners.$.status":         models.PartnerSummaryStatus(reg.Status),
			"registrations.partners.$.funding_amount": reg.FundingAmount(),
			"updated_at":                              at,
		}
		if reg.Status == models.StatusApproved {
			set["registrations.partners.$.approved_at"] = at
		}
		_, err := s.events.UpdateOne(ctx,
			bson.M{"_id": reg.EventID, "registrations.partners.user_id": reg.UserID},
			bson.M{"$set": set},
		)
		if err != nil {
			return err
		}
		_, err = s.users.UpdateOne(ctx,
			bson.M{"_id": reg.UserID, "partnership_events.event_id": reg.EventID},
			bson.M{"$set": bson.M{
				"partnership_events.$.status":         models.PartnerSummaryStatus(reg.Status),
				"partnership_events.$.funding_amount": reg.FundingAmount(),
				"updated_at":                          at,
			}},
		)
		if err != nil {
			return err
		}
	} else {
		_, err := s.events.UpdateOne(ctx,
			bson.M{"_id": reg.EventID, "registrations.volunteers.user_id": reg.UserID},
			bson.M{"$set": bson.M{
				"registrations.volunteers.$.status": models.VolunteerSummaryStatus(reg.Status),
				"updated_at":                        at,
			}},
		)
		if err != nil {
			return err
		}
		_, err = s.users.UpdateOne(ctx,
			bson.M{"_id": reg.UserID, "volunteer_events.event_id": reg.EventID},
			bson.M{"$set": bson.M{
				"volunteer_events.$.status": models.UserVolunteerStatus(reg.Status),
				"updated_at":                at,
			}},
		)
		if err != nil {
			return err
		}
	}

	if err := s.recomputeEventCounters(ctx, reg.EventID); err != nil {
		return err
	}
	return s.recomputeUserStats(ctx, reg.UserID)
}

// ApplyCancel removes both mirrors and recomputes. Cancelled
// registrations keep their row and history but no longer appear on
// either projection.
func (s *Store) ApplyCancel(ctx context.Context, reg models.Registration) error {
	now := time.Now().UTC()
	if reg.Type == models.TypePartner {
		_, err := s.events.UpdateByID(ctx, reg.EventID, bson.M{
			"$pull": bson.M{"registrations.partners": bson.M{"user_id": reg.UserID}},
			"$set":  bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
		_, err = s.users.UpdateByID(ctx, reg.UserID, bson.M{
			"$pull": bson.M{"partnership_events": bson.M{"event_id": reg.EventID}},
			"$set":  bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
	} else {
		_, err := s.events.UpdateByID(ctx, reg.EventID, bson.M{
			"$pull": bson.M{"registrations.volunteers": bson.M{"user_id": reg.UserID}},
			"$set":  bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
		_, err = s.users.UpdateByID(ctx, reg.UserID, bson.M{
			"$pull": bson.M{"volunteer_events": bson.M{"event_id": reg.EventID}},
			"$set":  bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
	}

	if err := s.recomputeEventCounters(ctx, reg.EventID); err != nil {
		return err
	}
	return s.recomputeUserStats(ctx, reg.UserID)
}

// ApplyCheckIn propagates the attended transition and accumulates the
// volunteer's contributed hours. Hours live only on UserStats; the
// projections cannot reproduce them, so this is the single write point.
func (s *Store) ApplyCheckIn(ctx context.Context, reg models.Registration, hours float64, at time.Time) error {
	if err := s.ApplyStatusChange(ctx, reg, at); err != nil {
		return err
	}
	if reg.Type == models.TypeVolunteer && hours > 0 {
		_, err := s.users.UpdateByID(ctx, reg.UserID, bson.M{
			"$inc": bson.M{"stats.total_volunteer_hours": hours},
			"$set": bson.M{"updated_at": at},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RebuildEvent reconstructs an event's projections from a full scan of
// its registrations. Cancelled rows are omitted, matching the $pull the
// incremental path performs.
func (s *Store) RebuildEvent(ctx context.Context, eventID primitive.ObjectID) error {
	regs, err := s.regsByEvent(ctx, eventID)
	if err != nil {
		return err
	}

	var ev models.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return err
	}

	ev.Registrations = models.EventRegistrations{}
	for _, reg := range regs {
		if reg.Status == models.StatusCancelled {
			continue
		}
		if reg.Type == models.TypePartner {
			prev := findPartnerSummary(ev, reg.UserID)
			ev.Registrations.Partners = append(ev.Registrations.Partners, partnerSummary(reg, prev))
		} else {
			ev.Registrations.Volunteers = append(ev.Registrations.Volunteers, volunteerSummary(reg))
		}
	}
	ev.RecomputeCounters()

	_, err = s.events.UpdateByID(ctx, eventID, bson.M{"$set": bson.M{
		"registrations": ev.Registrations,
		"volunteer_opportunities.current_volunteers": ev.VolunteerOpportunities.CurrentVolunteers,
		"partnership_opportunities.types":            ev.PartnershipOpportunities.Types,
		"partnership_opportunities.current_funding":  ev.PartnershipOpportunities.CurrentFunding,
		"stats.total_registrations":                  ev.Stats.TotalRegistrations,
		"updated_at":                                 time.Now().UTC(),
	}})
	return err
}

// RebuildUser reconstructs a user's event mirrors and derived stats.
// TotalVolunteerHours is preserved.
func (s *Store) RebuildUser(ctx context.Context, userID primitive.ObjectID) error {
	regs, err := s.regsByUser(ctx, userID)
	if err != nil {
		return err
	}

	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return err
	}

	u.VolunteerEvents = nil
	u.PartnershipEvents = nil
	for _, reg := range regs {
		if reg.Status == models.StatusCancelled {
			continue
		}
		if reg.Type == models.TypePartner {
			u.PartnershipEvents = append(u.PartnershipEvents, userPartnershipEvent(reg))
		} else {
			u.VolunteerEvents = append(u.VolunteerEvents, models.UserVolunteerEvent{
				EventID:      reg.EventID,
				RegisteredAt: reg.CreatedAt,
				Status:       models.UserVolunteerStatus(reg.Status),
			})
		}
	}
	u.RecomputeStats()

	_, err = s.users.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"volunteer_events":              u.VolunteerEvents,
		"partnership_events":            u.PartnershipEvents,
		"stats.events_attended":         u.Stats.EventsAttended,
		"stats.partnerships_completed":  u.Stats.PartnershipsCompleted,
		"stats.impact_score":            u.Stats.ImpactScore,
		"updated_at":                    time.Now().UTC(),
	}})
	return err
}

// RebuildAll repairs every event and user projection. An expensive
// administrative pass; it walks the events and users collections so
// documents with stale mirrors but no surviving registrations are
// cleaned too.
func (s *Store) RebuildAll(ctx context.Context) (events int, users int, err error) {
	eventIDs, err := s.allIDs(ctx, s.events)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range eventIDs {
		if err := s.RebuildEvent(ctx, id); err != nil {
			return events, users, err
		}
		events++
	}

	userIDs, err := s.allIDs(ctx, s.users)
	if err != nil {
		return events, 0, err
	}
	for _, id := range userIDs {
		if err := s.RebuildUser(ctx, id); err != nil {
			return events, users, err
		}
		users++
	}
	return events, users, nil
}

func (s *Store) allIDs(ctx context.Context, c *mongo.Collection) ([]primitive.ObjectID, error) {
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

func (s *Store) regsByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.regs.Find(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (s *Store) regsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.regs.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// recomputeEventCounters re-derives every counter from the embedded
// summaries and writes them back.
func (s *Store) recomputeEventCounters(ctx context.Context, eventID primitive.ObjectID) error {
	var ev models.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "event not found")
		}
		return err
	}
	ev.RecomputeCounters()

	_, err := s.events.UpdateByID(ctx, eventID, bson.M{"$set": bson.M{
		"volunteer_opportunities.current_volunteers": ev.VolunteerOpportunities.CurrentVolunteers,
		"partnership_opportunities.types":            ev.PartnershipOpportunities.Types,
		"partnership_opportunities.current_funding":  ev.PartnershipOpportunities.CurrentFunding,
		"stats.total_registrations":                  ev.Stats.TotalRegistrations,
	}})
	return err
}

func (s *Store) recomputeUserStats(ctx context.Context, userID primitive.ObjectID) error {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return err
	}
	u.RecomputeStats()

	_, err := s.users.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"stats.events_attended":        u.Stats.EventsAttended,
		"stats.partnerships_completed": u.Stats.PartnershipsCompleted,
		"stats.impact_score":           u.Stats.ImpactScore,
	}})
	return err
}

func volunteerSummary(reg models.Registration) models.VolunteerSummary {
	role := ""
	if reg.VolunteerDetails != nil {
		role = reg.VolunteerDetails.PreferredRole
	}
	return models.VolunteerSummary{
		UserID:       reg.UserID,
		RegisteredAt: reg.CreatedAt,
		Role:         role,
		Status:       models.VolunteerSummaryStatus(reg.Status),
	}
}

// partnerSummary builds the event-side mirror. prev, when present,
// carries the approval stamp forward through rebuilds.
func partnerSummary(reg models.Registration, prev *models.PartnerSummary) models.PartnerSummary {
	contribution := ""
	if reg.PartnershipDetails != nil && reg.PartnershipDetails.Contribution != nil {
		contribution = reg.PartnershipDetails.Contribution.Description
	}
	sum := models.PartnerSummary{
		UserID:          reg.UserID,
		RegisteredAt:    reg.CreatedAt,
		PartnershipType: reg.PartnershipType(),
		Status:          models.PartnerSummaryStatus(reg.Status),
		Contribution:    contribution,
		FundingAmount:   reg.FundingAmount(),
	}
	if prev != nil {
		sum.ApprovedAt = prev.ApprovedAt
	}
	if sum.ApprovedAt == nil {
		if at := approvedAtFromHistory(reg); at != nil {
			sum.ApprovedAt = at
		}
	}
	return sum
}

func approvedAtFromHistory(reg models.Registration) *time.Time {
	for i := len(reg.StatusHistory) - 1; i >= 0; i-- {
		if reg.StatusHistory[i].Status == models.StatusApproved {
			at := reg.StatusHistory[i].ChangedAt
			return &at
		}
	}
	return nil
}

func findPartnerSummary(ev models.Event, userID primitive.ObjectID) *models.PartnerSummary {
	for i := range ev.Registrations.Partners {
		if ev.Registrations.Partners[i].UserID == userID {
			return &ev.Registrations.Partners[i]
		}
	}
	return nil
}

func userPartnershipEvent(reg models.Registration) models.UserPartnershipEvent {
	contribution := ""
	if reg.PartnershipDetails != nil && reg.PartnershipDetails.Contribution != nil {
		contribution = reg.PartnershipDetails.Contribution.Description
	}
	return models.UserPartnershipEvent{
		EventID:         reg.EventID,
		RegisteredAt:    reg.CreatedAt,
		PartnershipType: reg.PartnershipType(),
		Status:          models.PartnerSummaryStatus(reg.Status),
		Contribution:    contribution,
		FundingAmount:   reg.FundingAmount(),
	}
}
