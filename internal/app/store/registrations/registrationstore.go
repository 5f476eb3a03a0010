// internal/app/store/registrations/registrationstore.go
package registrationstore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/htmlsanitize"
	"github.com/commonweal/volunteerhub/internal/app/system/paging"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("registrations")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Registration, error) {
	var reg models.Registration
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&reg); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Registration{}, apperr.New(apperr.NotFound, "registration not found")
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// Create inserts the registration row. The unique (user_id, event_id)
// index is the duplicate gate: a concurrent second registration loses
// here and surfaces as Conflict.
func (s *Store) Create(ctx context.Context, reg models.Registration) (models.Registration, error) {
	now := time.Now().UTC()
	reg.ID = primitive.NewObjectID()
	if reg.Status == "" {
		if reg.Type == models.TypePartner {
			reg.Status = models.StatusPending
		} else {
			reg.Status = models.StatusApproved
		}
	}
	reg.StatusHistory = []models.StatusChange{{
		Status:    reg.Status,
		ChangedAt: now,
		ChangedBy: &reg.UserID,
	}}
	reg.Confirmation.Token = uuid.NewString()
	reg.Notes.User = htmlsanitize.Text(reg.Notes.User)
	reg.CreatedAt = now
	reg.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, reg); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Registration{}, apperr.New(apperr.Conflict, "already registered for this event")
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// UpdateStatus applies a state-machine transition with an optimistic
// guard on the current status: the update matches only when the row is
// still in `from`, so two racing transitions cannot both win.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to string, actor *primitive.ObjectID, notes string) (models.Registration, error) {
	if !models.CanTransition(from, to) {
		return models.Registration{}, apperr.Newf(apperr.InvalidState, "cannot move registration from %s to %s", from, to)
	}
	now := time.Now().UTC()

	set := bson.M{"status": to, "updated_at": now}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"status_history": models.StatusChange{
			Status:    to,
			ChangedAt: now,
			ChangedBy: actor,
			Notes:     notes,
		}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var reg models.Registration
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update, opts).Decode(&reg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Row moved under us (or never existed). Re-read to report
			// which one it was.
			if _, gerr := s.GetByID(ctx, id); gerr != nil {
				return models.Registration{}, gerr
			}
			return models.Registration{}, apperr.New(apperr.Conflict, "registration changed concurrently")
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// ForceStatus sets the status outside the normal transition rules and
// appends a history entry. Check-in uses this: physical arrival wins
// over an unfinished approval flow. Callers gate which rows qualify.
func (s *Store) ForceStatus(ctx context.Context, id primitive.ObjectID, to string, actor *primitive.ObjectID, notes string) (models.Registration, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"status": to, "updated_at": now},
		"$push": bson.M{"status_history": models.StatusChange{
			Status:    to,
			ChangedAt: now,
			ChangedBy: actor,
			Notes:     notes,
		}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var reg models.Registration
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&reg); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Registration{}, apperr.New(apperr.NotFound, "registration not found")
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// Patch carries the owner-editable fields of a live registration.
type Patch struct {
	VolunteerDetails   *models.VolunteerDetails
	PartnershipDetails *models.PartnershipDetails
	CustomResponses    []models.CustomResponse
	UserNotes          *string
	Consent            *models.Consent
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.Registration, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if p.VolunteerDetails != nil {
		set["volunteer_details"] = *p.VolunteerDetails
	}
	if p.PartnershipDetails != nil {
		set["partnership_details"] = *p.PartnershipDetails
	}
	if p.CustomResponses != nil {
		set["custom_responses"] = p.CustomResponses
	}
	if p.UserNotes != nil {
		set["notes.user"] = htmlsanitize.Text(*p.UserNotes)
	}
	if p.Consent != nil {
		if !p.Consent.DataProcessing {
			return models.Registration{}, apperr.New(apperr.Validation, "data processing consent cannot be withdrawn while registered")
		}
		set["consent"] = *p.Consent
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var reg models.Registration
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&reg); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Registration{}, apperr.New(apperr.NotFound, "registration not found")
		}
		return models.Registration{}, err
	}
	return reg, nil
}

// SetCheckIn records arrival and the hours contributed. The status
// transition to attended happens separately via UpdateStatus.
func (s *Store) SetCheckIn(ctx context.Context, id primitive.ObjectID, ci models.CheckIn) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"checkin":    ci,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.NotFound, "registration not found")
	}
	return nil
}

// SetFeedback stores feedback write-once: the filter refuses rows that
// already carry one.
func (s *Store) SetFeedback(ctx context.Context, id primitive.ObjectID, fb models.Feedback) error {
	fb.Comments = htmlsanitize.Text(fb.Comments)
	fb.Improvements = htmlsanitize.Text(fb.Improvements)

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "feedback": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"feedback": fb, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return gerr
		}
		return apperr.New(apperr.Conflict, "feedback already submitted")
	}
	return nil
}

// ListByEvent returns full registration rows for an event, optionally
// narrowed by type and status.
func (s *Store) ListByEvent(ctx context.Context, eventID primitive.ObjectID, regType, status string, page paging.Page) ([]models.Registration, int64, error) {
	q := bson.M{"event_id": eventID}
	if regType != "" {
		q["type"] = regType
	}
	if status != "" {
		q["status"] = status
	}
	return s.list(ctx, q, page)
}

// ListByUser returns a user's registrations, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, regType, status string, page paging.Page) ([]models.Registration, int64, error) {
	q := bson.M{"user_id": userID}
	if regType != "" {
		q["type"] = regType
	}
	if status != "" {
		q["status"] = status
	}
	return s.list(ctx, q, page)
}

func (s *Store) list(ctx context.Context, q bson.M, page paging.Page) ([]models.Registration, int64, error) {
	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit64())

	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var regs []models.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

// AllByEvent returns every registration row for an event, for rebuilds.
func (s *Store) AllByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.c.Find(ctx, bson.M{"event_id": eventID})
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

// AllByUser returns every registration row for a user, for rebuilds and
// cascade deletes.
func (s *Store) AllByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
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

// Delete removes a single row. Used only to undo an insert whose
// projection was refused; cancellation is a status transition, not a
// delete.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByEvent removes all registration rows for an event (event
// deletion cascade).
func (s *Store) DeleteByEvent(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByUser removes all of a user's registrations (account deletion).
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// StatusCounts groups a user's registrations by type and status.
func (s *Store) StatusCounts(ctx context.Context, userID primitive.ObjectID) (map[string]map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"type": "$type", "status": "$status"},
			"n":   bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID struct {
			Type   string `bson:"type"`
			Status string `bson:"status"`
		} `bson:"_id"`
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	out := map[string]map[string]int64{}
	for _, r := range rows {
		m, ok := out[r.ID.Type]
		if !ok {
			m = map[string]int64{}
			out[r.ID.Type] = m
		}
		m[r.ID.Status] = r.N
	}
	return out, nil
}

// CategoryDistribution counts a user's registrations per event category
// via a $lookup into events.
func (s *Store) CategoryDistribution(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "events",
			"localField":   "event_id",
			"foreignField": "_id",
			"as":           "event",
		}}},
		{{Key: "$unwind", Value: "$event"}},
		{{Key: "$group", Value: bson.M{"_id": "$event.category", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Category string `bson:"_id"`
		N        int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}

// MonthBucket is one month of registration activity.
type MonthBucket struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// MonthlyActivity buckets a user's registrations by calendar month over
// the trailing 12 months.
func (s *Store) MonthlyActivity(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]MonthBucket, error) {
	since := now.AddDate(-1, 0, 0)
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$created_at"},
				"month": bson.M{"$month": "$created_at"},
			},
			"n": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]MonthBucket, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthBucket{Year: r.ID.Year, Month: r.ID.Month, Count: r.N})
	}
	return out, nil
}
