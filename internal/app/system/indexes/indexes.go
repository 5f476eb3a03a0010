// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := ensureRegistrations(ctx, db); err != nil {
		problems = append(problems, "registrations: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := a != nil && *a
	bv := b != nil && *b
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	existing := listExisting(ctx, coll)

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern with matching options and name: reuse.
			if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}

			// Name or options mismatch (e.g., upgrading to unique): drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email is the global login identity.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// External auth subject lookup on login.
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_subject"),
		},
		// Name search + stable sort for public profile lists.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_nameci_id"),
		},
		// Mirror-entry lookups: which users reference an event.
		{
			Keys:    bson.D{{Key: "volunteer_events.event_id", Value: 1}},
			Options: options.Index().SetName("idx_users_volevents_event"),
		},
		{
			Keys:    bson.D{{Key: "partnership_events.event_id", Value: 1}},
			Options: options.Index().SetName("idx_users_partevents_event"),
		},
		// Geo queries on user location (nearby-events matching).
		{
			Keys:    bson.D{{Key: "location.coordinates", Value: "2dsphere"}},
			Options: options.Index().SetName("idx_users_location_2dsphere"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Slug is the public permalink; generated once per event.
		{
			Keys:    bson.D{{Key: "seo.slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_events_slug"),
		},
		// Discovery lists: status + start date ordering with stable tiebreak.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "start_date", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_events_status_start_id"),
		},
		// Category browsing within published events.
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "status", Value: 1},
				{Key: "start_date", Value: 1},
			},
			Options: options.Index().SetName("idx_events_category_status_start"),
		},
		// Organizer dashboard: all events owned by a user.
		{
			Keys:    bson.D{{Key: "organizer.user_id", Value: 1}, {Key: "start_date", Value: -1}},
			Options: options.Index().SetName("idx_events_organizer_start"),
		},
		// Title search path.
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_events_titleci_id"),
		},
		// Tag filtering (multikey).
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("idx_events_tags"),
		},
		// Embedded summary lookups during sync and rebuilds.
		{
			Keys:    bson.D{{Key: "registrations.volunteers.user_id", Value: 1}},
			Options: options.Index().SetName("idx_events_vol_user"),
		},
		{
			Keys:    bson.D{{Key: "registrations.partners.user_id", Value: 1}},
			Options: options.Index().SetName("idx_events_partner_user"),
		},
		// Geo queries on venue coordinates.
		{
			Keys:    bson.D{{Key: "location.coordinates", Value: "2dsphere"}},
			Options: options.Index().SetName("idx_events_location_2dsphere"),
		},
	})
}

func ensureRegistrations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("registrations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One registration per (user, event). The consistency model leans
		// on this: concurrent duplicate creates lose here, not in app code.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_reg_user_event"),
		},
		// Organizer views: registrations for an event, segmented by status.
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_reg_event_status_created"),
		},
		// User dashboard: a user's registrations, newest first.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_reg_user_created"),
		},
		// Type segmentation for per-event volunteer/partner tabs.
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "type", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_reg_event_type_status"),
		},
		// Confirmation token lookup.
		{
			Keys:    bson.D{{Key: "confirmation.token", Value: 1}},
			Options: options.Index().SetName("idx_reg_confirmation_token"),
		},
	})
}
