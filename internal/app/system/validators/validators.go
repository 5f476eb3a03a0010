// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("events", eventsSchema())
	ensure("registrations", registrationsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "name", "subject_id"},
			"properties": bson.M{
				"email":      bson.M{"bsonType": "string", "minLength": 3},
				"name":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":    bson.M{"bsonType": "string"},
				"subject_id": bson.M{"bsonType": "string", "minLength": 1},
				"is_active":  bson.M{"bsonType": "bool"},
				"stats": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"total_volunteer_hours":  bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
						"events_attended":        bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"partnerships_completed": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"impact_score":           bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
					},
				},
			},
		},
	}
}

func eventsSchema() bson.M {
	categoryEnum := bson.A{}
	for _, c := range models.Categories {
		categoryEnum = append(categoryEnum, c)
	}

	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "category", "status", "start_date", "end_date", "organizer"},
			"properties": bson.M{
				"title":      bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"title_ci":   bson.M{"bsonType": "string"},
				"category":   bson.M{"enum": categoryEnum},
				"status":     bson.M{"enum": bson.A{"draft", "published", "ongoing", "completed", "cancelled"}},
				"visibility": bson.M{"enum": bson.A{"public", "private", "invite-only"}},
				"start_date": bson.M{"bsonType": "date"},
				"end_date":   bson.M{"bsonType": "date"},
				"organizer": bson.M{
					"bsonType": "object",
					"required": bson.A{"user_id", "name", "email"},
					"properties": bson.M{
						"user_id": bson.M{"bsonType": "objectId"},
						"name":    bson.M{"bsonType": "string", "minLength": 1},
						"email":   bson.M{"bsonType": "string", "minLength": 3},
					},
				},
				"volunteer_opportunities": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"max_volunteers":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
						"current_volunteers": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
					},
				},
				"partnership_opportunities": bson.M{
					"bsonType": "object",
					"properties": bson.M{
						"total_funding_goal": bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
						"current_funding":    bson.M{"bsonType": bson.A{"double", "int", "long"}, "minimum": 0},
					},
				},
			},
		},
	}
}

func registrationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "event_id", "type", "status"},
			"properties": bson.M{
				"user_id":  bson.M{"bsonType": "objectId"},
				"event_id": bson.M{"bsonType": "objectId"},
				"type":     bson.M{"enum": bson.A{"volunteer", "partner"}},
				"status": bson.M{"enum": bson.A{
					"pending", "approved", "rejected", "waitlisted",
					"confirmed", "attended", "cancelled", "no-show",
				}},
				"status_history": bson.M{"bsonType": "array"},
				"created_at":     bson.M{"bsonType": "date"},
				"updated_at":     bson.M{"bsonType": "date"},
			},
		},
	}
}
