package validators_test

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commonweal/volunteerhub/internal/app/system/validators"
	"github.com/commonweal/volunteerhub/internal/testutil"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	// Second call should also succeed (idempotent)
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expectedCollections := []string{"users", "events", "registrations"}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}

	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}
	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestUsersValidator_RequiredFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	// Missing name and subject_id - should fail validation
	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"email": "incomplete@example.org",
	})
	if err == nil {
		t.Error("expected validation error when inserting user without required fields")
	}
}

func TestUsersValidator_AcceptsValidUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"email":      "vol@example.org",
		"name":       "Sam Volunteer",
		"subject_id": "ext-1",
		"is_active":  true,
		"created_at": time.Now(),
	})
	if err != nil {
		t.Errorf("valid user rejected: %v", err)
	}
}

func TestRegistrationsValidator_RejectsBadStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	_, err := db.Collection("registrations").InsertOne(ctx, bson.M{
		"user_id":  primitive.NewObjectID(),
		"event_id": primitive.NewObjectID(),
		"type":     "volunteer",
		"status":   "definitely-not-a-status",
	})
	if err == nil {
		t.Error("expected validation error for unknown registration status")
	}
}

func TestRegistrationsValidator_AcceptsValid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	_, err := db.Collection("registrations").InsertOne(ctx, bson.M{
		"user_id":    primitive.NewObjectID(),
		"event_id":   primitive.NewObjectID(),
		"type":       "partner",
		"status":     "pending",
		"created_at": time.Now(),
		"updated_at": time.Now(),
	})
	if err != nil {
		t.Errorf("valid registration rejected: %v", err)
	}
}
