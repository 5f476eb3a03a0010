package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active test user.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:            primitive.NewObjectID(),
		SubjectID:     "test|" + primitive.NewObjectID().Hex(),
		Email:         email,
		Name:          name,
		NameCI:        text.Fold(name),
		Notifications: models.DefaultNotifications(),
		IsActive:      true,
		LastLoginAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateEvent creates a published event accepting volunteers and
// sponsor partners, organized by the given user.
func (f *Fixtures) CreateEvent(ctx context.Context, title string, organizer models.User, maxVolunteers int) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	ev := models.Event{
		ID:          primitive.NewObjectID(),
		Title:       title,
		TitleCI:     text.Fold(title),
		Description: "Test event description",
		Category:    "Community Development",
		Location: models.EventLocation{
			Venue: "Test Venue",
			Address: models.Address{
				City:    "Columbia",
				State:   "MO",
				Country: "USA",
			},
		},
		StartDate: now.Add(72 * time.Hour),
		EndDate:   now.Add(80 * time.Hour),
		Organizer: models.Organizer{
			UserID: organizer.ID,
			Name:   organizer.Name,
			Email:  organizer.Email,
		},
		VolunteerOpportunities: models.VolunteerOpportunities{
			Accepting:     true,
			MaxVolunteers: maxVolunteers,
		},
		PartnershipOpportunities: models.PartnershipOpportunities{
			Accepting: true,
			Types: []models.PartnershipType{
				{Type: "sponsor", FundingRequired: true, MaxPartners: 3},
				{Type: "venue", MaxPartners: 1},
			},
			TotalFundingGoal: 10000,
		},
		Status:     models.EventPublished,
		Visibility: "public",
		SEO: models.EventSEO{
			Slug: text.Fold(title) + "-" + primitive.NewObjectID().Hex(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("events").InsertOne(ctx, ev); err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return ev
}

// CreateVolunteerRegistration inserts a volunteer registration row
// directly, without touching the projections.
func (f *Fixtures) CreateVolunteerRegistration(ctx context.Context, user models.User, ev models.Event, status string) models.Registration {
	f.t.Helper()

	now := time.Now().UTC()
	reg := models.Registration{
		ID:      primitive.NewObjectID(),
		UserID:  user.ID,
		EventID: ev.ID,
		Type:    models.TypeVolunteer,
		VolunteerDetails: &models.VolunteerDetails{
			PreferredRole: "general",
		},
		Status: status,
		StatusHistory: []models.StatusChange{
			{Status: status, ChangedAt: now, ChangedBy: &user.ID},
		},
		Consent:   models.Consent{DataProcessing: true},
		Source:    "api",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("registrations").InsertOne(ctx, reg); err != nil {
		f.t.Fatalf("failed to create test registration: %v", err)
	}
	return reg
}

// CreatePartnerRegistration inserts a partner registration row with a
// monetary contribution, without touching the projections.
func (f *Fixtures) CreatePartnerRegistration(ctx context.Context, user models.User, ev models.Event, ptype string, amount float64, status string) models.Registration {
	f.t.Helper()

	now := time.Now().UTC()
	reg := models.Registration{
		ID:      primitive.NewObjectID(),
		UserID:  user.ID,
		EventID: ev.ID,
		Type:    models.TypePartner,
		PartnershipDetails: &models.PartnershipDetails{
			PartnershipType:  ptype,
			OrganizationName: "Test Org",
			Contribution: &models.Contribution{
				Description: "Cash sponsorship",
				Value:       amount,
				Currency:    "USD",
			},
		},
		Status: status,
		StatusHistory: []models.StatusChange{
			{Status: status, ChangedAt: now, ChangedBy: &user.ID},
		},
		Consent:   models.Consent{DataProcessing: true},
		Source:    "api",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("registrations").InsertOne(ctx, reg); err != nil {
		f.t.Fatalf("failed to create test registration: %v", err)
	}
	return reg
}
