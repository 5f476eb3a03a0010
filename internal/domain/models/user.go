package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a community member identified by an external auth subject.
// The volunteer_events and partnership_events arrays are denormalized
// projections of the user's Registration rows; Stats is derived from them.
// Registrations remain the source of truth — see the sync store.
type User struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// SubjectID is the stable identifier issued by the external
	// authentication provider. Unique across all users.
	SubjectID string `bson:"subject_id" json:"subject_id"`

	Email          string `bson:"email" json:"email"`
	Name           string `bson:"name" json:"name"`
	NameCI         string `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	ProfilePicture string `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`

	Location  UserLocation `bson:"location,omitempty" json:"location,omitempty"`
	Interests []string     `bson:"interests,omitempty" json:"interests,omitempty"`
	Skills    []string     `bson:"skills,omitempty" json:"skills,omitempty"`
	Bio       string       `bson:"bio,omitempty" json:"bio,omitempty"`

	VolunteerEvents   []UserVolunteerEvent   `bson:"volunteer_events,omitempty" json:"volunteer_events,omitempty"`
	PartnershipEvents []UserPartnershipEvent `bson:"partnership_events,omitempty" json:"partnership_events,omitempty"`

	Stats         UserStats         `bson:"stats" json:"stats"`
	Notifications UserNotifications `bson:"notifications" json:"notifications"`

	IsActive    bool      `bson:"is_active" json:"is_active"`
	LastLoginAt time.Time `bson:"last_login_at" json:"last_login_at"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UserLocation is a coarse location used for discovery and geo queries.
type UserLocation struct {
	City    string    `bson:"city,omitempty" json:"city,omitempty"`
	State   string    `bson:"state,omitempty" json:"state,omitempty"`
	Country string    `bson:"country,omitempty" json:"country,omitempty"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// GeoPoint is a GeoJSON point: Coordinates is [lng, lat].
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a lat/lng pair.
func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// UserVolunteerEvent mirrors one volunteer registration on the user document.
type UserVolunteerEvent struct {
	EventID      primitive.ObjectID `bson:"event_id" json:"event_id"`
	RegisteredAt time.Time          `bson:"registered_at" json:"registered_at"`
	Status       string             `bson:"status" json:"status"` // registered | attended | cancelled | no-show
}

// UserPartnershipEvent mirrors one partner registration on the user document.
type UserPartnershipEvent struct {
	EventID         primitive.ObjectID `bson:"event_id" json:"event_id"`
	RegisteredAt    time.Time          `bson:"registered_at" json:"registered_at"`
	PartnershipType string             `bson:"partnership_type" json:"partnership_type"`
	Status          string             `bson:"status" json:"status"` // pending | approved | rejected | active | completed
	Contribution    string             `bson:"contribution,omitempty" json:"contribution,omitempty"`
	FundingAmount   float64            `bson:"funding_amount,omitempty" json:"funding_amount,omitempty"`
}

// UserStats is derived from the embedded event lists plus accumulated
// check-in hours.
type UserStats struct {
	TotalVolunteerHours   float64 `bson:"total_volunteer_hours" json:"total_volunteer_hours"`
	EventsAttended        int     `bson:"events_attended" json:"events_attended"`
	PartnershipsCompleted int     `bson:"partnerships_completed" json:"partnerships_completed"`
	ImpactScore           int     `bson:"impact_score" json:"impact_score"`
}

// UserNotifications holds opt-in flags for outbound communication.
type UserNotifications struct {
	Email              bool `bson:"email" json:"email"`
	EventReminders     bool `bson:"event_reminders" json:"event_reminders"`
	PartnershipUpdates bool `bson:"partnership_updates" json:"partnership_updates"`
	CommunityUpdates   bool `bson:"community_updates" json:"community_updates"`
}

// DefaultNotifications returns the opt-in defaults for a new account.
func DefaultNotifications() UserNotifications {
	return UserNotifications{Email: true, EventReminders: true, PartnershipUpdates: true}
}

// TotalEvents returns the number of events this user participates in,
// across both embedded lists.
func (u *User) TotalEvents() int {
	return len(u.VolunteerEvents) + len(u.PartnershipEvents)
}

// RecomputeStats rebuilds the derived stats from the embedded event lists.
// TotalVolunteerHours is left untouched: hours accumulate at check-in and
// are not recoverable from the projections.
func (u *User) RecomputeStats() {
	attended := 0
	for _, ev := range u.VolunteerEvents {
		if ev.Status == "attended" {
			attended++
		}
	}
	completed := 0
	for _, p := range u.PartnershipEvents {
		if p.Status == "completed" {
			completed++
		}
	}
	u.Stats.EventsAttended = attended
	u.Stats.PartnershipsCompleted = completed
	u.Stats.ImpactScore = attended*10 + completed*25
}
