package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is a community event soliciting volunteers and partners.
//
// The registrations.volunteers and registrations.partners arrays are
// lightweight summaries of Registration rows, and the counters inside
// volunteer_opportunities, partnership_opportunities, and stats are
// derived from those summaries. RecomputeCounters is the single place
// those derivations live; the sync store calls it after every
// registration mutation and during rebuilds.
type Event struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Title            string `bson:"title" json:"title"`
	TitleCI          string `bson:"title_ci" json:"-"` // lowercase, diacritics-stripped
	Description      string `bson:"description" json:"description"`
	ShortDescription string `bson:"short_description" json:"short_description"`

	Category string   `bson:"category" json:"category"`
	Tags     []string `bson:"tags,omitempty" json:"tags,omitempty"`

	Location EventLocation `bson:"location" json:"location"`

	StartDate     time.Time `bson:"start_date" json:"start_date"`
	EndDate       time.Time `bson:"end_date" json:"end_date"`
	DurationHours float64   `bson:"duration_hours" json:"duration_hours"`
	Timezone      string    `bson:"timezone,omitempty" json:"timezone,omitempty"`

	Organizer Organizer `bson:"organizer" json:"organizer"`

	VolunteerOpportunities   VolunteerOpportunities   `bson:"volunteer_opportunities" json:"volunteer_opportunities"`
	PartnershipOpportunities PartnershipOpportunities `bson:"partnership_opportunities" json:"partnership_opportunities"`

	Media     EventMedia      `bson:"media,omitempty" json:"media,omitempty"`
	Resources []EventResource `bson:"resources,omitempty" json:"resources,omitempty"`

	Status     string `bson:"status" json:"status"`         // draft | published | ongoing | completed | cancelled
	Visibility string `bson:"visibility" json:"visibility"` // public | private | invite-only

	Registrations EventRegistrations `bson:"registrations" json:"registrations"`
	Stats         EventStats         `bson:"stats" json:"stats"`
	SEO           EventSEO           `bson:"seo" json:"seo"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// EventLocation is either a physical venue or a virtual link.
type EventLocation struct {
	Venue       string    `bson:"venue,omitempty" json:"venue,omitempty"`
	Address     Address   `bson:"address,omitempty" json:"address,omitempty"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	IsVirtual   bool      `bson:"is_virtual" json:"is_virtual"`
	VirtualLink string    `bson:"virtual_link,omitempty" json:"virtual_link,omitempty"`
}

// Address is a postal address for physical events.
type Address struct {
	Street  string `bson:"street,omitempty" json:"street,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	Country string `bson:"country,omitempty" json:"country,omitempty"`
	ZipCode string `bson:"zip_code,omitempty" json:"zip_code,omitempty"`
}

// Organizer identifies who manages the event. UserID is the stable
// authorization key, resolved once at event creation; the remaining
// fields are a contact snapshot and carry no authority.
type Organizer struct {
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Organization string             `bson:"organization,omitempty" json:"organization,omitempty"`
	Website      string             `bson:"website,omitempty" json:"website,omitempty"`
	Logo         string             `bson:"logo,omitempty" json:"logo,omitempty"`
}

// VolunteerOpportunities describes volunteer recruitment for an event.
type VolunteerOpportunities struct {
	Accepting         bool                  `bson:"accepting" json:"accepting"`
	MaxVolunteers     int                   `bson:"max_volunteers" json:"max_volunteers"`
	CurrentVolunteers int                   `bson:"current_volunteers" json:"current_volunteers"`
	Roles             []VolunteerRole       `bson:"roles,omitempty" json:"roles,omitempty"`
	Requirements      VolunteerRequirements `bson:"requirements,omitempty" json:"requirements,omitempty"`
	Benefits          []string              `bson:"benefits,omitempty" json:"benefits,omitempty"`
}

// VolunteerRole is a named role with a fill target.
type VolunteerRole struct {
	Title          string   `bson:"title" json:"title"`
	Description    string   `bson:"description,omitempty" json:"description,omitempty"`
	SkillsRequired []string `bson:"skills_required,omitempty" json:"skills_required,omitempty"`
	Count          int      `bson:"count" json:"count"`
	Filled         int      `bson:"filled" json:"filled"`
}

// VolunteerRequirements are preconditions for volunteering.
type VolunteerRequirements struct {
	MinAge          int      `bson:"min_age,omitempty" json:"min_age,omitempty"`
	BackgroundCheck bool     `bson:"background_check" json:"background_check"`
	SpecificSkills  []string `bson:"specific_skills,omitempty" json:"specific_skills,omitempty"`
	TimeCommitment  string   `bson:"time_commitment,omitempty" json:"time_commitment,omitempty"`
}

// PartnershipOpportunities describes partner recruitment for an event.
type PartnershipOpportunities struct {
	Accepting        bool              `bson:"accepting" json:"accepting"`
	Types            []PartnershipType `bson:"types,omitempty" json:"types,omitempty"`
	TotalFundingGoal float64           `bson:"total_funding_goal,omitempty" json:"total_funding_goal,omitempty"`
	CurrentFunding   float64           `bson:"current_funding" json:"current_funding"`
}

// PartnershipType is one kind of partnership an event solicits.
type PartnershipType struct {
	Type            string       `bson:"type" json:"type"` // sponsor | venue | speaker | media | other
	Description     string       `bson:"description,omitempty" json:"description,omitempty"`
	Requirements    string       `bson:"requirements,omitempty" json:"requirements,omitempty"`
	Benefits        []string     `bson:"benefits,omitempty" json:"benefits,omitempty"`
	FundingRequired bool         `bson:"funding_required" json:"funding_required"`
	SuggestedAmount *AmountRange `bson:"suggested_amount,omitempty" json:"suggested_amount,omitempty"`
	MaxPartners     int          `bson:"max_partners,omitempty" json:"max_partners,omitempty"` // 0 means unlimited
	CurrentPartners int          `bson:"current_partners" json:"current_partners"`
}

// AmountRange is a suggested funding bracket.
type AmountRange struct {
	Min float64 `bson:"min,omitempty" json:"min,omitempty"`
	Max float64 `bson:"max,omitempty" json:"max,omitempty"`
}

// EventMedia holds presentation assets.
type EventMedia struct {
	FeaturedImage string   `bson:"featured_image,omitempty" json:"featured_image,omitempty"`
	Gallery       []string `bson:"gallery,omitempty" json:"gallery,omitempty"`
	Videos        []string `bson:"videos,omitempty" json:"videos,omitempty"`
}

// EventResource is a supporting document or link.
type EventResource struct {
	Title       string `bson:"title" json:"title"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	URL         string `bson:"url" json:"url"`
	Type        string `bson:"type,omitempty" json:"type,omitempty"` // document | video | link | image | other
}

// EventRegistrations holds the embedded registration summaries.
type EventRegistrations struct {
	Volunteers []VolunteerSummary `bson:"volunteers,omitempty" json:"volunteers,omitempty"`
	Partners   []PartnerSummary   `bson:"partners,omitempty" json:"partners,omitempty"`
}

// VolunteerSummary is the lightweight mirror of a volunteer registration.
type VolunteerSummary struct {
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	RegisteredAt time.Time          `bson:"registered_at" json:"registered_at"`
	Role         string             `bson:"role,omitempty" json:"role,omitempty"`
	Status       string             `bson:"status" json:"status"` // registered | confirmed | attended | cancelled | no-show
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// PartnerSummary is the lightweight mirror of a partner registration.
type PartnerSummary struct {
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	RegisteredAt    time.Time          `bson:"registered_at" json:"registered_at"`
	PartnershipType string             `bson:"partnership_type" json:"partnership_type"`
	Status          string             `bson:"status" json:"status"` // pending | approved | rejected | active | completed
	Contribution    string             `bson:"contribution,omitempty" json:"contribution,omitempty"`
	FundingAmount   float64            `bson:"funding_amount,omitempty" json:"funding_amount,omitempty"`
	ApprovedAt      *time.Time         `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// EventStats tracks engagement and outcomes.
type EventStats struct {
	Views              int            `bson:"views" json:"views"`
	Shares             int            `bson:"shares" json:"shares"`
	TotalRegistrations int            `bson:"total_registrations" json:"total_registrations"`
	ActualAttendance   int            `bson:"actual_attendance,omitempty" json:"actual_attendance,omitempty"`
	SatisfactionRating float64        `bson:"satisfaction_rating,omitempty" json:"satisfaction_rating,omitempty"`
	ImpactMetrics      *ImpactMetrics `bson:"impact_metrics,omitempty" json:"impact_metrics,omitempty"`
}

// ImpactMetrics are organizer-reported outcomes.
type ImpactMetrics struct {
	PeopleHelped     int            `bson:"people_helped,omitempty" json:"people_helped,omitempty"`
	FundsRaised      float64        `bson:"funds_raised,omitempty" json:"funds_raised,omitempty"`
	HoursContributed float64        `bson:"hours_contributed,omitempty" json:"hours_contributed,omitempty"`
	CustomMetrics    []CustomMetric `bson:"custom_metrics,omitempty" json:"custom_metrics,omitempty"`
}

// CustomMetric is a free-form named metric.
type CustomMetric struct {
	Name  string  `bson:"name" json:"name"`
	Value float64 `bson:"value" json:"value"`
	Unit  string  `bson:"unit,omitempty" json:"unit,omitempty"`
}

// EventSEO holds discovery metadata. Slug is derived from the title once
// at creation and never regenerated.
type EventSEO struct {
	MetaTitle       string   `bson:"meta_title,omitempty" json:"meta_title,omitempty"`
	MetaDescription string   `bson:"meta_description,omitempty" json:"meta_description,omitempty"`
	Keywords        []string `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Slug            string   `bson:"slug,omitempty" json:"slug,omitempty"`
}

// Volunteer summary statuses that count toward current_volunteers.
var activeVolunteerStatuses = map[string]bool{
	"registered": true,
	"confirmed":  true,
	"attended":   true,
}

// Partner summary statuses that count toward current_partners and
// current_funding.
var activePartnerStatuses = map[string]bool{
	"approved":  true,
	"active":    true,
	"completed": true,
}

// IsActiveVolunteerStatus reports whether a volunteer summary status
// consumes a volunteer slot.
func IsActiveVolunteerStatus(s string) bool { return activeVolunteerStatuses[s] }

// IsActivePartnerStatus reports whether a partner summary status counts
// toward partner and funding totals.
func IsActivePartnerStatus(s string) bool { return activePartnerStatuses[s] }

// RecomputeCounters rebuilds every derived counter from the embedded
// registration summaries. Idempotent; safe to run any number of times.
func (e *Event) RecomputeCounters() {
	current := 0
	for _, v := range e.Registrations.Volunteers {
		if IsActiveVolunteerStatus(v.Status) {
			current++
		}
	}
	e.VolunteerOpportunities.CurrentVolunteers = current

	var funding float64
	perType := make(map[string]int, len(e.PartnershipOpportunities.Types))
	for _, p := range e.Registrations.Partners {
		if !IsActivePartnerStatus(p.Status) {
			continue
		}
		perType[p.PartnershipType]++
		funding += p.FundingAmount
	}
	for i := range e.PartnershipOpportunities.Types {
		t := &e.PartnershipOpportunities.Types[i]
		t.CurrentPartners = perType[t.Type]
	}
	e.PartnershipOpportunities.CurrentFunding = funding

	e.Stats.TotalRegistrations = len(e.Registrations.Volunteers) + len(e.Registrations.Partners)
}

// VolunteersNeeded returns how many volunteer slots remain open.
func (e *Event) VolunteersNeeded() int {
	n := e.VolunteerOpportunities.MaxVolunteers - e.VolunteerOpportunities.CurrentVolunteers
	if n < 0 {
		return 0
	}
	return n
}

// FundingProgress returns current funding as a percentage of the goal,
// or 0 when no goal is set.
func (e *Event) FundingProgress() float64 {
	goal := e.PartnershipOpportunities.TotalFundingGoal
	if goal <= 0 {
		return 0
	}
	return e.PartnershipOpportunities.CurrentFunding / goal * 100
}

// PartnershipTypeByName returns the matching partnership type, or nil.
func (e *Event) PartnershipTypeByName(name string) *PartnershipType {
	for i := range e.PartnershipOpportunities.Types {
		if e.PartnershipOpportunities.Types[i].Type == name {
			return &e.PartnershipOpportunities.Types[i]
		}
	}
	return nil
}

// IsUpcoming reports whether the event has not started yet.
func (e *Event) IsUpcoming(now time.Time) bool { return e.StartDate.After(now) }

// IsPast reports whether the event has ended.
func (e *Event) IsPast(now time.Time) bool { return e.EndDate.Before(now) }
