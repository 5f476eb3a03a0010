package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registration types.
const (
	TypeVolunteer = "volunteer"
	TypePartner   = "partner"
)

// Registration statuses.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusWaitlisted = "waitlisted"
	StatusConfirmed  = "confirmed"
	StatusAttended   = "attended"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no-show"
)

// transitions is the registration state machine. Cancellation from any
// non-terminal state is handled in CanTransition rather than listed here.
var transitions = map[string][]string{
	StatusPending:    {StatusApproved, StatusRejected, StatusWaitlisted},
	StatusApproved:   {StatusConfirmed, StatusRejected},
	StatusConfirmed:  {StatusAttended, StatusNoShow},
	StatusWaitlisted: {},
}

// terminalStatuses admit no further transitions.
var terminalStatuses = map[string]bool{
	StatusAttended:  true,
	StatusNoShow:    true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminalStatus reports whether s admits no further transitions.
func IsTerminalStatus(s string) bool { return terminalStatuses[s] }

// IsValidStatus reports whether s is a known registration status.
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusWaitlisted,
		StatusConfirmed, StatusAttended, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether a registration may move from one status
// to another. Any non-terminal status may move to cancelled.
func CanTransition(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Registration is the authoritative record of one user's participation
// in one event. At most one exists per (user, event) pair, enforced by a
// unique index. Status changes append to StatusHistory; rows are never
// removed by the normal flow — cancellation is a transition, and only
// account deletion removes registrations.
type Registration struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  primitive.ObjectID `bson:"user_id" json:"user_id"`
	EventID primitive.ObjectID `bson:"event_id" json:"event_id"`

	Type string `bson:"type" json:"type"` // volunteer | partner

	VolunteerDetails   *VolunteerDetails   `bson:"volunteer_details,omitempty" json:"volunteer_details,omitempty"`
	PartnershipDetails *PartnershipDetails `bson:"partnership_details,omitempty" json:"partnership_details,omitempty"`

	Status        string         `bson:"status" json:"status"`
	StatusHistory []StatusChange `bson:"status_history" json:"status_history"`

	Notes           RegistrationNotes `bson:"notes,omitempty" json:"notes,omitempty"`
	CustomResponses []CustomResponse  `bson:"custom_responses,omitempty" json:"custom_responses,omitempty"`

	Confirmation Confirmation   `bson:"confirmation" json:"confirmation"`
	CheckIn      CheckIn        `bson:"checkin" json:"checkin"`
	Feedback     *Feedback      `bson:"feedback,omitempty" json:"feedback,omitempty"`
	Recognition  Recognition    `bson:"recognition,omitempty" json:"recognition,omitempty"`
	Consent      Consent        `bson:"consent" json:"consent"`
	Payment      *PaymentRecord `bson:"payment,omitempty" json:"payment,omitempty"`

	Source    string `bson:"source,omitempty" json:"source,omitempty"` // web | mobile | api | import | admin
	IPAddress string `bson:"ip_address,omitempty" json:"-"`
	UserAgent string `bson:"user_agent,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// VolunteerDetails holds volunteer-specific registration fields.
type VolunteerDetails struct {
	PreferredRole       string            `bson:"preferred_role,omitempty" json:"preferred_role,omitempty"`
	Skills              []string          `bson:"skills,omitempty" json:"skills,omitempty"`
	Experience          string            `bson:"experience,omitempty" json:"experience,omitempty"`
	Availability        *Availability     `bson:"availability,omitempty" json:"availability,omitempty"`
	EmergencyContact    *EmergencyContact `bson:"emergency_contact,omitempty" json:"emergency_contact,omitempty"`
	SpecialRequirements string            `bson:"special_requirements,omitempty" json:"special_requirements,omitempty"`
	TShirtSize          string            `bson:"tshirt_size,omitempty" json:"tshirt_size,omitempty"`
}

// Availability is the volunteer's stated time window.
type Availability struct {
	StartTime        *time.Time `bson:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime          *time.Time `bson:"end_time,omitempty" json:"end_time,omitempty"`
	FlexibleSchedule bool       `bson:"flexible_schedule" json:"flexible_schedule"`
}

// EmergencyContact for on-site incidents.
type EmergencyContact struct {
	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	Relationship string `bson:"relationship,omitempty" json:"relationship,omitempty"`
}

// PartnershipDetails holds partner-specific registration fields.
type PartnershipDetails struct {
	PartnershipType      string               `bson:"partnership_type" json:"partnership_type"`
	OrganizationName     string               `bson:"organization_name,omitempty" json:"organization_name,omitempty"`
	OrganizationWebsite  string               `bson:"organization_website,omitempty" json:"organization_website,omitempty"`
	ContactPerson        *ContactPerson       `bson:"contact_person,omitempty" json:"contact_person,omitempty"`
	Contribution         *Contribution        `bson:"contribution,omitempty" json:"contribution,omitempty"`
	Requirements         string               `bson:"requirements,omitempty" json:"requirements,omitempty"`
	Expectations         string               `bson:"expectations,omitempty" json:"expectations,omitempty"`
	PreviousPartnerships []PastPartnership    `bson:"previous_partnerships,omitempty" json:"previous_partnerships,omitempty"`
	LogoURL              string               `bson:"logo_url,omitempty" json:"logo_url,omitempty"`
	WebsiteURL           string               `bson:"website_url,omitempty" json:"website_url,omitempty"`
	SocialMedia          *SocialMediaProfiles `bson:"social_media,omitempty" json:"social_media,omitempty"`
}

// ContactPerson is the partner organization's contact.
type ContactPerson struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Title string `bson:"title,omitempty" json:"title,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// Contribution is what the partner offers.
type Contribution struct {
	Description       string  `bson:"description,omitempty" json:"description,omitempty"`
	Value             float64 `bson:"value,omitempty" json:"value,omitempty"`
	Currency          string  `bson:"currency,omitempty" json:"currency,omitempty"`
	InKind            bool    `bson:"in_kind" json:"in_kind"`
	InKindDescription string  `bson:"in_kind_description,omitempty" json:"in_kind_description,omitempty"`
}

// PastPartnership records a prior collaboration.
type PastPartnership struct {
	EventName string `bson:"event_name,omitempty" json:"event_name,omitempty"`
	Year      int    `bson:"year,omitempty" json:"year,omitempty"`
	Type      string `bson:"type,omitempty" json:"type,omitempty"`
}

// SocialMediaProfiles are the partner's public profiles.
type SocialMediaProfiles struct {
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	LinkedIn  string `bson:"linkedin,omitempty" json:"linkedin,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
}

// StatusChange is one append-only history entry. Every status change
// after creation appends exactly one of these.
type StatusChange struct {
	Status    string              `bson:"status" json:"status"`
	ChangedAt time.Time           `bson:"changed_at" json:"changed_at"`
	ChangedBy *primitive.ObjectID `bson:"changed_by,omitempty" json:"changed_by,omitempty"`
	Notes     string              `bson:"notes,omitempty" json:"notes,omitempty"`
}

// RegistrationNotes separates user-visible from internal notes.
type RegistrationNotes struct {
	User      string `bson:"user,omitempty" json:"user,omitempty"`
	Organizer string `bson:"organizer,omitempty" json:"organizer,omitempty"`
	Internal  string `bson:"internal,omitempty" json:"-"`
}

// CustomResponse is one answer to an organizer-defined question.
type CustomResponse struct {
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
	Kind     string `bson:"kind,omitempty" json:"kind,omitempty"` // text | number | boolean | select | multiselect | file
}

// Confirmation tracks the attendee confirmation flow.
type Confirmation struct {
	Confirmed     bool       `bson:"confirmed" json:"confirmed"`
	ConfirmedAt   *time.Time `bson:"confirmed_at,omitempty" json:"confirmed_at,omitempty"`
	Token         string     `bson:"token,omitempty" json:"-"`
	RemindersSent int        `bson:"reminders_sent" json:"reminders_sent"`
}

// CheckIn records on-site arrival.
type CheckIn struct {
	CheckedIn        bool                `bson:"checked_in" json:"checked_in"`
	CheckedInAt      *time.Time          `bson:"checked_in_at,omitempty" json:"checked_in_at,omitempty"`
	CheckedInBy      *primitive.ObjectID `bson:"checked_in_by,omitempty" json:"checked_in_by,omitempty"`
	ActualRole       string              `bson:"actual_role,omitempty" json:"actual_role,omitempty"`
	HoursContributed float64             `bson:"hours_contributed,omitempty" json:"hours_contributed,omitempty"`
}

// Feedback is the participant's post-event evaluation. Write-once:
// re-submission is rejected.
type Feedback struct {
	Rating         int       `bson:"rating" json:"rating"` // 1-5
	Comments       string    `bson:"comments,omitempty" json:"comments,omitempty"`
	WouldRecommend bool      `bson:"would_recommend" json:"would_recommend"`
	Improvements   string    `bson:"improvements,omitempty" json:"improvements,omitempty"`
	SubmittedAt    time.Time `bson:"submitted_at" json:"submitted_at"`
}

// Recognition tracks certificates and badges.
type Recognition struct {
	CertificateIssued bool     `bson:"certificate_issued" json:"certificate_issued"`
	CertificateURL    string   `bson:"certificate_url,omitempty" json:"certificate_url,omitempty"`
	BadgesEarned      []string `bson:"badges_earned,omitempty" json:"badges_earned,omitempty"`
	PublicRecognition bool     `bson:"public_recognition" json:"public_recognition"`
}

// Consent holds privacy flags. DataProcessing is mandatory at creation.
type Consent struct {
	DataProcessing bool `bson:"data_processing" json:"data_processing"`
	Communications bool `bson:"communications" json:"communications"`
	PhotoRelease   bool `bson:"photo_release" json:"photo_release"`
	PublicProfile  bool `bson:"public_profile" json:"public_profile"`
}

// PaymentRecord is kept for paid events/partnerships; no processing
// happens in this service.
type PaymentRecord struct {
	Required      bool       `bson:"required" json:"required"`
	Amount        float64    `bson:"amount,omitempty" json:"amount,omitempty"`
	Currency      string     `bson:"currency,omitempty" json:"currency,omitempty"`
	Status        string     `bson:"status,omitempty" json:"status,omitempty"` // pending | completed | failed | refunded
	TransactionID string     `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	Method        string     `bson:"method,omitempty" json:"method,omitempty"`
	PaidAt        *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
}

// IsActive reports whether the registration currently counts as a
// participant.
func (r *Registration) IsActive() bool {
	switch r.Status {
	case StatusApproved, StatusConfirmed, StatusAttended:
		return true
	}
	return false
}

// FundingAmount returns the partner's monetary contribution, or 0.
func (r *Registration) FundingAmount() float64 {
	if r.Type == TypePartner && r.PartnershipDetails != nil && r.PartnershipDetails.Contribution != nil {
		return r.PartnershipDetails.Contribution.Value
	}
	return 0
}

// PartnershipType returns the partner type name, or "" for volunteers.
func (r *Registration) PartnershipType() string {
	if r.PartnershipDetails != nil {
		return r.PartnershipDetails.PartnershipType
	}
	return ""
}

// VolunteerSummaryStatus maps a registration status to the status kept
// on the event's embedded volunteer summary.
func VolunteerSummaryStatus(regStatus string) string {
	switch regStatus {
	case StatusApproved, StatusPending, StatusWaitlisted:
		return "registered"
	case StatusConfirmed:
		return "confirmed"
	case StatusAttended:
		return "attended"
	case StatusNoShow:
		return "no-show"
	default:
		return "cancelled"
	}
}

// PartnerSummaryStatus maps a registration status to the status kept on
// the event's embedded partner summary.
func PartnerSummaryStatus(regStatus string) string {
	switch regStatus {
	case StatusPending, StatusWaitlisted:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusConfirmed:
		return "active"
	case StatusAttended:
		return "completed"
	default:
		return "rejected"
	}
}

// UserVolunteerStatus maps a registration status to the status kept on
// the user's volunteer_events entry.
func UserVolunteerStatus(regStatus string) string {
	switch regStatus {
	case StatusAttended:
		return "attended"
	case StatusNoShow:
		return "no-show"
	case StatusCancelled:
		return "cancelled"
	default:
		return "registered"
	}
}

// AppendStatus records a transition on the registration itself: sets the
// new status and appends exactly one history entry.
func (r *Registration) AppendStatus(to string, actor *primitive.ObjectID, notes string, now time.Time) {
	r.Status = to
	r.StatusHistory = append(r.StatusHistory, StatusChange{
		Status:    to,
		ChangedAt: now,
		ChangedBy: actor,
		Notes:     notes,
	})
	r.UpdatedAt = now
}
