package models

// Categories lists the event/interest categories in display order.
// The same set is used for Event.Category and User.Interests.
var Categories = []string{
	"Technology",
	"Education",
	"Healthcare",
	"Environment",
	"Community Development",
	"Arts & Culture",
	"Sports & Recreation",
	"Social Services",
	"Business & Entrepreneurship",
	"Other",
}

// IsValidCategory reports whether s is one of the known categories.
func IsValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// Partnership types an event can solicit.
const (
	PartnershipSponsor = "sponsor"
	PartnershipVenue   = "venue"
	PartnershipSpeaker = "speaker"
	PartnershipMedia   = "media"
	PartnershipOther   = "other"
)

// IsValidPartnershipType reports whether s is a known partnership type.
func IsValidPartnershipType(s string) bool {
	switch s {
	case PartnershipSponsor, PartnershipVenue, PartnershipSpeaker, PartnershipMedia, PartnershipOther:
		return true
	}
	return false
}

// Event lifecycle statuses.
const (
	EventDraft     = "draft"
	EventPublished = "published"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// IsValidEventStatus reports whether s is a known event status.
func IsValidEventStatus(s string) bool {
	switch s {
	case EventDraft, EventPublished, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// Event visibility levels.
const (
	VisibilityPublic     = "public"
	VisibilityPrivate    = "private"
	VisibilityInviteOnly = "invite-only"
)
