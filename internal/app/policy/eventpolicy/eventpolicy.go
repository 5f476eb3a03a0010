// internal/app/policy/eventpolicy/eventpolicy.go
package eventpolicy

import (
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// IsOrganizer reports whether id owns the event. Ownership is pinned to
// the organizer's user ObjectID, which never changes even if the
// organizer contact snapshot on the event is edited.
func IsOrganizer(id auth.Identity, ev *models.Event) bool {
	return !id.UserID.IsZero() && ev.Organizer.UserID == id.UserID
}

// CanView reports whether the caller may read the event. Published
// public events are visible to everyone, anonymous callers included.
// Everything else (drafts, cancelled, private, invite-only) is visible
// only to its organizer.
func CanView(id auth.Identity, authenticated bool, ev *models.Event) bool {
	if ev.Status == models.EventPublished && ev.Visibility == models.VisibilityPublic {
		return true
	}
	if ev.Status == models.EventOngoing && ev.Visibility == models.VisibilityPublic {
		return true
	}
	if ev.Status == models.EventCompleted && ev.Visibility == models.VisibilityPublic {
		return true
	}
	return authenticated && IsOrganizer(id, ev)
}

// CanRegister reports whether the event is in a state that accepts new
// registrations at all. Capacity and per-type gates are enforced
// atomically in the store; this is the cheap pre-check.
func CanRegister(ev *models.Event) bool {
	switch ev.Status {
	case models.EventPublished, models.EventOngoing:
		return true
	}
	return false
}
