// internal/app/policy/registrationpolicy/registrationpolicy.go
package registrationpolicy

import (
	"time"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

// IsOwner reports whether the registration belongs to the caller.
func IsOwner(id auth.Identity, reg *models.Registration) bool {
	return !id.UserID.IsZero() && reg.UserID == id.UserID
}

// CanView: the participant and the event organizer may read a
// registration; nobody else.
func CanView(id auth.Identity, reg *models.Registration, ev *models.Event) bool {
	return IsOwner(id, reg) || (!id.UserID.IsZero() && ev.Organizer.UserID == id.UserID)
}

// CanModify: only the owner edits details/notes/consent, and only while
// the registration is still live.
func CanModify(id auth.Identity, reg *models.Registration) error {
	if !IsOwner(id, reg) {
		return apperr.New(apperr.Forbidden, "not your registration")
	}
	if models.IsTerminalStatus(reg.Status) {
		return apperr.Newf(apperr.InvalidState, "registration is %s and can no longer be edited", reg.Status)
	}
	return nil
}

// CanCancel: owner-only, and the state machine must allow the move.
func CanCancel(id auth.Identity, reg *models.Registration) error {
	if !IsOwner(id, reg) {
		return apperr.New(apperr.Forbidden, "not your registration")
	}
	if !models.CanTransition(reg.Status, models.StatusCancelled) {
		return apperr.Newf(apperr.InvalidState, "cannot cancel a %s registration", reg.Status)
	}
	return nil
}

// CanDecide: approve/reject is the organizer's call.
func CanDecide(id auth.Identity, ev *models.Event) error {
	if id.UserID.IsZero() || ev.Organizer.UserID != id.UserID {
		return apperr.New(apperr.Forbidden, "only the event organizer can decide registrations")
	}
	return nil
}

// CanCheckIn: organizer-only; cancelled and rejected registrations
// cannot be checked in.
func CanCheckIn(id auth.Identity, reg *models.Registration, ev *models.Event) error {
	if err := CanDecide(id, ev); err != nil {
		return err
	}
	switch reg.Status {
	case models.StatusCancelled, models.StatusRejected:
		return apperr.Newf(apperr.InvalidState, "cannot check in a %s registration", reg.Status)
	}
	if reg.CheckIn.CheckedIn {
		return apperr.New(apperr.Conflict, "already checked in")
	}
	return nil
}

// CanSubmitFeedback: owner-only, only once the event has ended, and
// only once per registration.
func CanSubmitFeedback(id auth.Identity, reg *models.Registration, ev *models.Event, now time.Time) error {
	if !IsOwner(id, reg) {
		return apperr.New(apperr.Forbidden, "not your registration")
	}
	if now.Before(ev.EndDate) {
		return apperr.New(apperr.InvalidState, "feedback opens when the event ends")
	}
	if reg.Feedback != nil {
		return apperr.New(apperr.Conflict, "feedback already submitted")
	}
	switch reg.Status {
	case models.StatusCancelled, models.StatusRejected:
		return apperr.Newf(apperr.InvalidState, "cannot leave feedback on a %s registration", reg.Status)
	}
	return nil
}
