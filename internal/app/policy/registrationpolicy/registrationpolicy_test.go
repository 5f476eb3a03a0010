package registrationpolicy

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

func fixtures() (owner, organizer, stranger auth.Identity, reg *models.Registration, ev *models.Event) {
	owner = auth.Identity{UserID: primitive.NewObjectID()}
	organizer = auth.Identity{UserID: primitive.NewObjectID()}
	stranger = auth.Identity{UserID: primitive.NewObjectID()}
	reg = &models.Registration{
		UserID: owner.UserID,
		Status: models.StatusApproved,
		Type:   models.TypeVolunteer,
	}
	ev = &models.Event{
		Organizer: models.Organizer{UserID: organizer.UserID},
		EndDate:   time.Now().Add(-time.Hour),
	}
	return
}

func TestCanView(t *testing.T) {
	owner, organizer, stranger, reg, ev := fixtures()
	if !CanView(owner, reg, ev) {
		t.Error("owner cannot view")
	}
	if !CanView(organizer, reg, ev) {
		t.Error("organizer cannot view")
	}
	if CanView(stranger, reg, ev) {
		t.Error("stranger can view")
	}
	if CanView(auth.Identity{}, reg, ev) {
		t.Error("anonymous can view")
	}
}

func TestCanCancel(t *testing.T) {
	owner, _, stranger, reg, _ := fixtures()

	if err := CanCancel(owner, reg); err != nil {
		t.Errorf("owner cancel: %v", err)
	}
	if err := CanCancel(stranger, reg); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("stranger cancel error = %v, want Forbidden", err)
	}

	reg.Status = models.StatusAttended
	if err := CanCancel(owner, reg); !apperr.Is(err, apperr.InvalidState) {
		t.Errorf("terminal cancel error = %v, want InvalidState", err)
	}
}

func TestCanModifyTerminal(t *testing.T) {
	owner, _, _, reg, _ := fixtures()
	if err := CanModify(owner, reg); err != nil {
		t.Errorf("live modify: %v", err)
	}
	reg.Status = models.StatusCancelled
	if err := CanModify(owner, reg); !apperr.Is(err, apperr.InvalidState) {
		t.Errorf("terminal modify error = %v, want InvalidState", err)
	}
}

func TestCanCheckIn(t *testing.T) {
	owner, organizer, _, reg, ev := fixtures()

	if err := CanCheckIn(organizer, reg, ev); err != nil {
		t.Errorf("organizer checkin: %v", err)
	}
	if err := CanCheckIn(owner, reg, ev); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("participant checkin error = %v, want Forbidden", err)
	}

	reg.Status = models.StatusCancelled
	if err := CanCheckIn(organizer, reg, ev); !apperr.Is(err, apperr.InvalidState) {
		t.Errorf("cancelled checkin error = %v, want InvalidState", err)
	}

	reg.Status = models.StatusConfirmed
	reg.CheckIn.CheckedIn = true
	if err := CanCheckIn(organizer, reg, ev); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("double checkin error = %v, want Conflict", err)
	}
}

func TestCanSubmitFeedback(t *testing.T) {
	owner, _, stranger, reg, ev := fixtures()
	now := time.Now()

	if err := CanSubmitFeedback(owner, reg, ev, now); err != nil {
		t.Errorf("feedback after end: %v", err)
	}
	if err := CanSubmitFeedback(stranger, reg, ev, now); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("stranger feedback error = %v, want Forbidden", err)
	}

	// before the event ends
	ev.EndDate = now.Add(time.Hour)
	if err := CanSubmitFeedback(owner, reg, ev, now); !apperr.Is(err, apperr.InvalidState) {
		t.Errorf("early feedback error = %v, want InvalidState", err)
	}
	ev.EndDate = now.Add(-time.Hour)

	// write-once
	reg.Feedback = &models.Feedback{Rating: 5, SubmittedAt: now}
	if err := CanSubmitFeedback(owner, reg, ev, now); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("second feedback error = %v, want Conflict", err)
	}
	reg.Feedback = nil

	reg.Status = models.StatusRejected
	if err := CanSubmitFeedback(owner, reg, ev, now); !apperr.Is(err, apperr.InvalidState) {
		t.Errorf("rejected feedback error = %v, want InvalidState", err)
	}
}
