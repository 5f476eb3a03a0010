// internal/app/features/users/handler_test.go
package users

import (
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/domain/models"
	"github.com/commonweal/volunteerhub/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewHandler(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestServeProfile(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/profile", testutil.IdentityFor(u)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		User models.User `json:"user"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.User.ID != u.ID {
		t.Errorf("wrong user: %s", resp.User.ID.Hex())
	}
}

func TestServeProfile_RequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/profile"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestHandleUpdateProfile(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	body := map[string]any{
		"name":      "Vera V.",
		"bio":       "I plant trees.",
		"interests": []string{"Environment", "Education"},
		"skills":    []string{"First Aid", "first aid", "Logistics"},
	}

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPut, "/profile", body),
		testutil.IdentityFor(u))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		User models.User `json:"user"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.User.Name != "Vera V." {
		t.Errorf("name: got %q", resp.User.Name)
	}
	if len(resp.User.Skills) != 2 {
		t.Errorf("skills not deduplicated: %v", resp.User.Skills)
	}
	if resp.User.Email != "vera@example.com" {
		t.Errorf("email must be immutable, got %q", resp.User.Email)
	}
}

func TestHandleUpdateProfile_UnknownInterest(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPut, "/profile",
			map[string]any{"interests": []string{"Cryptozoology"}}),
		testutil.IdentityFor(u))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeDashboard(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	future := fx.CreateEvent(ctx, "Upcoming Cleanup", organizer, 10)
	past := fx.CreateEvent(ctx, "Past Festival", organizer, 10)
	if _, err := fx.DB().Collection("events").UpdateByID(ctx, past.ID, bson.M{"$set": bson.M{
		"start_date": time.Now().UTC().Add(-48 * time.Hour),
		"end_date":   time.Now().UTC().Add(-40 * time.Hour),
	}}); err != nil {
		t.Fatalf("failed to backdate event: %v", err)
	}

	fx.CreateVolunteerRegistration(ctx, u, future, models.StatusApproved)
	fx.CreateVolunteerRegistration(ctx, u, past, models.StatusAttended)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/dashboard", testutil.IdentityFor(u)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Upcoming []struct {
			Event models.Event `json:"event"`
		} `json:"upcoming"`
		Recent []struct {
			Event models.Event `json:"event"`
		} `json:"recent"`
		Totals struct {
			Registrations int `json:"registrations"`
		} `json:"totals"`
	}
	rec.DecodeJSON(t, &resp)

	if len(resp.Upcoming) != 1 || resp.Upcoming[0].Event.ID != future.ID {
		t.Errorf("upcoming: %+v", resp.Upcoming)
	}
	if len(resp.Recent) != 1 || resp.Recent[0].Event.ID != past.ID {
		t.Errorf("recent: %+v", resp.Recent)
	}
	if resp.Totals.Registrations != 2 {
		t.Errorf("registrations total: got %d, want 2", resp.Totals.Registrations)
	}
}

func TestServeEvents_TimeframeFilter(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	future := fx.CreateEvent(ctx, "Upcoming Cleanup", organizer, 10)
	past := fx.CreateEvent(ctx, "Past Festival", organizer, 10)
	if _, err := fx.DB().Collection("events").UpdateByID(ctx, past.ID, bson.M{"$set": bson.M{
		"start_date": time.Now().UTC().Add(-48 * time.Hour),
		"end_date":   time.Now().UTC().Add(-40 * time.Hour),
	}}); err != nil {
		t.Fatalf("failed to backdate event: %v", err)
	}

	fx.CreateVolunteerRegistration(ctx, u, future, models.StatusApproved)
	fx.CreateVolunteerRegistration(ctx, u, past, models.StatusAttended)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/events?timeframe=upcoming", testutil.IdentityFor(u)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Events []struct {
			Event models.Event `json:"event"`
		} `json:"events"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Events) != 1 || resp.Events[0].Event.ID != future.ID {
		t.Errorf("timeframe filter: %+v", resp.Events)
	}
}

func TestServeStats(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	fx.CreateVolunteerRegistration(ctx, u, ev, models.StatusAttended)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/stats", testutil.IdentityFor(u)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		ByStatus map[string]map[string]int64 `json:"by_status"`
		ByCategory map[string]int64 `json:"by_category"`
		Monthly []struct {
			Count int64 `json:"count"`
		} `json:"monthly_activity"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.ByStatus["volunteer"]["attended"] != 1 {
		t.Errorf("by_status: %+v", resp.ByStatus)
	}
	if resp.ByCategory["Community Development"] != 1 {
		t.Errorf("by_category: %+v", resp.ByCategory)
	}
	if len(resp.Monthly) != 1 || resp.Monthly[0].Count != 1 {
		t.Errorf("monthly_activity: %+v", resp.Monthly)
	}
}

func TestHandleDeleteAccount_Cascades(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	reg := fx.CreateVolunteerRegistration(ctx, u, ev, models.StatusApproved)
	if err := h.Sync.ApplyCreate(ctx, reg); err != nil {
		t.Fatalf("failed to project registration: %v", err)
	}

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodDelete, "/account", testutil.IdentityFor(u)))
	rec.AssertStatus(t, http.StatusOK)

	if _, err := h.Users.GetByID(ctx, u.ID); err == nil {
		t.Error("user should be gone")
	}
	n, err := fx.DB().Collection("registrations").CountDocuments(ctx, bson.M{"user_id": u.ID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("registrations not removed: %d remain", n)
	}

	// The event's projection no longer counts the deleted user.
	got, err := h.Events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if got.VolunteerOpportunities.CurrentVolunteers != 0 {
		t.Errorf("event slot not released: %d", got.VolunteerOpportunities.CurrentVolunteers)
	}
	if len(got.Registrations.Volunteers) != 0 {
		t.Errorf("summary not removed: %d remain", len(got.Registrations.Volunteers))
	}
}

func TestServePublicProfile(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+u.ID.Hex()+"/public"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		User struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.User.Name != "Vera Volunteer" {
		t.Errorf("name: got %q", resp.User.Name)
	}
	if resp.User.Email != "" {
		t.Error("public profile must not expose the email")
	}
}

func TestServePublicProfile_DeactivatedHidden(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")
	if err := h.Users.Deactivate(ctx, u.ID); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+u.ID.Hex()+"/public"))
	rec.AssertStatus(t, http.StatusNotFound)
}
