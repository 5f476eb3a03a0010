// internal/app/features/events/handler_test.go
package events

import (
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/system/timeouts"
	"github.com/commonweal/volunteerhub/internal/domain/models"
	"github.com/commonweal/volunteerhub/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewHandler(db, zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestServeList_DefaultsToPublished(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	draft := fx.CreateEvent(ctx, "Secret Gala", organizer, 10)
	if _, err := fx.DB().Collection("events").UpdateByID(ctx, draft.ID,
		bson.M{"$set": bson.M{"status": models.EventDraft}}); err != nil {
		t.Fatalf("failed to demote event to draft: %v", err)
	}

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Events []models.Event `json:"events"`
		Meta   struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(resp.Events))
	}
	if resp.Events[0].Title != "Park Cleanup" {
		t.Errorf("unexpected event in list: %q", resp.Events[0].Title)
	}
	if resp.Meta.Total != 1 {
		t.Errorf("meta total: got %d, want 1", resp.Meta.Total)
	}
}

func TestServeEvent_DraftHiddenFromStrangers(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	stranger := fx.CreateUser(ctx, "Sam Stranger", "sam@example.com")
	draft := fx.CreateEvent(ctx, "Secret Gala", organizer, 10)
	if _, err := fx.DB().Collection("events").UpdateByID(ctx, draft.ID,
		bson.M{"$set": bson.M{"status": models.EventDraft}}); err != nil {
		t.Fatalf("failed to demote event to draft: %v", err)
	}

	// Anonymous caller sees a 404, not a 403: drafts do not leak.
	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+draft.ID.Hex()))
	rec.AssertStatus(t, http.StatusNotFound)

	// Another user fares no better.
	rec = testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/"+draft.ID.Hex(), testutil.IdentityFor(stranger)))
	rec.AssertStatus(t, http.StatusNotFound)

	// The organizer sees their own draft.
	rec = testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/"+draft.ID.Hex(), testutil.IdentityFor(organizer)))
	rec.AssertStatus(t, http.StatusOK)
}

func TestServeEvent_BumpsViews(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	for i := 0; i < 2; i++ {
		rec := testutil.NewRecorder()
		Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+ev.ID.Hex()))
		rec.AssertStatus(t, http.StatusOK)
	}

	got, err := h.Events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if got.Stats.Views != 2 {
		t.Errorf("views: got %d, want 2", got.Stats.Views)
	}
}

func TestServeEventBySlug(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/slug/"+ev.SEO.Slug))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Event models.Event `json:"event"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.Event.ID != ev.ID {
		t.Errorf("slug lookup returned wrong event: %s", resp.Event.ID.Hex())
	}
}

func TestHandleCreate(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")

	start := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Second)
	body := map[string]any{
		"title":       "River Restoration Day",
		"description": "<p>Help restore the riverbank.</p>",
		"category":    "Environment",
		"start_date":  start,
		"end_date":    start.Add(6 * time.Hour),
		"volunteer_opportunities": map[string]any{
			"accepting":          true,
			"max_volunteers":     25,
			"current_volunteers": 99, // must be ignored
		},
	}

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPost, "/", body),
		testutil.IdentityFor(u))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var resp struct {
		Event models.Event `json:"event"`
	}
	rec.DecodeJSON(t, &resp)
	ev := resp.Event

	if ev.Status != models.EventDraft {
		t.Errorf("new event status: got %q, want draft", ev.Status)
	}
	if ev.Organizer.UserID != u.ID {
		t.Errorf("organizer not pinned to caller: got %s", ev.Organizer.UserID.Hex())
	}
	if ev.SEO.Slug == "" {
		t.Error("expected a derived slug")
	}
	if ev.VolunteerOpportunities.CurrentVolunteers != 0 {
		t.Errorf("counter not zeroed: got %d", ev.VolunteerOpportunities.CurrentVolunteers)
	}
}

func TestHandleCreate_RejectsBadCategory(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	start := time.Now().UTC().Add(96 * time.Hour)

	body := map[string]any{
		"title":       "River Restoration Day",
		"description": "Help restore the riverbank.",
		"category":    "underwater basket weaving",
		"start_date":  start,
		"end_date":    start.Add(6 * time.Hour),
	}

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPost, "/", body),
		testutil.IdentityFor(u))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeList_SearchMatchesFoldedTitle(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)
	fx.CreateEvent(ctx, "Food Drive", organizer, 10)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/?search=PARK"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Events []models.Event `json:"events"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Events) != 1 {
		t.Fatalf("expected 1 match, got %d", len(resp.Events))
	}
	if resp.Events[0].Title != "Park Cleanup" {
		t.Errorf("unexpected match: %q", resp.Events[0].Title)
	}
}

func TestServeList_HonorsConfiguredTimeout(t *testing.T) {
	h, _ := newTestHandler(t)

	timeouts.Configure(timeouts.Config{Medium: time.Nanosecond})
	t.Cleanup(timeouts.Reset)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"))
	rec.AssertStatus(t, http.StatusInternalServerError)
}

func TestHandleUpdate_OrganizerOnly(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	other := fx.CreateUser(ctx, "Sam Stranger", "sam@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	body := map[string]any{"title": "Park Cleanup, Rescheduled"}

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPut, "/"+ev.ID.Hex(), body),
		testutil.IdentityFor(other))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	req = testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPut, "/"+ev.ID.Hex(), body),
		testutil.IdentityFor(organizer))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Event models.Event `json:"event"`
	}
	rec.DecodeJSON(t, &resp)
	if resp.Event.Title != "Park Cleanup, Rescheduled" {
		t.Errorf("title not updated: %q", resp.Event.Title)
	}
	if resp.Event.SEO.Slug != ev.SEO.Slug {
		t.Error("slug must not change on title update")
	}
}

func TestHandleUpdate_KeepsPartnerCounters(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)

	// Two admitted sponsors; the organizer then edits the opportunity
	// text without echoing the counter back.
	if _, err := fx.DB().Collection("events").UpdateByID(ctx, ev.ID,
		bson.M{"$set": bson.M{"partnership_opportunities.types.0.current_partners": 2}}); err != nil {
		t.Fatalf("failed to seed partner count: %v", err)
	}

	body := map[string]any{
		"partnership_opportunities": map[string]any{
			"accepting": true,
			"types": []map[string]any{
				{"type": "sponsor", "description": "Headline sponsors", "funding_required": true, "max_partners": 3},
				{"type": "venue", "max_partners": 1},
			},
			"total_funding_goal": 12000,
		},
	}

	rec := testutil.NewRecorder()
	req := testutil.WithIdentity(
		testutil.NewJSONRequest(t, http.MethodPut, "/"+ev.ID.Hex(), body),
		testutil.IdentityFor(organizer))
	Routes(h).ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	got, err := h.Events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if len(got.PartnershipOpportunities.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(got.PartnershipOpportunities.Types))
	}
	if got.PartnershipOpportunities.Types[0].CurrentPartners != 2 {
		t.Errorf("sponsor counter clobbered by edit: got %d, want 2",
			got.PartnershipOpportunities.Types[0].CurrentPartners)
	}
	if got.PartnershipOpportunities.Types[0].Description != "Headline sponsors" {
		t.Errorf("description not updated: %q", got.PartnershipOpportunities.Types[0].Description)
	}
	if got.PartnershipOpportunities.TotalFundingGoal != 12000 {
		t.Errorf("funding goal not updated: %v", got.PartnershipOpportunities.TotalFundingGoal)
	}
}

func TestHandleDelete_CascadesRegistrations(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	vol := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)
	keeper := fx.CreateEvent(ctx, "Food Drive", organizer, 10)

	reg, err := h.Registrations.GetByID(ctx, fx.CreateVolunteerRegistration(ctx, vol, ev, models.StatusApproved).ID)
	if err != nil {
		t.Fatalf("failed to load registration: %v", err)
	}
	if err := h.Sync.ApplyCreate(ctx, reg); err != nil {
		t.Fatalf("failed to project registration: %v", err)
	}
	keeperReg := fx.CreateVolunteerRegistration(ctx, vol, keeper, models.StatusApproved)
	if err := h.Sync.ApplyCreate(ctx, keeperReg); err != nil {
		t.Fatalf("failed to project registration: %v", err)
	}

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodDelete, "/"+ev.ID.Hex(), testutil.IdentityFor(organizer)))
	rec.AssertStatus(t, http.StatusOK)

	if _, err := h.Events.GetByID(ctx, ev.ID); err == nil {
		t.Error("event should be gone")
	}
	n, err := fx.DB().Collection("registrations").CountDocuments(ctx, bson.M{"event_id": ev.ID})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected cascade to remove registrations, %d remain", n)
	}

	// The volunteer's mirror keeps only the surviving event.
	var u models.User
	if err := fx.DB().Collection("users").FindOne(ctx, bson.M{"_id": vol.ID}).Decode(&u); err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if len(u.VolunteerEvents) != 1 || u.VolunteerEvents[0].EventID != keeper.ID {
		t.Errorf("user mirror not rebuilt after cascade: %+v", u.VolunteerEvents)
	}
}

func TestServeRegistrations_OrganizerOnly(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	organizer := fx.CreateUser(ctx, "Olive Organizer", "olive@example.com")
	vol := fx.CreateUser(ctx, "Vera Volunteer", "vera@example.com")
	ev := fx.CreateEvent(ctx, "Park Cleanup", organizer, 10)
	fx.CreateVolunteerRegistration(ctx, vol, ev, models.StatusApproved)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/"+ev.ID.Hex()+"/registrations", testutil.IdentityFor(vol)))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewAuthenticatedRequest(
		http.MethodGet, "/"+ev.ID.Hex()+"/registrations", testutil.IdentityFor(organizer)))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Registrations []models.Registration `json:"registrations"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Registrations) != 1 {
		t.Fatalf("expected 1 registration, got %d", len(resp.Registrations))
	}
}

func TestServeCategories(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	Routes(h).ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/meta/categories"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Categories []string `json:"categories"`
	}
	rec.DecodeJSON(t, &resp)
	if len(resp.Categories) != len(models.Categories) {
		t.Errorf("categories: got %d, want %d", len(resp.Categories), len(models.Categories))
	}
}
