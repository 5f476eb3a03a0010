package models

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRecomputeCounters(t *testing.T) {
	ev := &Event{
		VolunteerOpportunities: VolunteerOpportunities{
			Accepting:     true,
			MaxVolunteers: 10,
		},
		PartnershipOpportunities: PartnershipOpportunities{
			Accepting: true,
			Types: []PartnershipType{
				{Type: PartnershipSponsor, MaxPartners: 3},
				{Type: PartnershipVenue, MaxPartners: 1},
			},
			TotalFundingGoal: 10000,
		},
		Registrations: EventRegistrations{
			Volunteers: []VolunteerSummary{
				{UserID: primitive.NewObjectID(), Status: "registered"},
				{UserID: primitive.NewObjectID(), Status: "confirmed"},
				{UserID: primitive.NewObjectID(), Status: "attended"},
				{UserID: primitive.NewObjectID(), Status: "cancelled"},
				{UserID: primitive.NewObjectID(), Status: "no-show"},
			},
			Partners: []PartnerSummary{
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipSponsor, Status: "approved", FundingAmount: 1000},
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipSponsor, Status: "active", FundingAmount: 2500},
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipSponsor, Status: "rejected", FundingAmount: 9999},
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipVenue, Status: "completed", FundingAmount: 0},
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipVenue, Status: "pending", FundingAmount: 500},
			},
		},
	}

	ev.RecomputeCounters()

	if got := ev.VolunteerOpportunities.CurrentVolunteers; got != 3 {
		t.Errorf("current volunteers = %d, want 3 (registered, confirmed, attended)", got)
	}
	if got := ev.PartnershipOpportunities.CurrentFunding; got != 3500 {
		t.Errorf("current funding = %v, want 3500 (active partners only)", got)
	}
	if got := ev.Stats.TotalRegistrations; got != 10 {
		t.Errorf("total registrations = %d, want 10 (all rows, any status)", got)
	}

	byType := map[string]int{}
	for _, pt := range ev.PartnershipOpportunities.Types {
		byType[pt.Type] = pt.CurrentPartners
	}
	if byType[PartnershipSponsor] != 2 {
		t.Errorf("sponsor current partners = %d, want 2", byType[PartnershipSponsor])
	}
	if byType[PartnershipVenue] != 1 {
		t.Errorf("venue current partners = %d, want 1", byType[PartnershipVenue])
	}
}

func TestRecomputeCountersIdempotent(t *testing.T) {
	ev := &Event{
		Registrations: EventRegistrations{
			Volunteers: []VolunteerSummary{
				{UserID: primitive.NewObjectID(), Status: "registered"},
			},
			Partners: []PartnerSummary{
				{UserID: primitive.NewObjectID(), PartnershipType: PartnershipSponsor, Status: "approved", FundingAmount: 100},
			},
		},
		PartnershipOpportunities: PartnershipOpportunities{
			Types: []PartnershipType{{Type: PartnershipSponsor}},
		},
	}
	ev.RecomputeCounters()
	first := ev.VolunteerOpportunities.CurrentVolunteers
	firstFunding := ev.PartnershipOpportunities.CurrentFunding
	ev.RecomputeCounters()
	if ev.VolunteerOpportunities.CurrentVolunteers != first {
		t.Errorf("volunteer counter changed on second recompute")
	}
	if ev.PartnershipOpportunities.CurrentFunding != firstFunding {
		t.Errorf("funding changed on second recompute")
	}
}

func TestVolunteersNeeded(t *testing.T) {
	ev := &Event{VolunteerOpportunities: VolunteerOpportunities{MaxVolunteers: 5, CurrentVolunteers: 3}}
	if got := ev.VolunteersNeeded(); got != 2 {
		t.Errorf("needed = %d, want 2", got)
	}
	ev.VolunteerOpportunities.CurrentVolunteers = 7
	if got := ev.VolunteersNeeded(); got != 0 {
		t.Errorf("needed = %d, want 0 when over capacity", got)
	}
}

func TestFundingProgress(t *testing.T) {
	ev := &Event{PartnershipOpportunities: PartnershipOpportunities{TotalFundingGoal: 1000, CurrentFunding: 250}}
	if got := ev.FundingProgress(); got != 25 {
		t.Errorf("progress = %v, want 25", got)
	}
	ev.PartnershipOpportunities.TotalFundingGoal = 0
	if got := ev.FundingProgress(); got != 0 {
		t.Errorf("progress = %v, want 0 with no goal", got)
	}
}

func TestIsUpcomingIsPast(t *testing.T) {
	now := time.Now()
	future := &Event{StartDate: now.Add(48 * time.Hour), EndDate: now.Add(72 * time.Hour)}
	if !future.IsUpcoming(now) || future.IsPast(now) {
		t.Errorf("future event misclassified")
	}
	past := &Event{StartDate: now.Add(-72 * time.Hour), EndDate: now.Add(-48 * time.Hour)}
	if past.IsUpcoming(now) || !past.IsPast(now) {
		t.Errorf("past event misclassified")
	}
}
