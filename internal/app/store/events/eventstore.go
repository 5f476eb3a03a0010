// internal/app/store/events/eventstore.go
package eventstore

import (
	"context"
	"regexp"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
	"github.com/commonweal/volunteerhub/internal/app/system/htmlsanitize"
	"github.com/commonweal/volunteerhub/internal/app/system/normalize"
	"github.com/commonweal/volunteerhub/internal/app/system/paging"
	"github.com/commonweal/volunteerhub/internal/app/system/slugify"
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("events")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Event{}, apperr.New(apperr.NotFound, "event not found")
		}
		return models.Event{}, err
	}
	return ev, nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Event, error) {
	var ev models.Event
	if err := s.c.FindOne(ctx, bson.M{"seo.slug": slug}).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Event{}, apperr.New(apperr.NotFound, "event not found")
		}
		return models.Event{}, err
	}
	return ev, nil
}

// Create inserts a new event. The slug is derived here, once; it never
// changes afterwards even when the title does.
func (s *Store) Create(ctx context.Context, ev models.Event) (models.Event, error) {
	now := time.Now().UTC()
	ev.ID = primitive.NewObjectID()
	ev.Title = normalize.Name(ev.Title)
	ev.TitleCI = text.Fold(ev.Title)
	ev.Description = htmlsanitize.Sanitize(ev.Description)
	ev.ShortDescription = htmlsanitize.Text(ev.ShortDescription)
	ev.Category = normalize.Category(ev.Category)
	ev.Tags = normalize.Tags(ev.Tags)
	if ev.Status == "" {
		ev.Status = models.EventDraft
	}
	if ev.Visibility == "" {
		ev.Visibility = models.VisibilityPublic
	}
	if ev.SEO.Slug == "" {
		ev.SEO.Slug = slugify.Make(ev.Title, now)
	}
	ev.RecomputeCounters()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, ev); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Event{}, apperr.New(apperr.Conflict, "an event with this slug already exists")
		}
		return models.Event{}, err
	}
	return ev, nil
}

// Patch carries organizer-editable event fields. Nil means unchanged.
// Slug and organizer identity are deliberately absent: both are
// immutable after creation.
type Patch struct {
	Title                    *string
	Description              *string
	ShortDescription         *string
	Category                 *string
	Tags                     []string
	Location                 *models.EventLocation
	StartDate                *time.Time
	EndDate                  *time.Time
	DurationHours            *float64
	Timezone                 *string
	OrganizerContact         *models.Organizer // user_id ignored; identity is immutable
	VolunteerOpportunities   *models.VolunteerOpportunities
	PartnershipOpportunities *models.PartnershipOpportunities
	Media                    *models.EventMedia
	Resources                []models.EventResource
	Status                   *string
	Visibility               *string
	SEO                      *SEOPatch
}

// SEOPatch updates SEO metadata. The slug is excluded on purpose.
type SEOPatch struct {
	MetaTitle       string
	MetaDescription string
	Keywords        []string
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.Event, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if p.Title != nil {
		title := normalize.Name(*p.Title)
		if title == "" {
			return models.Event{}, apperr.New(apperr.Validation, "title cannot be empty")
		}
		set["title"] = title
		set["title_ci"] = text.Fold(title)
	}
	if p.Description != nil {
		set["description"] = htmlsanitize.Sanitize(*p.Description)
	}
	if p.ShortDescription != nil {
		set["short_description"] = htmlsanitize.Text(*p.ShortDescription)
	}
	if p.Category != nil {
		cat := normalize.Category(*p.Category)
		if !models.IsValidCategory(cat) {
			return models.Event{}, apperr.Newf(apperr.Validation, "unknown category %q", cat)
		}
		set["category"] = cat
	}
	if p.Tags != nil {
		set["tags"] = normalize.Tags(p.Tags)
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.StartDate != nil {
		set["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		set["end_date"] = *p.EndDate
	}
	if p.DurationHours != nil {
		set["duration_hours"] = *p.DurationHours
	}
	if p.Timezone != nil {
		set["timezone"] = *p.Timezone
	}
	if p.OrganizerContact != nil {
		// contact details only; organizer.user_id stays pinned
		set["organizer.name"] = p.OrganizerContact.Name
		set["organizer.email"] = normalize.Email(p.OrganizerContact.Email)
		set["organizer.phone"] = p.OrganizerContact.Phone
		set["organizer.organization"] = p.OrganizerContact.Organization
		set["organizer.website"] = p.OrganizerContact.Website
		set["organizer.logo"] = p.OrganizerContact.Logo
	}
	if p.VolunteerOpportunities != nil {
		vo := *p.VolunteerOpportunities
		set["volunteer_opportunities.accepting"] = vo.Accepting
		set["volunteer_opportunities.max_volunteers"] = vo.MaxVolunteers
		set["volunteer_opportunities.roles"] = vo.Roles
		set["volunteer_opportunities.requirements"] = vo.Requirements
		set["volunteer_opportunities.benefits"] = vo.Benefits
		// current_volunteers untouched: it belongs to the synchronizer
	}
	if p.PartnershipOpportunities != nil {
		po := *p.PartnershipOpportunities
		// types are replaced wholesale, but each type's current_partners
		// belongs to the synchronizer: carry the live count over by type
		// name so an opportunity edit cannot reset it and reopen the
		// capacity gate
		existing, err := s.GetByID(ctx, id)
		if err != nil {
			return models.Event{}, err
		}
		held := make(map[string]int, len(existing.PartnershipOpportunities.Types))
		for _, t := range existing.PartnershipOpportunities.Types {
			held[t.Type] = t.CurrentPartners
		}
		for i := range po.Types {
			po.Types[i].CurrentPartners = held[po.Types[i].Type]
		}
		set["partnership_opportunities.accepting"] = po.Accepting
		set["partnership_opportunities.types"] = po.Types
		set["partnership_opportunities.total_funding_goal"] = po.TotalFundingGoal
		// current_funding untouched for the same reason
	}
	if p.Media != nil {
		set["media"] = *p.Media
	}
	if p.Resources != nil {
		set["resources"] = p.Resources
	}
	if p.Status != nil {
		if !models.IsValidEventStatus(*p.Status) {
			return models.Event{}, apperr.Newf(apperr.Validation, "unknown event status %q", *p.Status)
		}
		set["status"] = *p.Status
	}
	if p.Visibility != nil {
		set["visibility"] = *p.Visibility
	}
	if p.SEO != nil {
		set["seo.meta_title"] = p.SEO.MetaTitle
		set["seo.meta_description"] = p.SEO.MetaDescription
		set["seo.keywords"] = p.SEO.Keywords
		// seo.slug is never rewritten
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ev models.Event
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&ev); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Event{}, apperr.New(apperr.NotFound, "event not found")
		}
		return models.Event{}, err
	}
	return ev, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.New(apperr.NotFound, "event not found")
	}
	return nil
}

// IncrementViews bumps the view counter. Fire-and-forget semantics;
// callers ignore a miss.
func (s *Store) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"stats.views": 1}})
	return err
}

// Filters narrows the event list query.
type Filters struct {
	Category        string
	Location        string // substring across city/state/country
	Search          string // free text across title/description/tags
	OpportunityType string // volunteer | partnership | all
	Status          string
	Organizer       primitive.ObjectID
	SortField       string // start_date | created_at | title_ci
	SortAsc         bool
}

func (f Filters) query() bson.M {
	q := bson.M{}
	if f.Category != "" {
		q["category"] = normalize.Category(f.Category)
	}
	if f.Status != "" {
		q["status"] = normalize.Status(f.Status)
	}
	if !f.Organizer.IsZero() {
		q["organizer.user_id"] = f.Organizer
	}
	if f.Location != "" {
		re := primitive.Regex{Pattern: regexEscape(f.Location), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"location.address.city": re},
			bson.M{"location.address.state": re},
			bson.M{"location.address.country": re},
		}
	}
	if f.Search != "" {
		// titles match through the folded copy the index covers
		folded := primitive.Regex{Pattern: regexEscape(text.Fold(f.Search))}
		re := primitive.Regex{Pattern: regexEscape(f.Search), Options: "i"}
		q["$and"] = bson.A{bson.M{"$or": bson.A{
			bson.M{"title_ci": folded},
			bson.M{"description": re},
			bson.M{"tags": re},
		}}}
	}
	switch f.OpportunityType {
	case "volunteer":
		q["volunteer_opportunities.accepting"] = true
	case "partnership":
		q["partnership_opportunities.accepting"] = true
	}
	return q
}

func (f Filters) sort() bson.D {
	field := f.SortField
	switch field {
	case "start_date", "created_at", "title_ci":
	default:
		field = "start_date"
	}
	dir := -1
	if f.SortAsc {
		dir = 1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

// List returns a page of events matching the filters plus the total
// match count. Embedded registration summaries are projected out of
// list payloads; they are large and per-event detail fetches carry them.
func (s *Store) List(ctx context.Context, f Filters, page paging.Page) ([]models.Event, int64, error) {
	q := f.query()

	total, err := s.c.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(f.sort()).
		SetSkip(page.Skip()).
		SetLimit(page.Limit64()).
		SetProjection(bson.M{"registrations": 0})

	cur, err := s.c.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Overview is the aggregate snapshot for GET /events/stats/overview.
type Overview struct {
	TotalPublished   int64            `json:"total_published"`
	Upcoming         int64            `json:"upcoming"`
	Ongoing          int64            `json:"ongoing"`
	ActiveVolunteers int64            `json:"active_volunteers"`
	ActivePartners   int64            `json:"active_partners"`
	ByCategory       map[string]int64 `json:"by_category"`
}

func (s *Store) StatsOverview(ctx context.Context, now time.Time) (Overview, error) {
	ov := Overview{ByCategory: map[string]int64{}}

	var err error
	if ov.TotalPublished, err = s.c.CountDocuments(ctx, bson.M{"status": models.EventPublished}); err != nil {
		return ov, err
	}
	if ov.Upcoming, err = s.c.CountDocuments(ctx, bson.M{
		"status":     models.EventPublished,
		"start_date": bson.M{"$gt": now},
	}); err != nil {
		return ov, err
	}
	if ov.Ongoing, err = s.c.CountDocuments(ctx, bson.M{"status": models.EventOngoing}); err != nil {
		return ov, err
	}

	// Active participant totals come from the denormalized counters, so
	// this stays a single pipeline over events.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$in": bson.A{models.EventPublished, models.EventOngoing}}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"volunteers": bson.M{"$sum": "$volunteer_opportunities.current_volunteers"},
			"partners": bson.M{"$sum": bson.M{"$sum": bson.M{
				"$map": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$partnership_opportunities.types", bson.A{}}},
					"as":    "t",
					"in":    "$$t.current_partners",
				},
			}}},
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return ov, err
	}
	var totals []struct {
		Volunteers int64 `bson:"volunteers"`
		Partners   int64 `bson:"partners"`
	}
	if err := cur.All(ctx, &totals); err != nil {
		return ov, err
	}
	if len(totals) > 0 {
		ov.ActiveVolunteers = totals[0].Volunteers
		ov.ActivePartners = totals[0].Partners
	}

	// Category distribution over published events.
	catCur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.EventPublished}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return ov, err
	}
	var cats []struct {
		Category string `bson:"_id"`
		N        int64  `bson:"n"`
	}
	if err := catCur.All(ctx, &cats); err != nil {
		return ov, err
	}
	for _, c := range cats {
		ov.ByCategory[c.Category] = c.N
	}
	return ov, nil
}

// regexEscape quotes regex metacharacters in user-supplied search text.
func regexEscape(s string) string {
	return regexp.QuoteMeta(s)
}
