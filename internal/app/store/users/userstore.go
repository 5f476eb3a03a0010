// internal/app/store/users/userstore.go
package userstore

import (
	"context"
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
	"github.com/commonweal/volunteerhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, apperr.New(apperr.NotFound, "user not found")
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetBySubjectID(ctx context.Context, subjectID string) (models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, apperr.New(apperr.NotFound, "user not found")
		}
		return models.User{}, err
	}
	return u, nil
}

// FindOrCreateLogin resolves an authenticated identity to a User row,
// creating it on first login, and stamps LastLoginAt either way.
func (s *Store) FindOrCreateLogin(ctx context.Context, subjectID, email, name string) (models.User, error) {
	now := time.Now().UTC()
	email = normalize.Email(email)
	name = normalize.Name(name)

	filter := bson.M{"subject_id": subjectID}
	update := bson.M{
		"$set": bson.M{
			"last_login_at": now,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"subject_id":    subjectID,
			"email":         email,
			"name":          name,
			"name_ci":       text.Fold(name),
			"is_active":     true,
			"notifications": models.DefaultNotifications(),
			"stats":         models.UserStats{},
			"created_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&u); err != nil {
		if wafflemongo.IsDup(err) {
			// subject is new but the email already belongs to another account
			return models.User{}, apperr.New(apperr.Conflict, "email already in use")
		}
		return models.User{}, err
	}
	return u, nil
}

// ProfilePatch carries the caller-editable profile fields. Nil pointers
// mean "leave unchanged".
type ProfilePatch struct {
	Name           *string
	ProfilePicture *string
	Location       *models.UserLocation
	Interests      []string
	Skills         []string
	Bio            *string
	Notifications  *models.UserNotifications
}

func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfilePatch) (models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if p.Name != nil {
		name := normalize.Name(*p.Name)
		if name == "" {
			return models.User{}, apperr.New(apperr.Validation, "name cannot be empty")
		}
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if p.ProfilePicture != nil {
		set["profile_picture"] = *p.ProfilePicture
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}
	if p.Interests != nil {
		for _, c := range p.Interests {
			if !models.IsValidCategory(c) {
				return models.User{}, apperr.Newf(apperr.Validation, "unknown interest category %q", c)
			}
		}
		set["interests"] = p.Interests
	}
	if p.Skills != nil {
		set["skills"] = normalize.Tags(p.Skills)
	}
	if p.Bio != nil {
		set["bio"] = htmlsanitize.Text(*p.Bio)
	}
	if p.Notifications != nil {
		set["notifications"] = *p.Notifications
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.User{}, apperr.New(apperr.NotFound, "user not found")
		}
		return models.User{}, err
	}
	return u, nil
}

// Delete removes the user row. Registrations and event projections are
// cleaned up by the caller before this runs.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}

// Deactivate soft-disables an account without removing history.
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}
