package repository

import (
	"context"
	"errors"
	"time"

	"benefitmetrics-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepo stores BenefitMetrics accounts. Users are created on first
// login and only their onboarding flag changes afterwards.
type UserRepo struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{
		collection: db.Collection("users"),
		now:        time.Now,
	}
}

func (r *UserRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindOrCreate returns the account for email, inserting it in the same
// round trip when it does not exist yet.
func (r *UserRepo) FindOrCreate(ctx context.Context, email string) (*models.User, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, newUserUpdate(email, r.now()), opts).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// lost an insert race on the unique email index; the winner's
		// document is there now
		err = r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateOnboarding sets the user-level onboarding flag. It reports false
// when no user matched id.
func (r *UserRepo) UpdateOnboarding(ctx context.Context, id bson.ObjectID, completed bool) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, onboardingUpdate(completed, r.now()))
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// newUserUpdate only writes on insert, so an existing account is returned
// untouched.
func newUserUpdate(email string, now time.Time) bson.M {
	return bson.M{
		"$setOnInsert": bson.M{
			"email":                email,
			"onboarding_completed": false,
			"created_at":           now,
			"updated_at":           now,
		},
	}
}

func onboardingUpdate(completed bool, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"onboarding_completed":  completed,
			"onboarding_updated_at": now,
			"updated_at":            now,
		},
	}
}

// EnsureIndexes creates necessary indexes for the users collection
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
