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

type AuthTokenRepo struct {
	collection *mongo.Collection
}

func NewAuthTokenRepo(db *mongo.Database) *AuthTokenRepo {
	return &AuthTokenRepo{
		collection: db.Collection("auth_tokens"),
	}
}

func (r *AuthTokenRepo) Create(ctx context.Context, token *models.AuthToken) error {
	token.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		return err
	}
	token.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *AuthTokenRepo) FindByToken(ctx context.Context, token string) (*models.AuthToken, error) {
	var authToken models.AuthToken
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&authToken)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &authToken, nil
}

// MarkUsed flips is_used for an unused token. It reports false when the
// token was already used, so two concurrent verifications cannot both win.
func (r *AuthTokenRepo) MarkUsed(ctx context.Context, token string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"token": token, "is_used": false},
		bson.M{"$set": bson.M{"is_used": true, "used_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// CountRecentByEmail counts how many tokens were created for an email in the given duration.
// Used for rate limiting.
func (r *AuthTokenRepo) CountRecentByEmail(ctx context.Context, email string, duration time.Duration) (int64, error) {
	since := time.Now().Add(-duration)
	return r.collection.CountDocuments(ctx, bson.M{
		"email":      email,
		"created_at": bson.M{"$gte": since},
	})
}

// EnsureIndexes creates necessary indexes for the auth_tokens collection
func (r *AuthTokenRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index, expired tokens are removed by MongoDB
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
