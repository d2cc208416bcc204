package repository

import (
	"context"
	"errors"
	"time"

	"benefitmetrics-backend/internal/models"
	"benefitmetrics-backend/internal/onboarding"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProgressRepo stores one onboarding_progress document per user and role.
type ProgressRepo struct {
	collection *mongo.Collection
}

func NewProgressRepo(db *mongo.Database) *ProgressRepo {
	return &ProgressRepo{
		collection: db.Collection("onboarding_progress"),
	}
}

func (r *ProgressRepo) FindByUser(ctx context.Context, userID string) ([]models.OnboardingProgress, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var out []models.OnboardingProgress
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProgressRepo) Find(ctx context.Context, userID string, role onboarding.Role) (*models.OnboardingProgress, error) {
	var p models.OnboardingProgress
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "role": role}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Upsert replaces the mutable fields of the (user, role) document,
// creating it when missing.
func (r *ProgressRepo) Upsert(ctx context.Context, p *models.OnboardingProgress) error {
	now := time.Now()
	p.UpdatedAt = now
	set := bson.M{
		"steps":           p.Steps,
		"current_step_id": p.CurrentStepID,
		"progress":        p.Progress,
		"is_complete":     p.IsComplete,
		"updated_at":      now,
	}
	if len(p.StepData) > 0 {
		set["step_data"] = p.StepData
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": p.UserID, "role": p.Role},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

// MarkCompleted stamps completed_at on an existing document. It reports
// false when there is nothing to stamp.
func (r *ProgressRepo) MarkCompleted(ctx context.Context, userID string, role onboarding.Role, at time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "role": role},
		bson.M{"$set": bson.M{"completed_at": at, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// Delete removes the user's progress for role, or for every role when role
// is empty.
func (r *ProgressRepo) Delete(ctx context.Context, userID string, role onboarding.Role) (int64, error) {
	filter := bson.M{"user_id": userID}
	if role != "" {
		filter["role"] = role
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// EnsureIndexes creates necessary indexes for the onboarding_progress collection
func (r *ProgressRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "role", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
