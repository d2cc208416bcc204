package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a BenefitMetrics account. OnboardingCompleted only ever moves to
// true through the app; resetting a flow does not clear it.
type User struct {
	ID                  bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email               string        `bson:"email" json:"email"`
	OnboardingCompleted bool          `bson:"onboarding_completed" json:"onboarding_completed"`
	OnboardingUpdatedAt *time.Time    `bson:"onboarding_updated_at,omitempty" json:"onboarding_updated_at,omitempty"`
	CreatedAt           time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at" json:"updated_at"`
}
