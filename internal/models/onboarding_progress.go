package models

import (
	"time"

	"benefitmetrics-backend/internal/onboarding"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OnboardingProgress is the server copy of one role's progress for a user.
type OnboardingProgress struct {
	ID            bson.ObjectID             `bson:"_id,omitempty" json:"id"`
	UserID        string                    `bson:"user_id" json:"user_id"`
	Role          onboarding.Role           `bson:"role" json:"role"`
	Steps         []onboarding.Step         `bson:"steps" json:"steps"`
	CurrentStepID string                    `bson:"current_step_id" json:"current_step_id"`
	Progress      float64                   `bson:"progress" json:"progress"`
	IsComplete    bool                      `bson:"is_complete" json:"is_complete"`
	StepData      map[string]map[string]any `bson:"step_data,omitempty" json:"step_data,omitempty"`
	CompletedAt   *time.Time                `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt     time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time                 `bson:"updated_at" json:"updated_at"`
}

// State returns the progress as a domain state.
func (p *OnboardingProgress) State() *onboarding.ProgressState {
	return &onboarding.ProgressState{
		Role:          p.Role,
		Steps:         p.Steps,
		CurrentStepID: p.CurrentStepID,
		Progress:      p.Progress,
		IsComplete:    p.IsComplete,
	}
}

// SetState copies st into the document.
func (p *OnboardingProgress) SetState(st *onboarding.ProgressState) {
	p.Role = st.Role
	p.Steps = st.Steps
	p.CurrentStepID = st.CurrentStepID
	p.Progress = st.Progress
	p.IsComplete = st.IsComplete
}
