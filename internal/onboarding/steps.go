// Package onboarding tracks a user's progress through the role-specific
// onboarding flow of the BenefitMetrics app.
package onboarding

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleEmployer Role = "employer"
)

// ParseRole validates a role coming from the outside world.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleEmployee, RoleEmployer:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// StepDescriptor is a registry entry. Title and Subtitle are display text only.
type StepDescriptor struct {
	ID         string `json:"id" bson:"id"`
	Title      string `json:"title" bson:"title"`
	Subtitle   string `json:"subtitle" bson:"subtitle"`
	IsRequired bool   `json:"isRequired" bson:"is_required"`
	Route      string `json:"route" bson:"route"`
}

type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusCompleted StepStatus = "completed"
	StatusSkipped   StepStatus = "skipped"
)

// Step is a registry entry annotated with its status for one user.
type Step struct {
	StepDescriptor `bson:",inline"`
	Status         StepStatus `json:"status" bson:"status"`
}

// Done reports whether the step no longer blocks the flow.
func (s Step) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusSkipped
}

func (s *Step) Complete() {
	s.Status = StatusCompleted
}

// Skip marks an optional step as skipped. Required steps have no skipped
// state and are left untouched.
func (s *Step) Skip() error {
	if s.IsRequired {
		return &InvalidSkipError{StepID: s.ID}
	}
	s.Status = StatusSkipped
	return nil
}

type stepJSON struct {
	StepDescriptor
	Status      StepStatus `json:"status,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
}

// MarshalJSON keeps the isCompleted flag the mobile app reads next to the
// richer status field.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{StepDescriptor: s.StepDescriptor, Status: s.Status, IsCompleted: s.Done()})
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.StepDescriptor = raw.StepDescriptor
	s.Status = raw.Status
	switch {
	case s.Status == "" && raw.IsCompleted:
		s.Status = StatusCompleted
	case s.Status == "":
		s.Status = StatusPending
	case s.Status == StatusSkipped && s.IsRequired:
		// snapshots written by older clients may skip required steps
		s.Status = StatusCompleted
	}
	return nil
}

var employeeSteps = []StepDescriptor{
	{ID: "profile-setup", Title: "Set up your profile", Subtitle: "Tell us a little about yourself", IsRequired: true, Route: "ProfileSetup"},
	{ID: "health-history", Title: "Health history", Subtitle: "Add conditions, medications and family members", IsRequired: true, Route: "HealthHistory"},
	{ID: "benefits-connect", Title: "Connect your benefits", Subtitle: "Link the plans your employer offers", IsRequired: true, Route: "BenefitsConnect"},
	{ID: "app-tour", Title: "Take the tour", Subtitle: "See what BenefitMetrics can do", IsRequired: false, Route: "AppTour"},
	{ID: "next-steps", Title: "Next steps", Subtitle: "Recommended actions for you", IsRequired: false, Route: "NextSteps"},
}

var employerSteps = []StepDescriptor{
	{ID: "company-profile", Title: "Company profile", Subtitle: "Name, size and locations", IsRequired: true, Route: "CompanyProfile"},
	{ID: "team-setup", Title: "Set up your team", Subtitle: "Invite HR admins and managers", IsRequired: true, Route: "TeamSetup"},
	{ID: "benefits-upload", Title: "Upload benefits", Subtitle: "Plan documents and carrier details", IsRequired: true, Route: "BenefitsUpload"},
	{ID: "dashboard-tour", Title: "Dashboard tour", Subtitle: "Compliance and engagement at a glance", IsRequired: false, Route: "DashboardTour"},
}

var placeholderSteps = []StepDescriptor{
	{ID: "welcome", Title: "Welcome", Subtitle: "Let's get you started", IsRequired: true, Route: "Welcome"},
}

// StepsForRole returns a fresh copy of the ordered step list for role.
// Unknown roles get a single placeholder step.
func StepsForRole(role Role) []StepDescriptor {
	var src []StepDescriptor
	switch role {
	case RoleEmployee:
		src = employeeSteps
	case RoleEmployer:
		src = employerSteps
	default:
		src = placeholderSteps
	}
	out := make([]StepDescriptor, len(src))
	copy(out, src)
	return out
}

// FindStep returns the index of id in steps, or -1.
func FindStep(steps []Step, id string) int {
	for i := range steps {
		if steps[i].ID == id {
			return i
		}
	}
	return -1
}
