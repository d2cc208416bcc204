package onboarding

import "time"

// ProgressEnvelope is the body of GET /onboarding/progress/{userId}. Each
// role's fields are present only when the user has a record for that role.
type ProgressEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	EmployeeSteps         []Step   `json:"employeeSteps,omitempty"`
	CurrentEmployeeStepID string   `json:"currentEmployeeStepId,omitempty"`
	EmployeeProgress      *float64 `json:"employeeProgress,omitempty"`
	IsEmployeeComplete    *bool    `json:"isEmployeeComplete,omitempty"`

	EmployerSteps         []Step   `json:"employerSteps,omitempty"`
	CurrentEmployerStepID string   `json:"currentEmployerStepId,omitempty"`
	EmployerProgress      *float64 `json:"employerProgress,omitempty"`
	IsEmployerComplete    *bool    `json:"isEmployerComplete,omitempty"`
}

// Put stores st under its role's fields.
func (e *ProgressEnvelope) Put(st *ProgressState) {
	progress, complete := st.Progress, st.IsComplete
	switch st.Role {
	case RoleEmployee:
		e.EmployeeSteps = st.Steps
		e.CurrentEmployeeStepID = st.CurrentStepID
		e.EmployeeProgress = &progress
		e.IsEmployeeComplete = &complete
	case RoleEmployer:
		e.EmployerSteps = st.Steps
		e.CurrentEmployerStepID = st.CurrentStepID
		e.EmployerProgress = &progress
		e.IsEmployerComplete = &complete
	}
}

// Get extracts the state for role. ok is false when the envelope carries
// no steps for that role.
func (e ProgressEnvelope) Get(role Role) (*ProgressState, bool) {
	st := &ProgressState{Role: role}
	switch role {
	case RoleEmployee:
		if len(e.EmployeeSteps) == 0 {
			return nil, false
		}
		st.Steps = e.EmployeeSteps
		st.CurrentStepID = e.CurrentEmployeeStepID
		st.IsComplete = e.IsEmployeeComplete != nil && *e.IsEmployeeComplete
		if e.EmployeeProgress != nil {
			st.Progress = *e.EmployeeProgress
		}
	case RoleEmployer:
		if len(e.EmployerSteps) == 0 {
			return nil, false
		}
		st.Steps = e.EmployerSteps
		st.CurrentStepID = e.CurrentEmployerStepID
		st.IsComplete = e.IsEmployerComplete != nil && *e.IsEmployerComplete
		if e.EmployerProgress != nil {
			st.Progress = *e.EmployerProgress
		}
	default:
		return nil, false
	}
	return st, true
}

// SaveProgressRequest is the body of PUT /onboarding/progress/{userId}.
type SaveProgressRequest struct {
	Role          Role    `json:"role"`
	Steps         []Step  `json:"steps"`
	CurrentStepID string  `json:"currentStepId"`
	Progress      float64 `json:"progress"`
	IsComplete    bool    `json:"isComplete"`
}

// StepRequest is the body of POST /onboarding/progress/{userId}/step.
type StepRequest struct {
	Role        Role           `json:"role,omitempty"`
	StepID      string         `json:"stepId"`
	StepData    map[string]any `json:"stepData,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
	CompletedAt time.Time      `json:"completedAt"`
}

// CompleteRequest is the body of POST /onboarding/progress/{userId}/complete.
type CompleteRequest struct {
	Role        Role      `json:"role,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}
