package onboarding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressState(t *testing.T) {
	st := NewProgressState(RoleEmployer)

	require.Len(t, st.Steps, 4)
	for _, s := range st.Steps {
		assert.Equal(t, StatusPending, s.Status)
	}
	assert.Equal(t, "company-profile", st.CurrentStepID)
	assert.Equal(t, 0.0, st.Progress)
	assert.False(t, st.IsComplete)
	assert.Equal(t, PhaseNotStarted, st.Phase())
}

func TestCloneIsDeep(t *testing.T) {
	st := NewProgressState(RoleEmployee)
	cp := st.Clone()
	cp.Steps[0].Complete()

	assert.Equal(t, StatusPending, st.Steps[0].Status)
	assert.Nil(t, (*ProgressState)(nil).Clone())
}

func TestNormalize(t *testing.T) {
	snapshot := &ProgressState{
		Role: RoleEmployee,
		Steps: []Step{
			{StepDescriptor: StepDescriptor{ID: "health-history", Title: "old title", IsRequired: true}, Status: StatusCompleted},
			{StepDescriptor: StepDescriptor{ID: "retired-step"}, Status: StatusCompleted},
			{StepDescriptor: StepDescriptor{ID: "app-tour"}, Status: StatusSkipped},
		},
		CurrentStepID: "retired-step",
		Progress:      0.9,
		IsComplete:    true,
	}

	st := Normalize(snapshot, RoleEmployee)

	require.Len(t, st.Steps, 5)
	assert.Equal(t, "profile-setup", st.Steps[0].ID)
	assert.Equal(t, "Health history", st.Steps[1].Title)
	assert.Equal(t, StatusCompleted, st.Steps[1].Status)
	assert.Equal(t, StatusSkipped, st.Steps[3].Status)
	assert.InDelta(t, 1.0/3.0, st.Progress, 1e-9)
	assert.False(t, st.IsComplete)
	assert.Equal(t, "profile-setup", st.CurrentStepID)
}

func TestNormalizeKeepsCompletedPointer(t *testing.T) {
	st := NewProgressState(RoleEmployer)
	for i := range st.Steps {
		st.Steps[i].Complete()
	}
	st.CurrentStepID = "team-setup"
	st.IsComplete = true

	out := Normalize(st, RoleEmployer)
	assert.True(t, out.IsComplete)
	assert.Equal(t, "team-setup", out.CurrentStepID)
}

func TestNormalizeNil(t *testing.T) {
	assert.Equal(t, NewProgressState(RoleEmployee), Normalize(nil, RoleEmployee))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	employee := NewProgressState(RoleEmployee)
	employee.Steps[0].Complete()
	Recompute(employee, false)

	var env ProgressEnvelope
	env.Put(employee)

	got, ok := env.Get(RoleEmployee)
	require.True(t, ok)
	assert.Equal(t, employee, got)

	_, ok = env.Get(RoleEmployer)
	assert.False(t, ok)
}

func decodedEnvelope(t *testing.T, raw string) ProgressEnvelope {
	t.Helper()
	var env ProgressEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return env
}

func TestEnvelopeGetOnReturnedValue(t *testing.T) {
	raw := `{"success":true,"employerSteps":[{"id":"company-profile","isRequired":true,"status":"completed"}],` +
		`"currentEmployerStepId":"team-setup","employerProgress":0.5,"isEmployerComplete":false}`

	st, ok := decodedEnvelope(t, raw).Get(RoleEmployer)
	require.True(t, ok)
	assert.Equal(t, "team-setup", st.CurrentStepID)
	assert.Equal(t, 0.5, st.Progress)
	assert.Equal(t, StatusCompleted, st.Steps[0].Status)

	_, ok = decodedEnvelope(t, raw).Get(RoleEmployee)
	assert.False(t, ok)
}
