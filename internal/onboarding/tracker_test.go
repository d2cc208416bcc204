package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, userID string, role Role) *ProgressState {
	args := m.Called(ctx, userID, role)
	st, _ := args.Get(0).(*ProgressState)
	return st.Clone()
}

func (m *mockStore) Save(ctx context.Context, userID string, st *ProgressState) error {
	args := m.Called(ctx, userID, st)
	return args.Error(0)
}

func (m *mockStore) Reset(ctx context.Context, userID string, role Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *mockStore) RecordStep(ctx context.Context, userID string, req StepRequest) error {
	args := m.Called(ctx, userID, req)
	return args.Error(0)
}

func (m *mockStore) MarkComplete(ctx context.Context, userID string, req CompleteRequest) error {
	args := m.Called(ctx, userID, req)
	return args.Error(0)
}

type mockProfile struct {
	mock.Mock
}

func (m *mockProfile) UpdateOnboardingStatus(ctx context.Context, completed bool) error {
	args := m.Called(ctx, completed)
	return args.Error(0)
}

const testUser = "665f1c2e9b1d4a0012345678"

func newTestTracker(t *testing.T, role Role, loaded *ProgressState) (*Tracker, *mockStore, *mockProfile) {
	t.Helper()

	store := new(mockStore)
	store.On("Load", mock.Anything, testUser, role).Return(loaded)
	store.On("Save", mock.Anything, testUser, mock.AnythingOfType("*onboarding.ProgressState")).Return(nil).Maybe()
	store.On("RecordStep", mock.Anything, testUser, mock.AnythingOfType("onboarding.StepRequest")).Return(nil).Maybe()
	store.On("MarkComplete", mock.Anything, testUser, mock.AnythingOfType("onboarding.CompleteRequest")).Return(nil).Maybe()
	store.On("Reset", mock.Anything, testUser, role).Return(nil).Maybe()

	profile := new(mockProfile)
	profile.On("UpdateOnboardingStatus", mock.Anything, true).Return(nil).Maybe()

	tr := NewTracker(store, profile, zaptest.NewLogger(t))
	require.NoError(t, tr.Init(context.Background(), role, testUser))
	t.Cleanup(tr.Teardown)
	return tr, store, profile
}

func TestTrackerEmployeeScenario(t *testing.T) {
	ctx := context.Background()
	tr, store, profile := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))

	st := tr.State()
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, "profile-setup", st.CurrentStepID)
	assert.Equal(t, PhaseNotStarted, tr.Phase())

	require.NoError(t, tr.CompleteStep(ctx, "profile-setup", map[string]any{"firstName": "Ada"}))
	st = tr.State()
	assert.InDelta(t, 1.0/3.0, st.Progress, 1e-3)
	assert.Equal(t, "health-history", st.CurrentStepID)
	assert.False(t, st.IsComplete)
	assert.Equal(t, PhaseInProgress, tr.Phase())

	require.NoError(t, tr.CompleteStep(ctx, "health-history", nil))
	require.NoError(t, tr.CompleteStep(ctx, "benefits-connect", nil))
	st = tr.State()
	assert.Equal(t, 1.0, st.Progress)
	assert.True(t, st.IsComplete)
	assert.Equal(t, PhaseComplete, tr.Phase())

	// a repeat completion changes nothing and must not signal again
	require.NoError(t, tr.CompleteStep(ctx, "benefits-connect", nil))
	assert.Equal(t, st, tr.State())

	profile.AssertNumberOfCalls(t, "UpdateOnboardingStatus", 1)
	store.AssertNumberOfCalls(t, "MarkComplete", 1)
	store.AssertNumberOfCalls(t, "Save", 3)
	store.AssertNumberOfCalls(t, "RecordStep", 3)
}

func TestTrackerRecordsStepData(t *testing.T) {
	tr, store, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))

	data := map[string]any{"plan": "PPO"}
	require.NoError(t, tr.CompleteStep(context.Background(), "profile-setup", data))

	store.AssertCalled(t, "RecordStep", mock.Anything, testUser, mock.MatchedBy(func(req StepRequest) bool {
		return req.StepID == "profile-setup" && req.Role == RoleEmployee && !req.Skipped &&
			req.StepData["plan"] == "PPO" && !req.CompletedAt.IsZero()
	}))
}

func TestTrackerCompleteStepIdempotent(t *testing.T) {
	ctx := context.Background()
	once, _, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))
	twice, store, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))

	require.NoError(t, once.CompleteStep(ctx, "profile-setup", nil))
	require.NoError(t, twice.CompleteStep(ctx, "profile-setup", nil))
	require.NoError(t, twice.CompleteStep(ctx, "profile-setup", nil))

	assert.Equal(t, once.State(), twice.State())
	store.AssertNumberOfCalls(t, "Save", 1)
}

func TestTrackerSkipRequiredStep(t *testing.T) {
	tr, store, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))
	before := tr.State()

	err := tr.SkipStep(context.Background(), "health-history")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSkip)
	var skipErr *InvalidSkipError
	assert.True(t, errors.As(err, &skipErr))

	assert.Equal(t, before, tr.State())
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackerSkipOptionalStep(t *testing.T) {
	tr, store, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))

	require.NoError(t, tr.SkipStep(context.Background(), "app-tour"))

	st := tr.State()
	i := FindStep(st.Steps, "app-tour")
	assert.Equal(t, StatusSkipped, st.Steps[i].Status)
	assert.True(t, st.Steps[i].Done())
	assert.Equal(t, 0.0, st.Progress)
	assert.Equal(t, "profile-setup", st.CurrentStepID)
	assert.Equal(t, PhaseInProgress, tr.Phase())

	// the status change alone is worth persisting
	store.AssertNumberOfCalls(t, "Save", 1)
	store.AssertCalled(t, "RecordStep", mock.Anything, testUser, mock.MatchedBy(func(req StepRequest) bool {
		return req.StepID == "app-tour" && req.Skipped
	}))
}

func TestTrackerUnknownStep(t *testing.T) {
	tr, _, _ := newTestTracker(t, RoleEmployer, NewProgressState(RoleEmployer))

	assert.ErrorIs(t, tr.CompleteStep(context.Background(), "profile-setup", nil), ErrUnknownStep)
	assert.ErrorIs(t, tr.SkipStep(context.Background(), "nope"), ErrUnknownStep)
	assert.ErrorIs(t, tr.GoToStep("nope"), ErrUnknownStep)
}

func TestTrackerGoToStepIsEphemeral(t *testing.T) {
	tr, store, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))

	require.NoError(t, tr.GoToStep("benefits-connect"))

	step, ok := tr.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "BenefitsConnect", step.Route)
	assert.Equal(t, 0.0, tr.State().Progress)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackerResetAfterCompletion(t *testing.T) {
	ctx := context.Background()
	tr, store, profile := newTestTracker(t, RoleEmployer, NewProgressState(RoleEmployer))

	for _, id := range []string{"company-profile", "team-setup", "benefits-upload"} {
		require.NoError(t, tr.CompleteStep(ctx, id, nil))
	}
	require.True(t, tr.State().IsComplete)

	require.NoError(t, tr.ResetOnboarding(ctx))

	st := tr.State()
	assert.Equal(t, 0.0, st.Progress)
	assert.False(t, st.IsComplete)
	assert.Equal(t, "company-profile", st.CurrentStepID)
	assert.Equal(t, PhaseNotStarted, tr.Phase())
	store.AssertCalled(t, "Reset", mock.Anything, testUser, RoleEmployer)
	// the user-level flag stays set
	profile.AssertNotCalled(t, "UpdateOnboardingStatus", mock.Anything, false)
}

func TestTrackerLoadedCompleteDoesNotSignal(t *testing.T) {
	done := NewProgressState(RoleEmployee)
	for i := range done.Steps {
		if done.Steps[i].IsRequired {
			done.Steps[i].Complete()
		}
	}
	done.CurrentStepID = "benefits-connect"
	Recompute(done, true)

	tr, _, profile := newTestTracker(t, RoleEmployee, done)
	assert.Equal(t, PhaseComplete, tr.Phase())

	require.NoError(t, tr.SkipStep(context.Background(), "app-tour"))
	assert.Equal(t, "benefits-connect", tr.State().CurrentStepID, "a finished flow keeps its pointer")
	profile.AssertNotCalled(t, "UpdateOnboardingStatus", mock.Anything, mock.Anything)
}

func TestTrackerSwallowsPersistenceErrors(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, testUser, RoleEmployer).Return(NewProgressState(RoleEmployer))
	store.On("Save", mock.Anything, testUser, mock.Anything).Return(errors.New("disk full"))
	store.On("RecordStep", mock.Anything, testUser, mock.Anything).Return(errors.New("connection refused"))
	store.On("Reset", mock.Anything, testUser, RoleEmployer).Return(errors.New("connection refused"))

	tr := NewTracker(store, nil, zaptest.NewLogger(t))
	require.NoError(t, tr.Init(context.Background(), RoleEmployer, testUser))
	defer tr.Teardown()

	require.NoError(t, tr.CompleteStep(context.Background(), "company-profile", nil))
	assert.Equal(t, "team-setup", tr.State().CurrentStepID)
	require.NoError(t, tr.ResetOnboarding(context.Background()))
}

func TestTrackerNotInitialized(t *testing.T) {
	tr := NewTracker(new(mockStore), nil, nil)

	assert.ErrorIs(t, tr.CompleteStep(context.Background(), "profile-setup", nil), ErrNotInitialized)
	assert.ErrorIs(t, tr.GoToStep("profile-setup"), ErrNotInitialized)
	assert.ErrorIs(t, tr.ResetOnboarding(context.Background()), ErrNotInitialized)
	assert.Nil(t, tr.State())
	assert.Equal(t, PhaseNotStarted, tr.Phase())
}

func TestTrackerTeardown(t *testing.T) {
	tr, _, _ := newTestTracker(t, RoleEmployee, NewProgressState(RoleEmployee))
	tr.Teardown()

	assert.Nil(t, tr.State())
	assert.ErrorIs(t, tr.SkipStep(context.Background(), "app-tour"), ErrNotInitialized)
}
