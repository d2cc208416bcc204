package onboarding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store persists progress for the tracker. Load never fails: it falls back
// to defaults. The write methods report errors so the tracker can log them.
type Store interface {
	Load(ctx context.Context, userID string, role Role) *ProgressState
	Save(ctx context.Context, userID string, st *ProgressState) error
	Reset(ctx context.Context, userID string, role Role) error
	RecordStep(ctx context.Context, userID string, req StepRequest) error
	MarkComplete(ctx context.Context, userID string, req CompleteRequest) error
}

// ProfileUpdater flips the user-level "onboarding complete" flag.
type ProfileUpdater interface {
	UpdateOnboardingStatus(ctx context.Context, completed bool) error
}

// Tracker holds the progress of one role for one user and applies step
// mutations to it. Persistence failures never reach the caller.
type Tracker struct {
	mu      sync.Mutex
	store   Store
	profile ProfileUpdater
	logger  *zap.Logger
	now     func() time.Time

	role    Role
	userID  string
	state   *ProgressState
	machine *phaseMachine
}

func NewTracker(store Store, profile ProfileUpdater, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:   store,
		profile: profile,
		logger:  logger,
		now:     time.Now,
	}
}

// Init loads the role's progress for userID and makes it the active state.
// Calling Init again replaces the previous session.
func (t *Tracker) Init(ctx context.Context, role Role, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardownLocked()

	st := t.store.Load(ctx, userID, role)
	if st == nil {
		st = NewProgressState(role)
	}
	m, err := newPhaseMachine(role)
	if err != nil {
		return err
	}

	t.role = role
	t.userID = userID
	t.state = st
	t.machine = m
	t.syncPhaseLocked()

	t.logger.Debug("Onboarding loaded",
		zap.String("role", string(role)),
		zap.String("user_id", userID),
		zap.String("current_step", st.CurrentStepID),
		zap.Float64("progress", st.Progress))
	return nil
}

// Teardown drops the active state. The tracker can be re-initialized.
func (t *Tracker) Teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
}

func (t *Tracker) teardownLocked() {
	if t.machine != nil {
		t.machine.Stop()
	}
	t.machine = nil
	t.state = nil
	t.userID = ""
	t.role = ""
}

// State returns a copy of the active state, or nil before Init.
func (t *Tracker) State() *ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.machine == nil {
		return PhaseNotStarted
	}
	return t.machine.Phase()
}

func (t *Tracker) CurrentStep() (StepDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return StepDescriptor{}, false
	}
	return t.state.CurrentStep()
}

// CompleteStep marks stepID completed. Completing a step twice is a no-op.
func (t *Tracker) CompleteStep(ctx context.Context, stepID string, data map[string]any) error {
	return t.apply(ctx, stepID, data, false)
}

// SkipStep marks an optional step as skipped. Required steps fail with an
// *InvalidSkipError and the state is left unchanged.
func (t *Tracker) SkipStep(ctx context.Context, stepID string) error {
	return t.apply(ctx, stepID, nil, true)
}

func (t *Tracker) apply(ctx context.Context, stepID string, data map[string]any, skip bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return ErrNotInitialized
	}
	i := FindStep(t.state.Steps, stepID)
	if i < 0 {
		return ErrUnknownStep
	}

	prev := t.state
	next := prev.Clone()
	if skip {
		if err := next.Steps[i].Skip(); err != nil {
			return err
		}
	} else {
		next.Steps[i].Complete()
	}
	Recompute(next, prev.IsComplete)
	t.state = next
	t.syncPhaseLocked()

	if derivedEqual(prev, next) {
		return nil
	}

	if err := t.store.Save(ctx, t.userID, next); err != nil {
		t.logger.Warn("Failed to persist onboarding progress",
			zap.String("role", string(t.role)), zap.Error(err))
	}

	if prev.Steps[i].Status != next.Steps[i].Status {
		req := StepRequest{
			Role:        t.role,
			StepID:      stepID,
			StepData:    data,
			Skipped:     skip,
			CompletedAt: t.now().UTC(),
		}
		if err := t.store.RecordStep(ctx, t.userID, req); err != nil {
			t.logger.Warn("Failed to record onboarding step",
				zap.String("step", stepID), zap.Error(err))
		}
	}

	if !prev.IsComplete && next.IsComplete {
		t.finishLocked(ctx)
	}
	return nil
}

func (t *Tracker) finishLocked(ctx context.Context) {
	t.logger.Info("Onboarding completed",
		zap.String("role", string(t.role)), zap.String("user_id", t.userID))

	req := CompleteRequest{Role: t.role, CompletedAt: t.now().UTC()}
	if err := t.store.MarkComplete(ctx, t.userID, req); err != nil {
		t.logger.Warn("Failed to mark onboarding complete", zap.Error(err))
	}
	if t.profile == nil {
		return
	}
	if err := t.profile.UpdateOnboardingStatus(ctx, true); err != nil {
		t.logger.Warn("Failed to update user onboarding status", zap.Error(err))
	}
}

// GoToStep moves the current-step pointer without touching completion.
// The move is not persisted.
func (t *Tracker) GoToStep(stepID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return ErrNotInitialized
	}
	if FindStep(t.state.Steps, stepID) < 0 {
		return ErrUnknownStep
	}
	next := t.state.Clone()
	next.CurrentStepID = stepID
	t.state = next
	return nil
}

// ResetOnboarding restores the defaults and clears both persisted copies.
// The user-level completion flag is left as it is.
func (t *Tracker) ResetOnboarding(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return ErrNotInitialized
	}
	t.state = NewProgressState(t.role)
	t.syncPhaseLocked()

	if err := t.store.Reset(ctx, t.userID, t.role); err != nil {
		t.logger.Warn("Failed to reset persisted onboarding progress",
			zap.String("role", string(t.role)), zap.Error(err))
	}
	return nil
}

func (t *Tracker) syncPhaseLocked() {
	want := t.state.Phase()
	if !t.machine.MoveTo(want) {
		t.logger.Warn("Phase machine refused transition",
			zap.String("from", string(t.machine.Phase())),
			zap.String("to", string(want)))
	}
}
