package onboarding

// Phase is the coarse lifecycle position of a ProgressState.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseComplete   Phase = "complete"
)

// ProgressState is the per-role onboarding record. It is persisted verbatim
// as the local snapshot.
type ProgressState struct {
	Role          Role    `json:"role" bson:"role"`
	Steps         []Step  `json:"steps" bson:"steps"`
	CurrentStepID string  `json:"currentStepId" bson:"current_step_id"`
	Progress      float64 `json:"progress" bson:"progress"`
	IsComplete    bool    `json:"isComplete" bson:"is_complete"`
}

// NewProgressState builds the default state for role: nothing done and the
// first step current.
func NewProgressState(role Role) *ProgressState {
	descs := StepsForRole(role)
	st := &ProgressState{Role: role, Steps: make([]Step, len(descs))}
	for i, d := range descs {
		st.Steps[i] = Step{StepDescriptor: d, Status: StatusPending}
	}
	if len(st.Steps) > 0 {
		st.CurrentStepID = st.Steps[0].ID
	}
	return st
}

func (s *ProgressState) Clone() *ProgressState {
	if s == nil {
		return nil
	}
	out := *s
	out.Steps = make([]Step, len(s.Steps))
	copy(out.Steps, s.Steps)
	return &out
}

func (s *ProgressState) Phase() Phase {
	if s.IsComplete {
		return PhaseComplete
	}
	for _, st := range s.Steps {
		if st.Done() {
			return PhaseInProgress
		}
	}
	return PhaseNotStarted
}

// CurrentStep returns the descriptor CurrentStepID points at.
func (s *ProgressState) CurrentStep() (StepDescriptor, bool) {
	if i := FindStep(s.Steps, s.CurrentStepID); i >= 0 {
		return s.Steps[i].StepDescriptor, true
	}
	return StepDescriptor{}, false
}

// Normalize aligns a snapshot from storage with the registry: statuses are
// carried over by id, unknown ids are dropped, and derived fields are
// recomputed. The registry decides order and descriptor text.
func Normalize(snapshot *ProgressState, role Role) *ProgressState {
	st := NewProgressState(role)
	if snapshot == nil {
		return st
	}
	for i := range st.Steps {
		j := FindStep(snapshot.Steps, st.Steps[i].ID)
		if j < 0 {
			continue
		}
		switch snapshot.Steps[j].Status {
		case StatusCompleted:
			st.Steps[i].Complete()
		case StatusSkipped:
			if err := st.Steps[i].Skip(); err != nil {
				st.Steps[i].Complete()
			}
		}
	}
	wasComplete := snapshot.IsComplete && ComputeIsComplete(st.Steps)
	if FindStep(st.Steps, snapshot.CurrentStepID) >= 0 {
		st.CurrentStepID = snapshot.CurrentStepID
	}
	Recompute(st, wasComplete)
	return st
}

// derivedEqual compares everything the persistence layer cares about.
func derivedEqual(a, b *ProgressState) bool {
	if a.Progress != b.Progress || a.IsComplete != b.IsComplete || a.CurrentStepID != b.CurrentStepID {
		return false
	}
	if len(a.Steps) != len(b.Steps) {
		return false
	}
	for i := range a.Steps {
		if a.Steps[i].ID != b.Steps[i].ID || a.Steps[i].Status != b.Steps[i].Status {
			return false
		}
	}
	return true
}
