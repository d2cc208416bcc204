package onboarding

// ComputeProgress returns the fraction of required steps that are done.
// A list without required steps has no progress.
func ComputeProgress(steps []Step) float64 {
	required, done := 0, 0
	for _, s := range steps {
		if !s.IsRequired {
			continue
		}
		required++
		if s.Done() {
			done++
		}
	}
	if required == 0 {
		return 0
	}
	return float64(done) / float64(required)
}

// ComputeIsComplete is true when there is at least one required step and
// all of them are done.
func ComputeIsComplete(steps []Step) bool {
	required := 0
	for _, s := range steps {
		if !s.IsRequired {
			continue
		}
		required++
		if !s.Done() {
			return false
		}
	}
	return required > 0
}

// ComputeCurrentStep picks the step the UI should show next. A flow that was
// already complete keeps its pointer; otherwise the lowest-index step that is
// not done wins.
func ComputeCurrentStep(steps []Step, wasAlreadyComplete bool, previousID string) string {
	if wasAlreadyComplete {
		return previousID
	}
	for _, s := range steps {
		if !s.Done() {
			return s.ID
		}
	}
	if len(steps) == 0 {
		return ""
	}
	if ComputeIsComplete(steps) && FindStep(steps, previousID) >= 0 {
		return previousID
	}
	return steps[0].ID
}

// Recompute refreshes the derived fields of st in place.
func Recompute(st *ProgressState, wasAlreadyComplete bool) {
	st.Progress = ComputeProgress(st.Steps)
	st.IsComplete = ComputeIsComplete(st.Steps)
	st.CurrentStepID = ComputeCurrentStep(st.Steps, wasAlreadyComplete, st.CurrentStepID)
}
