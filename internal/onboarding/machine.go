package onboarding

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Events for the phase machine.
const (
	EventAdvance = "ADVANCE"
	EventFinish  = "FINISH"
	EventReset   = "RESET"
)

// Machine state ids; kept untyped so they convert to statekit's id type.
const (
	stateNotStarted = "not_started"
	stateInProgress = "in_progress"
	stateComplete   = "complete"
)

type phaseContext struct {
	Role Role
}

// phaseMachine mirrors the lifecycle of one ProgressState. Only forward
// moves and an explicit reset are accepted.
type phaseMachine struct {
	interp *statekit.Interpreter[phaseContext]
}

func newPhaseMachine(role Role) (*phaseMachine, error) {
	machine, err := statekit.NewMachine[phaseContext]("onboarding").
		WithInitial(stateNotStarted).
		WithContext(phaseContext{Role: role}).
		State(stateNotStarted).
		On(EventAdvance).Target(stateInProgress).
		On(EventFinish).Target(stateComplete).Done().
		State(stateInProgress).
		On(EventFinish).Target(stateComplete).
		On(EventReset).Target(stateNotStarted).Done().
		State(stateComplete).
		On(EventReset).Target(stateNotStarted).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build phase machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &phaseMachine{interp: interp}, nil
}

func (m *phaseMachine) Phase() Phase {
	return Phase(m.interp.State().Value)
}

// MoveTo sends the event leading to target. It reports false when the
// machine refused the move.
func (m *phaseMachine) MoveTo(target Phase) bool {
	if m.Phase() == target {
		return true
	}
	var event string
	switch target {
	case PhaseInProgress:
		event = EventAdvance
	case PhaseComplete:
		event = EventFinish
	case PhaseNotStarted:
		event = EventReset
	default:
		return false
	}
	m.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	return m.Phase() == target
}

func (m *phaseMachine) Stop() {
	m.interp.Stop()
}
