package onboarding

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSkip    = errors.New("required step cannot be skipped")
	ErrUnknownStep    = errors.New("unknown onboarding step")
	ErrUnknownRole    = errors.New("unknown onboarding role")
	ErrNotInitialized = errors.New("onboarding tracker not initialized")
)

// InvalidSkipError is returned when a caller tries to skip a required step.
type InvalidSkipError struct {
	StepID string
}

func (e *InvalidSkipError) Error() string {
	return fmt.Sprintf("step %q is required and cannot be skipped", e.StepID)
}

func (e *InvalidSkipError) Is(target error) bool {
	return target == ErrInvalidSkip
}
