package slack

import "context"

// Notifier publishes a message to the team channel that follows onboarding.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}
