package slack

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LogNotifier implements Notifier by writing messages to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(ctx context.Context, message string) error {
	n.logger.Info("Published to Slack channel", zap.String("message", message))
	return nil
}

// FormatCompletion renders the message sent when a user finishes a flow.
func FormatCompletion(userID, role string, at time.Time) string {
	return fmt.Sprintf("*Onboarding completed*\nUser: `%s`\nRole: %s\nAt: %s",
		userID, role, at.UTC().Format(time.RFC3339))
}
