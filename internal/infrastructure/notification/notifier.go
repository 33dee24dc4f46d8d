// Package notification delivers billing run summaries and receipt
// notices to owners. Delivery is fire-and-forget: failures are logged
// and never propagated into billing flows.
package notification

import (
	"context"

	"go.uber.org/zap"
)

// Severity classifies a notification
type Severity string

const (
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Notifier sends a notification to a single recipient
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string, severity Severity) error
}

// LogNotifier writes notifications to the application log. It stands in
// for a real email or messaging backend.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// Notify logs the notification
func (n *LogNotifier) Notify(_ context.Context, recipient, subject, body string, severity Severity) error {
	fields := []zap.Field{
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	}
	switch severity {
	case SeverityWarning:
		n.logger.Warn("Notification dispatched", fields...)
	case SeverityError:
		n.logger.Error("Notification dispatched", fields...)
	default:
		n.logger.Info("Notification dispatched", fields...)
	}
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
