package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier is used when no message broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendLockoutAlert(ctx context.Context, alert LockoutAlert) error {
	n.log.InfoContext(ctx, "notification.lockout_alert",
		"user_id", alert.UserID,
		"email", alert.Email,
		"attempts", alert.Attempts,
		"locked_until", alert.LockedUntil,
	)
	return nil
}
