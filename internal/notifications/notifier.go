package notifications

import (
	"context"
	"time"
)

type LockoutAlert struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Attempts    int       `json:"attempts"`
	LockedUntil time.Time `json:"lockedUntil"`
}

type Notifier interface {
	SendLockoutAlert(ctx context.Context, alert LockoutAlert) error
}
