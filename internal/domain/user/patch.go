package user

import (
	"errors"
	"time"
)

// ErrLocked is returned by a store when a guarded patch meets an account
// whose lockout is still running. The store returns the record as it is
// alongside it.
var ErrLocked = errors.New("account locked")

// Patch is a partial update applied atomically by a store. Zero fields are
// left untouched.
type Patch struct {
	// IncrementAttempts adds one to LoginAttempts. When LockThreshold is
	// positive and the incremented count reaches it, LockoutUntil is set to
	// LockUntil in the same write.
	IncrementAttempts bool
	LockThreshold     int
	LockUntil         time.Time

	ResetAttempts bool
	ClearLockout  bool
	LastLogin     *time.Time
	IsActive      *bool

	// UnlessLockedAt refuses the whole patch with ErrLocked when the stored
	// record is locked at that instant. The check and the write are one
	// step in every store.
	UnlessLockedAt *time.Time
}

func FailedLogin(threshold int, lockUntil time.Time) Patch {
	return Patch{
		IncrementAttempts: true,
		LockThreshold:     threshold,
		LockUntil:         lockUntil,
	}
}

// SuccessfulLogin is guarded: a lockout issued by a concurrent failure
// after the caller's read wins over the success.
func SuccessfulLogin(at time.Time) Patch {
	return Patch{
		ResetAttempts:  true,
		ClearLockout:   true,
		LastLogin:      &at,
		UnlessLockedAt: &at,
	}
}

// UnlessLocked returns p guarded against an active lockout at now.
func (p Patch) UnlessLocked(now time.Time) Patch {
	p.UnlessLockedAt = &now
	return p
}

// Blocked reports whether the guard refuses p for u.
func (p Patch) Blocked(u User) bool {
	return p.UnlessLockedAt != nil && u.IsLocked(*p.UnlessLockedAt)
}

func Unlock() Patch {
	return Patch{ResetAttempts: true, ClearLockout: true}
}

func SetActive(active bool) Patch {
	return Patch{IsActive: &active}
}

func (p Patch) IsEmpty() bool {
	return !p.IncrementAttempts && !p.ResetAttempts && !p.ClearLockout && p.LastLogin == nil && p.IsActive == nil
}

// Apply mutates u the way a store must. Stores that cannot express the
// patch as one statement call Apply under a per-record lock.
func (p Patch) Apply(u *User, now time.Time) {
	if p.ResetAttempts {
		u.LoginAttempts = 0
	}
	if p.ClearLockout {
		u.LockoutUntil = nil
	}
	if p.IncrementAttempts {
		u.LoginAttempts++
		if p.LockThreshold > 0 && u.LoginAttempts >= p.LockThreshold {
			until := p.LockUntil
			u.LockoutUntil = &until
		}
	}
	if p.LastLogin != nil {
		at := *p.LastLogin
		u.LastLogin = &at
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	u.UpdatedAt = now
}
