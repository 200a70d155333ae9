package authn

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrLocked             = errors.New("account locked")

	// ErrInfrastructure marks failures of the store or of a stored record.
	// It is never folded into ErrInvalidCredentials.
	ErrInfrastructure = errors.New("authentication infrastructure failure")
)

// LockedError carries the lockout deadline. errors.Is(err, ErrLocked) holds.
type LockedError struct {
	Until            time.Time
	MinutesRemaining int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.MinutesRemaining)
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonAccountDeactivated Reason = "account_deactivated"
	ReasonLocked             Reason = "locked"
	ReasonInfrastructure     Reason = "infrastructure_error"
)

// ReasonOf classifies an Authenticate error. Anything unrecognised is
// reported as an infrastructure error.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrInfrastructure):
		return ReasonInfrastructure
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrAccountDeactivated):
		return ReasonAccountDeactivated
	case errors.Is(err, ErrLocked):
		return ReasonLocked
	default:
		return ReasonInfrastructure
	}
}

func infraErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}
