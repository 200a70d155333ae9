package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // never expose hash in JSON
	Name          string     `json:"name"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"isActive"`
	LoginAttempts int        `json:"loginAttempts"`
	LockoutUntil  *time.Time `json:"lockoutUntil,omitempty"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Identity is what a successful login hands to the session layer.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// IsLocked reports whether a lockout deadline is still ahead of now.
func (u User) IsLocked(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

type Status string

const (
	StatusActive      Status = "ACTIVE_OK"
	StatusLocked      Status = "ACTIVE_LOCKED"
	StatusDeactivated Status = "DEACTIVATED"
)

// Status derives the account state. Deactivation wins over a lockout.
func (u User) Status(now time.Time) Status {
	switch {
	case !u.IsActive:
		return StatusDeactivated
	case u.IsLocked(now):
		return StatusLocked
	default:
		return StatusActive
	}
}

// NormalizeEmail is applied before every lookup and insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateUserRequest struct {
	Email        string
	PasswordHash string
	Name         string
	Role         Role
}
