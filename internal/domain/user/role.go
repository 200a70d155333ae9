package user

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleStaff      Role = "STAFF"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// rank is the total order used for every authorization comparison.
var rank = map[Role]int{
	RoleStaff:      1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Roles lists the valid roles from lowest to highest rank.
func Roles() []Role {
	return []Role{RoleStaff, RoleManager, RoleAdmin, RoleSuperAdmin}
}

func (r Role) Rank() (int, error) {
	n, ok := rank[r]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
	return n, nil
}

func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
