// Package authz decides whether a role may reach a resource that declares a
// minimum role. Every function here is pure.
package authz

import "github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"

// Unrestricted is the empty requirement: any caller passes.
const Unrestricted user.Role = ""

// Authorize reports whether caller's rank is at least required's rank.
// An unrestricted requirement always passes. A role outside the fixed set
// on either side yields user.ErrUnknownRole.
func Authorize(caller, required user.Role) (bool, error) {
	if required == Unrestricted {
		return true, nil
	}

	need, err := required.Rank()
	if err != nil {
		return false, err
	}

	have, err := caller.Rank()
	if err != nil {
		return false, err
	}

	return have >= need, nil
}

// IsAuthorized is Authorize for callers that only need a yes/no.
// Unknown roles are never authorized.
func IsAuthorized(caller, required user.Role) bool {
	ok, err := Authorize(caller, required)
	return err == nil && ok
}

func IsAdmin(role user.Role) bool {
	return IsAuthorized(role, user.RoleAdmin)
}

func IsSuperAdmin(role user.Role) bool {
	return role == user.RoleSuperAdmin
}
