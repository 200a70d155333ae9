package authz

import (
	"sort"
	"strings"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

const (
	AdminPrefix = "/admin"
	LoginPath   = "/admin/login"
)

type RouteRule struct {
	Prefix   string
	Required user.Role
}

// AdminRoutes gates admin pages. Paths not listed only need a session.
var AdminRoutes = []RouteRule{
	{Prefix: "/admin/users", Required: user.RoleSuperAdmin},
	{Prefix: "/admin/settings/advanced", Required: user.RoleSuperAdmin},
	{Prefix: "/admin/settings/security", Required: user.RoleSuperAdmin},
	{Prefix: "/admin/seo", Required: user.RoleAdmin},
	{Prefix: "/admin/analytics", Required: user.RoleAdmin},
}

var sortedRules = func() []RouteRule {
	rules := make([]RouteRule, len(AdminRoutes))
	copy(rules, AdminRoutes)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})
	return rules
}()

// IsAdminPath reports whether path lives under /admin.
func IsAdminPath(path string) bool {
	return hasSegmentPrefix(cleanPath(path), AdminPrefix)
}

// RequiredRoleFor returns the minimum role for an admin page, using the
// longest matching rule. Unlisted paths are Unrestricted.
func RequiredRoleFor(path string) user.Role {
	p := cleanPath(path)

	for _, rule := range sortedRules {
		if hasSegmentPrefix(p, rule.Prefix) {
			return rule.Required
		}
	}

	return Unrestricted
}

// hasSegmentPrefix matches whole path segments so /admin/seo does not match
// /admin/seoul.
func hasSegmentPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func cleanPath(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// IsLoginPath reports whether path is the admin sign-in page.
func IsLoginPath(path string) bool {
	return cleanPath(path) == LoginPath
}
