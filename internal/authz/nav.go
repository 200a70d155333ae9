package authz

import "github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"

type NavItem struct {
	Name         string    `json:"name"`
	Href         string    `json:"href"`
	RequiredRole user.Role `json:"requiredRole,omitempty"`
	Children     []NavItem `json:"children,omitempty"`
}

// AdminNav is the full sidebar before filtering.
var AdminNav = []NavItem{
	{Name: "Dashboard", Href: "/admin"},
	{Name: "Restaurant Info", Href: "/admin/restaurant"},
	{
		Name: "Menu Management",
		Href: "/admin/menu",
		Children: []NavItem{
			{Name: "Categories", Href: "/admin/menu/categories"},
			{Name: "Menu Items", Href: "/admin/menu/items"},
		},
	},
	{Name: "Homepage Content", Href: "/admin/homepage"},
	{Name: "Media Library", Href: "/admin/media"},
	{Name: "SEO Settings", Href: "/admin/seo", RequiredRole: user.RoleAdmin},
	{Name: "Catering Requests", Href: "/admin/catering"},
	{Name: "Contact Inquiries", Href: "/admin/inquiries"},
	{Name: "Analytics", Href: "/admin/analytics", RequiredRole: user.RoleAdmin},
	{Name: "Users", Href: "/admin/users", RequiredRole: user.RoleSuperAdmin},
	{
		Name: "Site Settings",
		Href: "/admin/settings",
		Children: []NavItem{
			{Name: "General", Href: "/admin/settings/general"},
			{Name: "Security", Href: "/admin/settings/security", RequiredRole: user.RoleSuperAdmin},
		},
	},
}

// VisibleNav filters AdminNav down to what role may open.
func VisibleNav(role user.Role) ([]NavItem, error) {
	return filterNav(AdminNav, role)
}

func filterNav(items []NavItem, role user.Role) ([]NavItem, error) {
	out := make([]NavItem, 0, len(items))

	for _, item := range items {
		ok, err := Authorize(role, item.RequiredRole)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		visible := item
		if len(item.Children) > 0 {
			children, err := filterNav(item.Children, role)
			if err != nil {
				return nil, err
			}
			visible.Children = children
		}

		out = append(out, visible)
	}

	return out, nil
}
