package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

func TestAuthorize_AllPairs(t *testing.T) {
	roles := user.Roles()

	for i, caller := range roles {
		for j, required := range roles {
			ok, err := Authorize(caller, required)
			require.NoError(t, err)
			assert.Equal(t, i >= j, ok, "Authorize(%s, %s)", caller, required)
		}
	}
}

func TestAuthorize_Examples(t *testing.T) {
	assert.False(t, IsAuthorized(user.RoleManager, user.RoleAdmin))
	assert.True(t, IsAuthorized(user.RoleAdmin, user.RoleManager))
	assert.True(t, IsAuthorized(user.RoleStaff, Unrestricted))
	assert.True(t, IsAuthorized(user.RoleSuperAdmin, user.RoleSuperAdmin))
}

func TestAuthorize_Unrestricted(t *testing.T) {
	for _, caller := range append(user.Roles(), "", "GHOST") {
		ok, err := Authorize(caller, Unrestricted)
		require.NoError(t, err)
		assert.True(t, ok, "caller %q", caller)
	}
}

func TestAuthorize_UnknownRole(t *testing.T) {
	_, err := Authorize("GHOST", user.RoleStaff)
	require.ErrorIs(t, err, user.ErrUnknownRole)

	_, err = Authorize(user.RoleSuperAdmin, "OWNER")
	require.ErrorIs(t, err, user.ErrUnknownRole)

	assert.False(t, IsAuthorized("GHOST", user.RoleStaff))
}

func TestAdminHelpers(t *testing.T) {
	assert.False(t, IsAdmin(user.RoleManager))
	assert.True(t, IsAdmin(user.RoleAdmin))
	assert.True(t, IsAdmin(user.RoleSuperAdmin))

	assert.False(t, IsSuperAdmin(user.RoleAdmin))
	assert.True(t, IsSuperAdmin(user.RoleSuperAdmin))
}

func TestRequiredRoleFor(t *testing.T) {
	tests := []struct {
		path string
		want user.Role
	}{
		{path: "/admin", want: Unrestricted},
		{path: "/admin/menu/items", want: Unrestricted},
		{path: "/admin/users", want: user.RoleSuperAdmin},
		{path: "/admin/users/42/edit", want: user.RoleSuperAdmin},
		{path: "/admin/settings/advanced", want: user.RoleSuperAdmin},
		{path: "/admin/settings/general", want: Unrestricted},
		{path: "/admin/seo/", want: user.RoleAdmin},
		{path: "/admin/seoul", want: Unrestricted},
		{path: "/admin/analytics?range=7d", want: user.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredRoleFor(tt.path))
		})
	}

	assert.True(t, IsAdminPath("/admin/media"))
	assert.False(t, IsAdminPath("/menu"))
	assert.False(t, IsAdminPath("/administrator"))
}

func TestVisibleNav(t *testing.T) {
	hrefs := func(items []NavItem) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Href)
			for _, c := range it.Children {
				out = append(out, c.Href)
			}
		}
		return out
	}

	staff, err := VisibleNav(user.RoleStaff)
	require.NoError(t, err)
	assert.NotContains(t, hrefs(staff), "/admin/seo")
	assert.NotContains(t, hrefs(staff), "/admin/users")
	assert.NotContains(t, hrefs(staff), "/admin/settings/security")
	assert.Contains(t, hrefs(staff), "/admin/settings/general")

	admin, err := VisibleNav(user.RoleAdmin)
	require.NoError(t, err)
	assert.Contains(t, hrefs(admin), "/admin/seo")
	assert.Contains(t, hrefs(admin), "/admin/analytics")
	assert.NotContains(t, hrefs(admin), "/admin/users")

	super, err := VisibleNav(user.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Contains(t, hrefs(super), "/admin/users")
	assert.Contains(t, hrefs(super), "/admin/settings/security")

	_, err = VisibleNav("GHOST")
	require.ErrorIs(t, err, user.ErrUnknownRole)
}

func TestVisibleNav_DoesNotMutateSource(t *testing.T) {
	_, err := VisibleNav(user.RoleStaff)
	require.NoError(t, err)

	var settings NavItem
	for _, it := range AdminNav {
		if it.Href == "/admin/settings" {
			settings = it
		}
	}
	assert.Len(t, settings.Children, 2)
}
