package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/principal"
)

func TestRoleChecker(t *testing.T) {
	checker := NewRoleCheckerFromConfig(config.RolesConfig{AdminRoles: "admin", ManagerRoles: "manager"})

	admin := principal.Principal{ID: 1, Roles: []string{"Admin"}}
	manager := principal.Principal{ID: 2, Roles: []string{"manager"}}
	viewer := principal.Principal{ID: 3, Roles: []string{"viewer"}}
	anonymous := principal.Principal{Roles: []string{"admin"}}

	for _, c := range []Capability{Administer, Manage, UpdatePlugins} {
		assert.True(t, checker.Can(admin, c), c)
		assert.False(t, checker.Can(viewer, c), c)
		assert.False(t, checker.Can(anonymous, c), c)
	}
	assert.False(t, checker.Can(manager, Administer))
	assert.True(t, checker.Can(manager, Manage))
	assert.True(t, checker.Can(manager, UpdatePlugins))
}

func TestCheckerFunc(t *testing.T) {
	deny := CheckerFunc(func(principal.Principal, Capability) bool { return false })
	assert.False(t, deny.Can(principal.Principal{ID: 1, Roles: []string{"admin"}}, Administer))
}
