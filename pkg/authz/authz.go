// Package authz maps principal roles to capabilities.
package authz

import (
	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/principal"
)

// Capability is a named permission.
type Capability string

const (
	// Administer allows impersonating other principals.
	Administer Capability = "administer"
	// Manage allows changing settings and reading or clearing logs.
	Manage Capability = "manage"
	// UpdatePlugins gates the site health update counts.
	UpdatePlugins Capability = "update_plugins"
)

// Checker answers capability questions about a principal.
type Checker interface {
	Can(p principal.Principal, c Capability) bool
}

// RoleChecker grants every capability to admin roles and Manage plus
// UpdatePlugins to manager roles. Role names compare case-insensitively.
type RoleChecker struct {
	adminRoles   []string
	managerRoles []string
}

func NewRoleChecker(adminRoles, managerRoles []string) *RoleChecker {
	return &RoleChecker{adminRoles: adminRoles, managerRoles: managerRoles}
}

// NewRoleCheckerFromConfig builds a RoleChecker from the comma-separated role lists.
func NewRoleCheckerFromConfig(cfg config.RolesConfig) *RoleChecker {
	return NewRoleChecker(
		config.ParseAdminRoleNames(cfg.AdminRoles),
		config.ParseManagerRoleNames(cfg.ManagerRoles),
	)
}

func (c *RoleChecker) Can(p principal.Principal, capability Capability) bool {
	if p.ID.IsNone() {
		return false
	}
	if config.HasAnyAdminRole(p.Roles, c.adminRoles) {
		return true
	}
	switch capability {
	case Manage, UpdatePlugins:
		return config.HasAnyAdminRole(p.Roles, c.managerRoles)
	default:
		return false
	}
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(p principal.Principal, c Capability) bool

func (f CheckerFunc) Can(p principal.Principal, c Capability) bool {
	return f(p, c)
}
