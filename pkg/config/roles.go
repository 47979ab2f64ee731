package config

import "strings"

// RolesConfig names the roles that carry administrative and management capabilities.
type RolesConfig struct {
	AdminRoles   string `env:"ADMIN_ROLES" env-default:"admin,superadmin"`
	ManagerRoles string `env:"MANAGER_ROLES" env-default:"manager"`
}

// ParseAdminRoleNames parses a comma-separated list of admin role names
// Default roles if empty: ["admin", "superadmin"]
func ParseAdminRoleNames(envValue string) []string {
	roles := SplitList(envValue)
	if len(roles) == 0 {
		return []string{"admin", "superadmin"}
	}
	return roles
}

// ParseManagerRoleNames parses the manager role list. An empty value means no manager roles.
func ParseManagerRoleNames(envValue string) []string {
	return SplitList(envValue)
}

// IsAdminRole checks if the given role is in the list of admin roles
// Performs case-insensitive comparison
func IsAdminRole(role string, adminRoles []string) bool {
	for _, adminRole := range adminRoles {
		if strings.EqualFold(adminRole, role) {
			return true
		}
	}
	return false
}

// HasAnyAdminRole checks if the user has any of the specified admin roles
func HasAnyAdminRole(userRoles []string, adminRoles []string) bool {
	for _, userRole := range userRoles {
		if IsAdminRole(userRole, adminRoles) {
			return true
		}
	}
	return false
}
