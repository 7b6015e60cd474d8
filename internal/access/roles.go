// Package access decides which views a session may open: role home paths,
// the declarative route table and the gate evaluated on every navigation.
package access

import "github.com/r2r72/x-mkt-v1/internal/models"

const (
	LoginPath  = "/login"
	SignupPath = "/signup"
)

// HomePath maps a role to its dashboard. Unknown and empty roles go to the
// login page.
func HomePath(r models.Role) string {
	switch r {
	case models.RoleAdmin:
		return "/admin"
	case models.RoleMarketer:
		return "/marketer"
	case models.RoleSales:
		return "/sales"
	case models.RoleSuperAdmin:
		return "/super-admin"
	default:
		return LoginPath
	}
}
