// Package views describes the dashboards rendered for allowed routes.
package views

import (
	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/models"
)

type MenuItem struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

var menus = map[models.Role][]MenuItem{
	models.RoleAdmin: {
		{"System Overview", "/admin"},
		{"User Management", "/admin/users"},
		{"Campaign Monitoring", "/admin/campaigns"},
		{"Communication Control", "/admin/communications"},
		{"Automation Management", "/admin/automations"},
		{"Contact Overview", "/admin/contacts"},
		{"Notifications", "/admin/notifications"},
		{"Integration Settings", "/admin/integrations"},
		{"Reports & Logs", "/admin/reports"},
		{"Settings", "/admin/settings"},
	},
	models.RoleMarketer: {
		{"Dashboard", "/marketer"},
		{"Contacts", "/marketer/contacts"},
		{"Campaigns", "/marketer/campaigns"},
		{"Automations", "/marketer/automations"},
		{"Social", "/marketer/social"},
		{"Templates", "/marketer/templates"},
		{"Analytics", "/marketer/analytics"},
		{"Notifications", "/marketer/notifications"},
		{"Integrations", "/marketer/integrations"},
		{"Profile", "/marketer/profile"},
		{"Help", "/marketer/help"},
	},
	models.RoleSales: {
		{"Overview", "/sales"},
		{"Leads", "/sales/leads"},
		{"Conversations", "/sales/conversations"},
		{"Follow-ups", "/sales/follow-ups"},
		{"Performance", "/sales/performance"},
		{"Notifications", "/sales/notifications"},
		{"Contacts Directory", "/sales/contacts"},
		{"Search", "/sales/search"},
		{"Profile", "/sales/profile"},
		{"Help", "/sales/help"},
		{"Tags", "/sales/tags"},
	},
	models.RoleSuperAdmin: {
		{"Platform Overview", "/super-admin"},
	},
}

// Menu returns the sidebar of a role; nil for roles without a dashboard.
func Menu(r models.Role) []MenuItem {
	items := menus[r]
	if items == nil {
		return nil
	}
	out := make([]MenuItem, len(items))
	copy(out, items)
	return out
}

// Descriptor is what the client renders for one view.
type Descriptor struct {
	Path    string          `json:"path"`
	Title   string          `json:"title"`
	Role    models.Role     `json:"role,omitempty"`
	Home    string          `json:"home,omitempty"`
	Menu    []MenuItem      `json:"menu,omitempty"`
	User    *models.User    `json:"user,omitempty"`
	Company *models.Company `json:"company,omitempty"`
}

// Describe builds the descriptor of route at path for user. Public routes
// carry no identity.
func Describe(route access.Route, path string, user *models.User, company *models.Company) Descriptor {
	d := Descriptor{Path: path, Title: route.Title}
	if route.Public || user == nil {
		return d
	}
	d.Role = user.Role
	d.Home = access.HomePath(user.Role)
	d.Menu = Menu(user.Role)
	d.User = user
	d.Company = company
	return d
}
