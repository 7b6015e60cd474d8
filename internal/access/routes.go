package access

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/go-extras/go-kit/must"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

var ErrInvalidRoute = errors.New("invalid route")

// Route declares who may open a path. A pattern ending in "/*" also covers
// every path below its prefix.
type Route struct {
	Pattern string
	Title   string
	Allowed []models.Role
	Public  bool
}

// Allows reports whether role may open the route. A protected route with no
// allowed roles only requires authentication.
func (r Route) Allows(role models.Role) bool {
	if r.Public || len(r.Allowed) == 0 {
		return true
	}
	return slices.Contains(r.Allowed, role)
}

func (r Route) prefix() (string, bool) {
	return strings.CutSuffix(r.Pattern, "/*")
}

// RouteTable is immutable after construction.
type RouteTable struct {
	exact    map[string]Route
	prefixes []Route // longest prefix first
	routes   []Route
}

func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{exact: make(map[string]Route, len(routes))}
	for _, r := range routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("%w: pattern %q must be absolute", ErrInvalidRoute, r.Pattern)
		}
		for _, role := range r.Allowed {
			if !role.Valid() {
				return nil, fmt.Errorf("%w: %s allows unknown role %q", ErrInvalidRoute, r.Pattern, role)
			}
		}
		if p, ok := r.prefix(); ok {
			if p == "" || strings.Contains(p, "*") {
				return nil, fmt.Errorf("%w: bad wildcard %q", ErrInvalidRoute, r.Pattern)
			}
			t.prefixes = append(t.prefixes, r)
		} else {
			if strings.Contains(r.Pattern, "*") {
				return nil, fmt.Errorf("%w: bad wildcard %q", ErrInvalidRoute, r.Pattern)
			}
			if _, dup := t.exact[r.Pattern]; dup {
				return nil, fmt.Errorf("%w: duplicate pattern %q", ErrInvalidRoute, r.Pattern)
			}
			t.exact[r.Pattern] = r
		}
		t.routes = append(t.routes, r)
	}
	slices.SortStableFunc(t.prefixes, func(a, b Route) int {
		return len(b.Pattern) - len(a.Pattern)
	})
	return t, nil
}

// Match finds the route for a request path. Exact patterns win over wildcards.
func (t *RouteTable) Match(p string) (Route, bool) {
	p = cleanPath(p)
	if r, ok := t.exact[p]; ok {
		return r, true
	}
	for _, r := range t.prefixes {
		prefix, _ := r.prefix()
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return r, true
		}
	}
	return Route{}, false
}

// Routes returns the routes in declaration order.
func (t *RouteTable) Routes() []Route {
	return slices.Clone(t.routes)
}

// LandingPath picks where a freshly signed-in user goes: the requested next
// path when it is safe and open to the role, otherwise the role's home.
func (t *RouteTable) LandingPath(role models.Role, next string) string {
	home := HomePath(role)
	if home == LoginPath {
		return home
	}
	target, ok := SafeNext(next)
	if !ok {
		return home
	}
	r, ok := t.Match(pathOnly(target))
	if !ok || r.Public || !r.Allows(role) {
		return home
	}
	return target
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func pathOnly(target string) string {
	p, _, _ := strings.Cut(target, "?")
	p, _, _ = strings.Cut(p, "#")
	return p
}

func allow(roles ...models.Role) []models.Role { return roles }

// DefaultRoutes is the application's route table.
func DefaultRoutes() *RouteTable {
	admin := allow(models.RoleAdmin)
	marketer := allow(models.RoleMarketer)
	sales := allow(models.RoleSales)

	routes := []Route{
		{Pattern: "/", Title: "Welcome", Public: true},
		{Pattern: LoginPath, Title: "Sign in", Public: true},
		{Pattern: SignupPath, Title: "Create account", Public: true},

		{Pattern: "/admin", Title: "System Overview", Allowed: admin},
		{Pattern: "/admin/users", Title: "User Management", Allowed: admin},
		{Pattern: "/admin/campaigns", Title: "Campaign Monitoring", Allowed: admin},
		{Pattern: "/admin/communications", Title: "Communication Control", Allowed: admin},
		{Pattern: "/admin/automations", Title: "Automation Management", Allowed: admin},
		{Pattern: "/admin/contacts", Title: "Contact Overview", Allowed: admin},
		{Pattern: "/admin/notifications", Title: "Notifications", Allowed: admin},
		{Pattern: "/admin/integrations", Title: "Integration Settings", Allowed: admin},
		{Pattern: "/admin/reports", Title: "Reports & Logs", Allowed: admin},
		{Pattern: "/admin/settings", Title: "Settings", Allowed: admin},
		{Pattern: "/admin/support", Title: "Support Tools", Allowed: admin},

		{Pattern: "/marketer", Title: "Dashboard", Allowed: marketer},
		{Pattern: "/marketer/contacts/*", Title: "Contacts", Allowed: marketer},
		{Pattern: "/marketer/campaigns/*", Title: "Campaigns", Allowed: marketer},
		{Pattern: "/marketer/automations/*", Title: "Automations", Allowed: marketer},
		{Pattern: "/marketer/social/*", Title: "Social", Allowed: marketer},
		{Pattern: "/marketer/templates/*", Title: "Templates", Allowed: marketer},
		{Pattern: "/marketer/analytics", Title: "Analytics", Allowed: marketer},
		{Pattern: "/marketer/notifications", Title: "Notifications", Allowed: marketer},
		{Pattern: "/marketer/integrations", Title: "Integrations", Allowed: marketer},
		{Pattern: "/marketer/profile", Title: "Profile", Allowed: marketer},
		{Pattern: "/marketer/help", Title: "Help", Allowed: marketer},

		{Pattern: "/sales", Title: "Overview", Allowed: sales},
		{Pattern: "/sales/leads", Title: "Leads", Allowed: sales},
		{Pattern: "/sales/conversations", Title: "Conversations", Allowed: sales},
		{Pattern: "/sales/follow-ups", Title: "Follow-ups", Allowed: sales},
		{Pattern: "/sales/performance", Title: "Performance", Allowed: sales},
		{Pattern: "/sales/notifications", Title: "Notifications", Allowed: sales},
		{Pattern: "/sales/contacts", Title: "Contacts Directory", Allowed: sales},
		{Pattern: "/sales/search", Title: "Search", Allowed: sales},
		{Pattern: "/sales/profile", Title: "Profile", Allowed: sales},
		{Pattern: "/sales/help", Title: "Help", Allowed: sales},
		{Pattern: "/sales/tags", Title: "Tags", Allowed: sales},

		{Pattern: "/super-admin", Title: "Platform Overview", Allowed: allow(models.RoleSuperAdmin)},
	}
	return must.Must(NewRouteTable(routes...))
}
