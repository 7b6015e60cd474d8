package access

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

func rolesFromMask(mask int) []models.Role {
	var out []models.Role
	for i, r := range models.Roles {
		if mask&(1<<i) != 0 {
			out = append(out, r)
		}
	}
	return out
}

func protectedPaths() []string {
	var out []string
	for _, r := range DefaultRoutes().Routes() {
		if !r.Public {
			out = append(out, r.Pattern)
		}
	}
	return out
}

func TestGateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	paths := protectedPaths()
	roleGen := gen.IntRange(0, len(models.Roles)-1)

	properties.Property("a role outside the allowed set is sent to its home", prop.ForAll(
		func(ri, mask int) bool {
			role := models.Roles[ri]
			allowed := rolesFromMask(mask &^ (1 << ri))
			if len(allowed) == 0 {
				return true
			}
			d := Decide(Subject{Authenticated: true, Resolved: true, Role: role}, "/x", allowed)
			return d.Outcome == OutcomeRedirectHome && d.Location == HomePath(role)
		},
		roleGen, gen.IntRange(0, 15),
	))

	properties.Property("unauthenticated navigation goes to login with the path preserved", prop.ForAll(
		func(pi, mask int) bool {
			target := paths[pi]
			d := Decide(Subject{}, target, rolesFromMask(mask))
			return d.Outcome == OutcomeRedirectLogin && d.Location == LoginURL(target) && d.Location != LoginPath
		},
		gen.IntRange(0, len(paths)-1), gen.IntRange(0, 15),
	))

	properties.Property("loading never redirects", prop.ForAll(
		func(authenticated, resolved bool, ri, mask int) bool {
			s := Subject{Loading: true, Authenticated: authenticated, Resolved: resolved, Role: models.Roles[ri]}
			d := Decide(s, "/admin", rolesFromMask(mask))
			return d.Outcome == OutcomeLoading && d.Location == ""
		},
		gen.Bool(), gen.Bool(), roleGen, gen.IntRange(0, 15),
	))

	properties.Property("only allowed roles are let through", prop.ForAll(
		func(ri, mask int) bool {
			role := models.Roles[ri]
			allowed := rolesFromMask(mask)
			d := Decide(Subject{Authenticated: true, Resolved: true, Role: role}, "/x", allowed)
			if d.Outcome != OutcomeAllow {
				return true
			}
			return len(allowed) == 0 || Route{Allowed: allowed}.Allows(role)
		},
		roleGen, gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}
