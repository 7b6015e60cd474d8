package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

// SubjectFunc reads the latest session state for a request.
type SubjectFunc func(r *http.Request) Subject

type routeKey struct{}

// RouteFrom returns the route matched by Gate.
func RouteFrom(ctx context.Context) (Route, bool) {
	r, ok := ctx.Value(routeKey{}).(Route)
	return r, ok
}

// Gate guards view routes. Paths missing from the table fall through to next.
//
//	loading          200 placeholder, Refresh: 1
//	unauthenticated  303 /login?next=<path>
//	unresolved       204, Refresh: 1
//	denied           303 role home
//	allowed          next, with the matched route in the context
func Gate(table *RouteTable, subject SubjectFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := table.Match(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), routeKey{}, route)
			if route.Public {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			d := Decide(subject(r), r.URL.RequestURI(), route.Allowed)
			switch d.Outcome {
			case OutcomeLoading:
				w.Header().Set("Refresh", "1")
				writeJSON(w, http.StatusOK, map[string]string{"status": "loading"})
			case OutcomeUnresolved:
				w.Header().Set("Refresh", "1")
				w.WriteHeader(http.StatusNoContent)
			case OutcomeRedirectLogin, OutcomeRedirectHome:
				log.DebugContext(r.Context(), "gate redirect",
					"path", r.URL.Path, "outcome", d.Outcome.String(), "location", d.Location)
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// RequireRoles guards JSON endpoints: 401 without a session, 503 while the
// session is still resolving, 403 for a role outside roles.
func RequireRoles(subject SubjectFunc, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := subject(r)
			switch {
			case !s.Loading && !s.Authenticated:
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			case s.Loading || !s.Resolved:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session is loading"})
			case !s.Role.Valid() || !(Route{Allowed: roles}).Allows(s.Role):
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
